package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	epub "github.com/go-shiori/go-epub"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/minischools/academy-backend/internal/modules/content"
)

const epubCSS = `body { margin: 1em; line-height: 1.5; font-family: serif; }
img { max-width: 100%; height: auto; }
h1 { page-break-before: always; }
.toc { list-style-type: none; padding-left: 0; }
.toc li { margin-bottom: 0.6em; }
.image-placeholder { font-style: italic; color: #777; }`

// EPUB packages the document as an EPUB 3 book. Images are embedded; images
// that cannot be loaded become placeholder text.
func (e *Exporter) EPUB(ctx context.Context, doc Document) ([]byte, error) {
	coverURL, chapters := printableChapters(doc.Chapters)
	images := prefetchImages(ctx, e.fetcher, imageURLs(coverURL, chapters), e.fetchLimit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Untitled"
	}
	book, err := epub.NewEpub(title)
	if err != nil {
		return nil, fmt.Errorf("creating epub: %w", err)
	}
	book.SetLang("en")
	if doc.Author != "" {
		book.SetAuthor(doc.Author)
	}

	cssPath, err := book.AddCSS("data:text/css;base64,"+base64.StdEncoding.EncodeToString([]byte(epubCSS)), "styles.css")
	if err != nil {
		e.log.Warn("could not add epub css", "error", err)
		cssPath = ""
	}

	var coverPNG []byte
	if img, ok := images[coverURL]; ok && img.Err == nil {
		coverPNG = img.PNG
	} else if e.coverArtShow {
		if art, err := CoverArt(title, doc.Author); err == nil {
			coverPNG = art
		}
	}
	if len(coverPNG) > 0 {
		if p, err := book.AddImage(pngDataURI(coverPNG), "cover.png"); err != nil {
			e.log.Warn("could not add cover image", "error", err)
		} else if err := book.SetCover(p, ""); err != nil {
			e.log.Warn("could not set cover", "error", err)
		}
	}

	if _, err := book.AddSection(epubTOC(chapters), "Contents", "contents.xhtml", cssPath); err != nil {
		e.log.Warn("could not add table of contents", "error", err)
	}

	embedded := map[string]string{}
	for i, ch := range chapters {
		body, err := epubBody(book, ch.HTML, i+1, images, embedded)
		if err != nil {
			e.log.Error("epub chapter failed", "chapter_no", i+1, "error", err)
			continue
		}
		if _, err := book.AddSection(body, ch.Title, epubChapterFile(i+1), cssPath); err != nil {
			e.log.Error("could not add epub section", "chapter_no", i+1, "error", err)
		}
	}

	var buf bytes.Buffer
	if _, err := book.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing epub: %w", err)
	}
	return buf.Bytes(), nil
}

func epubChapterFile(n int) string { return fmt.Sprintf("chapter%03d.xhtml", n) }

func epubTOC(chapters []printableChapter) string {
	var b strings.Builder
	b.WriteString("<h1>Contents</h1>\n<ol class=\"toc\">\n")
	for i, ch := range chapters {
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", epubChapterFile(i+1), html.EscapeString(ch.Title))
	}
	b.WriteString("</ol>\n")
	return b.String()
}

// epubBody sanitizes a chapter, embeds its images and renders it as XHTML.
func epubBody(book *epub.Epub, chapterHTML string, chapterNo int, images map[string]preparedImage, embedded map[string]string) (string, error) {
	root, err := content.ParseFragment(Sanitize(chapterHTML))
	if err != nil {
		return "", err
	}
	var imgs []*nethtml.Node
	var visit func(*nethtml.Node)
	visit = func(n *nethtml.Node) {
		if n.Type == nethtml.ElementNode && n.DataAtom == atom.Img {
			imgs = append(imgs, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)

	for idx, n := range imgs {
		src := SafeURL(attr(n, "src"))
		internal, ok := embedded[src]
		if !ok {
			internal = ""
			if img, found := images[src]; found && img.Err == nil && len(img.PNG) > 0 {
				name := fmt.Sprintf("ch%03d_img%03d.png", chapterNo, idx+1)
				if p, err := book.AddImage(pngDataURI(img.PNG), name); err == nil {
					internal = p
				}
			}
			embedded[src] = internal
		}
		if internal == "" {
			replaceWithPlaceholder(n)
			continue
		}
		setAttr(n, "src", internal)
	}
	return content.RenderChildren(root), nil
}

func replaceWithPlaceholder(n *nethtml.Node) {
	p := &nethtml.Node{
		Type:     nethtml.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []nethtml.Attribute{{Key: "class", Val: "image-placeholder"}},
	}
	p.AppendChild(&nethtml.Node{Type: nethtml.TextNode, Data: ImagePlaceholder})
	if n.Parent != nil {
		n.Parent.InsertBefore(p, n)
		n.Parent.RemoveChild(n)
	}
}

func setAttr(n *nethtml.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, nethtml.Attribute{Key: key, Val: val})
}

func pngDataURI(b []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b)
}
