package publish

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/minischools/academy-backend/internal/modules/content"
)

const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	pageMargin   = 20.0
	contentWidth = pageWidth - 2*pageMargin
	bodyFontSize = 11.0
	listIndent   = 6.0
	pxToMM       = 25.4 / 96
)

// PDF lays the document out on A4 pages: a cover page, then each chapter on
// a new page. Images that cannot be loaded are replaced by a placeholder and
// a chapter that fails to render is skipped.
func (e *Exporter) PDF(ctx context.Context, doc Document) ([]byte, error) {
	coverURL, chapters := printableChapters(doc.Chapters)
	images := prefetchImages(ctx, e.fetcher, imageURLs(coverURL, chapters), e.fetchLimit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(doc.Title, true)
	if doc.Author != "" {
		pdf.SetAuthor(doc.Author, true)
	}
	w := &pdfWriter{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		images: images,
		names:  map[string]string{},
	}

	cover, ok := images[coverURL]
	if coverURL == "" || !ok || cover.Err != nil {
		if coverURL != "" {
			e.log.Warn("cover image unavailable", "url", coverURL, "error", cover.Err)
		}
		cover = preparedImage{}
		if e.coverArtShow {
			if art, err := CoverArt(doc.Title, doc.Author); err == nil {
				cover = prepareImage(art, "image/png")
			} else {
				e.log.Warn("cover art failed", "error", err)
			}
		}
	}
	w.coverPage(doc.Title, cover)

	for i, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.chapter(ch); err != nil {
			e.log.Error("pdf chapter failed", "chapter_no", i+1, "error", err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	images map[string]preparedImage
	names  map[string]string
}

func (w *pdfWriter) ensure(h float64) {
	if w.pdf.GetY()+h > pageHeight-pageMargin {
		w.pdf.AddPage()
	}
}

func (w *pdfWriter) coverPage(title string, cover preparedImage) {
	w.pdf.AddPage()
	if cover.Err == nil && len(cover.PNG) > 0 {
		if name := w.register("cover", cover); name != "" {
			iw, ih := fitImage(cover, 150, 195)
			w.pdf.ImageOptions(name, (pageWidth-iw)/2, 30, iw, ih, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		}
	}
	w.pdf.SetFont("Helvetica", "B", 24)
	w.pdf.SetXY(pageMargin, 240)
	for _, line := range w.wrap(title, contentWidth) {
		w.pdf.CellFormat(contentWidth, 11, line, "", 1, "C", false, 0, "")
	}
}

func (w *pdfWriter) chapter(ch printableChapter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err == nil && !w.pdf.Ok() {
			err = w.pdf.Error()
		}
		if !w.pdf.Ok() {
			w.pdf.ClearError()
		}
	}()
	root, err := content.ParseFragment(ch.HTML)
	if err != nil {
		return err
	}
	w.pdf.AddPage()
	w.walk(root)
	return nil
}

func (w *pdfWriter) walk(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			w.heading(c)
		case atom.P, atom.Pre, atom.Blockquote:
			w.paragraph(nodeText(c), 0, "")
			w.imagesIn(c)
		case atom.Ul, atom.Ol:
			w.list(c, 0)
			w.pdf.Ln(2)
		case atom.Img:
			w.image(attr(c, "src"))
		case atom.Script, atom.Style, atom.Button, atom.Input:
		default:
			w.walk(c)
		}
	}
}

func (w *pdfWriter) heading(n *html.Node) {
	size := 12.0
	switch n.DataAtom {
	case atom.H1:
		size = 20
	case atom.H2:
		size = 16
	case atom.H3:
		size = 14
	}
	text := nodeText(n)
	if text == "" {
		return
	}
	w.pdf.SetFont("Helvetica", "B", size)
	lh := size * 0.5
	w.ensure(lh * 2)
	w.pdf.Ln(2)
	for _, line := range w.wrap(text, contentWidth) {
		w.ensure(lh)
		w.pdf.SetX(pageMargin)
		w.pdf.CellFormat(contentWidth, lh, line, "", 1, "L", false, 0, "")
	}
	w.pdf.Ln(2)
}

func (w *pdfWriter) paragraph(text string, indent float64, prefix string) {
	if text == "" {
		return
	}
	w.pdf.SetFont("Helvetica", "", bodyFontSize)
	lh := bodyFontSize * 0.5
	hang := 0.0
	if prefix != "" {
		hang = w.pdf.GetStringWidth(w.tr(prefix))
	}
	lines := w.wrap(prefix+text, contentWidth-indent-hang)
	for i, line := range lines {
		w.ensure(lh)
		x := pageMargin + indent
		if i > 0 {
			x += hang
		}
		w.pdf.SetX(x)
		w.pdf.CellFormat(contentWidth-(x-pageMargin), lh, line, "", 1, "L", false, 0, "")
	}
	if prefix == "" {
		w.pdf.Ln(2)
	}
}

func (w *pdfWriter) list(n *html.Node, indent float64) {
	ordered := n.DataAtom == atom.Ol
	i := 0
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		i++
		prefix := "• "
		if ordered {
			prefix = fmt.Sprintf("%d. ", i)
		}
		w.paragraph(ownText(li), indent+listIndent, prefix)
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				w.list(c, indent+listIndent)
			}
		}
		w.imagesIn(li)
	}
}

func (w *pdfWriter) imagesIn(n *html.Node) {
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Img {
				w.image(attr(c, "src"))
				continue
			}
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				continue
			}
			visit(c)
		}
	}
	visit(n)
}

func (w *pdfWriter) image(src string) {
	src = SafeURL(src)
	img, ok := w.images[src]
	if src == "" || !ok || img.Err != nil || len(img.PNG) == 0 {
		w.placeholder()
		return
	}
	name := w.register(src, img)
	if name == "" {
		w.placeholder()
		return
	}
	iw, ih := fitImage(img, contentWidth, pageHeight-2*pageMargin)
	w.ensure(ih)
	w.pdf.ImageOptions(name, pageMargin+(contentWidth-iw)/2, w.pdf.GetY(), iw, ih, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	w.pdf.SetY(w.pdf.GetY() + ih + 3)
}

func (w *pdfWriter) placeholder() {
	w.pdf.SetFont("Helvetica", "I", 10)
	w.ensure(6)
	w.pdf.SetX(pageMargin)
	w.pdf.SetTextColor(120, 120, 120)
	w.pdf.CellFormat(contentWidth, 6, ImagePlaceholder, "", 1, "L", false, 0, "")
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.Ln(2)
}

// register adds img to the document once and returns its name, or "" when
// the PDF library rejects it.
func (w *pdfWriter) register(key string, img preparedImage) string {
	if name, ok := w.names[key]; ok {
		return name
	}
	name := fmt.Sprintf("img%d", len(w.names)+1)
	w.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img.PNG))
	if !w.pdf.Ok() {
		w.pdf.ClearError()
		w.names[key] = ""
		return ""
	}
	w.names[key] = name
	return name
}

func (w *pdfWriter) wrap(text string, width float64) []string {
	return wrapWords(w.tr(text), width, w.pdf.GetStringWidth)
}

// fitImage scales img from pixels to millimetres, shrinking it to fit
// maxW x maxH while keeping its aspect ratio.
func fitImage(img preparedImage, maxW, maxH float64) (float64, float64) {
	wmm := float64(img.Width) * pxToMM
	hmm := float64(img.Height) * pxToMM
	if wmm <= 0 || hmm <= 0 {
		return maxW, maxW * 0.75
	}
	scale := 1.0
	if wmm > maxW {
		scale = maxW / wmm
	}
	if hmm*scale > maxH {
		scale = maxH / hmm
	}
	return wmm * scale, hmm * scale
}

// wrapWords breaks text into lines no wider than width using a greedy fill.
// A single word wider than width is split across lines.
func wrapWords(text string, width float64, measure func(string) float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var (
		lines []string
		cur   string
	)
	for _, word := range words {
		for measure(word) > width && len(word) > 1 {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			cut := len(word) - 1
			for cut > 1 && measure(word[:cut]) > width {
				cut--
			}
			lines = append(lines, word[:cut])
			word = word[cut:]
		}
		switch {
		case cur == "":
			cur = word
		case measure(cur+" "+word) <= width:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// nodeText is the collapsed text of n. Inputs read as a blank.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Input:
			b.WriteString(content.BlankToken)
		case n.Type == html.ElementNode && (n.DataAtom == atom.Br):
			b.WriteByte(' ')
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				visit(c)
			}
		}
	}
	visit(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// ownText is the text of a list item without its nested lists.
func ownText(li *html.Node) string {
	var parts []string
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
			continue
		}
		if t := nodeText(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
