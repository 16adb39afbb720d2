package content

import (
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func escapeText(s string) string { return html.EscapeString(s) }

// ChapterTitle returns the text of the first h1, or "".
func ChapterTitle(chapterHTML string) string {
	if !strings.Contains(strings.ToLower(chapterHTML), "<h1") {
		return ""
	}
	doc, _, err := FragmentDocument(chapterHTML)
	if err != nil {
		return ""
	}
	return collapseSpace(doc.Find("h1").First().Text())
}

// PlainText flattens chapter HTML to readable text with one block per line.
// Quiz blocks and cover markup are dropped.
func PlainText(chapterHTML string) string {
	if IsCover(chapterHTML) {
		return ""
	}
	root, err := ParseFragment(StripQuiz(chapterHTML))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var visit func(n *nethtml.Node)
	visit = func(n *nethtml.Node) {
		switch n.Type {
		case nethtml.TextNode:
			b.WriteString(n.Data)
			return
		case nethtml.CommentNode:
			return
		case nethtml.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Img, atom.Button:
				return
			case atom.Br:
				b.WriteByte('\n')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if n.Type == nethtml.ElementNode && isBlock(n.DataAtom) {
			b.WriteByte('\n')
		}
	}
	visit(root)

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = collapseSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.H1, atom.H2, atom.H3,
		atom.H4, atom.H5, atom.H6, atom.Blockquote, atom.Pre, atom.Section, atom.Tr, atom.Table:
		return true
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}
