package content

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment parses s as body content and returns a detached root whose
// children are the parsed nodes. Chapter HTML is a fragment, never a full
// document, so it is parsed in a body context to keep leading comments and
// text where they were.
func ParseFragment(s string) (*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// FragmentDocument wraps a parsed fragment for goquery traversal.
func FragmentDocument(s string) (*goquery.Document, *html.Node, error) {
	root, err := ParseFragment(s)
	if err != nil {
		return nil, nil, err
	}
	return goquery.NewDocumentFromNode(root), root, nil
}

// RenderChildren serializes the children of root.
func RenderChildren(root *html.Node) string {
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}
