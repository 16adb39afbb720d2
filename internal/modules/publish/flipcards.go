package publish

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/minischools/academy-backend/internal/modules/content"
)

const flipCardGridClass = "flip-card-grid"

// WrapFlipCards groups each run of adjacent flip cards into a single grid
// container. Whitespace between cards stays inside the run.
func WrapFlipCards(fragment string) string {
	if !strings.Contains(fragment, "flip-card") {
		return fragment
	}
	root, err := content.ParseFragment(fragment)
	if err != nil {
		return fragment
	}
	if !wrapFlipCardRuns(root) {
		return fragment
	}
	return content.RenderChildren(root)
}

func wrapFlipCardRuns(n *html.Node) bool {
	changed := false
	if n.Type == html.ElementNode && hasClass(n, flipCardGridClass) {
		return false
	}
	var run []*html.Node
	flush := func() {
		// trailing whitespace is left where it was
		for len(run) > 0 && !isFlipCard(run[len(run)-1]) {
			run = run[:len(run)-1]
		}
		if len(run) == 0 {
			return
		}
		grid := &html.Node{
			Type:     html.ElementNode,
			Data:     "div",
			DataAtom: atom.Div,
			Attr:     []html.Attribute{{Key: "class", Val: flipCardGridClass}},
		}
		n.InsertBefore(grid, run[0])
		for _, c := range run {
			n.RemoveChild(c)
			grid.AppendChild(c)
		}
		run = nil
		changed = true
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case isFlipCard(c):
			run = append(run, c)
		case len(run) > 0 && isBlankText(c):
			run = append(run, c)
		default:
			flush()
			if wrapFlipCardRuns(c) {
				changed = true
			}
		}
		c = next
	}
	flush()
	return changed
}

func isFlipCard(n *html.Node) bool {
	return n.Type == html.ElementNode && hasClass(n, "flip-card")
}

func isBlankText(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, f := range strings.Fields(a.Val) {
			if f == class {
				return true
			}
		}
	}
	return false
}
