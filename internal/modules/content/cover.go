package content

import (
	"html"
	"strings"
)

const (
	coverAttrMarker  = `data-cover="true"`
	coverClassMarker = "book-cover-image"
)

// EmbedCover returns the fragment that marks a chapter entry as the cover.
func EmbedCover(imageURL string) string {
	return `<div data-cover="true"><img class="book-cover-image" data-cover="true" src="` +
		html.EscapeString(strings.TrimSpace(imageURL)) + `" alt="Book cover"></div>`
}

// IsCover reports whether chapterHTML carries either cover marker.
func IsCover(chapterHTML string) bool {
	return strings.Contains(chapterHTML, coverAttrMarker) || strings.Contains(chapterHTML, coverClassMarker)
}

// CoverURL returns the src of the cover image, or "".
func CoverURL(chapterHTML string) string {
	if !IsCover(chapterHTML) {
		return ""
	}
	doc, _, err := FragmentDocument(chapterHTML)
	if err != nil {
		return ""
	}
	sel := doc.Find(`img.book-cover-image, img[data-cover="true"]`).First()
	if sel.Length() == 0 {
		sel = doc.Find(`[data-cover="true"] img`).First()
	}
	src, _ := sel.Attr("src")
	return strings.TrimSpace(src)
}

// SetCover returns chapters with every existing cover entry removed and a
// single new cover entry at index 0.
func SetCover(chapters []string, imageURL string) []string {
	out := make([]string, 0, len(chapters)+1)
	out = append(out, EmbedCover(imageURL))
	for _, ch := range chapters {
		if IsCover(ch) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// SplitCover separates the first cover entry from the other chapters.
// Extra covers are dropped.
func SplitCover(chapters []string) (cover string, rest []string) {
	rest = make([]string, 0, len(chapters))
	for _, ch := range chapters {
		if IsCover(ch) {
			if cover == "" {
				cover = ch
			}
			continue
		}
		rest = append(rest, ch)
	}
	return cover, rest
}
