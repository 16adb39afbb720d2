package publish

import (
	"fmt"
	"html"
	"strings"

	"github.com/minischools/academy-backend/internal/modules/content"
)

// SharedChapter is one rendered section of the public document.
type SharedChapter struct {
	Anchor string
	Title  string
	HTML   string
}

// SharedBody renders the sanitized body of the public document: title,
// cover, table of contents and chapter sections with their interactive
// quizzes. The interactivity script is not included.
func SharedBody(title string, chapters []string) string {
	cover, rest := content.SplitCover(chapters)

	sections := make([]SharedChapter, 0, len(rest))
	for _, ch := range rest {
		if strings.TrimSpace(ch) == "" {
			continue
		}
		sections = append(sections, renderSharedChapter(len(sections)+1, ch))
	}

	var b strings.Builder
	b.WriteString(`<header class="shared-header">`)
	if url := SafeURL(content.CoverURL(cover)); url != "" {
		fmt.Fprintf(&b, `<div class="cover-page"><img class="book-cover-image" src="%s" alt="Book cover"></div>`, html.EscapeString(url))
	}
	fmt.Fprintf(&b, `<h1 class="shared-title">%s</h1></header>`, html.EscapeString(title))

	if len(sections) > 0 {
		b.WriteString(`<nav class="toc"><h2>Table of Contents</h2><ol>`)
		for _, s := range sections {
			fmt.Fprintf(&b, `<li><a href="#%s">%s</a></li>`, s.Anchor, html.EscapeString(s.Title))
		}
		b.WriteString(`</ol></nav>`)
	}
	for _, s := range sections {
		fmt.Fprintf(&b, `<section class="chapter" id="%s">%s</section>`, s.Anchor, s.HTML)
	}
	return Sanitize(WrapFlipCards(b.String()))
}

// renderSharedChapter drops the editor quiz and re-attaches the interactive
// quiz after normalizing its escaping.
func renderSharedChapter(n int, chapterHTML string) SharedChapter {
	title := content.ChapterTitle(chapterHTML)
	if title == "" {
		title = fmt.Sprintf("Chapter %d", n)
	}
	var shared string
	if q := content.ExtractQuiz(chapterHTML); q != nil {
		shared = strings.TrimSpace(content.NormalizeEscapes(q.SharedContent))
	}
	body := content.StripQuiz(chapterHTML)
	if shared != "" {
		body += `<div class="shared-quiz">` + shared + `</div>`
	}
	return SharedChapter{Anchor: fmt.Sprintf("chapter-%d", n), Title: title, HTML: body}
}

// SharedDocument renders a standalone public HTML page for a content item.
func SharedDocument(title string, chapters []string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\">")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	fmt.Fprintf(&b, "<title>%s</title><style>%s</style></head><body>", html.EscapeString(title), sharedCSS)
	b.WriteString(`<main class="shared-document">`)
	b.WriteString(SharedBody(title, chapters))
	b.WriteString(`</main><script>`)
	b.WriteString(interactivityScript)
	b.WriteString("</script></body></html>\n")
	return b.String()
}
