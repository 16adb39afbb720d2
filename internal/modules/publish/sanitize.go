package publish

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/minischools/academy-backend/internal/modules/content"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// sharedPolicy keeps prose and quiz markup and drops anything executable:
// scripts, event handlers, styles and javascript: URLs.
func sharedPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElements("section", "nav", "main", "header", "figure", "figcaption", "button", "input")
		p.AllowAttrs("class", "id", "hidden").Globally()
		p.AllowDataAttributes()
		p.AllowDataURIImages()
		p.AllowAttrs("type").Matching(regexp.MustCompile(`^(text|button|A|a|I|i|1)$`)).OnElements("input", "button", "ol")
		p.AllowAttrs("alt", "src").OnElements("img")
		policy = p
	})
	return policy
}

// Sanitize strips executable content from HTML meant for the public view.
func Sanitize(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	return sharedPolicy().Sanitize(s)
}

// SanitizeChapter sanitizes one stored chapter while keeping the quiz
// sentinels and cover marker intact, so the result still decodes.
func SanitizeChapter(chapterHTML string) string {
	if content.IsCover(chapterHTML) {
		return content.EmbedCover(SafeURL(content.CoverURL(chapterHTML)))
	}
	ch := content.DecodeChapter(chapterHTML)
	ch.BodyHTML = Sanitize(ch.BodyHTML)
	if q := ch.QuizPayload(); q != nil {
		q.EditorHTML = Sanitize(q.EditorHTML)
		q.SharedHTML = Sanitize(content.NormalizeEscapes(q.SharedHTML))
		ch.SetQuiz(q)
	}
	return content.EncodeChapter(ch)
}

// SafeURL returns u when it is an http(s) or inline image URL, otherwise "".
func SafeURL(u string) string {
	u = strings.TrimSpace(u)
	lower := strings.ToLower(u)
	switch {
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return u
	case strings.HasPrefix(lower, "data:image/"):
		return u
	case strings.HasPrefix(lower, "/") && !strings.HasPrefix(lower, "//"):
		return u
	}
	return ""
}

// SanitizeChapters applies SanitizeChapter to every entry.
func SanitizeChapters(chapters []string) []string {
	out := make([]string, len(chapters))
	for i, ch := range chapters {
		out[i] = SanitizeChapter(ch)
	}
	return out
}
