package content

import (
	"bytes"
	"encoding/json"
	"strings"

	types "github.com/minischools/academy-backend/internal/domain"
)

// ParseContent decodes the persisted content string, a JSON array of chapter
// HTML strings. Content that was stringified twice is unwrapped. Anything
// unreadable yields nil.
func ParseContent(content string) []string {
	raw := strings.TrimSpace(content)
	for i := 0; i < 3 && raw != ""; i++ {
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return arr
		}
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return nil
		}
		raw = strings.TrimSpace(inner)
	}
	return nil
}

// SerializeContent encodes chapters the way they are persisted. HTML
// characters are left unescaped.
func SerializeContent(chapters []string) string {
	if chapters == nil {
		chapters = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(chapters)
	return strings.TrimSuffix(buf.String(), "\n")
}

// DecodeChapter turns one stored chapter string into a structured chapter.
// BodyHTML keeps the prose exactly, including its h1 heading, so
// EncodeChapter reproduces the original string for content EmbedQuiz or
// EmbedCover produced.
func DecodeChapter(chapterHTML string) *types.Chapter {
	if IsCover(chapterHTML) {
		return &types.Chapter{
			Kind:          types.ChapterKindCover,
			BodyHTML:      chapterHTML,
			CoverImageURL: CoverURL(chapterHTML),
		}
	}
	ch := &types.Chapter{Kind: types.ChapterKindProse, BodyHTML: chapterHTML}
	if sp, ok := locateQuiz(chapterHTML); ok {
		q := &types.QuizPayload{}
		if sp.editorStart >= 0 {
			q.EditorHTML = chapterHTML[sp.editorStart:sp.editorEnd]
		}
		if sp.sharedStart >= 0 {
			q.SharedHTML = chapterHTML[sp.sharedStart:sp.sharedEnd]
			q.Questions = ParseSharedQuiz(q.SharedHTML)
		}
		ch.BodyHTML = chapterHTML[:sp.regionStart] + chapterHTML[sp.regionEnd:]
		ch.SetQuiz(q)
	}
	ch.Title = ChapterTitle(ch.BodyHTML)
	return ch
}

// EncodeChapter is the inverse of DecodeChapter.
func EncodeChapter(ch *types.Chapter) string {
	if ch == nil {
		return ""
	}
	if ch.Kind == types.ChapterKindCover {
		if ch.BodyHTML != "" && CoverURL(ch.BodyHTML) == ch.CoverImageURL {
			return ch.BodyHTML
		}
		return EmbedCover(ch.CoverImageURL)
	}
	q := ch.QuizPayload()
	if q == nil {
		return ch.BodyHTML
	}
	var b strings.Builder
	b.WriteString(ch.BodyHTML)
	b.WriteString(q.EditorHTML)
	if q.SharedHTML != "" {
		b.WriteString(SharedQuizStart)
		b.WriteString(q.SharedHTML)
		b.WriteString(SharedQuizEnd)
	}
	return b.String()
}

// DecodeChapters decodes a full legacy array, assigning positions.
func DecodeChapters(chapters []string) []*types.Chapter {
	out := make([]*types.Chapter, 0, len(chapters))
	for i, s := range chapters {
		ch := DecodeChapter(s)
		ch.Position = i
		out = append(out, ch)
	}
	return out
}

// EncodeChapters renders chapters, already in order, as the legacy array.
func EncodeChapters(chapters []*types.Chapter) []string {
	out := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, EncodeChapter(ch))
	}
	return out
}

// ProseChapter builds the body for a chapter whose prose lacks an h1.
func ProseChapter(title, bodyHTML string) string {
	if strings.Contains(strings.ToLower(firstTag(bodyHTML)), "<h1") {
		return bodyHTML
	}
	return "<h1>" + escapeText(title) + "</h1>" + bodyHTML
}

func firstTag(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") {
		return ""
	}
	if i := strings.Index(s, ">"); i > 0 {
		return s[:i+1]
	}
	return s
}
