package generation

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"

	"github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/platform/openai"
	"github.com/minischools/academy-backend/internal/prompts"
)

// OpenAISource writes chapters with the OpenAI Responses API.
type OpenAISource struct {
	ai openai.Client
}

func NewOpenAISource(ai openai.Client) *OpenAISource {
	return &OpenAISource{ai: ai}
}

func (s *OpenAISource) GenerateChapter(ctx context.Context, req ChapterRequest) (string, error) {
	if s == nil || s.ai == nil {
		return "", errors.New("openai source not configured")
	}
	tmpl, err := prompts.Get(prompts.ChapterContent)
	if err != nil {
		return "", err
	}
	in := chapterPromptInput{
		ContentType:    req.ContentType,
		Title:          req.Title,
		Summary:        req.Summary,
		ChapterNo:      req.ChapterNo,
		Chapter:        req.Chapter,
		ContentDetails: req.ContentDetails,
	}
	if in.ContentType == "" {
		in.ContentType = "book"
	}
	text, err := s.ai.GenerateText(ctx, tmpl.System(in), tmpl.User(in))
	if err != nil {
		return "", err
	}
	return NormalizeChapterHTML(req.Chapter, text)
}

type chapterPromptInput struct {
	ContentType    string
	Title          string
	Summary        string
	ChapterNo      int
	Chapter        string
	ContentDetails string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(ghtml.WithUnsafe()),
)

// NormalizeChapterHTML turns model output into chapter HTML: code fences are
// unwrapped, Markdown is rendered, and an h1 with the chapter title is
// prepended when missing.
func NormalizeChapterHTML(chapterTitle, raw string) (string, error) {
	body := strings.TrimSpace(unfence(raw))
	if body == "" {
		return "", ErrEmptyChapter
	}
	if !looksLikeHTML(body) {
		var buf bytes.Buffer
		if err := markdown.Convert([]byte(body), &buf); err != nil {
			return "", err
		}
		body = strings.TrimSpace(buf.String())
	}
	// Generated content must never carry quiz markers of its own.
	body = content.StripQuiz(body)
	return content.ProseChapter(chapterTitle, body), nil
}

func unfence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	if i := strings.Index(t, "\n"); i >= 0 {
		t = t[i+1:]
	} else {
		return ""
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return t
}

func looksLikeHTML(s string) bool {
	if !strings.HasPrefix(s, "<") {
		return false
	}
	lower := strings.ToLower(s)
	for _, tag := range []string{"<h1", "<h2", "<h3", "<p", "<div", "<section", "<ul", "<ol", "<article"} {
		if strings.HasPrefix(lower, tag) {
			return true
		}
	}
	return false
}
