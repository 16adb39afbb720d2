package publish

import (
	"strings"
	"testing"

	"github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/modules/content"
)

func sampleQuizChapter(title string) string {
	editor, shared := content.RenderQuiz([]domain.QuizQuestion{
		{Type: domain.QuestionMultipleChoice, Prompt: "Pick", Options: []string{"a", "b"}, AnswerIndex: 1},
		{Type: domain.QuestionFillBlank, Prompt: "Go is ___.", Answer: "fun"},
		{Type: domain.QuestionFlipCard, Front: "F", Back: "B"},
	})
	return content.EmbedQuiz(editor, shared, title, "<p>Body</p>")
}

func TestSharedBodyBuildsTOCCoverAndQuiz(t *testing.T) {
	body := SharedBody("My Book", []string{
		"<h1>Intro</h1><p>hello</p>",
		content.EmbedCover("https://cdn.example.com/cover.png"),
		sampleQuizChapter("Basics"),
	})
	for _, want := range []string{
		`href="#chapter-1"`, `href="#chapter-2"`, `id="chapter-2"`,
		"Intro", "Basics", "cover-page", "https://cdn.example.com/cover.png",
		`class="quiz-container"`, `class="fill-blank-input"`, `class="flip-card-grid"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in %s", want, body)
		}
	}
	if strings.Contains(body, "<h2>Exercises</h2>") {
		t.Fatalf("editor quiz must not be shown: %s", body)
	}
	if strings.Contains(body, "SHARED_QUIZ") {
		t.Fatalf("sentinels must not leak: %s", body)
	}
}

func TestSharedBodyNormalizesEscapedQuiz(t *testing.T) {
	ch := content.EmbedQuiz("<h2>Exercises</h2><p>Q</p>", `<div class=\"quiz-container\"><p>Q<\/p></div>`, "T", "<p>b</p>")
	body := SharedBody("x", []string{ch})
	if !strings.Contains(body, `<div class="quiz-container"><p>Q</p></div>`) {
		t.Fatalf("escaping not normalized: %s", body)
	}
}

func TestSharedDocumentSanitizes(t *testing.T) {
	doc := SharedDocument("T", []string{
		`<h1>X</h1><p onclick="evil()">t</p><script>alert(1)</script><a href="javascript:alert(1)">l</a><img src="x" onerror="evil()">`,
	})
	if strings.Count(doc, "<script") != 1 {
		t.Fatalf("only the interactivity script may remain: %s", doc)
	}
	for _, bad := range []string{"onclick", "onerror", "alert(1)", "javascript:"} {
		if strings.Contains(doc, bad) {
			t.Fatalf("found %q in %s", bad, doc)
		}
	}
	if !strings.HasPrefix(doc, "<!DOCTYPE html>") || !strings.Contains(doc, "check-answers-btn") {
		t.Fatalf("unexpected document")
	}
}

func TestSanitizeChapterKeepsQuizRecoverable(t *testing.T) {
	in := sampleQuizChapter("T")
	in = strings.Replace(in, "<p>Body</p>", "<p>Body</p><script>x()</script>", 1)
	out := SanitizeChapter(in)
	if strings.Contains(out, "<script") {
		t.Fatalf("script survived: %s", out)
	}
	q := content.ExtractQuiz(out)
	if q == nil || !strings.HasPrefix(q.EditorContent, content.ExercisesHeading) || !strings.Contains(q.SharedContent, "quiz-container") {
		t.Fatalf("quiz lost: %+v", q)
	}
	if len(content.ParseSharedQuiz(q.SharedContent)) != 3 {
		t.Fatalf("questions lost: %s", q.SharedContent)
	}
}

func TestSanitizeChapterCover(t *testing.T) {
	if got := SanitizeChapter(content.EmbedCover("javascript:alert(1)")); strings.Contains(got, "javascript") {
		t.Fatalf("unsafe cover url kept: %s", got)
	}
	c := content.EmbedCover("https://x/c.png")
	if got := SanitizeChapter(c); got != c {
		t.Fatalf("safe cover changed: %s", got)
	}
}

func TestWrapFlipCards(t *testing.T) {
	in := `<div class="flip-card">a</div> <div class="flip-card">b</div><p>x</p><div class="flip-card">c</div>`
	want := `<div class="flip-card-grid"><div class="flip-card">a</div> <div class="flip-card">b</div></div><p>x</p><div class="flip-card-grid"><div class="flip-card">c</div></div>`
	got := WrapFlipCards(in)
	if got != want {
		t.Fatalf("got %s", got)
	}
	if WrapFlipCards(got) != got {
		t.Fatalf("wrapping twice must not nest grids")
	}
}
