package content

import (
	"strings"
	"testing"

	types "github.com/minischools/academy-backend/internal/domain"
)

func TestEmbedQuizOrder(t *testing.T) {
	got := EmbedQuiz("<h2>Exercises</h2><p>Q1</p>", "<div class='quiz-container'>...</div>", "Chapter 1", "<p>Body</p>")
	want := "<h1>Chapter 1</h1><p>Body</p><h2>Exercises</h2><p>Q1</p>" +
		"<!-- SHARED_QUIZ_START --><div class='quiz-container'>...</div><!-- SHARED_QUIZ_END -->"
	if got != want {
		t.Fatalf("unexpected embed:\n got %q\nwant %q", got, want)
	}
}

func TestExtractQuizRoundTrip(t *testing.T) {
	cases := []struct {
		name, editor, shared, body string
	}{
		{"simple", "<h2>Exercises</h2><p>Q1</p>", "<div class='quiz-container'>...</div>", "<p>Body</p>"},
		{"prose has its own exercises", "<h2>Exercises</h2><ol><li>a</li></ol>", `<div class="quiz-container"><p>x</p></div>`, "<h2>Exercises</h2><p>do these at home</p>"},
		{"multiline", "<h2>Exercises</h2>\n<p>Q1</p>\n", "\n<div>\n</div>\n", "<p>a</p>\n<p>b</p>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractQuiz(EmbedQuiz(tc.editor, tc.shared, "T", tc.body))
			if got == nil {
				t.Fatalf("expected quiz")
			}
			if got.EditorContent != tc.editor {
				t.Fatalf("editor: got %q want %q", got.EditorContent, tc.editor)
			}
			if got.SharedContent != tc.shared {
				t.Fatalf("shared: got %q want %q", got.SharedContent, tc.shared)
			}
		})
	}
}

func TestExtractQuizAbsent(t *testing.T) {
	if got := ExtractQuiz("<h1>T</h1><p>plain</p>"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestExtractQuizSharedOnly(t *testing.T) {
	got := ExtractQuiz("<p>a</p>" + SharedQuizStart + "<div>s</div>" + SharedQuizEnd)
	if got == nil || got.EditorContent != "" || got.SharedContent != "<div>s</div>" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestStripQuizRemovesBothBlocks(t *testing.T) {
	in := EmbedQuiz("<h2>Exercises</h2><p>Q1</p>", "<div class='quiz-container'>...</div>", "Chapter 1", "<p>Body</p>")
	got := StripQuiz(in)
	if got != "<h1>Chapter 1</h1><p>Body</p>" {
		t.Fatalf("unexpected strip: %q", got)
	}
}

func TestStripQuizKeepsFollowingSection(t *testing.T) {
	in := "<h1>T</h1><h2>Exercises</h2><p>Q</p><h2>Summary</h2><p>S</p>"
	got := StripQuiz(in)
	if got != "<h1>T</h1><h2>Summary</h2><p>S</p>" {
		t.Fatalf("unexpected strip: %q", got)
	}
}

func TestStripQuizIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"<p>nothing here</p>",
		"<p>Exercises are good for you</p>",
		EmbedQuiz("<h2>Exercises</h2><p>Q1</p>", "<div>s</div>", "T", "<p>b</p>"),
		"<h2>Exercises</h2><p>a</p><!-- SHARED_QUIZ_START --><div>dangling",
		"<div><h2> Exercises </h2><p>nested</p></div><!-- QUIZ_DATA: {} --><p>tail</p>",
		"<h2>Exercises</h2><h2>Exercises</h2><p>x</p>",
	}
	for _, in := range inputs {
		once := StripQuiz(in)
		twice := StripQuiz(once)
		if once != twice {
			t.Fatalf("not idempotent for %q:\n once %q\ntwice %q", in, once, twice)
		}
		if strings.Contains(once, "SHARED_QUIZ") || strings.Contains(once, "<h2>Exercises</h2>") {
			t.Fatalf("quiz left behind for %q: %q", in, once)
		}
	}
}

func TestStripQuizLeavesPlainInputUntouched(t *testing.T) {
	in := "<p>Exercises are good <b>for</b> you</p>"
	if got := StripQuiz(in); got != in {
		t.Fatalf("expected input unchanged, got %q", got)
	}
}

func TestStripQuizMarkersInDifferentParents(t *testing.T) {
	in := "<p>Body</p><div>" + SharedQuizStart + "</div><p>shared</p>" + SharedQuizEnd + "<p>tail</p>"
	got := StripQuiz(in)
	if strings.Contains(got, "shared") || strings.Contains(got, "SHARED_QUIZ") {
		t.Fatalf("shared block left behind: %q", got)
	}
	if !strings.Contains(got, "<p>Body</p>") || !strings.Contains(got, "<p>tail</p>") {
		t.Fatalf("prose lost: %q", got)
	}
	if again := StripQuiz(got); again != got {
		t.Fatalf("not idempotent: %q", again)
	}
}

func TestExtractQuizHeadingInsideGeneratedQuestion(t *testing.T) {
	editor, shared := RenderQuiz([]types.QuizQuestion{
		{Type: types.QuestionFlipCard, Front: ExercisesHeading, Back: "a heading"},
	})
	got := ExtractQuiz(EmbedQuiz(editor, shared, "T", "<p>b</p>"))
	if got == nil || got.EditorContent != editor {
		t.Fatalf("editor block split at escaped heading: %+v", got)
	}
}
