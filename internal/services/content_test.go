package services

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	types "github.com/minischools/academy-backend/internal/domain"
	contentmod "github.com/minischools/academy-backend/internal/modules/content"
)

func sampleQuestions() []types.QuizQuestion {
	return []types.QuizQuestion{
		{Type: types.QuestionMultipleChoice, Prompt: "Pick one", Options: []string{"A", "B", "C"}, AnswerIndex: 1},
		{Type: types.QuestionFillBlank, Prompt: "Go is ___", Answer: "fun"},
		{Type: types.QuestionFlipCard, Front: "Goroutine", Back: "A lightweight thread"},
	}
}

func sampleContent() (string, []string) {
	editor, shared := contentmod.RenderQuiz(sampleQuestions())
	chapters := []string{
		contentmod.EmbedCover("https://img.example.test/cover.png"),
		"<h1>Intro</h1><p>Hello there.</p>",
		contentmod.EmbedQuiz(editor, shared, "Basics", "<p>Some basics.</p>"),
	}
	return contentmod.SerializeContent(chapters), chapters
}

func TestLegacyRoundTripIsExact(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	raw, _ := sampleContent()

	item, err := e.content.AddLegacy(e.dbc, creator, types.ContentTypeBook, LegacyContent{
		CreatorID:   creator.String(),
		CourseTitle: "My Book",
		Content:     raw,
	})
	if err != nil {
		t.Fatalf("AddLegacy: %v", err)
	}
	if len(item.Chapters) != 3 || item.Chapters[0].Kind != types.ChapterKindCover {
		t.Fatalf("unexpected chapters: %+v", item.Chapters)
	}
	if item.Chapters[2].Kind != types.ChapterKindProseWithQuiz {
		t.Fatalf("third chapter kind = %s", item.Chapters[2].Kind)
	}

	got, err := e.content.GetLegacy(e.dbc, creator, item.ID, types.ContentTypeBook)
	if err != nil {
		t.Fatalf("GetLegacy: %v", err)
	}
	if got.Content != raw {
		t.Fatalf("content changed on round trip:\n got %s\nwant %s", got.Content, raw)
	}
	if got.CourseTitle != "My Book" || got.CreatorID != creator.String() {
		t.Fatalf("unexpected fields: %+v", got)
	}
}

func TestAddLegacyRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	raw, _ := sampleContent()

	_, err := e.content.AddLegacy(e.dbc, creator, "novel", LegacyContent{CourseTitle: "x", Content: raw})
	wantStatus(t, err, http.StatusBadRequest)

	_, err = e.content.AddLegacy(e.dbc, creator, types.ContentTypeBook, LegacyContent{
		CreatorID: uuid.NewString(), CourseTitle: "x", Content: raw,
	})
	wantStatus(t, err, http.StatusForbidden)

	_, err = e.content.AddLegacy(e.dbc, creator, types.ContentTypeBook, LegacyContent{Content: raw})
	wantStatus(t, err, http.StatusBadRequest)

	_, err = e.content.AddLegacy(e.dbc, uuid.Nil, types.ContentTypeBook, LegacyContent{CourseTitle: "x"})
	wantStatus(t, err, http.StatusUnauthorized)
}

func TestAddLegacyKeepsSingleCoverFirst(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	raw := contentmod.SerializeContent([]string{
		"<h1>One</h1>",
		contentmod.EmbedCover("https://img.example.test/a.png"),
		contentmod.EmbedCover("https://img.example.test/b.png"),
	})
	item, err := e.content.AddLegacy(e.dbc, creator, types.ContentTypeCourse, LegacyContent{CourseTitle: "C", Content: raw})
	if err != nil {
		t.Fatalf("AddLegacy: %v", err)
	}
	if len(item.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(item.Chapters))
	}
	if item.Chapters[0].CoverImageURL != "https://img.example.test/a.png" {
		t.Fatalf("cover = %q", item.Chapters[0].CoverImageURL)
	}
}

func TestGetLegacyHidesOtherCreatorsAndTypes(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	raw, _ := sampleContent()
	item, err := e.content.AddLegacy(e.dbc, creator, types.ContentTypeBook, LegacyContent{CourseTitle: "B", Content: raw})
	if err != nil {
		t.Fatalf("AddLegacy: %v", err)
	}

	_, err = e.content.GetLegacy(e.dbc, uuid.New(), item.ID, types.ContentTypeBook)
	wantStatus(t, err, http.StatusNotFound)

	_, err = e.content.GetLegacy(e.dbc, creator, item.ID, types.ContentTypeCourse)
	wantStatus(t, err, http.StatusNotFound)

	_, err = e.content.GetLegacy(e.dbc, creator, uuid.New(), types.ContentTypeBook)
	wantStatus(t, err, http.StatusNotFound)
}

func TestUpdateLegacyReusesChapterIDs(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	raw, chapters := sampleContent()
	item, err := e.content.AddLegacy(e.dbc, creator, types.ContentTypeBook, LegacyContent{CourseTitle: "B", Content: raw})
	if err != nil {
		t.Fatalf("AddLegacy: %v", err)
	}
	origIDs := []uuid.UUID{item.Chapters[0].ID, item.Chapters[1].ID, item.Chapters[2].ID}

	// Drop the last chapter and edit the second.
	next := []string{chapters[0], "<h1>Intro</h1><p>Edited.</p>"}
	updated, err := e.content.UpdateLegacy(e.dbc, creator, item.ID, types.ContentTypeBook, LegacyContent{
		CourseTitle: "Renamed",
		Content:     contentmod.SerializeContent(next),
	})
	if err != nil {
		t.Fatalf("UpdateLegacy: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("title = %q", updated.Title)
	}

	reloaded, err := e.content.GetWithChapters(e.dbc, creator, item.ID)
	if err != nil {
		t.Fatalf("GetWithChapters: %v", err)
	}
	if len(reloaded.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(reloaded.Chapters))
	}
	for i, ch := range reloaded.Chapters {
		if ch.ID != origIDs[i] {
			t.Fatalf("chapter %d id changed: %s != %s", i, ch.ID, origIDs[i])
		}
	}
	if reloaded.Chapters[1].BodyHTML != next[1] {
		t.Fatalf("body = %q", reloaded.Chapters[1].BodyHTML)
	}
	if gone, _ := e.chapters.GetByID(e.dbc, origIDs[2]); gone != nil {
		t.Fatalf("surplus chapter still visible")
	}

	// Growing again creates a fresh chapter rather than reviving the old one.
	grown := append(next, "<h1>New</h1>")
	if _, err := e.content.UpdateLegacy(e.dbc, creator, item.ID, types.ContentTypeBook, LegacyContent{Content: contentmod.SerializeContent(grown)}); err != nil {
		t.Fatalf("UpdateLegacy grow: %v", err)
	}
	reloaded, _ = e.content.GetWithChapters(e.dbc, creator, item.ID)
	if len(reloaded.Chapters) != 3 || reloaded.Chapters[2].ID == origIDs[2] {
		t.Fatalf("unexpected chapters after grow: %+v", reloaded.Chapters)
	}
	if reloaded.Title != "Renamed" {
		t.Fatalf("empty title should keep the old one, got %q", reloaded.Title)
	}
}

func TestReorderKeepsCoverFirst(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	raw, _ := sampleContent()
	item, err := e.content.AddLegacy(e.dbc, creator, types.ContentTypeBook, LegacyContent{CourseTitle: "B", Content: raw})
	if err != nil {
		t.Fatalf("AddLegacy: %v", err)
	}
	cover, intro, basics := item.Chapters[0].ID, item.Chapters[1].ID, item.Chapters[2].ID

	out, err := e.content.ReorderChapters(e.dbc, creator, item.ID, []uuid.UUID{basics, cover, intro})
	if err != nil {
		t.Fatalf("ReorderChapters: %v", err)
	}
	want := []uuid.UUID{cover, basics, intro}
	for i, ch := range out {
		if ch.ID != want[i] {
			t.Fatalf("position %d = %s, want %s", i, ch.ID, want[i])
		}
	}
	reloaded, _ := e.content.GetWithChapters(e.dbc, creator, item.ID)
	for i, ch := range reloaded.Chapters {
		if ch.ID != want[i] || ch.Position != i {
			t.Fatalf("stored order wrong at %d: %+v", i, ch)
		}
	}

	_, err = e.content.ReorderChapters(e.dbc, creator, item.ID, []uuid.UUID{basics, basics, intro})
	wantStatus(t, err, http.StatusBadRequest)
	_, err = e.content.ReorderChapters(e.dbc, creator, item.ID, []uuid.UUID{basics})
	wantStatus(t, err, http.StatusBadRequest)
}

func TestDeleteChapterCompactsPositions(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	raw, _ := sampleContent()
	item, err := e.content.AddLegacy(e.dbc, creator, types.ContentTypeBook, LegacyContent{CourseTitle: "B", Content: raw})
	if err != nil {
		t.Fatalf("AddLegacy: %v", err)
	}

	err = e.content.DeleteChapter(e.dbc, uuid.New(), item.Chapters[1].ID)
	wantStatus(t, err, http.StatusNotFound)

	if err := e.content.DeleteChapter(e.dbc, creator, item.Chapters[1].ID); err != nil {
		t.Fatalf("DeleteChapter: %v", err)
	}
	reloaded, _ := e.content.GetWithChapters(e.dbc, creator, item.ID)
	if len(reloaded.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(reloaded.Chapters))
	}
	for i, ch := range reloaded.Chapters {
		if ch.Position != i {
			t.Fatalf("chapter %d has position %d", i, ch.Position)
		}
	}
}

func TestDeleteContent(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	raw, _ := sampleContent()
	item, _ := e.content.AddLegacy(e.dbc, creator, types.ContentTypeBook, LegacyContent{CourseTitle: "B", Content: raw})

	wantStatus(t, e.content.Delete(e.dbc, uuid.New(), item.ID), http.StatusNotFound)
	if err := e.content.Delete(e.dbc, creator, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, err := e.content.List(e.dbc, creator, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("deleted item still listed")
	}
}

func TestListFiltersByType(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	raw, _ := sampleContent()
	_, _ = e.content.AddLegacy(e.dbc, creator, types.ContentTypeBook, LegacyContent{CourseTitle: "B", Content: raw})
	_, _ = e.content.AddLegacy(e.dbc, creator, types.ContentTypeCourse, LegacyContent{CourseTitle: "C", Content: raw})
	_, _ = e.content.AddLegacy(e.dbc, uuid.New(), types.ContentTypeCourse, LegacyContent{CourseTitle: "Other", Content: raw})

	all, _ := e.content.List(e.dbc, creator, "")
	courses, _ := e.content.List(e.dbc, creator, types.ContentTypeCourse)
	if len(all) != 2 || len(courses) != 1 || courses[0].Title != "C" {
		t.Fatalf("all=%d courses=%+v", len(all), courses)
	}
	_, err := e.content.List(e.dbc, creator, "novel")
	wantStatus(t, err, http.StatusBadRequest)
}

func TestGetSharedSanitizesAndKeepsQuiz(t *testing.T) {
	e := newEnv(t)
	creator := uuid.New()
	editor, shared := contentmod.RenderQuiz(sampleQuestions())
	raw := contentmod.SerializeContent([]string{
		`<h1>Intro</h1><p onclick="steal()">Hi</p><script>alert(1)</script>`,
		contentmod.EmbedQuiz(editor, shared, "Basics", "<p>Body</p>"),
	})
	item, err := e.content.AddLegacy(e.dbc, creator, types.ContentTypeCourse, LegacyContent{CourseTitle: "C", Content: raw})
	if err != nil {
		t.Fatalf("AddLegacy: %v", err)
	}

	out, err := e.content.GetShared(e.dbc, types.ContentTypeCourse, item.ID)
	if err != nil {
		t.Fatalf("GetShared: %v", err)
	}
	if out.Title != "C" || out.CourseType != types.ContentTypeCourse {
		t.Fatalf("unexpected view: %+v", out)
	}
	if strings.Contains(out.Content, "<script>") || strings.Contains(out.Content, "onclick") {
		t.Fatalf("shared content not sanitized: %s", out.Content)
	}
	arr := contentmod.ParseContent(out.Content)
	if len(arr) != 2 {
		t.Fatalf("chapters = %d", len(arr))
	}
	if q := contentmod.ExtractQuiz(arr[1]); q == nil || q.SharedContent == "" {
		t.Fatalf("shared quiz lost: %s", arr[1])
	}

	_, err = e.content.GetShared(e.dbc, types.ContentTypeBook, item.ID)
	wantStatus(t, err, http.StatusNotFound)
}
