package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minischools/academy-backend/internal/data/repos"
	"github.com/minischools/academy-backend/internal/data/repos/testutil"
	httpH "github.com/minischools/academy-backend/internal/http/handlers"
	httpMW "github.com/minischools/academy-backend/internal/http/middleware"
	contentmod "github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/modules/publish"
	"github.com/minischools/academy-backend/internal/platform/openai"
	"github.com/minischools/academy-backend/internal/realtime"
	"github.com/minischools/academy-backend/internal/services"
)

type scriptedAI struct{}

func (scriptedAI) GenerateText(context.Context, string, string) (string, error) {
	return "", errors.New("unused")
}

func (scriptedAI) GenerateJSON(context.Context, string, string, string, map[string]any) (map[string]any, error) {
	return map[string]any{"questions": []any{
		map[string]any{"type": "flip_card", "front": "chan", "back": "typed pipe"},
	}}, nil
}

func (scriptedAI) GenerateImage(context.Context, string) (openai.Image, error) {
	return openai.Image{}, errors.New("unused")
}

func (scriptedAI) Synthesize(context.Context, string, string) (openai.Speech, error) {
	return openai.Speech{}, errors.New("unused")
}

type offlineImages struct{}

func (offlineImages) Fetch(context.Context, string) ([]byte, string, error) {
	return nil, "", errors.New("offline")
}

type testServer struct {
	engine *gin.Engine
	hub    *realtime.SSEHub
	auth   services.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	items := repos.NewContentItemRepo(db, log)
	chapters := repos.NewChapterRepo(db, log)
	jobs := repos.NewJobRunRepo(db, log)

	auth, err := services.NewAuthService(log, services.AuthConfig{SecretKey: "router-secret"})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	content := services.NewContentService(db, log, items, chapters)
	generation := services.NewGenerationService(db, log, jobs, content, nil)
	quiz := services.NewQuizService(log, scriptedAI{}, content, chapters, items)
	cover := services.NewCoverService(db, log, nil, nil, content, chapters, items)
	narration := services.NewNarrationService(log, nil, nil, content, chapters, "alloy")
	exporter := publish.NewExporter(log, offlineImages{}, publish.WithoutCoverArt())
	export := services.NewExportService(log, content, exporter, nil)
	hub := realtime.NewSSEHub(log)

	engine := NewRouter(RouterConfig{
		Log:               log,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, auth),
		HealthHandler:     httpH.NewHealthHandler(db),
		ContentHandler:    httpH.NewContentHandler(log, content, nil),
		SharedHandler:     httpH.NewSharedHandler(content, export),
		GenerationHandler: httpH.NewGenerationHandler(generation),
		QuizHandler:       httpH.NewQuizHandler(quiz),
		MediaHandler:      httpH.NewMediaHandler(cover, narration),
		ExportHandler:     httpH.NewExportHandler(export),
		RealtimeHandler:   httpH.NewRealtimeHandler(log, hub),
	})
	return &testServer{engine: engine, hub: hub, auth: auth}
}

func (s *testServer) token(t *testing.T, creator uuid.UUID) string {
	t.Helper()
	tok, err := s.auth.IssueToken(creator)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func sampleBook() string {
	return contentmod.SerializeContent([]string{
		contentmod.EmbedCover("https://img.example.test/cover.png"),
		"<h1>Intro</h1><p>Channels move values.</p>",
		"<h1>Select</h1><p>Select waits.</p>",
	})
}

func TestHealthAndAuth(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, stdhttp.MethodGet, "/healthcheck", "", nil); rec.Code != stdhttp.StatusOK {
		t.Fatalf("healthcheck = %d", rec.Code)
	}
	rec := s.do(t, stdhttp.MethodGet, "/api/content", "", nil)
	if rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("unauthenticated = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestLegacyPersistenceRoutes(t *testing.T) {
	s := newTestServer(t)
	creator := uuid.New()
	tok := s.token(t, creator)
	raw := sampleBook()

	rec := s.do(t, stdhttp.MethodPost, "/api/addCourse/book", tok, map[string]string{
		"creator_id":   creator.String(),
		"course_title": "Go",
		"content":      raw,
	})
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("addCourse = %d %s", rec.Code, rec.Body.String())
	}
	var added httpH.LegacyCourse
	decode(t, rec, &added)
	if added.Content != raw || added.ID == uuid.Nil {
		t.Fatalf("unexpected add response: %+v", added)
	}

	rec = s.do(t, stdhttp.MethodGet, "/api/getBookById/"+added.ID.String(), tok, nil)
	var got httpH.LegacyCourse
	decode(t, rec, &got)
	if rec.Code != stdhttp.StatusOK || got.Content != raw || got.CourseTitle != "Go" || got.CreatorID != creator.String() {
		t.Fatalf("getBookById = %d %+v", rec.Code, got)
	}

	if rec := s.do(t, stdhttp.MethodGet, "/api/getCourseById/"+added.ID.String()+"/course", tok, nil); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("wrong type should be 404, got %d", rec.Code)
	}
	if rec := s.do(t, stdhttp.MethodGet, "/api/getBookById/"+added.ID.String(), s.token(t, uuid.New()), nil); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("other creator should be 404, got %d", rec.Code)
	}
	if rec := s.do(t, stdhttp.MethodGet, "/api/getBookById/not-a-uuid", tok, nil); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad id should be 400, got %d", rec.Code)
	}

	updated := contentmod.SerializeContent([]string{"<h1>Only</h1>"})
	rec = s.do(t, stdhttp.MethodPost, "/api/updateCourse/"+added.ID.String()+"/book", tok, map[string]string{
		"course_title": "Go 2",
		"content":      updated,
	})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("updateCourse = %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, stdhttp.MethodGet, "/api/getBookById/"+added.ID.String(), tok, nil)
	decode(t, rec, &got)
	if got.Content != updated || got.CourseTitle != "Go 2" {
		t.Fatalf("update not visible: %+v", got)
	}

	rec = s.do(t, stdhttp.MethodPost, "/api/updateCourse/"+added.ID.String()+"/book", tok, map[string]string{
		"creator_id": uuid.NewString(),
		"content":    updated,
	})
	if rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("foreign creator_id should be 403, got %d", rec.Code)
	}
}

func TestStructuredChapterRoutes(t *testing.T) {
	s := newTestServer(t)
	creator := uuid.New()
	tok := s.token(t, creator)
	rec := s.do(t, stdhttp.MethodPost, "/api/addCourse/course", tok, map[string]string{"course_title": "C", "content": sampleBook()})
	var added httpH.LegacyCourse
	decode(t, rec, &added)

	rec = s.do(t, stdhttp.MethodGet, "/api/content/"+added.ID.String()+"/chapters", tok, nil)
	var listed struct {
		Item struct {
			Chapters []struct {
				ID   uuid.UUID `json:"id"`
				Kind string    `json:"kind"`
			} `json:"chapters"`
		} `json:"item"`
	}
	decode(t, rec, &listed)
	chs := listed.Item.Chapters
	if len(chs) != 3 || chs[0].Kind != "cover" {
		t.Fatalf("unexpected chapters: %+v", chs)
	}

	order := []uuid.UUID{chs[2].ID, chs[1].ID, chs[0].ID}
	rec = s.do(t, stdhttp.MethodPost, "/api/content/"+added.ID.String()+"/chapters/order", tok, map[string]any{"chapter_ids": order})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("reorder = %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, stdhttp.MethodGet, "/api/getCourseById/"+added.ID.String()+"/course", tok, nil)
	var got httpH.LegacyCourse
	decode(t, rec, &got)
	arr := contentmod.ParseContent(got.Content)
	if !contentmod.IsCover(arr[0]) || contentmod.ChapterTitle(arr[1]) != "Select" {
		t.Fatalf("unexpected order: %v", arr)
	}

	if rec := s.do(t, stdhttp.MethodDelete, "/api/chapters/"+chs[1].ID.String(), tok, nil); rec.Code != stdhttp.StatusNoContent {
		t.Fatalf("delete chapter = %d", rec.Code)
	}
	rec = s.do(t, stdhttp.MethodGet, "/api/content?type=course", tok, nil)
	var list struct {
		Items []httpH.ContentSummary `json:"items"`
	}
	decode(t, rec, &list)
	if len(list.Items) != 1 || list.Items[0].ID != added.ID {
		t.Fatalf("unexpected list: %+v", list)
	}
	if rec := s.do(t, stdhttp.MethodDelete, "/api/content/"+added.ID.String(), tok, nil); rec.Code != stdhttp.StatusNoContent {
		t.Fatalf("delete content = %d", rec.Code)
	}
}

func TestSharedRoutes(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, uuid.New())
	raw := contentmod.SerializeContent([]string{`<h1>Intro</h1><p>Hi</p><script>alert(1)</script>`})
	rec := s.do(t, stdhttp.MethodPost, "/api/addCourse/book", tok, map[string]string{"course_title": "Pub", "content": raw})
	var added httpH.LegacyCourse
	decode(t, rec, &added)

	rec = s.do(t, stdhttp.MethodGet, "/shared/book/"+added.ID.String(), "", nil)
	var shared map[string]string
	decode(t, rec, &shared)
	if rec.Code != stdhttp.StatusOK || shared["title"] != "Pub" || shared["courseType"] != "book" {
		t.Fatalf("shared = %d %v", rec.Code, shared)
	}
	if strings.Contains(shared["content"], "<script>") {
		t.Fatalf("shared content not sanitized")
	}

	rec = s.do(t, stdhttp.MethodGet, "/shared/book/"+added.ID.String()+"/html", "", nil)
	if rec.Code != stdhttp.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("shared html = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("missing CSP header")
	}
	if rec := s.do(t, stdhttp.MethodGet, "/shared/course/"+added.ID.String(), "", nil); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("wrong shared type = %d", rec.Code)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

func TestGenerationRoutesUseEnvelope(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, uuid.New())

	rec := s.do(t, stdhttp.MethodPost, "/api/generation/jobs", tok, map[string]any{
		"title":          "Go",
		"chapter_titles": []string{"Intro", "Select"},
	})
	var env envelope
	decode(t, rec, &env)
	if rec.Code != stdhttp.StatusAccepted || !env.Success {
		t.Fatalf("create = %d %+v", rec.Code, env)
	}
	var job services.GenerationJob
	if err := json.Unmarshal(env.Data, &job); err != nil {
		t.Fatalf("job: %v", err)
	}
	if job.Status != "queued" || len(job.Result.Chapters) != 2 {
		t.Fatalf("unexpected job: %+v", job)
	}

	rec = s.do(t, stdhttp.MethodPost, "/api/generation/jobs/"+job.ID.String()+"/save", tok, nil)
	decode(t, rec, &env)
	if rec.Code != stdhttp.StatusConflict || env.Success || env.Code != "generation_not_finished" {
		t.Fatalf("early save = %d %+v", rec.Code, env)
	}

	rec = s.do(t, stdhttp.MethodPost, "/api/generation/jobs/"+job.ID.String()+"/cancel", tok, nil)
	decode(t, rec, &env)
	_ = json.Unmarshal(env.Data, &job)
	if rec.Code != stdhttp.StatusOK || job.Status != "canceled" {
		t.Fatalf("cancel = %d %+v", rec.Code, job)
	}

	rec = s.do(t, stdhttp.MethodPost, "/api/generation/jobs", tok, map[string]any{"title": "Go"})
	decode(t, rec, &env)
	if rec.Code != stdhttp.StatusBadRequest || env.Success || env.Message == "" {
		t.Fatalf("invalid create = %d %+v", rec.Code, env)
	}
	rec = s.do(t, stdhttp.MethodGet, "/api/generation/jobs/nope", tok, nil)
	decode(t, rec, &env)
	if rec.Code != stdhttp.StatusBadRequest || env.Success {
		t.Fatalf("bad id = %d %+v", rec.Code, env)
	}
}

func TestQuizAndMediaRoutes(t *testing.T) {
	s := newTestServer(t)
	creator := uuid.New()
	tok := s.token(t, creator)
	rec := s.do(t, stdhttp.MethodPost, "/api/addCourse/book", tok, map[string]string{"course_title": "Q", "content": sampleBook()})
	var added httpH.LegacyCourse
	decode(t, rec, &added)
	rec = s.do(t, stdhttp.MethodGet, "/api/content/"+added.ID.String()+"/chapters", tok, nil)
	var listed struct {
		Item struct {
			Chapters []struct {
				ID uuid.UUID `json:"id"`
			} `json:"chapters"`
		} `json:"item"`
	}
	decode(t, rec, &listed)
	chapterID := listed.Item.Chapters[1].ID

	rec = s.do(t, stdhttp.MethodPost, "/api/chapters/"+chapterID.String()+"/quiz", tok, map[string]int{"count": 1})
	var env envelope
	decode(t, rec, &env)
	if rec.Code != stdhttp.StatusOK || !env.Success {
		t.Fatalf("quiz = %d %+v", rec.Code, env)
	}
	var view httpH.ChapterView
	_ = json.Unmarshal(env.Data, &view)
	if !strings.Contains(view.HTML, contentmod.SharedQuizStart) {
		t.Fatalf("chapter html lacks quiz: %s", view.HTML)
	}

	rec = s.do(t, stdhttp.MethodDelete, "/api/chapters/"+chapterID.String()+"/quiz", tok, nil)
	decode(t, rec, &env)
	_ = json.Unmarshal(env.Data, &view)
	if rec.Code != stdhttp.StatusOK || strings.Contains(view.HTML, contentmod.SharedQuizStart) {
		t.Fatalf("remove quiz = %d %s", rec.Code, view.HTML)
	}

	rec = s.do(t, stdhttp.MethodPut, "/api/content/"+added.ID.String()+"/cover", tok, map[string]string{"image_url": "https://img.example.test/new.png"})
	decode(t, rec, &env)
	if rec.Code != stdhttp.StatusOK || !env.Success {
		t.Fatalf("set cover = %d %+v", rec.Code, env)
	}
	rec = s.do(t, stdhttp.MethodPost, "/api/content/"+added.ID.String()+"/cover", tok, nil)
	decode(t, rec, &env)
	if rec.Code != stdhttp.StatusServiceUnavailable || env.Success {
		t.Fatalf("generate cover without storage = %d %+v", rec.Code, env)
	}
	rec = s.do(t, stdhttp.MethodPost, "/api/chapters/"+chapterID.String()+"/narration", tok, nil)
	if rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("narration without storage = %d", rec.Code)
	}
}

func TestExportRoutes(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, uuid.New())
	rec := s.do(t, stdhttp.MethodPost, "/api/addCourse/book", tok, map[string]string{"course_title": "Go Basics", "content": sampleBook()})
	var added httpH.LegacyCourse
	decode(t, rec, &added)

	rec = s.do(t, stdhttp.MethodGet, "/api/content/"+added.ID.String()+"/export/pdf", tok, nil)
	if rec.Code != stdhttp.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), `filename="go-basics.pdf"`) {
		t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a pdf")
	}
	if rec := s.do(t, stdhttp.MethodGet, "/api/content/"+added.ID.String()+"/export/docx", tok, nil); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("unknown format = %d", rec.Code)
	}
}

func TestSSEStreamDeliversCreatorEvents(t *testing.T) {
	s := newTestServer(t)
	creator := uuid.New()
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet, srv.URL+"/api/sse/stream?token="+s.token(t, creator), nil)
	resp, err := stdhttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK || resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("stream = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	s.hub.Broadcast(realtime.SSEMessage{Channel: realtime.CreatorChannel(uuid.New()), Event: realtime.SSEEventJobDone})
	s.hub.Broadcast(realtime.SSEMessage{Channel: realtime.CreatorChannel(creator), Event: realtime.SSEEventChapterCompleted, Data: map[string]any{"index": 0}})

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg realtime.SSEMessage
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if msg.Event != realtime.SSEEventChapterCompleted {
			t.Fatalf("received another creator's event: %+v", msg)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", sc.Err())
}
