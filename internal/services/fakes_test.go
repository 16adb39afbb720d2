package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minischools/academy-backend/internal/data/repos"
	"github.com/minischools/academy-backend/internal/data/repos/testutil"
	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/platform/apierr"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/gcp"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/platform/openai"
)

type fakeAI struct {
	mu         sync.Mutex
	json       []map[string]any
	jsonErr    error
	jsonCalls  int
	image      openai.Image
	speech     openai.Speech
	synthCalls int
	lastSystem string
}

func (f *fakeAI) GenerateText(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeAI) GenerateJSON(_ context.Context, system, _ string, _ string, _ map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSystem = system
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	if f.jsonCalls >= len(f.json) {
		return nil, errors.New("no scripted response")
	}
	out := f.json[f.jsonCalls]
	f.jsonCalls++
	return out, nil
}

func (f *fakeAI) GenerateImage(context.Context, string) (openai.Image, error) {
	return f.image, nil
}

func (f *fakeAI) Synthesize(context.Context, string, string) (openai.Speech, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthCalls++
	return f.speech, nil
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: map[string][]byte{}} }

func bucketKey(category gcp.BucketCategory, key string) string { return string(category) + "/" + key }

func (b *fakeBucket) UploadFile(_ context.Context, category gcp.BucketCategory, key string, file io.Reader) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[bucketKey(category, key)] = data
	return nil
}

func (b *fakeBucket) Exists(_ context.Context, category gcp.BucketCategory, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[bucketKey(category, key)]
	return ok, nil
}

func (b *fakeBucket) DeleteFile(_ context.Context, category gcp.BucketCategory, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, bucketKey(category, key))
	return nil
}

func (b *fakeBucket) GetPublicURL(category gcp.BucketCategory, key string) string {
	return "https://cdn.example.test/" + bucketKey(category, key)
}

func (b *fakeBucket) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(ev string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count(ev string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == ev {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) JobCreated(uuid.UUID, *types.JobRun) { n.add("created") }
func (n *recordingNotifier) JobProgress(uuid.UUID, *types.JobRun, string, int, string) {
	n.add("progress")
}
func (n *recordingNotifier) JobFailed(uuid.UUID, *types.JobRun, string, string)     { n.add("failed") }
func (n *recordingNotifier) JobDone(uuid.UUID, *types.JobRun)                       { n.add("done") }
func (n *recordingNotifier) JobCanceled(uuid.UUID, *types.JobRun)                   { n.add("canceled") }
func (n *recordingNotifier) ChapterCompleted(uuid.UUID, *types.JobRun, int, string) { n.add("chapter_completed") }
func (n *recordingNotifier) ChapterFailed(uuid.UUID, *types.JobRun, int, string)    { n.add("chapter_failed") }

type env struct {
	db       *gorm.DB
	log      *logger.Logger
	items    repos.ContentItemRepo
	chapters repos.ChapterRepo
	jobs     repos.JobRunRepo
	content  ContentService
	dbc      dbctx.Context
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	items := repos.NewContentItemRepo(db, log)
	chapters := repos.NewChapterRepo(db, log)
	return &env{
		db:       db,
		log:      log,
		items:    items,
		chapters: chapters,
		jobs:     repos.NewJobRunRepo(db, log),
		content:  NewContentService(db, log, items, chapters),
		dbc:      dbctx.Context{Ctx: context.Background()},
	}
}

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected api error with status %d, got %v", status, err)
	}
	if ae.Status != status {
		t.Fatalf("status = %d, want %d (%v)", ae.Status, status, err)
	}
}
