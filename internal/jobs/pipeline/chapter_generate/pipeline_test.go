package chapter_generate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/minischools/academy-backend/internal/data/repos"
	"github.com/minischools/academy-backend/internal/data/repos/testutil"
	types "github.com/minischools/academy-backend/internal/domain"
	jobrt "github.com/minischools/academy-backend/internal/jobs/runtime"
	"github.com/minischools/academy-backend/internal/modules/generation"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	failed []string
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
func (n *recordingNotifier) JobFailed(uuid.UUID, *types.JobRun, string, string) { n.add("failed") }
func (n *recordingNotifier) JobDone(uuid.UUID, *types.JobRun)                   { n.add("done") }
func (n *recordingNotifier) JobCanceled(uuid.UUID, *types.JobRun)               { n.add("canceled") }
func (n *recordingNotifier) ChapterCompleted(uuid.UUID, *types.JobRun, int, string) {
	n.add("chapter_completed")
}
func (n *recordingNotifier) ChapterFailed(_ uuid.UUID, _ *types.JobRun, _ int, message string) {
	n.mu.Lock()
	n.failed = append(n.failed, message)
	n.mu.Unlock()
	n.add("chapter_failed")
}

type funcSource func(ctx context.Context, req generation.ChapterRequest) (string, error)

func (f funcSource) GenerateChapter(ctx context.Context, req generation.ChapterRequest) (string, error) {
	return f(ctx, req)
}

type fixture struct {
	repo   repos.JobRunRepo
	notify *recordingNotifier
	job    *types.JobRun
	jc     *jobrt.Context
}

func newFixture(t *testing.T, req generation.Request, result string) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewJobRunRepo(db, log)
	payload, _ := json.Marshal(req)
	now := time.Now()
	job := &types.JobRun{
		CreatorID:   uuid.New(),
		JobType:     JobType,
		Status:      types.JobStatusRunning,
		Stage:       "queued",
		Attempts:    1,
		HeartbeatAt: &now,
		Payload:     datatypes.JSON(payload),
		Result:      datatypes.JSON([]byte(result)),
	}
	if _, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	n := &recordingNotifier{}
	return &fixture{
		repo:   repo,
		notify: n,
		job:    job,
		jc:     jobrt.NewContext(context.Background(), db, job, repo, n),
	}
}

func (f *fixture) reload(t *testing.T) (*types.JobRun, generation.Result) {
	t.Helper()
	job, err := f.repo.GetByID(dbctx.Context{Ctx: context.Background()}, f.job.ID)
	if err != nil || job == nil {
		t.Fatalf("reload job: %v", err)
	}
	var res generation.Result
	if err := json.Unmarshal(job.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return job, res
}

func newPipeline(t *testing.T, src generation.ChapterSource) *Pipeline {
	log := testutil.Logger(t)
	return New(log, generation.NewGenerator(log, src, generation.Config{MaxAttempts: 2}))
}

func threeChapters() generation.Request {
	return generation.Request{Title: "Go", Summary: "s", ChapterTitles: []string{"A", "B", "C"}}
}

func TestRunPartiallyFailed(t *testing.T) {
	f := newFixture(t, threeChapters(), "{}")
	p := newPipeline(t, funcSource(func(ctx context.Context, req generation.ChapterRequest) (string, error) {
		if req.ChapterNo == 2 {
			return "", errors.New("upstream 502")
		}
		return "<h1>" + req.Chapter + "</h1>", nil
	}))

	if err := p.Run(f.jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	job, res := f.reload(t)
	if job.Status != types.JobStatusPartiallyFailed || job.Progress != 100 {
		t.Fatalf("status=%s progress=%d", job.Status, job.Progress)
	}
	if res.Chapters[0] != "<h1>A</h1>" || res.Chapters[1] != "" || res.Chapters[2] != "<h1>C</h1>" {
		t.Fatalf("chapters=%q", res.Chapters)
	}
	if !res.SaveEnabled || len(res.FailedIndices) != 1 || res.FailedIndices[0] != 1 {
		t.Fatalf("result=%+v", res)
	}
	if f.notify.count("chapter_completed") != 2 || f.notify.count("chapter_failed") != 1 || f.notify.count("done") != 1 {
		t.Fatalf("events=%v", f.notify.events)
	}
	if len(f.notify.failed) != 1 || f.notify.failed[0] != "Failed to generate Chapter 2" {
		t.Fatalf("failure notices=%v", f.notify.failed)
	}
	if !strings.Contains(job.Message, "failed: 2") {
		t.Fatalf("message=%q", job.Message)
	}
}

func TestRunCancelStopsAndKeepsCompleted(t *testing.T) {
	f := newFixture(t, threeChapters(), "{}")
	calls := 0
	p := newPipeline(t, funcSource(func(ctx context.Context, req generation.ChapterRequest) (string, error) {
		calls++
		if req.ChapterNo == 2 {
			// the creator cancels while chapter 2 is in flight
			_, err := f.repo.UpdateFieldsIfStatus(dbctx.Context{Ctx: ctx}, f.job.ID,
				[]string{types.JobStatusRunning}, map[string]interface{}{"status": types.JobStatusCanceled})
			if err != nil {
				t.Errorf("cancel: %v", err)
			}
		}
		return "<h1>" + req.Chapter + "</h1>", nil
	}))

	if err := p.Run(f.jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	job, res := f.reload(t)
	if job.Status != types.JobStatusCanceled {
		t.Fatalf("status=%s", job.Status)
	}
	if calls != 2 {
		t.Fatalf("source calls=%d want 2", calls)
	}
	if res.Chapters[0] != "<h1>A</h1>" || res.Chapters[1] != "" || res.Chapters[2] != "" {
		t.Fatalf("chapters=%q", res.Chapters)
	}
	if !res.Cancelled || res.SaveEnabled {
		t.Fatalf("result=%+v", res)
	}
	if f.notify.count("canceled") != 1 || f.notify.count("done") != 0 || f.notify.count("chapter_completed") != 1 {
		t.Fatalf("events=%v", f.notify.events)
	}
}

// cancelAfterStatusReads cancels the job in storage right after the n-th
// status read, so the next result write races a cancel.
type cancelAfterStatusReads struct {
	repos.JobRunRepo
	n     int
	reads int
}

func (r *cancelAfterStatusReads) GetStatus(dbc dbctx.Context, id uuid.UUID) (string, error) {
	status, err := r.JobRunRepo.GetStatus(dbc, id)
	r.reads++
	if r.reads == r.n {
		if _, cerr := r.JobRunRepo.UpdateFieldsIfStatus(dbc, id,
			[]string{types.JobStatusRunning}, map[string]interface{}{"status": types.JobStatusCanceled}); cerr != nil {
			return status, cerr
		}
	}
	return status, err
}

func TestRunCancelDropsChapterWhoseSaveWasRefused(t *testing.T) {
	f := newFixture(t, threeChapters(), "{}")
	// read 1 is before chapter 1, read 2 is after its response
	repo := &cancelAfterStatusReads{JobRunRepo: f.repo, n: 2}
	jc := jobrt.NewContext(context.Background(), f.jc.DB, f.job, repo, f.notify)
	p := newPipeline(t, funcSource(func(ctx context.Context, req generation.ChapterRequest) (string, error) {
		return "<h1>" + req.Chapter + "</h1>", nil
	}))

	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	job, res := f.reload(t)
	if job.Status != types.JobStatusCanceled {
		t.Fatalf("status=%s", job.Status)
	}
	for i, ch := range res.Chapters {
		if ch != "" {
			t.Fatalf("chapter %d persisted after cancel: %q", i, ch)
		}
	}
	if len(res.Chapters) != 3 || res.CompletedCount != 0 || !res.Cancelled {
		t.Fatalf("result=%+v", res)
	}
	if f.notify.count("chapter_completed") != 0 || f.notify.count("canceled") != 1 {
		t.Fatalf("events=%v", f.notify.events)
	}
}

func TestRunResumesFromPreviousResult(t *testing.T) {
	prev := `{"chapters":["<h1>A</h1>","",""],"completed_count":1,"completed_indices":[0],"failed_indices":[]}`
	f := newFixture(t, threeChapters(), prev)
	var requested []int
	p := newPipeline(t, funcSource(func(ctx context.Context, req generation.ChapterRequest) (string, error) {
		requested = append(requested, req.ChapterNo)
		return "<h1>" + req.Chapter + "</h1>", nil
	}))

	if err := p.Run(f.jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	job, res := f.reload(t)
	if job.Status != types.JobStatusSucceeded {
		t.Fatalf("status=%s", job.Status)
	}
	if len(requested) != 2 || requested[0] != 2 || requested[1] != 3 {
		t.Fatalf("requested=%v", requested)
	}
	if res.CompletedCount != 3 {
		t.Fatalf("completed=%d", res.CompletedCount)
	}
}

func TestRunRejectsEmptyPayload(t *testing.T) {
	f := newFixture(t, generation.Request{Title: "x"}, "{}")
	p := newPipeline(t, funcSource(func(context.Context, generation.ChapterRequest) (string, error) {
		t.Fatalf("source must not be called")
		return "", nil
	}))
	if err := p.Run(f.jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	job, _ := f.reload(t)
	if job.Status != types.JobStatusFailed || job.Stage != "validate" {
		t.Fatalf("status=%s stage=%s", job.Status, job.Stage)
	}
}

func TestProgressOf(t *testing.T) {
	r := generation.Result{Chapters: make([]string, 4), CompletedCount: 2, FailedIndices: []int{3}}
	if got := progressOf(r); got != 75 {
		t.Fatalf("progress=%d", got)
	}
	r.CompletedCount = 4
	r.FailedIndices = nil
	if got := progressOf(r); got != 99 {
		t.Fatalf("progress capped=%d", got)
	}
}
