package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/minischools/academy-backend/internal/data/repos/testutil"
	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now()
	creator := uuid.New()

	queued := &types.JobRun{
		CreatorID: creator,
		JobType:   "chapter_generation",
		Status:    types.JobStatusQueued,
		Stage:     "queued",
		Payload:   datatypes.JSON([]byte("{}")),
		CreatedAt: now.Add(-3 * time.Hour),
		UpdatedAt: now.Add(-3 * time.Hour),
	}
	failed := &types.JobRun{
		CreatorID:   creator,
		JobType:     "chapter_generation",
		Status:      types.JobStatusFailed,
		Stage:       "failed",
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}
	staleRunning := &types.JobRun{
		CreatorID:   creator,
		JobType:     "chapter_generation",
		Status:      types.JobStatusRunning,
		Stage:       "running",
		HeartbeatAt: ptrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}
	canceled := &types.JobRun{
		CreatorID: creator,
		JobType:   "chapter_generation",
		Status:    types.JobStatusCanceled,
		Stage:     "canceled",
		Payload:   datatypes.JSON([]byte("{}")),
		CreatedAt: now.Add(-4 * time.Hour),
		UpdatedAt: now.Add(-4 * time.Hour),
	}

	if _, err := repo.Create(dbc, []*types.JobRun{queued, failed, staleRunning, canceled}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	wantOrder := []uuid.UUID{queued.ID, failed.ID, staleRunning.ID}
	for i, want := range wantOrder {
		job, err := repo.ClaimNextRunnable(dbc, 5, time.Minute, 30*time.Minute)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i, err)
		}
		if job == nil || job.ID != want {
			t.Fatalf("ClaimNextRunnable #%d: got %v want %s", i, job, want)
		}
		if job.Status != types.JobStatusRunning || job.Attempts != 1 {
			t.Fatalf("claimed job not marked running: %+v", job)
		}
	}
	if job, err := repo.ClaimNextRunnable(dbc, 5, time.Minute, 30*time.Minute); err != nil || job != nil {
		t.Fatalf("expected nothing runnable, got %v err=%v", job, err)
	}

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, canceled.ID, []string{types.JobStatusCanceled}, map[string]interface{}{"stage": "overwritten"})
	if err != nil || ok {
		t.Fatalf("canceled job must not be updated: ok=%v err=%v", ok, err)
	}

	ok, err = repo.UpdateFieldsIfStatus(dbc, queued.ID, []string{types.JobStatusQueued, types.JobStatusRunning}, map[string]interface{}{"status": types.JobStatusCanceled})
	if err != nil || !ok {
		t.Fatalf("UpdateFieldsIfStatus: ok=%v err=%v", ok, err)
	}
	status, err := repo.GetStatus(dbc, queued.ID)
	if err != nil || status != types.JobStatusCanceled {
		t.Fatalf("GetStatus: %q %v", status, err)
	}
	if status, _ := repo.GetStatus(dbc, uuid.New()); status != "" {
		t.Fatalf("missing job status=%q", status)
	}

	list, err := repo.ListByCreator(dbc, creator, "chapter_generation", 10)
	if err != nil || len(list) != 4 {
		t.Fatalf("ListByCreator: len=%d err=%v", len(list), err)
	}
}
