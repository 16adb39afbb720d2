package chapter_generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	types "github.com/minischools/academy-backend/internal/domain"
	jobrt "github.com/minischools/academy-backend/internal/jobs/runtime"
	"github.com/minischools/academy-backend/internal/modules/generation"
	"github.com/minischools/academy-backend/internal/observability"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var req generation.Request
	if err := jc.DecodePayload(&req); err != nil {
		jc.Fail("validate", fmt.Errorf("decode payload: %w", err))
		return nil
	}
	if len(req.ChapterTitles) == 0 {
		jc.Fail("validate", generation.ErrNoChapters)
		return nil
	}

	// A retried or reclaimed run keeps what an earlier attempt produced.
	var prev generation.Result
	if ok, err := jc.DecodeResult(&prev); err != nil {
		p.log.Warn("ignoring unreadable previous result", "job_id", jc.Job.ID, "error", err)
	} else if ok {
		req.Completed = prev.Chapters
	}

	ctx, span := observability.StartSpan(jc.Ctx, "chapter_generation.run",
		attribute.String("job.id", jc.Job.ID.String()),
		attribute.Int("chapters.total", len(req.ChapterTitles)),
	)
	defer span.End()

	total := len(req.ChapterTitles)
	jc.Progress("generating", 0, fmt.Sprintf("Generating %d chapters", total))

	// accepted tracks the last snapshot storage took. A chapter whose save
	// was refused by a cancel never reaches the canceled result.
	accepted := seedResult(total, req.Completed)

	res, err := p.gen.Run(ctx, req, generation.Hooks{
		Cancelled: func(context.Context) bool { return jc.Canceled() },
		OnChapterDone: func(index int, snap generation.Result) {
			if !jc.SaveResult("generating", progressOf(snap), progressMessage(snap), snap) {
				return
			}
			accepted = snap
			if jc.Notify != nil {
				jc.Notify.ChapterCompleted(jc.Job.CreatorID, jc.Job, index, snap.Chapters[index])
				jc.Notify.JobProgress(jc.Job.CreatorID, jc.Job, "generating", jc.Job.Progress, jc.Job.Message)
			}
		},
		OnChapterFailed: func(index int, message string, cause error, snap generation.Result) {
			p.log.Warn("chapter failed", "job_id", jc.Job.ID, "chapter_no", index+1, "error", cause)
			if !jc.SaveResult("generating", progressOf(snap), progressMessage(snap), snap) {
				return
			}
			accepted = snap
			if jc.Notify != nil {
				jc.Notify.ChapterFailed(jc.Job.CreatorID, jc.Job, index, message)
			}
		},
	})
	if err != nil {
		if errors.Is(err, generation.ErrNoChapters) {
			jc.Fail("validate", err)
			return nil
		}
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.Int("chapters.completed", res.CompletedCount),
		attribute.Int("chapters.failed", len(res.FailedIndices)),
		attribute.Bool("cancelled", res.Cancelled),
	)

	if res.Cancelled || jc.Canceled() {
		accepted.Cancelled = true
		jc.MarkCanceled(accepted)
		return nil
	}

	status := types.JobStatusSucceeded
	if len(res.FailedIndices) > 0 {
		status = types.JobStatusPartiallyFailed
	}
	jc.Finish(status, "done", finishMessage(res), res)
	return nil
}

func seedResult(total int, completed []string) generation.Result {
	r := generation.Result{
		Chapters:         make([]string, total),
		CompletedIndices: []int{},
		FailedIndices:    []int{},
	}
	for i := 0; i < total && i < len(completed); i++ {
		if strings.TrimSpace(completed[i]) == "" {
			continue
		}
		r.Chapters[i] = completed[i]
		r.CompletedCount++
		r.CompletedIndices = append(r.CompletedIndices, i)
	}
	return r
}

func progressOf(r generation.Result) int {
	total := len(r.Chapters)
	if total == 0 {
		return 0
	}
	pct := (r.CompletedCount + len(r.FailedIndices)) * 100 / total
	if pct > 99 {
		pct = 99
	}
	return pct
}

func progressMessage(r generation.Result) string {
	return fmt.Sprintf("Generated %d of %d chapters", r.CompletedCount, len(r.Chapters))
}

func finishMessage(r generation.Result) string {
	if len(r.FailedIndices) == 0 {
		return progressMessage(r)
	}
	failed := make([]string, 0, len(r.FailedIndices))
	for _, i := range r.FailedIndices {
		failed = append(failed, fmt.Sprint(i+1))
	}
	return progressMessage(r) + "; failed: " + strings.Join(failed, ", ")
}
