package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/realtime"
	"github.com/minischools/academy-backend/internal/realtime/bus"
)

type JobNotifier interface {
	JobCreated(creatorID uuid.UUID, job *types.JobRun)
	JobProgress(creatorID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(creatorID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(creatorID uuid.UUID, job *types.JobRun)
	JobCanceled(creatorID uuid.UUID, job *types.JobRun)
	ChapterCompleted(creatorID uuid.UUID, job *types.JobRun, index int, chapterHTML string)
	ChapterFailed(creatorID uuid.UUID, job *types.JobRun, index int, message string)
}

const publishTimeout = 3 * time.Second

type jobNotifier struct {
	log *logger.Logger
	bus bus.Bus
}

// NewJobNotifier publishes job events on b. The app forwards bus messages
// into the SSE hub.
func NewJobNotifier(baseLog *logger.Logger, b bus.Bus) JobNotifier {
	return &jobNotifier{log: baseLog.With("service", "JobNotifier"), bus: b}
}

func (n *jobNotifier) publish(creatorID uuid.UUID, event realtime.SSEEvent, data map[string]any) {
	if n.bus == nil || creatorID == uuid.Nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	msg := realtime.SSEMessage{Channel: realtime.CreatorChannel(creatorID), Event: event, Data: data}
	if err := n.bus.Publish(ctx, msg); err != nil {
		n.log.Warn("SSE publish failed", "event", event, "error", err)
	}
}

func (n *jobNotifier) JobCreated(creatorID uuid.UUID, job *types.JobRun) {
	n.publish(creatorID, realtime.SSEEventJobCreated, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(creatorID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	n.publish(creatorID, realtime.SSEEventJobProgress, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(creatorID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.publish(creatorID, realtime.SSEEventJobFailed, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"error":    errorMessage,
	})
}

func (n *jobNotifier) JobDone(creatorID uuid.UUID, job *types.JobRun) {
	n.publish(creatorID, realtime.SSEEventJobDone, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"status":   job.Status,
		"job":      job,
	})
}

func (n *jobNotifier) JobCanceled(creatorID uuid.UUID, job *types.JobRun) {
	n.publish(creatorID, realtime.SSEEventJobCanceled, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"job":      job,
	})
}

func (n *jobNotifier) ChapterCompleted(creatorID uuid.UUID, job *types.JobRun, index int, chapterHTML string) {
	n.publish(creatorID, realtime.SSEEventChapterCompleted, map[string]any{
		"job_id":  job.ID,
		"index":   index,
		"chapter": chapterHTML,
	})
}

func (n *jobNotifier) ChapterFailed(creatorID uuid.UUID, job *types.JobRun, index int, message string) {
	n.publish(creatorID, realtime.SSEEventChapterFailed, map[string]any{
		"job_id":  job.ID,
		"index":   index,
		"message": message,
	})
}

// ContentNotifier tells a creator's other open sessions that an item changed.
type ContentNotifier interface {
	ContentUpdated(creatorID, itemID uuid.UUID, contentType string)
}

func NewContentNotifier(baseLog *logger.Logger, b bus.Bus) ContentNotifier {
	return &jobNotifier{log: baseLog.With("service", "ContentNotifier"), bus: b}
}

func (n *jobNotifier) ContentUpdated(creatorID, itemID uuid.UUID, contentType string) {
	n.publish(creatorID, realtime.SSEEventContentUpdated, map[string]any{
		"content_id": itemID,
		"type":       contentType,
	})
}
