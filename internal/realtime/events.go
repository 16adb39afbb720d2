package realtime

import "github.com/google/uuid"

type SSEEvent string

const (
	SSEEventJobCreated       SSEEvent = "JobCreated"
	SSEEventJobProgress      SSEEvent = "JobProgress"
	SSEEventChapterCompleted SSEEvent = "ChapterCompleted"
	SSEEventChapterFailed    SSEEvent = "ChapterFailed"
	SSEEventJobDone          SSEEvent = "JobDone"
	SSEEventJobCanceled      SSEEvent = "JobCanceled"
	SSEEventJobFailed        SSEEvent = "JobFailed"
	SSEEventContentUpdated   SSEEvent = "ContentUpdated"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// CreatorChannel is the channel every stream of creatorID is subscribed to.
func CreatorChannel(creatorID uuid.UUID) string {
	return "creator:" + creatorID.String()
}
