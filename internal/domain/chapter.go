package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChapterKind tags what a chapter carries.
type ChapterKind string

const (
	ChapterKindProse         ChapterKind = "prose"
	ChapterKindProseWithQuiz ChapterKind = "prose_with_quiz"
	ChapterKindCover         ChapterKind = "cover"
)

// Chapter is one unit of a content item. ID is assigned once and never
// reused; Position is the display order.
//
// Prose chapters use Title and BodyHTML. ProseWithQuiz chapters also carry
// Quiz. Cover chapters only carry CoverImageURL.
type Chapter struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ContentItemID uuid.UUID      `gorm:"type:uuid;not null;index" json:"content_item_id"`
	Position      int            `gorm:"column:position;not null;default:0;index" json:"position"`
	Kind          ChapterKind    `gorm:"column:kind;not null;default:prose" json:"kind"`
	Title         string         `gorm:"column:title" json:"title"`
	BodyHTML      string         `gorm:"column:body_html" json:"body_html"`
	Quiz          datatypes.JSON `gorm:"column:quiz" json:"quiz,omitempty"`
	CoverImageURL string         `gorm:"column:cover_image_url" json:"cover_image_url,omitempty"`
	NarrationURL  string         `gorm:"column:narration_url" json:"narration_url,omitempty"`
	NarrationKey  string         `gorm:"column:narration_key" json:"-"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Chapter) TableName() string { return "chapter" }

func (c *Chapter) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// QuizPayload decodes the stored quiz. A missing or unreadable quiz is nil.
func (c *Chapter) QuizPayload() *QuizPayload {
	if c == nil || len(c.Quiz) == 0 {
		return nil
	}
	var q QuizPayload
	if err := json.Unmarshal(c.Quiz, &q); err != nil {
		return nil
	}
	if q.EditorHTML == "" && q.SharedHTML == "" && len(q.Questions) == 0 {
		return nil
	}
	return &q
}

// SetQuiz stores q and moves the chapter to the matching kind. A nil quiz
// clears it. Cover chapters never carry a quiz.
func (c *Chapter) SetQuiz(q *QuizPayload) {
	if c.Kind == ChapterKindCover {
		return
	}
	if q == nil {
		c.Quiz = nil
		c.Kind = ChapterKindProse
		return
	}
	b, _ := json.Marshal(q)
	c.Quiz = datatypes.JSON(b)
	c.Kind = ChapterKindProseWithQuiz
}

// IsEmpty reports a prose chapter that has no generated body.
func (c *Chapter) IsEmpty() bool {
	return c.Kind != ChapterKindCover && c.BodyHTML == "" && c.QuizPayload() == nil
}
