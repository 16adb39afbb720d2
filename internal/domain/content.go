package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ContentTypeBook   = "book"
	ContentTypeCourse = "course"
)

// ValidContentType reports whether t is "book" or "course".
func ValidContentType(t string) bool {
	return t == ContentTypeBook || t == ContentTypeCourse
}

// ContentItem is a book or course owned by a single creator.
type ContentItem struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID uuid.UUID      `gorm:"type:uuid;not null;index" json:"creator_id"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Type      string         `gorm:"column:type;not null;index" json:"type"`
	Chapters  []*Chapter     `gorm:"foreignKey:ContentItemID" json:"chapters,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ContentItem) TableName() string { return "content_item" }

func (c *ContentItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CoverChapter returns the cover chapter, if any.
func (c *ContentItem) CoverChapter() *Chapter {
	for _, ch := range c.Chapters {
		if ch != nil && ch.Kind == ChapterKindCover {
			return ch
		}
	}
	return nil
}
