package repos

import (
	"gorm.io/gorm"

	"github.com/minischools/academy-backend/internal/data/repos/content"
	"github.com/minischools/academy-backend/internal/data/repos/jobs"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

type ContentItemRepo = content.ContentItemRepo
type ChapterRepo = content.ChapterRepo
type JobRunRepo = jobs.JobRunRepo

func NewContentItemRepo(db *gorm.DB, baseLog *logger.Logger) ContentItemRepo {
	return content.NewContentItemRepo(db, baseLog)
}

func NewChapterRepo(db *gorm.DB, baseLog *logger.Logger) ChapterRepo {
	return content.NewChapterRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
