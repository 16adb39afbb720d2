package app

import (
	"gorm.io/gorm"

	"github.com/minischools/academy-backend/internal/data/repos"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

type Repos struct {
	ContentItem repos.ContentItemRepo
	Chapter     repos.ChapterRepo
	JobRun      repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		ContentItem: repos.NewContentItemRepo(db, log),
		Chapter:     repos.NewChapterRepo(db, log),
		JobRun:      repos.NewJobRunRepo(db, log),
	}
}
