package chapter_generate

import (
	"github.com/minischools/academy-backend/internal/modules/generation"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

const JobType = "chapter_generation"

type Pipeline struct {
	log *logger.Logger
	gen *generation.Generator
}

func New(baseLog *logger.Logger, gen *generation.Generator) *Pipeline {
	return &Pipeline{
		log: baseLog.With("job", JobType),
		gen: gen,
	}
}

func (p *Pipeline) Type() string { return JobType }
