package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/minischools/academy-backend/internal/jobs/pipeline/chapter_generate"
	jobruntime "github.com/minischools/academy-backend/internal/jobs/runtime"
	"github.com/minischools/academy-backend/internal/jobs/worker"
	"github.com/minischools/academy-backend/internal/modules/generation"
	"github.com/minischools/academy-backend/internal/modules/publish"
	"github.com/minischools/academy-backend/internal/platform/httpx"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/services"
)

type Services struct {
	Auth            services.AuthService
	ContentNotifier services.ContentNotifier
	JobNotifier     services.JobNotifier

	Content    services.ContentService
	Generation services.GenerationService
	Quiz       services.QuizService
	Cover      services.CoverService
	Narration  services.NarrationService
	Export     services.ExportService

	// JobWorker is nil when no chapter source is configured.
	JobWorker *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	auth, err := services.NewAuthService(log, cfg.Auth)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}
	jobNotifier := services.NewJobNotifier(log, clients.SSEBus)
	contentNotifier := services.NewContentNotifier(log, clients.SSEBus)

	content := services.NewContentService(db, log, reposet.ContentItem, reposet.Chapter)
	gen := services.NewGenerationService(db, log, reposet.JobRun, content, jobNotifier)
	quiz := services.NewQuizService(log, clients.AI, content, reposet.Chapter, reposet.ContentItem)
	cover := services.NewCoverService(db, log, clients.AI, clients.Bucket, content, reposet.Chapter, reposet.ContentItem)
	narration := services.NewNarrationService(log, clients.AI, clients.Bucket, content, reposet.Chapter, cfg.OpenAI.TTSVoice)
	exporter := publish.NewExporter(log, publish.NewHTTPImageFetcher(cfg.ImageFetchTimeout))
	export := services.NewExportService(log, content, exporter, clients.Bucket)

	out := Services{
		Auth:            auth,
		ContentNotifier: contentNotifier,
		JobNotifier:     jobNotifier,
		Content:         content,
		Generation:      gen,
		Quiz:            quiz,
		Cover:           cover,
		Narration:       narration,
		Export:          export,
	}

	source, err := wireChapterSource(log, cfg, clients)
	if err != nil {
		return Services{}, err
	}
	if source == nil {
		log.Warn("No chapter source configured; generation jobs will stay queued", "generation_mode", cfg.GenerationMode)
		return out, nil
	}

	registry := jobruntime.NewRegistry()
	generator := generation.NewGenerator(log, source, cfg.Generation)
	if err := registry.Register(chapter_generate.New(log, generator)); err != nil {
		return Services{}, fmt.Errorf("register %s: %w", chapter_generate.JobType, err)
	}
	out.JobWorker = worker.NewWorker(db, log, reposet.JobRun, registry, jobNotifier, cfg.Worker)
	return out, nil
}

func wireChapterSource(log *logger.Logger, cfg Config, clients Clients) (generation.ChapterSource, error) {
	switch cfg.GenerationMode {
	case GenerationModeOpenAI, "":
		if clients.AI == nil {
			return nil, nil
		}
		return generation.NewOpenAISource(clients.AI), nil
	case GenerationModeRemote:
		if cfg.GenerationBackendURL == "" {
			return nil, fmt.Errorf("GENERATION_MODE=remote requires GENERATION_BACKEND_URL")
		}
		log.Info("Chapters are generated by a remote backend", "url", cfg.GenerationBackendURL)
		client := httpx.NewEnvelopeClient(cfg.GenerationBackendURL, cfg.GenerationBackendTTL)
		return generation.NewRemoteSource(client, generation.DefaultRemotePath), nil
	default:
		return nil, fmt.Errorf("unknown GENERATION_MODE %q", cfg.GenerationMode)
	}
}
