package app

import (
	"strings"
	"time"

	"github.com/minischools/academy-backend/internal/db"
	"github.com/minischools/academy-backend/internal/jobs/worker"
	"github.com/minischools/academy-backend/internal/modules/generation"
	"github.com/minischools/academy-backend/internal/observability"
	"github.com/minischools/academy-backend/internal/platform/envutil"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/platform/openai"
	"github.com/minischools/academy-backend/internal/services"
)

const (
	GenerationModeOpenAI = "openai"
	GenerationModeRemote = "remote"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string
	Version     string

	GenerationMode       string
	GenerationBackendURL string
	GenerationBackendTTL time.Duration
	ImageFetchTimeout    time.Duration

	DB         db.Config
	Auth       services.AuthConfig
	OpenAI     openai.Config
	Generation generation.Config
	Worker     worker.Config
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", observability.DefaultServiceName),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", ""),

		GenerationMode:       strings.ToLower(envutil.String("GENERATION_MODE", GenerationModeOpenAI)),
		GenerationBackendURL: envutil.String("GENERATION_BACKEND_URL", ""),
		GenerationBackendTTL: envutil.Duration("GENERATION_REQUEST_TIMEOUT", 5*time.Minute),
		ImageFetchTimeout:    envutil.Duration("EXPORT_IMAGE_TIMEOUT", 15*time.Second),

		DB:         db.ConfigFromEnv(),
		Auth:       services.AuthConfigFromEnv(),
		OpenAI:     openai.ConfigFromEnv(),
		Generation: generation.ConfigFromEnv(),
		Worker:     worker.ConfigFromEnv(),
	}
	log.Info("Configuration loaded",
		"port", cfg.Port,
		"db_driver", cfg.DB.Driver,
		"generation_mode", cfg.GenerationMode,
		"generation_max_attempts", cfg.Generation.MaxAttempts,
		"worker_concurrency", cfg.Worker.Concurrency,
	)
	return cfg
}
