package app

import (
	"gorm.io/gorm"

	apphttp "github.com/minischools/academy-backend/internal/http"
	httpH "github.com/minischools/academy-backend/internal/http/handlers"
	httpMW "github.com/minischools/academy-backend/internal/http/middleware"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Content    *httpH.ContentHandler
	Shared     *httpH.SharedHandler
	Generation *httpH.GenerationHandler
	Quiz       *httpH.QuizHandler
	Media      *httpH.MediaHandler
	Export     *httpH.ExportHandler
	Realtime   *httpH.RealtimeHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireHandlers(db *gorm.DB, log *logger.Logger, services Services, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Content:    httpH.NewContentHandler(log, services.Content, services.ContentNotifier),
		Shared:     httpH.NewSharedHandler(services.Content, services.Export),
		Generation: httpH.NewGenerationHandler(services.Generation),
		Quiz:       httpH.NewQuizHandler(services.Quiz),
		Media:      httpH.NewMediaHandler(services.Cover, services.Narration),
		Export:     httpH.NewExportHandler(services.Export),
		Realtime:   httpH.NewRealtimeHandler(log, sseHub),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *apphttp.Server {
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:               log,
		ServiceName:       cfg.ServiceName,
		AuthMiddleware:    middleware.Auth,
		HealthHandler:     handlers.Health,
		ContentHandler:    handlers.Content,
		SharedHandler:     handlers.Shared,
		GenerationHandler: handlers.Generation,
		QuizHandler:       handlers.Quiz,
		MediaHandler:      handlers.Media,
		ExportHandler:     handlers.Export,
		RealtimeHandler:   handlers.Realtime,
	})
}
