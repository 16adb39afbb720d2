package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/minischools/academy-backend/internal/http/handlers"
	httpMW "github.com/minischools/academy-backend/internal/http/middleware"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler     *httpH.HealthHandler
	ContentHandler    *httpH.ContentHandler
	SharedHandler     *httpH.SharedHandler
	GenerationHandler *httpH.GenerationHandler
	QuizHandler       *httpH.QuizHandler
	MediaHandler      *httpH.MediaHandler
	ExportHandler     *httpH.ExportHandler
	RealtimeHandler   *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(httpMW.Tracing(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Shared (public)
	if cfg.SharedHandler != nil {
		r.GET("/shared/:type/:id", cfg.SharedHandler.Get)
		r.GET("/shared/:type/:id/html", cfg.SharedHandler.HTML)
	}

	protected := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		// Persistence
		if cfg.ContentHandler != nil {
			protected.POST("/addCourse/:type", cfg.ContentHandler.AddCourse)
			protected.POST("/updateCourse/:id/:type", cfg.ContentHandler.UpdateCourse)
			protected.GET("/getCourseById/:id/:type", cfg.ContentHandler.GetCourseByID)
			protected.GET("/getBookById/:id", cfg.ContentHandler.GetBookByID)

			protected.GET("/content", cfg.ContentHandler.List)
			protected.DELETE("/content/:id", cfg.ContentHandler.Delete)
			protected.GET("/content/:id/chapters", cfg.ContentHandler.Chapters)
			protected.POST("/content/:id/chapters/order", cfg.ContentHandler.ReorderChapters)
			protected.DELETE("/chapters/:id", cfg.ContentHandler.DeleteChapter)
		}

		// Generation
		if cfg.GenerationHandler != nil {
			protected.POST("/generation/jobs", cfg.GenerationHandler.Create)
			protected.GET("/generation/jobs/:id", cfg.GenerationHandler.Get)
			protected.POST("/generation/jobs/:id/cancel", cfg.GenerationHandler.Cancel)
			protected.POST("/generation/jobs/:id/save", cfg.GenerationHandler.Save)
		}

		// Quiz
		if cfg.QuizHandler != nil {
			protected.POST("/chapters/:id/quiz", cfg.QuizHandler.Generate)
			protected.POST("/chapters/:id/quiz/questions/:index/regenerate", cfg.QuizHandler.Regenerate)
			protected.DELETE("/chapters/:id/quiz", cfg.QuizHandler.Remove)
		}

		// Media
		if cfg.MediaHandler != nil {
			protected.POST("/content/:id/cover", cfg.MediaHandler.GenerateCover)
			protected.PUT("/content/:id/cover", cfg.MediaHandler.SetCover)
			protected.POST("/chapters/:id/narration", cfg.MediaHandler.Narrate)
		}

		// Export
		if cfg.ExportHandler != nil {
			protected.GET("/content/:id/export/:format", cfg.ExportHandler.Download)
			protected.POST("/content/:id/export/:format/store", cfg.ExportHandler.Store)
		}
	}

	return r
}
