package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/minischools/academy-backend/internal/db"
	apphttp "github.com/minischools/academy-backend/internal/http"
	"github.com/minischools/academy-backend/internal/observability"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *apphttp.Server
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	SSEHub   *realtime.SSEHub

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	theDB, err := db.Open(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	ssehub := realtime.NewSSEHub(log)
	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(theDB, log, serviceset, ssehub)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, cfg, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       server,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		SSEHub:       ssehub,
		otelShutdown: otelShutdown,
	}, nil
}

// Start runs the SSE forwarder and the job worker until Shutdown.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.Clients.SSEBus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
		return fmt.Errorf("start SSE forwarder: %w", err)
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return errors.New("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Shutdown stops accepting requests, closes SSE streams, then waits for the
// worker to finish in-flight jobs.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.SSEHub.CloseAll()
	err := a.Server.Shutdown(ctx)
	if err != nil {
		a.Log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.JobWorker != nil {
		done := make(chan struct{})
		go func() {
			a.Services.JobWorker.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.Log.Warn("Job worker did not stop before deadline")
		}
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		if oerr := a.otelShutdown(ctx); oerr != nil {
			a.Log.Warn("otel shutdown failed", "error", oerr)
		}
	}
	if sqlDB, dberr := a.DB.DB(); dberr == nil {
		_ = sqlDB.Close()
	}
	a.Log.Sync()
	return err
}
