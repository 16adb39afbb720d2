package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/minischools/academy-backend/internal/data/repos"
	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/jobs/runtime"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/envutil"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/services"
)

type Config struct {
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	StaleRunning      time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:       envutil.Int("WORKER_CONCURRENCY", 4),
		PollInterval:      envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
		HeartbeatInterval: envutil.Duration("WORKER_HEARTBEAT_INTERVAL", 15*time.Second),
		MaxAttempts:       envutil.Int("JOB_MAX_ATTEMPTS", 3),
		RetryDelay:        envutil.Duration("JOB_RETRY_DELAY", 30*time.Second),
		StaleRunning:      envutil.Duration("JOB_STALE_RUNNING", 10*time.Minute),
	}
}

func (c Config) normalized() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 10 * time.Minute
	}
	return c
}

// Worker polls job_run for runnable jobs and dispatches them to handlers.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	cfg      Config
	wg       sync.WaitGroup
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg.normalized(),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

// Wait blocks until every loop started by Start has returned.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			for w.RunOnce(ctx, workerID) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was run.
func (w *Worker) RunOnce(ctx context.Context, workerID int) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		}
		return false
	}
	if job == nil {
		return false
	}
	w.run(ctx, workerID, job)
	return true
}

func (w *Worker) run(ctx context.Context, workerID int, job *types.JobRun) {
	log := w.log.With("worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		log.Warn("No handler registered for job_type")
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		return
	}

	stop := w.heartbeat(ctx, job)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job handler panic", "panic", r)
			jc.Fail("panic", &panicError{Val: r})
		}
	}()

	start := time.Now()
	if runErr := h.Run(jc); runErr != nil {
		log.Warn("Job handler returned error", "error", runErr)
		jc.Fail("run", runErr)
		return
	}
	log.Info("Job handler finished", "status", jc.Job.Status, "duration_ms", time.Since(start).Milliseconds())
}

// heartbeat keeps a running job from being reclaimed as stale.
func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: hbCtx}, job.ID); err != nil && hbCtx.Err() == nil {
					w.log.Warn("Job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
