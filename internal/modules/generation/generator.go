package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minischools/academy-backend/internal/platform/envutil"
	"github.com/minischools/academy-backend/internal/platform/httpx"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

var (
	ErrNoChapters   = errors.New("generation: at least one chapter title is required")
	ErrEmptyChapter = errors.New("generation: source returned empty chapter")
)

// Request describes one generation run.
type Request struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	ChapterTitles  []string `json:"chapter_titles"`
	ContentDetails string   `json:"content_details,omitempty"`
	ContentType    string   `json:"content_type,omitempty"`
	// Completed holds chapters from an earlier interrupted run. Non-empty
	// slots are kept and not requested again.
	Completed []string `json:"completed,omitempty"`
}

// ChapterRequest is the per-chapter payload sent to a ChapterSource.
type ChapterRequest struct {
	ChapterNo      int    `json:"chapterNo"`
	Chapter        string `json:"chapter"`
	Title          string `json:"title"`
	Summary        string `json:"summary"`
	ContentDetails string `json:"contentDetails"`
	ContentType    string `json:"contentType,omitempty"`
}

// ChapterSource produces the HTML for one chapter.
type ChapterSource interface {
	GenerateChapter(ctx context.Context, req ChapterRequest) (string, error)
}

// Result is a snapshot of a run. Chapters has one slot per chapter title and
// an empty string marks a chapter that is pending or failed.
type Result struct {
	Chapters         []string `json:"chapters"`
	CompletedCount   int      `json:"completed_count"`
	CompletedIndices []int    `json:"completed_indices"`
	FailedIndices    []int    `json:"failed_indices"`
	Cancelled        bool     `json:"cancelled"`
	SaveEnabled      bool     `json:"save_enabled"`
}

func (r Result) clone() Result {
	out := r
	out.Chapters = append([]string(nil), r.Chapters...)
	out.CompletedIndices = append([]int{}, r.CompletedIndices...)
	out.FailedIndices = append([]int{}, r.FailedIndices...)
	return out
}

// Hooks observe a run. All fields are optional. Snapshots passed to hooks
// are copies and may be retained.
type Hooks struct {
	// Cancelled is polled before each chapter and after every response.
	Cancelled       func(ctx context.Context) bool
	OnChapterDone   func(index int, snapshot Result)
	OnChapterFailed func(index int, message string, err error, snapshot Result)
	OnCancelled     func(snapshot Result)
}

type Config struct {
	MaxAttempts    int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		MaxAttempts:    envutil.Int("GENERATION_MAX_ATTEMPTS", 5),
		RetryDelay:     envutil.Duration("GENERATION_RETRY_DELAY", 0),
		AttemptTimeout: envutil.Duration("GENERATION_REQUEST_TIMEOUT", 5*time.Minute),
	}
}

type Generator struct {
	log    *logger.Logger
	source ChapterSource
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewGenerator(log *logger.Logger, source ChapterSource, cfg Config) *Generator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Generator{
		log:    log.With("component", "ChapterGenerator"),
		source: source,
		cfg:    cfg,
		sleep:  httpx.Sleep,
	}
}

// FailureMessage is the user-facing notice for a chapter that exhausted its
// attempts. index is zero based.
func FailureMessage(index int) string {
	return fmt.Sprintf("Failed to generate Chapter %d", index+1)
}

// Run generates chapters strictly in order. A chapter that fails every
// attempt is left empty and the run moves on. The returned error is non-nil
// only for invalid requests or when ctx ends; the Result is valid either way.
func (g *Generator) Run(ctx context.Context, req Request, hooks Hooks) (Result, error) {
	n := len(req.ChapterTitles)
	res := Result{
		Chapters:         make([]string, n),
		CompletedIndices: []int{},
		FailedIndices:    []int{},
	}
	if n == 0 {
		return res, ErrNoChapters
	}
	for i := 0; i < n && i < len(req.Completed); i++ {
		if strings.TrimSpace(req.Completed[i]) != "" {
			res.Chapters[i] = req.Completed[i]
			res.CompletedCount++
			res.CompletedIndices = append(res.CompletedIndices, i)
		}
	}

	cancelled := func() bool {
		return hooks.Cancelled != nil && hooks.Cancelled(ctx)
	}
	stop := func() (Result, error) {
		res.Cancelled = true
		if hooks.OnCancelled != nil {
			hooks.OnCancelled(res.clone())
		}
		g.log.Info("generation cancelled", "completed", res.CompletedCount, "total", n)
		return res, nil
	}

	for i := 0; i < n; i++ {
		if res.Chapters[i] != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if cancelled() {
			return stop()
		}

		creq := ChapterRequest{
			ChapterNo:      i + 1,
			Chapter:        req.ChapterTitles[i],
			Title:          req.Title,
			Summary:        req.Summary,
			ContentDetails: req.ContentDetails,
			ContentType:    req.ContentType,
		}

		var (
			html    string
			lastErr error
			done    bool
		)
		for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
			html, lastErr = g.attempt(ctx, creq)
			if err := ctx.Err(); err != nil {
				return res, err
			}
			// A response that lands after a stop request is discarded.
			if cancelled() {
				return stop()
			}
			if lastErr == nil {
				done = true
				break
			}
			g.log.Warn("chapter attempt failed",
				"chapter_no", creq.ChapterNo,
				"attempt", attempt,
				"max_attempts", g.cfg.MaxAttempts,
				"error", lastErr,
			)
			if attempt < g.cfg.MaxAttempts && g.cfg.RetryDelay > 0 {
				if err := g.sleep(ctx, g.cfg.RetryDelay); err != nil {
					return res, err
				}
			}
		}

		if !done {
			res.FailedIndices = append(res.FailedIndices, i)
			msg := FailureMessage(i)
			g.log.Error(msg, "chapter_no", creq.ChapterNo, "error", lastErr)
			if hooks.OnChapterFailed != nil {
				hooks.OnChapterFailed(i, msg, lastErr, res.clone())
			}
			continue
		}

		next := append([]string(nil), res.Chapters...)
		next[i] = html
		res.Chapters = next
		res.CompletedCount++
		res.CompletedIndices = append(res.CompletedIndices, i)
		if hooks.OnChapterDone != nil {
			hooks.OnChapterDone(i, res.clone())
		}
	}

	res.SaveEnabled = true
	return res, nil
}

func (g *Generator) attempt(ctx context.Context, req ChapterRequest) (string, error) {
	actx := ctx
	if g.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()
	}
	html, err := g.source.GenerateChapter(actx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(html) == "" {
		return "", ErrEmptyChapter
	}
	return html, nil
}
