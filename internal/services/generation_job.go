package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/minischools/academy-backend/internal/data/repos"
	types "github.com/minischools/academy-backend/internal/domain"
	contentmod "github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/modules/generation"
	"github.com/minischools/academy-backend/internal/platform/apierr"
	"github.com/minischools/academy-backend/internal/platform/ctxutil"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

// ChapterGenerationJobType must match the registered pipeline type.
const ChapterGenerationJobType = "chapter_generation"

const maxChapterTitles = 100

var errJobNotFound = errors.New("generation job not found")

// GenerationJob is the client view of a generation run.
type GenerationJob struct {
	ID            uuid.UUID          `json:"id"`
	Status        string             `json:"status"`
	Stage         string             `json:"stage"`
	Progress      int                `json:"progress"`
	Message       string             `json:"message,omitempty"`
	Error         string             `json:"error,omitempty"`
	Request       generation.Request `json:"request"`
	Result        generation.Result  `json:"result"`
	ContentItemID *uuid.UUID         `json:"content_item_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type SaveGenerationInput struct {
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
}

type GenerationService interface {
	Enqueue(dbc dbctx.Context, creatorID uuid.UUID, req generation.Request) (*GenerationJob, error)
	Get(dbc dbctx.Context, creatorID, jobID uuid.UUID) (*GenerationJob, error)
	Cancel(dbc dbctx.Context, creatorID, jobID uuid.UUID) (*GenerationJob, error)
	SaveAsContent(dbc dbctx.Context, creatorID, jobID uuid.UUID, in SaveGenerationInput) (*types.ContentItem, error)
}

type generationService struct {
	db      *gorm.DB
	log     *logger.Logger
	jobs    repos.JobRunRepo
	content ContentService
	notify  JobNotifier
}

func NewGenerationService(db *gorm.DB, baseLog *logger.Logger, jobs repos.JobRunRepo, content ContentService, notify JobNotifier) GenerationService {
	return &generationService{
		db:      db,
		log:     baseLog.With("service", "GenerationService"),
		jobs:    jobs,
		content: content,
		notify:  notify,
	}
}

func normalizeRequest(req generation.Request) (generation.Request, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Summary = strings.TrimSpace(req.Summary)
	req.ContentDetails = strings.TrimSpace(req.ContentDetails)
	req.ContentType = strings.TrimSpace(req.ContentType)
	req.Completed = nil
	if req.ContentType == "" {
		req.ContentType = types.ContentTypeBook
	}
	if !types.ValidContentType(req.ContentType) {
		return req, apierr.BadRequest("invalid_content_type", fmt.Errorf("content type must be book or course, got %q", req.ContentType))
	}
	if req.Title == "" {
		return req, apierr.BadRequest("missing_title", errors.New("title is required"))
	}
	titles := make([]string, 0, len(req.ChapterTitles))
	for _, t := range req.ChapterTitles {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		return req, apierr.BadRequest("missing_chapters", generation.ErrNoChapters)
	}
	if len(titles) > maxChapterTitles {
		return req, apierr.BadRequest("too_many_chapters", fmt.Errorf("at most %d chapters", maxChapterTitles))
	}
	req.ChapterTitles = titles
	return req, nil
}

func (s *generationService) Enqueue(dbc dbctx.Context, creatorID uuid.UUID, req generation.Request) (*GenerationJob, error) {
	if creatorID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
	}
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"title":           req.Title,
		"summary":         req.Summary,
		"chapter_titles":  req.ChapterTitles,
		"content_details": req.ContentDetails,
		"content_type":    req.ContentType,
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			payload["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			payload["request_id"] = td.RequestID
		}
	}
	raw, _ := json.Marshal(payload)
	initial, _ := json.Marshal(generation.Result{
		Chapters:         make([]string, len(req.ChapterTitles)),
		CompletedIndices: []int{},
		FailedIndices:    []int{},
	})

	job := &types.JobRun{
		CreatorID: creatorID,
		JobType:   ChapterGenerationJobType,
		Status:    types.JobStatusQueued,
		Stage:     "queued",
		Message:   "Queued",
		Payload:   datatypes.JSON(raw),
		Result:    datatypes.JSON(initial),
	}
	if _, err := s.jobs.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.Tx}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if s.notify != nil {
		s.notify.JobCreated(creatorID, job)
	}
	s.log.Info("generation queued", "job_id", job.ID, "chapters", len(req.ChapterTitles), "creator_id", creatorID)
	return viewOf(job), nil
}

func viewOf(job *types.JobRun) *GenerationJob {
	v := &GenerationJob{
		ID:            job.ID,
		Status:        job.Status,
		Stage:         job.Stage,
		Progress:      job.Progress,
		Message:       job.Message,
		Error:         job.Error,
		ContentItemID: job.EntityID,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
	_ = json.Unmarshal(job.Payload, &v.Request)
	if len(job.Result) > 0 {
		_ = json.Unmarshal(job.Result, &v.Result)
	}
	if v.Result.Chapters == nil {
		v.Result.Chapters = make([]string, len(v.Request.ChapterTitles))
	}
	if v.Result.CompletedIndices == nil {
		v.Result.CompletedIndices = []int{}
	}
	if v.Result.FailedIndices == nil {
		v.Result.FailedIndices = []int{}
	}
	return v
}

func (s *generationService) owned(dbc dbctx.Context, creatorID, jobID uuid.UUID) (*types.JobRun, error) {
	job, err := s.jobs.GetByID(dbc, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil || job.CreatorID != creatorID || job.JobType != ChapterGenerationJobType {
		return nil, apierr.NotFound("job_not_found", errJobNotFound)
	}
	return job, nil
}

func (s *generationService) Get(dbc dbctx.Context, creatorID, jobID uuid.UUID) (*GenerationJob, error) {
	job, err := s.owned(dbc, creatorID, jobID)
	if err != nil {
		return nil, err
	}
	return viewOf(job), nil
}

// Cancel is idempotent. A terminal job is returned unchanged.
func (s *generationService) Cancel(dbc dbctx.Context, creatorID, jobID uuid.UUID) (*GenerationJob, error) {
	job, err := s.owned(dbc, creatorID, jobID)
	if err != nil {
		return nil, err
	}
	if types.JobStatusTerminal(job.Status) {
		return viewOf(job), nil
	}
	ok, err := s.jobs.UpdateFieldsIfStatus(dbc, jobID,
		[]string{types.JobStatusQueued, types.JobStatusRunning, types.JobStatusFailed},
		map[string]interface{}{
			"status":  types.JobStatusCanceled,
			"message": "Canceled",
		})
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}
	if job, err = s.owned(dbc, creatorID, jobID); err != nil {
		return nil, err
	}
	if ok && s.notify != nil {
		s.notify.JobCanceled(creatorID, job)
	}
	return viewOf(job), nil
}

// SaveAsContent turns a finished run into a content item. Chapters that
// failed become title-only chapters so positions line up with the titles.
// Saving the same job twice returns the first item.
func (s *generationService) SaveAsContent(dbc dbctx.Context, creatorID, jobID uuid.UUID, in SaveGenerationInput) (*types.ContentItem, error) {
	var out *types.ContentItem
	err := s.db.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		job, err := s.owned(inner, creatorID, jobID)
		if err != nil {
			return err
		}
		if job.EntityID != nil && *job.EntityID != uuid.Nil {
			item, err := s.content.GetWithChapters(inner, creatorID, *job.EntityID)
			if err == nil {
				out = item
				return nil
			}
			var ae *apierr.Error
			if !errors.As(err, &ae) || ae.Status != http.StatusNotFound {
				return err
			}
		}
		v := viewOf(job)
		// A canceled run is saved with what it completed before the stop.
		if !v.Result.SaveEnabled && !types.JobStatusTerminal(job.Status) {
			return apierr.New(http.StatusConflict, "generation_not_finished", errors.New("generation has not finished"))
		}

		title := strings.TrimSpace(in.Title)
		if title == "" {
			title = v.Request.Title
		}
		contentType := strings.TrimSpace(in.ContentType)
		if contentType == "" {
			contentType = v.Request.ContentType
		}

		chapters := make([]*types.Chapter, 0, len(v.Request.ChapterTitles))
		for i, chTitle := range v.Request.ChapterTitles {
			html := ""
			if i < len(v.Result.Chapters) {
				html = v.Result.Chapters[i]
			}
			if strings.TrimSpace(html) == "" {
				html = contentmod.ProseChapter(chTitle, "")
			}
			chapters = append(chapters, contentmod.DecodeChapter(html))
		}

		item, err := s.content.CreateFromChapters(inner, creatorID, contentType, title, chapters)
		if err != nil {
			return err
		}
		if err := s.jobs.UpdateFields(inner, job.ID, map[string]interface{}{
			"entity_type": "content_item",
			"entity_id":   item.ID,
		}); err != nil {
			return fmt.Errorf("link job: %w", err)
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
