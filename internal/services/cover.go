package services

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minischools/academy-backend/internal/data/repos"
	types "github.com/minischools/academy-backend/internal/domain"
	contentmod "github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/modules/publish"
	"github.com/minischools/academy-backend/internal/platform/apierr"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/gcp"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/platform/openai"
	"github.com/minischools/academy-backend/internal/prompts"
)

var errStorageUnavailable = errors.New("object storage not configured")

type CoverService interface {
	Generate(dbc dbctx.Context, creatorID, itemID uuid.UUID, prompt string) (*types.Chapter, error)
	Set(dbc dbctx.Context, creatorID, itemID uuid.UUID, imageURL string) (*types.Chapter, error)
}

type coverService struct {
	db       *gorm.DB
	log      *logger.Logger
	ai       openai.Client
	bucket   gcp.BucketService
	content  ContentService
	chapters repos.ChapterRepo
	items    repos.ContentItemRepo
}

// NewCoverService accepts a nil bucket; Generate then reports 503.
func NewCoverService(db *gorm.DB, baseLog *logger.Logger, ai openai.Client, bucket gcp.BucketService, content ContentService, chapters repos.ChapterRepo, items repos.ContentItemRepo) CoverService {
	return &coverService{
		db:       db,
		log:      baseLog.With("service", "CoverService"),
		ai:       ai,
		bucket:   bucket,
		content:  content,
		chapters: chapters,
		items:    items,
	}
}

type coverPromptInput struct {
	Title  string
	Prompt string
}

func imageExt(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func (s *coverService) Generate(dbc dbctx.Context, creatorID, itemID uuid.UUID, prompt string) (*types.Chapter, error) {
	if s.bucket == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "storage_unavailable", errStorageUnavailable)
	}
	if s.ai == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "ai_unavailable", errors.New("AI provider not configured"))
	}
	item, err := s.content.GetWithChapters(dbc, creatorID, itemID)
	if err != nil {
		return nil, err
	}
	tpl, err := prompts.Get(prompts.CoverImage)
	if err != nil {
		return nil, err
	}
	img, err := s.ai.GenerateImage(dbc.Ctx, tpl.User(coverPromptInput{Title: item.Title, Prompt: strings.TrimSpace(prompt)}))
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "cover_generation_failed", err)
	}
	key := fmt.Sprintf("content/%s/cover-%s%s", item.ID, uuid.NewString(), imageExt(img.MimeType))
	if err := s.bucket.UploadFile(dbc.Ctx, gcp.BucketCategoryCover, key, bytes.NewReader(img.Bytes)); err != nil {
		return nil, fmt.Errorf("upload cover: %w", err)
	}
	s.log.Info("cover generated", "content_id", item.ID, "key", key)
	return s.Set(dbc, creatorID, itemID, s.bucket.GetPublicURL(gcp.BucketCategoryCover, key))
}

// Set makes imageURL the single cover of the item, at position 0.
func (s *coverService) Set(dbc dbctx.Context, creatorID, itemID uuid.UUID, imageURL string) (*types.Chapter, error) {
	imageURL = strings.TrimSpace(imageURL)
	if publish.SafeURL(imageURL) == "" {
		return nil, apierr.BadRequest("invalid_image_url", fmt.Errorf("unsupported image url %q", imageURL))
	}
	var cover *types.Chapter
	tx := dbc.Tx
	if tx == nil {
		tx = s.db
	}
	err := tx.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		item, err := s.content.GetWithChapters(inner, creatorID, itemID)
		if err != nil {
			return err
		}
		var rest []*types.Chapter
		var extra []uuid.UUID
		for _, ch := range item.Chapters {
			if ch.Kind != types.ChapterKindCover {
				rest = append(rest, ch)
			} else if cover == nil {
				cover = ch
			} else {
				extra = append(extra, ch.ID)
			}
		}
		if err := s.chapters.SoftDeleteByIDs(inner, extra); err != nil {
			return fmt.Errorf("drop extra covers: %w", err)
		}
		if cover == nil {
			cover = &types.Chapter{ContentItemID: item.ID, Kind: types.ChapterKindCover}
			cover.CoverImageURL = imageURL
			cover.BodyHTML = contentmod.EmbedCover(imageURL)
			if _, err := s.chapters.Create(inner, []*types.Chapter{cover}); err != nil {
				return fmt.Errorf("create cover: %w", err)
			}
		} else {
			cover.CoverImageURL = imageURL
			cover.BodyHTML = contentmod.EmbedCover(imageURL)
			if err := s.chapters.Save(inner, cover); err != nil {
				return fmt.Errorf("save cover: %w", err)
			}
		}
		ids := []uuid.UUID{cover.ID}
		for _, ch := range rest {
			ids = append(ids, ch.ID)
		}
		if err := s.chapters.SetPositions(inner, item.ID, ids); err != nil {
			return err
		}
		cover.Position = 0
		return s.items.UpdateFields(inner, item.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return cover, nil
}
