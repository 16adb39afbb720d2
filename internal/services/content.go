package services

import (
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
	"github.com/minischools/academy-backend/internal/platform/logger"
)

var (
	errContentNotFound = errors.New("content not found")
	errChapterNotFound = errors.New("chapter not found")
)

// LegacyContent is the persistence wire shape. Content is the JSON-stringified
// array of chapter HTML strings.
type LegacyContent struct {
	CreatorID   string `json:"creator_id"`
	CourseTitle string `json:"course_title"`
	Content     string `json:"content"`
}

// SharedContent is returned by the public shared view.
type SharedContent struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CourseType string `json:"courseType"`
}

type ContentService interface {
	AddLegacy(dbc dbctx.Context, creatorID uuid.UUID, contentType string, in LegacyContent) (*types.ContentItem, error)
	UpdateLegacy(dbc dbctx.Context, creatorID, id uuid.UUID, contentType string, in LegacyContent) (*types.ContentItem, error)
	GetLegacy(dbc dbctx.Context, creatorID, id uuid.UUID, contentType string) (*LegacyContent, error)
	List(dbc dbctx.Context, creatorID uuid.UUID, contentType string) ([]*types.ContentItem, error)
	Delete(dbc dbctx.Context, creatorID, id uuid.UUID) error
	GetWithChapters(dbc dbctx.Context, creatorID, id uuid.UUID) (*types.ContentItem, error)
	ReorderChapters(dbc dbctx.Context, creatorID, id uuid.UUID, orderedIDs []uuid.UUID) ([]*types.Chapter, error)
	DeleteChapter(dbc dbctx.Context, creatorID, chapterID uuid.UUID) error
	GetChapter(dbc dbctx.Context, creatorID, chapterID uuid.UUID) (*types.Chapter, error)
	CreateFromChapters(dbc dbctx.Context, creatorID uuid.UUID, contentType, title string, chapters []*types.Chapter) (*types.ContentItem, error)
	GetShared(dbc dbctx.Context, contentType string, id uuid.UUID) (*SharedContent, error)
}

type contentService struct {
	db       *gorm.DB
	log      *logger.Logger
	items    repos.ContentItemRepo
	chapters repos.ChapterRepo
}

func NewContentService(db *gorm.DB, baseLog *logger.Logger, items repos.ContentItemRepo, chapters repos.ChapterRepo) ContentService {
	return &contentService{
		db:       db,
		log:      baseLog.With("service", "ContentService"),
		items:    items,
		chapters: chapters,
	}
}

func validateType(contentType string) error {
	if !types.ValidContentType(contentType) {
		return apierr.BadRequest("invalid_content_type", fmt.Errorf("content type must be book or course, got %q", contentType))
	}
	return nil
}

// checkCreator rejects a body creator_id that names someone other than the
// authenticated creator. An empty value is accepted.
func checkCreator(creatorID uuid.UUID, claimed string) error {
	if creatorID == uuid.Nil {
		return apierr.New(http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
	}
	claimed = strings.TrimSpace(claimed)
	if claimed == "" {
		return nil
	}
	id, err := uuid.Parse(claimed)
	if err != nil {
		return apierr.BadRequest("invalid_creator_id", err)
	}
	if id != creatorID {
		return apierr.Forbidden("forbidden", errors.New("creator_id does not match the authenticated creator"))
	}
	return nil
}

// legacyChapters decodes a content string and keeps at most one cover,
// moved to the front.
func legacyChapters(content string) []*types.Chapter {
	arr := contentmod.ParseContent(content)
	cover, rest := contentmod.SplitCover(arr)
	if cover != "" {
		arr = append([]string{cover}, rest...)
	}
	return contentmod.DecodeChapters(arr)
}

func (s *contentService) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return s.db
}

func (s *contentService) AddLegacy(dbc dbctx.Context, creatorID uuid.UUID, contentType string, in LegacyContent) (*types.ContentItem, error) {
	if err := validateType(contentType); err != nil {
		return nil, err
	}
	if err := checkCreator(creatorID, in.CreatorID); err != nil {
		return nil, err
	}
	return s.CreateFromChapters(dbc, creatorID, contentType, in.CourseTitle, legacyChapters(in.Content))
}

func (s *contentService) CreateFromChapters(dbc dbctx.Context, creatorID uuid.UUID, contentType, title string, chapters []*types.Chapter) (*types.ContentItem, error) {
	if err := validateType(contentType); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apierr.BadRequest("missing_title", errors.New("course_title is required"))
	}
	for i, ch := range chapters {
		ch.Position = i
	}
	item := &types.ContentItem{
		CreatorID: creatorID,
		Title:     title,
		Type:      contentType,
		Chapters:  chapters,
	}
	if _, err := s.items.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: s.tx(dbc)}, item); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	s.log.Info("content created", "content_id", item.ID, "type", contentType, "chapters", len(chapters), "creator_id", creatorID)
	return item, nil
}

// owned loads the item with its chapters and checks ownership and type.
// An empty contentType skips the type check.
func (s *contentService) owned(dbc dbctx.Context, creatorID, id uuid.UUID, contentType string) (*types.ContentItem, error) {
	item, err := s.items.GetByIDWithChapters(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	if item == nil || (contentType != "" && item.Type != contentType) {
		return nil, apierr.NotFound("content_not_found", errContentNotFound)
	}
	if item.CreatorID != creatorID {
		// Indistinguishable from a missing item for other creators.
		return nil, apierr.NotFound("content_not_found", errContentNotFound)
	}
	return item, nil
}

func (s *contentService) UpdateLegacy(dbc dbctx.Context, creatorID, id uuid.UUID, contentType string, in LegacyContent) (*types.ContentItem, error) {
	if err := validateType(contentType); err != nil {
		return nil, err
	}
	if err := checkCreator(creatorID, in.CreatorID); err != nil {
		return nil, err
	}
	var out *types.ContentItem
	err := s.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		item, err := s.owned(inner, creatorID, id, contentType)
		if err != nil {
			return err
		}
		incoming := legacyChapters(in.Content)

		// Chapter ids are reused by position; surplus rows are soft deleted.
		var created []*types.Chapter
		for i, ch := range incoming {
			ch.ContentItemID = item.ID
			if i < len(item.Chapters) {
				prev := item.Chapters[i]
				ch.ID = prev.ID
				ch.CreatedAt = prev.CreatedAt
				if prev.NarrationKey != "" && prev.BodyHTML == ch.BodyHTML {
					ch.NarrationKey, ch.NarrationURL = prev.NarrationKey, prev.NarrationURL
				}
				if err := s.chapters.Save(inner, ch); err != nil {
					return fmt.Errorf("save chapter %d: %w", i, err)
				}
				continue
			}
			created = append(created, ch)
		}
		if _, err := s.chapters.Create(inner, created); err != nil {
			return fmt.Errorf("create chapters: %w", err)
		}
		if len(item.Chapters) > len(incoming) {
			var surplus []uuid.UUID
			for _, ch := range item.Chapters[len(incoming):] {
				surplus = append(surplus, ch.ID)
			}
			if err := s.chapters.SoftDeleteByIDs(inner, surplus); err != nil {
				return fmt.Errorf("delete surplus chapters: %w", err)
			}
		}

		updates := map[string]interface{}{}
		if title := strings.TrimSpace(in.CourseTitle); title != "" {
			updates["title"] = title
			item.Title = title
		}
		if err := s.items.UpdateFields(inner, item.ID, updates); err != nil {
			return fmt.Errorf("update content: %w", err)
		}
		item.Chapters = incoming
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *contentService) GetLegacy(dbc dbctx.Context, creatorID, id uuid.UUID, contentType string) (*LegacyContent, error) {
	if err := validateType(contentType); err != nil {
		return nil, err
	}
	item, err := s.owned(dbc, creatorID, id, contentType)
	if err != nil {
		return nil, err
	}
	return &LegacyContent{
		CreatorID:   item.CreatorID.String(),
		CourseTitle: item.Title,
		Content:     contentmod.SerializeContent(contentmod.EncodeChapters(item.Chapters)),
	}, nil
}

func (s *contentService) List(dbc dbctx.Context, creatorID uuid.UUID, contentType string) ([]*types.ContentItem, error) {
	if contentType != "" {
		if err := validateType(contentType); err != nil {
			return nil, err
		}
	}
	return s.items.ListByCreator(dbc, creatorID, contentType)
}

func (s *contentService) Delete(dbc dbctx.Context, creatorID, id uuid.UUID) error {
	return s.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		if _, err := s.owned(inner, creatorID, id, ""); err != nil {
			return err
		}
		return s.items.SoftDelete(inner, id)
	})
}

func (s *contentService) GetWithChapters(dbc dbctx.Context, creatorID, id uuid.UUID) (*types.ContentItem, error) {
	return s.owned(dbc, creatorID, id, "")
}

// ReorderChapters requires orderedIDs to be a permutation of the item's
// chapters. A cover chapter always stays first.
func (s *contentService) ReorderChapters(dbc dbctx.Context, creatorID, id uuid.UUID, orderedIDs []uuid.UUID) ([]*types.Chapter, error) {
	var out []*types.Chapter
	err := s.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		item, err := s.owned(inner, creatorID, id, "")
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*types.Chapter, len(item.Chapters))
		for _, ch := range item.Chapters {
			byID[ch.ID] = ch
		}
		if len(orderedIDs) != len(byID) {
			return apierr.BadRequest("invalid_order", fmt.Errorf("expected %d chapter ids, got %d", len(byID), len(orderedIDs)))
		}
		seen := make(map[uuid.UUID]bool, len(orderedIDs))
		ordered := make([]*types.Chapter, 0, len(orderedIDs))
		var cover *types.Chapter
		for _, cid := range orderedIDs {
			ch, ok := byID[cid]
			if !ok || seen[cid] {
				return apierr.BadRequest("invalid_order", fmt.Errorf("unknown or repeated chapter id %s", cid))
			}
			seen[cid] = true
			if ch.Kind == types.ChapterKindCover {
				cover = ch
				continue
			}
			ordered = append(ordered, ch)
		}
		if cover != nil {
			ordered = append([]*types.Chapter{cover}, ordered...)
		}
		ids := make([]uuid.UUID, len(ordered))
		for i, ch := range ordered {
			ids[i] = ch.ID
			ch.Position = i
		}
		if err := s.chapters.SetPositions(inner, item.ID, ids); err != nil {
			return fmt.Errorf("set positions: %w", err)
		}
		out = ordered
		return s.items.UpdateFields(inner, item.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *contentService) GetChapter(dbc dbctx.Context, creatorID, chapterID uuid.UUID) (*types.Chapter, error) {
	ch, err := s.chapters.GetByID(dbc, chapterID)
	if err != nil {
		return nil, fmt.Errorf("load chapter: %w", err)
	}
	if ch == nil {
		return nil, apierr.NotFound("chapter_not_found", errChapterNotFound)
	}
	item, err := s.items.GetByID(dbc, ch.ContentItemID)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	if item == nil || item.CreatorID != creatorID {
		return nil, apierr.NotFound("chapter_not_found", errChapterNotFound)
	}
	return ch, nil
}

// DeleteChapter removes one chapter and closes the gap in positions.
func (s *contentService) DeleteChapter(dbc dbctx.Context, creatorID, chapterID uuid.UUID) error {
	return s.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		ch, err := s.GetChapter(inner, creatorID, chapterID)
		if err != nil {
			return err
		}
		if err := s.chapters.SoftDeleteByIDs(inner, []uuid.UUID{ch.ID}); err != nil {
			return fmt.Errorf("delete chapter: %w", err)
		}
		rest, err := s.chapters.ListByContentItem(inner, ch.ContentItemID)
		if err != nil {
			return fmt.Errorf("list chapters: %w", err)
		}
		ids := make([]uuid.UUID, len(rest))
		for i, c := range rest {
			ids[i] = c.ID
		}
		if err := s.chapters.SetPositions(inner, ch.ContentItemID, ids); err != nil {
			return err
		}
		return s.items.UpdateFields(inner, ch.ContentItemID, nil)
	})
}

// GetShared serves any item by id without authentication. Content is
// sanitized but keeps the quiz sentinels so the shared renderer can use it.
func (s *contentService) GetShared(dbc dbctx.Context, contentType string, id uuid.UUID) (*SharedContent, error) {
	if err := validateType(contentType); err != nil {
		return nil, err
	}
	item, err := s.items.GetByIDWithChapters(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	if item == nil || item.Type != contentType {
		return nil, apierr.NotFound("content_not_found", errContentNotFound)
	}
	encoded := contentmod.EncodeChapters(item.Chapters)
	return &SharedContent{
		Title:      item.Title,
		Content:    contentmod.SerializeContent(publish.SanitizeChapters(encoded)),
		CourseType: item.Type,
	}, nil
}
