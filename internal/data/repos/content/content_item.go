package content

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

type ContentItemRepo interface {
	Create(dbc dbctx.Context, item *types.ContentItem) (*types.ContentItem, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ContentItem, error)
	GetByIDWithChapters(dbc dbctx.Context, id uuid.UUID) (*types.ContentItem, error)
	ListByCreator(dbc dbctx.Context, creatorID uuid.UUID, contentType string) ([]*types.ContentItem, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, id uuid.UUID) error
}

type contentItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentItemRepo(db *gorm.DB, baseLog *logger.Logger) ContentItemRepo {
	return &contentItemRepo{db: db, log: baseLog.With("repo", "ContentItemRepo")}
}

func (r *contentItemRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

// Create inserts the item together with any chapters attached to it.
func (r *contentItemRepo) Create(dbc dbctx.Context, item *types.ContentItem) (*types.ContentItem, error) {
	if item == nil {
		return nil, errors.New("nil content item")
	}
	if err := r.tx(dbc).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *contentItemRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ContentItem, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var item types.ContentItem
	err := r.tx(dbc).Where("id = ?", id).Limit(1).Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == uuid.Nil {
		return nil, nil
	}
	return &item, nil
}

// GetByIDWithChapters loads the item with its live chapters in position order.
func (r *contentItemRepo) GetByIDWithChapters(dbc dbctx.Context, id uuid.UUID) (*types.ContentItem, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var item types.ContentItem
	err := r.tx(dbc).
		Preload("Chapters", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("id = ?", id).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == uuid.Nil {
		return nil, nil
	}
	return &item, nil
}

func (r *contentItemRepo) ListByCreator(dbc dbctx.Context, creatorID uuid.UUID, contentType string) ([]*types.ContentItem, error) {
	var out []*types.ContentItem
	if creatorID == uuid.Nil {
		return out, nil
	}
	q := r.tx(dbc).Where("creator_id = ?", creatorID)
	if contentType != "" {
		q = q.Where("type = ?", contentType)
	}
	if err := q.Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentItemRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.tx(dbc).Model(&types.ContentItem{}).Where("id = ?", id).Updates(updates).Error
}

// SoftDelete removes the item and its chapters.
func (r *contentItemRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	if err := r.tx(dbc).Where("content_item_id = ?", id).Delete(&types.Chapter{}).Error; err != nil {
		return err
	}
	return r.tx(dbc).Where("id = ?", id).Delete(&types.ContentItem{}).Error
}
