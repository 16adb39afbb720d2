package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

type ChapterRepo interface {
	Create(dbc dbctx.Context, chapters []*types.Chapter) ([]*types.Chapter, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chapter, error)
	ListByContentItem(dbc dbctx.Context, contentItemID uuid.UUID) ([]*types.Chapter, error)
	Save(dbc dbctx.Context, chapter *types.Chapter) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetPositions(dbc dbctx.Context, contentItemID uuid.UUID, orderedIDs []uuid.UUID) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type chapterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChapterRepo(db *gorm.DB, baseLog *logger.Logger) ChapterRepo {
	return &chapterRepo{db: db, log: baseLog.With("repo", "ChapterRepo")}
}

func (r *chapterRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *chapterRepo) Create(dbc dbctx.Context, chapters []*types.Chapter) ([]*types.Chapter, error) {
	if len(chapters) == 0 {
		return []*types.Chapter{}, nil
	}
	if err := r.tx(dbc).Create(&chapters).Error; err != nil {
		return nil, err
	}
	return chapters, nil
}

func (r *chapterRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chapter, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var ch types.Chapter
	if err := r.tx(dbc).Where("id = ?", id).Limit(1).Find(&ch).Error; err != nil {
		return nil, err
	}
	if ch.ID == uuid.Nil {
		return nil, nil
	}
	return &ch, nil
}

func (r *chapterRepo) ListByContentItem(dbc dbctx.Context, contentItemID uuid.UUID) ([]*types.Chapter, error) {
	var out []*types.Chapter
	if contentItemID == uuid.Nil {
		return out, nil
	}
	err := r.tx(dbc).
		Where("content_item_id = ?", contentItemID).
		Order("position ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes every column of chapter, including zero values.
func (r *chapterRepo) Save(dbc dbctx.Context, chapter *types.Chapter) error {
	if chapter == nil || chapter.ID == uuid.Nil {
		return nil
	}
	chapter.UpdatedAt = time.Now()
	return r.tx(dbc).Model(chapter).Select("*").Omit("ID", "CreatedAt", "DeletedAt").Updates(chapter).Error
}

func (r *chapterRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.tx(dbc).Model(&types.Chapter{}).Where("id = ?", id).Updates(updates).Error
}

// SetPositions assigns position i to orderedIDs[i]. IDs that do not belong
// to contentItemID are left untouched.
func (r *chapterRepo) SetPositions(dbc dbctx.Context, contentItemID uuid.UUID, orderedIDs []uuid.UUID) error {
	now := time.Now()
	for i, id := range orderedIDs {
		err := r.tx(dbc).Model(&types.Chapter{}).
			Where("id = ? AND content_item_id = ?", id, contentItemID).
			Updates(map[string]interface{}{"position": i, "updated_at": now}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *chapterRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.tx(dbc).Where("id IN ?", ids).Delete(&types.Chapter{}).Error
}
