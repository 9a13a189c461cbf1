package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/types"
)

type HighlightRepo interface {
	Create(ctx context.Context, tx *gorm.DB, highlights []*types.Highlight) ([]*types.Highlight, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Highlight, error)
}

type highlightRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHighlightRepo(db *gorm.DB, baseLog *logger.Logger) HighlightRepo {
	return &highlightRepo{db: db, log: baseLog.With("repo", "HighlightRepo")}
}

func (hr *highlightRepo) Create(ctx context.Context, tx *gorm.DB, highlights []*types.Highlight) ([]*types.Highlight, error) {
	transaction := tx
	if transaction == nil {
		transaction = hr.db
	}
	if len(highlights) == 0 {
		return []*types.Highlight{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&highlights).Error; err != nil {
		return nil, err
	}
	return highlights, nil
}

func (hr *highlightRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Highlight, error) {
	transaction := tx
	if transaction == nil {
		transaction = hr.db
	}
	var results []*types.Highlight
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
