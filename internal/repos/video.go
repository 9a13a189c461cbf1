package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/types"
)

type VideoRepo interface {
	Create(ctx context.Context, tx *gorm.DB, videos []*types.Video) ([]*types.Video, error)
	GetByID(ctx context.Context, tx *gorm.DB, userID, videoID uuid.UUID) (*types.Video, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, videoIDs []uuid.UUID) ([]*types.Video, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Video, error)
	ListByUserBetween(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) ([]*types.Video, error)
	DeleteByID(ctx context.Context, tx *gorm.DB, userID, videoID uuid.UUID) (int64, error)
	UpdateVectorStatus(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, status string, vectorID *uuid.UUID) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: baseLog.With("repo", "VideoRepo")}
}

func (vr *videoRepo) Create(ctx context.Context, tx *gorm.DB, videos []*types.Video) ([]*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	if len(videos) == 0 {
		return []*types.Video{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (vr *videoRepo) GetByID(ctx context.Context, tx *gorm.DB, userID, videoID uuid.UUID) (*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var result types.Video
	if err := transaction.WithContext(ctx).
		Where("video_id = ? AND user_id = ?", videoID, userID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (vr *videoRepo) GetByIDs(ctx context.Context, tx *gorm.DB, videoIDs []uuid.UUID) ([]*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var results []*types.Video
	if len(videoIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("video_id IN ?", videoIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (vr *videoRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var results []*types.Video
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (vr *videoRepo) ListByUserBetween(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) ([]*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	var results []*types.Video
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ? AND timestamp <= ?", userID, from, to).
		Order("timestamp ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (vr *videoRepo) DeleteByID(ctx context.Context, tx *gorm.DB, userID, videoID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	res := transaction.WithContext(ctx).
		Where("video_id = ? AND user_id = ?", videoID, userID).
		Delete(&types.Video{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (vr *videoRepo) UpdateVectorStatus(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, status string, vectorID *uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = vr.db
	}
	now := time.Now().UTC()
	updates := map[string]any{
		"vector_status":     status,
		"vector_updated_at": now,
	}
	if vectorID != nil {
		updates["vector_id"] = *vectorID
	}
	return transaction.WithContext(ctx).
		Model(&types.Video{}).
		Where("video_id = ?", videoID).
		Updates(updates).Error
}
