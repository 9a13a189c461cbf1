package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lifeos-backend/internal/clients/s3"
	"github.com/yungbote/lifeos-backend/internal/platform/apierr"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/platform/qdrant"
	"github.com/yungbote/lifeos-backend/internal/repos"
	"github.com/yungbote/lifeos-backend/internal/types"
)

const presignTTL = time.Hour

type HighlightEntry struct {
	HighlightID uuid.UUID    `json:"highlight_id"`
	CreatedAt   time.Time    `json:"created_at"`
	Videos      *types.Video `json:"videos"`
}

type HighlightsList struct {
	Highlights []HighlightEntry `json:"highlights"`
	Total      int              `json:"total"`
}

type VideoService interface {
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Video, error)
	Get(ctx context.Context, userID, videoID uuid.UUID) (*types.Video, error)
	Delete(ctx context.Context, userID, videoID uuid.UUID) error
	ListHighlights(ctx context.Context, userID uuid.UUID) (*HighlightsList, error)
}

type videoService struct {
	log        *logger.Logger
	videos     repos.VideoRepo
	highlights repos.HighlightRepo
	blob       s3.BlobStore
	vectors    qdrant.VectorStore
}

func NewVideoService(log *logger.Logger, videos repos.VideoRepo, highlights repos.HighlightRepo, blob s3.BlobStore, vectors qdrant.VectorStore) VideoService {
	return &videoService{
		log:        log.With("service", "VideoService"),
		videos:     videos,
		highlights: highlights,
		blob:       blob,
		vectors:    vectors,
	}
}

// List returns the user's videos newest first, rewriting stored object URLs
// into presigned ones. A signing failure keeps the stored URL.
func (s *videoService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Video, error) {
	rows, err := s.videos.ListByUser(ctx, nil, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	s.presignAll(ctx, rows)
	return rows, nil
}

func (s *videoService) Get(ctx context.Context, userID, videoID uuid.UUID) (*types.Video, error) {
	row, err := s.videos.GetByID(ctx, nil, userID, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Uniform 404 for not-found and not-owned.
			return nil, apierr.New(http.StatusNotFound, "Video not found or you don't have permission to access it", nil)
		}
		return nil, err
	}
	return row, nil
}

// Delete removes the relational row and best-effort removes the vector
// point; a vector store failure does not undo the delete.
func (s *videoService) Delete(ctx context.Context, userID, videoID uuid.UUID) error {
	affected, err := s.videos.DeleteByID(ctx, nil, userID, videoID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return apierr.New(http.StatusNotFound, "Video not found or you don't have permission to delete it", nil)
	}
	if s.vectors != nil {
		if _, failed, err := s.vectors.Delete(ctx, []uuid.UUID{videoID}); err != nil || len(failed) > 0 {
			s.log.Warn("Vector point cleanup failed", "video_id", videoID, "error", err)
		}
	}
	s.log.Info("Video deleted", "video_id", videoID, "user_id", userID)
	return nil
}

func (s *videoService) ListHighlights(ctx context.Context, userID uuid.UUID) (*HighlightsList, error) {
	rows, err := s.highlights.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	out := &HighlightsList{Highlights: []HighlightEntry{}, Total: len(rows)}
	if len(rows) == 0 {
		return out, nil
	}

	videoIDs := make([]uuid.UUID, 0, len(rows))
	for _, h := range rows {
		videoIDs = append(videoIDs, h.VideoID)
	}
	videos, err := s.videos.GetByIDs(ctx, nil, videoIDs)
	if err != nil {
		return nil, err
	}
	s.presignAll(ctx, videos)
	byID := make(map[uuid.UUID]*types.Video, len(videos))
	for _, v := range videos {
		byID[v.VideoID] = v
	}

	for _, h := range rows {
		out.Highlights = append(out.Highlights, HighlightEntry{
			HighlightID: h.HighlightID,
			CreatedAt:   h.CreatedAt,
			Videos:      byID[h.VideoID],
		})
	}
	return out, nil
}

func (s *videoService) presignAll(ctx context.Context, rows []*types.Video) {
	if s.blob == nil {
		return
	}
	for _, row := range rows {
		if row.S3Link == nil || *row.S3Link == "" {
			continue
		}
		signed, err := s.blob.PresignURL(ctx, *row.S3Link, presignTTL)
		if err != nil {
			s.log.Warn("Presign failed", "video_id", row.VideoID, "error", err)
			continue
		}
		row.S3Link = &signed
	}
}
