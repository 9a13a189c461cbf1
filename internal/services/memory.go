package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/clients/twelvelabs"
	"github.com/yungbote/lifeos-backend/internal/platform/apierr"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/platform/qdrant"
	"github.com/yungbote/lifeos-backend/internal/repos"
)

// defaultScoreThreshold filters near-zero cosine matches. An explicit 0.0
// from the caller is honored.
const defaultScoreThreshold = 0.01

type CreateMemoryRequest struct {
	Content     string         `json:"content" binding:"required"`
	ContentType string         `json:"content_type"`
	Tags        []string       `json:"tags"`
	SourceID    *string        `json:"source_id"`
	Metadata    map[string]any `json:"metadata"`
}

type MemoryRecord struct {
	ID          uuid.UUID      `json:"id"`
	Content     string         `json:"content"`
	ContentType string         `json:"content_type"`
	Timestamp   time.Time      `json:"timestamp"`
	Tags        []string       `json:"tags"`
	SourceID    *string        `json:"source_id"`
	Metadata    map[string]any `json:"metadata"`
}

type MemorySearchRequest struct {
	Query          string     `json:"query" binding:"required"`
	Limit          int        `json:"limit"`
	DateFrom       *time.Time `json:"date_from"`
	DateTo         *time.Time `json:"date_to"`
	ScoreThreshold *float64   `json:"score_threshold"`
}

type MemorySearchResult struct {
	VideoID         string  `json:"video_id"`
	Score           float64 `json:"score"`
	Timestamp       string  `json:"timestamp"`
	DetailedSummary string  `json:"detailed_summary"`
	S3Link          *string `json:"s3_link"`
	FileSize        int64   `json:"file_size"`
	ProcessedAt     string  `json:"processed_at"`
	UserID          string  `json:"user_id"`
}

type MemorySearchResponse struct {
	Results      []MemorySearchResult `json:"results"`
	TotalFound   int                  `json:"total_found"`
	Query        string               `json:"query"`
	SearchTimeMS float64              `json:"search_time_ms"`
}

type MemoryDeleteResponse struct {
	DeletedCount int      `json:"deleted_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
}

type MemoryService interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateMemoryRequest) (*MemoryRecord, error)
	Search(ctx context.Context, userID uuid.UUID, req MemorySearchRequest) (*MemorySearchResponse, error)
	Delete(ctx context.Context, ids []uuid.UUID) (*MemoryDeleteResponse, error)
	Health(ctx context.Context) map[string]string
	Stats(ctx context.Context) (qdrant.CollectionStats, error)
}

type memoryService struct {
	log     *logger.Logger
	tl      twelvelabs.Client
	vectors qdrant.VectorStore
	videos  repos.VideoRepo
}

func NewMemoryService(log *logger.Logger, tl twelvelabs.Client, vectors qdrant.VectorStore, videos repos.VideoRepo) MemoryService {
	return &memoryService{
		log:     log.With("service", "MemoryService"),
		tl:      tl,
		vectors: vectors,
		videos:  videos,
	}
}

func (s *memoryService) Create(ctx context.Context, userID uuid.UUID, req CreateMemoryRequest) (*MemoryRecord, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apierr.New(http.StatusBadRequest, "content is required", nil)
	}

	vector, err := s.tl.EmbedText(ctx, content)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "Failed to generate embedding", err)
	}

	record := &MemoryRecord{
		ID:          uuid.New(),
		Content:     content,
		ContentType: req.ContentType,
		Timestamp:   time.Now().UTC(),
		Tags:        req.Tags,
		SourceID:    req.SourceID,
		Metadata:    req.Metadata,
	}
	if record.ContentType == "" {
		record.ContentType = "text"
	}

	payload := map[string]any{
		"content":      record.Content,
		"content_type": record.ContentType,
	}
	if len(record.Tags) > 0 {
		payload["tags"] = record.Tags
	}
	if record.SourceID != nil {
		payload["source_id"] = *record.SourceID
	}
	for k, v := range record.Metadata {
		payload[k] = v
	}

	point := qdrant.MemoryPoint{
		ID:        record.ID,
		Vector:    vector,
		UserID:    userID,
		Timestamp: record.Timestamp,
		Payload:   payload,
	}
	if err := s.vectors.Upsert(ctx, point); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "Failed to store memory", err)
	}
	s.log.Info("Memory created", "memory_id", record.ID, "user_id", userID)
	return record, nil
}

func (s *memoryService) Search(ctx context.Context, userID uuid.UUID, req MemorySearchRequest) (*MemorySearchResponse, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, apierr.New(http.StatusBadRequest, "query is required", nil)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	threshold := defaultScoreThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}

	vector, err := s.tl.EmbedText(ctx, query)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "Failed to generate query embedding", err)
	}

	matches, err := s.vectors.Search(ctx, qdrant.SearchQuery{
		UserID:         userID,
		Vector:         vector,
		Limit:          limit,
		DateFrom:       req.DateFrom,
		DateTo:         req.DateTo,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := s.enrich(ctx, matches)
	return &MemorySearchResponse{
		Results:      results,
		TotalFound:   len(results),
		Query:        query,
		SearchTimeMS: elapsedMS(start),
	}, nil
}

// enrich joins vector matches to their relational rows. A missing row
// yields a degraded record instead of dropping the hit.
func (s *memoryService) enrich(ctx context.Context, matches []qdrant.MemoryMatch) []MemorySearchResult {
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	byID := make(map[uuid.UUID]int)
	rows, err := s.videos.GetByIDs(ctx, nil, ids)
	if err != nil {
		s.log.Warn("Relational enrichment failed", "error", err)
		rows = nil
	}
	for i, row := range rows {
		byID[row.VideoID] = i
	}

	results := make([]MemorySearchResult, 0, len(matches))
	for _, m := range matches {
		res := MemorySearchResult{
			VideoID: m.ID.String(),
			Score:   m.Score,
		}
		if ts, ok := m.Payload["timestamp"].(string); ok {
			res.Timestamp = ts
		}
		if idx, ok := byID[m.ID]; ok {
			row := rows[idx]
			res.DetailedSummary = row.DetailedSummary
			res.S3Link = row.S3Link
			res.FileSize = row.FileSize
			res.ProcessedAt = row.ProcessedAt.UTC().Format(time.RFC3339)
			res.UserID = row.UserID.String()
		} else {
			res.DetailedSummary = "Data not found"
			if uid, ok := m.Payload["user_id"].(string); ok {
				res.UserID = uid
			}
		}
		results = append(results, res)
	}
	return results
}

func (s *memoryService) Delete(ctx context.Context, ids []uuid.UUID) (*MemoryDeleteResponse, error) {
	if len(ids) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "memory_ids is required", nil)
	}
	deleted, failed, err := s.vectors.Delete(ctx, ids)
	resp := &MemoryDeleteResponse{
		DeletedCount: len(deleted),
		FailedCount:  len(failed),
		Errors:       []string{},
	}
	for _, id := range failed {
		resp.Errors = append(resp.Errors, fmt.Sprintf("failed to delete memory %s", id))
	}
	if err != nil {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp, nil
}

func (s *memoryService) Health(ctx context.Context) map[string]string {
	vectorHealth := "healthy"
	if _, err := s.vectors.Stats(ctx); err != nil {
		vectorHealth = "unhealthy"
	}
	embedHealth := "healthy"
	if s.tl == nil {
		embedHealth = "unhealthy"
	}
	overall := "healthy"
	if vectorHealth != "healthy" || embedHealth != "healthy" {
		overall = "unhealthy"
	}
	return map[string]string{
		"vector_store":      vectorHealth,
		"embedding_service": embedHealth,
		"overall":           overall,
	}
}

func (s *memoryService) Stats(ctx context.Context) (qdrant.CollectionStats, error) {
	return s.vectors.Stats(ctx)
}
