package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

// MemoryPoint is one stored video memory. ID is the relational video_id; the
// point id, the payload video_id, and the database primary key are the same
// UUID so every hit can be joined back to its row.
type MemoryPoint struct {
	ID        uuid.UUID
	Vector    []float32
	UserID    uuid.UUID
	Timestamp time.Time
	Payload   map[string]any
}

type MemoryMatch struct {
	ID      uuid.UUID
	Score   float64
	Payload map[string]any
}

type SearchQuery struct {
	UserID uuid.UUID
	Vector []float32
	Limit  int
	// Optional timestamp window, inclusive on both ends.
	DateFrom *time.Time
	DateTo   *time.Time
	// Passed through verbatim; 0 means no cutoff.
	ScoreThreshold float64
}

type CollectionStats struct {
	PointsCount int64  `json:"points_count"`
	Status      string `json:"status"`
	VectorDim   int    `json:"vector_dim"`
	Distance    string `json:"distance"`
}

type VectorStore interface {
	// EnsureCollection creates the collection and its payload indexes if
	// they do not exist. Safe to call on every boot.
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, point MemoryPoint) error
	Search(ctx context.Context, q SearchQuery) ([]MemoryMatch, error)
	Retrieve(ctx context.Context, ids []uuid.UUID) ([]MemoryMatch, error)
	// Delete removes points one at a time so partial failures are reported
	// per id rather than aborting the batch.
	Delete(ctx context.Context, ids []uuid.UUID) (deleted []uuid.UUID, failed []uuid.UUID, err error)
	Stats(ctx context.Context) (CollectionStats, error)
}

type vectorStore struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	distance string
	http     *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewVectorStore(log *logger.Logger, cfg Config) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &vectorStore{
		log:     log.With("service", "QdrantVectorStore", "collection", cfg.Collection),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	log.Info(
		"Qdrant vector store selected",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func (s *vectorStore) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		req := map[string]any{
			"vectors": map[string]any{
				"size":     s.cfg.VectorDim,
				"distance": "Cosine",
			},
		}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), req, nil); err != nil {
			return err
		}
		s.log.Info("Qdrant collection created", "vector_dim", s.cfg.VectorDim)
	}

	// Payload indexes back the per-user filter and the date range filter.
	// Re-creating an existing index is tolerated.
	indexes := []struct {
		field  string
		schema string
	}{
		{"user_id", "keyword"},
		{"timestamp", "datetime"},
	}
	for _, idx := range indexes {
		req := map[string]any{
			"field_name":   idx.field,
			"field_schema": idx.schema,
		}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/index?wait=true"), req, nil); err != nil {
			var opErrTyped *OperationError
			if errors.As(err, &opErrTyped) && opErrTyped.StatusCode == http.StatusConflict {
				continue
			}
			s.log.Warn("Qdrant payload index setup failed", "field", idx.field, "error", err)
		}
	}
	return nil
}

func (s *vectorStore) collectionExists(ctx context.Context) (bool, error) {
	const op = "ensure_collection"
	req, err := http.NewRequestWithContext(defaultCtx(ctx), http.MethodGet, s.baseURL+s.collectionPath(""), nil)
	if err != nil {
		return false, opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	s.setHeaders(req)
	resp, err := s.http.Do(req)
	if err != nil {
		return false, classifyHTTPCallError(op, "qdrant collection check failed", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant collection check returned status=%d", resp.StatusCode),
		}
	}
	return true, nil
}

func (s *vectorStore) Upsert(ctx context.Context, point MemoryPoint) error {
	if s == nil {
		return fmt.Errorf("vector store unavailable")
	}
	const op = "upsert"

	if point.ID == uuid.Nil {
		return opErr(op, OperationErrorValidation, "point id is required", nil)
	}
	if len(point.Vector) == 0 {
		return opErr(op, OperationErrorValidation, fmt.Sprintf("point %s has empty vector", point.ID), nil)
	}
	if s.cfg.VectorDim > 0 && len(point.Vector) != s.cfg.VectorDim {
		return opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf(
				"point %s dimension mismatch: expected=%d got=%d",
				point.ID,
				s.cfg.VectorDim,
				len(point.Vector),
			),
			nil,
		)
	}

	payload := clonePayload(point.Payload)
	payload["video_id"] = point.ID.String()
	payload["user_id"] = point.UserID.String()
	payload["timestamp"] = point.Timestamp.UTC().Format(time.RFC3339)

	req := map[string]any{
		"points": []map[string]any{
			{
				"id":      point.ID.String(),
				"vector":  point.Vector,
				"payload": payload,
			},
		},
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil)
}

func (s *vectorStore) Search(ctx context.Context, q SearchQuery) ([]MemoryMatch, error) {
	if s == nil {
		return nil, fmt.Errorf("vector store unavailable")
	}
	const op = "search"

	if q.UserID == uuid.Nil {
		return nil, opErr(op, OperationErrorValidation, "user id required", nil)
	}
	if len(q.Vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if s.cfg.VectorDim > 0 && len(q.Vector) != s.cfg.VectorDim {
		return nil, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(q.Vector)),
			nil,
		)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	req := map[string]any{
		"vector":          q.Vector,
		"limit":           limit,
		"with_payload":    true,
		"with_vector":     false,
		"filter":          searchFilter(q),
		"score_threshold": q.ScoreThreshold,
	}

	var rawResults []qdrantScoredPoint
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &rawResults); err != nil {
		return nil, err
	}
	return s.toMatches(rawResults), nil
}

// searchFilter builds the mandatory user scope plus the optional date window.
func searchFilter(q SearchQuery) map[string]any {
	must := []any{
		map[string]any{
			"key":   "user_id",
			"match": map[string]any{"value": q.UserID.String()},
		},
	}
	if q.DateFrom != nil || q.DateTo != nil {
		rng := map[string]any{}
		if q.DateFrom != nil {
			rng["gte"] = q.DateFrom.UTC().Format(time.RFC3339)
		}
		if q.DateTo != nil {
			rng["lte"] = q.DateTo.UTC().Format(time.RFC3339)
		}
		must = append(must, map[string]any{
			"key":   "timestamp",
			"range": rng,
		})
	}
	return map[string]any{"must": must}
}

func (s *vectorStore) Retrieve(ctx context.Context, ids []uuid.UUID) ([]MemoryMatch, error) {
	if s == nil {
		return nil, fmt.Errorf("vector store unavailable")
	}
	const op = "retrieve"
	if len(ids) == 0 {
		return []MemoryMatch{}, nil
	}

	pointIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		pointIDs = append(pointIDs, id.String())
	}

	req := map[string]any{
		"ids":          pointIDs,
		"with_payload": true,
		"with_vector":  false,
	}
	var rawResults []qdrantScoredPoint
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points"), req, &rawResults); err != nil {
		return nil, err
	}
	return s.toMatches(rawResults), nil
}

func (s *vectorStore) Delete(ctx context.Context, ids []uuid.UUID) (deleted []uuid.UUID, failed []uuid.UUID, err error) {
	if s == nil {
		return nil, nil, fmt.Errorf("vector store unavailable")
	}
	const op = "delete"

	deleted = make([]uuid.UUID, 0, len(ids))
	failed = make([]uuid.UUID, 0)
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		req := map[string]any{"points": []string{id.String()}}
		if delErr := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil); delErr != nil {
			s.log.Warn("Qdrant point delete failed", "point_id", id, "error", delErr)
			failed = append(failed, id)
			continue
		}
		deleted = append(deleted, id)
	}
	return deleted, failed, nil
}

func (s *vectorStore) Stats(ctx context.Context) (CollectionStats, error) {
	if s == nil {
		return CollectionStats{}, fmt.Errorf("vector store unavailable")
	}
	const op = "stats"

	var result struct {
		Status      string `json:"status"`
		PointsCount int64  `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &result); err != nil {
		return CollectionStats{}, err
	}
	return CollectionStats{
		PointsCount: result.PointsCount,
		Status:      result.Status,
		VectorDim:   result.Config.Params.Vectors.Size,
		Distance:    result.Config.Params.Vectors.Distance,
	}, nil
}

func (s *vectorStore) toMatches(raw []qdrantScoredPoint) []MemoryMatch {
	out := make([]MemoryMatch, 0, len(raw))
	for _, item := range raw {
		id := decodePointID(item.ID)
		parsed, err := uuid.Parse(id)
		if err != nil {
			s.log.Warn("Skipping qdrant point with non-uuid id", "point_id", id)
			continue
		}
		out = append(out, MemoryMatch{
			ID:      parsed,
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return out
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(defaultCtx(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	s.setHeaders(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func (s *vectorStore) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func defaultCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	return strings.TrimSpace(string(raw))
}

func (s *vectorStore) collectionPath(suffix string) string {
	path := "/collections/" + s.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}
