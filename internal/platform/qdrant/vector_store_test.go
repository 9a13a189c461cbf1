package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestStore(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *vectorStore {
	t.Helper()
	return &vectorStore{
		log: newTestLogger(t),
		cfg: Config{
			URL:        "http://qdrant.local:6333",
			Collection: "memories",
			VectorDim:  3,
		},
		baseURL: "http://qdrant.local:6333",
		http:    &http.Client{Transport: roundTripFunc(roundTrip)},
	}
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"result": result,
		"status": "ok",
		"time":   0.001,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func errResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestUpsertWritesIdentityPayload(t *testing.T) {
	videoID := uuid.New()
	userID := uuid.New()
	ts := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)

	var captured map[string]any
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/memories/points" {
			t.Fatalf("request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	err := s.Upsert(context.Background(), MemoryPoint{
		ID:        videoID,
		Vector:    []float32{0.1, 0.2, 0.3},
		UserID:    userID,
		Timestamp: ts,
		Payload:   map[string]any{"summary": "made coffee"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	points := captured["points"].([]any)
	if len(points) != 1 {
		t.Fatalf("points: got=%d", len(points))
	}
	point := points[0].(map[string]any)
	payload := point["payload"].(map[string]any)
	if point["id"] != videoID.String() {
		t.Fatalf("point id: want=%s got=%v", videoID, point["id"])
	}
	if payload["video_id"] != videoID.String() {
		t.Fatalf("payload video_id: want=%s got=%v", videoID, payload["video_id"])
	}
	if payload["user_id"] != userID.String() {
		t.Fatalf("payload user_id: want=%s got=%v", userID, payload["user_id"])
	}
	if payload["timestamp"] != "2026-08-20T14:30:00Z" {
		t.Fatalf("payload timestamp: got=%v", payload["timestamp"])
	}
	if payload["summary"] != "made coffee" {
		t.Fatalf("payload summary: got=%v", payload["summary"])
	}
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	err := s.Upsert(context.Background(), MemoryPoint{
		ID:     uuid.New(),
		Vector: []float32{0.1},
		UserID: uuid.New(),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	opErrTyped, ok := err.(*OperationError)
	if !ok || opErrTyped.Code != OperationErrorValidation {
		t.Fatalf("error: got=%v", err)
	}
}

func TestSearchFilterShape(t *testing.T) {
	userID := uuid.New()
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

	var captured map[string]any
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/memories/points/search" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []any{}), nil
	})

	_, err := s.Search(context.Background(), SearchQuery{
		UserID:         userID,
		Vector:         []float32{0.1, 0.2, 0.3},
		Limit:          5,
		DateFrom:       &from,
		DateTo:         &to,
		ScoreThreshold: 0.01,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	filter := captured["filter"].(map[string]any)
	must := filter["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("must conditions: got=%d", len(must))
	}
	userCond := must[0].(map[string]any)
	if userCond["key"] != "user_id" {
		t.Fatalf("first condition key: got=%v", userCond["key"])
	}
	if userCond["match"].(map[string]any)["value"] != userID.String() {
		t.Fatalf("user filter value: got=%v", userCond["match"])
	}
	rangeCond := must[1].(map[string]any)
	rng := rangeCond["range"].(map[string]any)
	if rng["gte"] != "2026-08-01T00:00:00Z" || rng["lte"] != "2026-08-21T00:00:00Z" {
		t.Fatalf("range: got=%v", rng)
	}
	if captured["score_threshold"].(float64) != 0.01 {
		t.Fatalf("score_threshold: got=%v", captured["score_threshold"])
	}
}

func TestSearchZeroThresholdPassedThrough(t *testing.T) {
	var captured map[string]any
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []any{}), nil
	})

	_, err := s.Search(context.Background(), SearchQuery{
		UserID:         uuid.New(),
		Vector:         []float32{0.1, 0.2, 0.3},
		ScoreThreshold: 0,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	v, ok := captured["score_threshold"]
	if !ok {
		t.Fatal("score_threshold missing from request")
	}
	if v.(float64) != 0 {
		t.Fatalf("score_threshold: want=0 got=%v", v)
	}
}

func TestSearchSkipsNonUUIDPoints(t *testing.T) {
	goodID := uuid.New()
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		return okResponse(t, []any{
			map[string]any{"id": goodID.String(), "score": 0.91, "payload": map[string]any{"summary": "walk"}},
			map[string]any{"id": 42, "score": 0.80, "payload": map[string]any{}},
		}), nil
	})

	matches, err := s.Search(context.Background(), SearchQuery{
		UserID: uuid.New(),
		Vector: []float32{0.1, 0.2, 0.3},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches: got=%d", len(matches))
	}
	if matches[0].ID != goodID || matches[0].Score != 0.91 {
		t.Fatalf("match: got=%+v", matches[0])
	}
}

func TestDeleteReportsPerIDOutcomes(t *testing.T) {
	okID := uuid.New()
	badID := uuid.New()

	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		var body struct {
			Points []string `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body.Points) == 1 && body.Points[0] == badID.String() {
			return errResponse(http.StatusInternalServerError, "boom"), nil
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	deleted, failed, err := s.Delete(context.Background(), []uuid.UUID{okID, badID})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != okID {
		t.Fatalf("deleted: got=%v", deleted)
	}
	if len(failed) != 1 || failed[0] != badID {
		t.Fatalf("failed: got=%v", failed)
	}
}

func TestStatsParsesCollectionInfo(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodGet || r.URL.Path != "/collections/memories" {
			t.Fatalf("request: %s %s", r.Method, r.URL.Path)
		}
		return okResponse(t, map[string]any{
			"status":       "green",
			"points_count": 12,
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": 3, "distance": "Cosine"},
				},
			},
		}), nil
	})

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.PointsCount != 12 || stats.Status != "green" || stats.VectorDim != 3 || stats.Distance != "Cosine" {
		t.Fatalf("stats: got=%+v", stats)
	}
}

func TestDoJSONSurfacesEnvelopeError(t *testing.T) {
	s := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		raw, _ := json.Marshal(map[string]any{
			"result": nil,
			"status": map[string]any{"error": "collection not found"},
		})
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewReader(raw)),
		}, nil
	})

	err := s.doJSON(context.Background(), "search", http.MethodPost, "/collections/memories/points/search", map[string]any{}, nil)
	if err == nil {
		t.Fatal("expected envelope error")
	}
	opErrTyped, ok := err.(*OperationError)
	if !ok || opErrTyped.Code != OperationErrorQueryFailed {
		t.Fatalf("error: got=%v", err)
	}
	if !strings.Contains(opErrTyped.Message, "collection not found") {
		t.Fatalf("message: got=%q", opErrTyped.Message)
	}
}
