package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/clients/twelvelabs"
	"github.com/yungbote/lifeos-backend/internal/platform/qdrant"
)

type stubTL struct {
	embedErr error
	vector   []float32
}

func (f *stubTL) EnsureIndex(ctx context.Context) (string, error) { return "idx", nil }

func (f *stubTL) CreateIndexTask(ctx context.Context, indexID, filePath string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *stubTL) GetTask(ctx context.Context, taskID string) (*twelvelabs.TaskStatus, error) {
	return nil, errors.New("not implemented")
}

func (f *stubTL) GenerateText(ctx context.Context, videoID, prompt string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *stubTL) CreateEmbeddingTask(ctx context.Context, filePath string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *stubTL) GetEmbeddingTaskStatus(ctx context.Context, taskID string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *stubTL) RetrieveEmbedding(ctx context.Context, taskID string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *stubTL) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.vector == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return f.vector, nil
}

type stubVectors struct {
	mu        sync.Mutex
	points    []qdrant.MemoryPoint
	matches   []qdrant.MemoryMatch
	lastQuery qdrant.SearchQuery
	deleteErr error
	failIDs   []uuid.UUID
}

func (f *stubVectors) EnsureCollection(ctx context.Context) error { return nil }

func (f *stubVectors) Upsert(ctx context.Context, point qdrant.MemoryPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, point)
	return nil
}

func (f *stubVectors) Search(ctx context.Context, q qdrant.SearchQuery) ([]qdrant.MemoryMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	return f.matches, nil
}

func (f *stubVectors) Retrieve(ctx context.Context, ids []uuid.UUID) ([]qdrant.MemoryMatch, error) {
	return nil, nil
}

func (f *stubVectors) Delete(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, []uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return nil, ids, f.deleteErr
	}
	failSet := make(map[uuid.UUID]bool, len(f.failIDs))
	for _, id := range f.failIDs {
		failSet[id] = true
	}
	var deleted, failed []uuid.UUID
	for _, id := range ids {
		if failSet[id] {
			failed = append(failed, id)
		} else {
			deleted = append(deleted, id)
		}
	}
	return deleted, failed, nil
}

func (f *stubVectors) Stats(ctx context.Context) (qdrant.CollectionStats, error) {
	return qdrant.CollectionStats{PointsCount: int64(len(f.points)), Status: "green"}, nil
}

type stubBlob struct {
	mu       sync.Mutex
	presigns int
	signErr  error
}

func (f *stubBlob) UploadSegment(ctx context.Context, localPath string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *stubBlob) PresignURL(ctx context.Context, objectURL string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	f.presigns++
	return objectURL + "?X-Amz-Signature=test", nil
}

func (f *stubBlob) DeleteObject(ctx context.Context, objectURL string) error { return nil }

type stubLLM struct {
	textResp string
	textErr  error
	calls    []string
}

func (f *stubLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.calls = append(f.calls, user)
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.textResp, nil
}

func (f *stubLLM) GenerateJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}
