package twelvelabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/lifeos-backend/internal/pkg/httpx"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

// TaskStatus is the state of one video indexing task.
type TaskStatus struct {
	Status  string
	VideoID string
}

// Client wraps the TwelveLabs REST API: video ingest, summary generation and
// video/text embeddings (Marengo-retrieval-2.7, 1024-d).
type Client interface {
	// EnsureIndex returns the id of the configured index, creating it on
	// first use. Callers cache the result.
	EnsureIndex(ctx context.Context) (string, error)

	CreateIndexTask(ctx context.Context, indexID, filePath string) (string, error)
	GetTask(ctx context.Context, taskID string) (*TaskStatus, error)
	GenerateText(ctx context.Context, videoID, prompt string) (string, error)

	CreateEmbeddingTask(ctx context.Context, filePath string) (string, error)
	GetEmbeddingTaskStatus(ctx context.Context, taskID string) (string, error)
	RetrieveEmbedding(ctx context.Context, taskID string) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	indexName  string
	embedModel string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("TWELVELABS_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing TWELVELABS_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("TWELVELABS_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.twelvelabs.io/v1.3"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	indexName := strings.TrimSpace(os.Getenv("TWELVELABS_INDEX_NAME"))
	if indexName == "" {
		indexName = "video_analysis_index"
	}

	timeoutSec := 120
	if v := os.Getenv("TWELVELABS_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("TWELVELABS_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("service", "TwelveLabsClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		indexName:  indexName,
		embedModel: "Marengo-retrieval-2.7",
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type twelveLabsHTTPError struct {
	StatusCode int
	Body       string
}

func (e *twelveLabsHTTPError) Error() string {
	return fmt.Sprintf("twelvelabs http %d: %s", e.StatusCode, e.Body)
}

func (e *twelveLabsHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, resp, &twelveLabsHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, resp, nil
}

// doJSON sends a JSON request with retries. Multipart uploads go through
// doOnce directly because the file body cannot be replayed.
func (c *client) doJSON(ctx context.Context, method, path string, in, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var body io.Reader
		if in != nil {
			var buf bytes.Buffer
			if err := json.NewEncoder(&buf).Encode(in); err != nil {
				return fmt.Errorf("twelvelabs encode request: %w", err)
			}
			body = &buf
		}

		raw, resp, err := c.doOnce(ctx, method, path, body, "application/json")
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("twelvelabs decode response: %w", uErr)
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("TwelveLabs request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func (c *client) doMultipart(ctx context.Context, path string, fields map[string]string, fileField, filePath string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("twelvelabs multipart field %q: %w", k, err)
		}
	}
	if fileField != "" {
		f, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("twelvelabs open %s: %w", filePath, err)
		}
		part, err := mw.CreateFormFile(fileField, filepath.Base(filePath))
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("twelvelabs multipart file part: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = f.Close()
			return fmt.Errorf("twelvelabs read %s: %w", filePath, err)
		}
		_ = f.Close()
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("twelvelabs multipart close: %w", err)
	}

	raw, _, err := c.doOnce(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if uErr := json.Unmarshal(raw, out); uErr != nil {
		return fmt.Errorf("twelvelabs decode response: %w", uErr)
	}
	return nil
}

func (c *client) EnsureIndex(ctx context.Context) (string, error) {
	var listResp struct {
		Data []struct {
			ID        string `json:"_id"`
			IndexName string `json:"index_name"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/indexes?index_name="+c.indexName, nil, &listResp); err != nil {
		return "", fmt.Errorf("list indexes: %w", err)
	}
	for _, idx := range listResp.Data {
		if idx.IndexName == c.indexName {
			return idx.ID, nil
		}
	}

	createReq := map[string]any{
		"index_name": c.indexName,
		"models": []map[string]any{
			{"model_name": "marengo2.7", "model_options": []string{"visual", "audio"}},
			{"model_name": "pegasus1.2", "model_options": []string{"visual", "audio"}},
		},
	}
	var createResp struct {
		ID string `json:"_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/indexes", createReq, &createResp); err != nil {
		return "", fmt.Errorf("create index: %w", err)
	}
	if createResp.ID == "" {
		return "", fmt.Errorf("create index: empty id in response")
	}
	c.log.Info("Created video index", "index_name", c.indexName)
	return createResp.ID, nil
}

func (c *client) CreateIndexTask(ctx context.Context, indexID, filePath string) (string, error) {
	var resp struct {
		ID string `json:"_id"`
	}
	err := c.doMultipart(ctx, "/tasks", map[string]string{"index_id": indexID}, "video_file", filePath, &resp)
	if err != nil {
		return "", fmt.Errorf("create index task: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create index task: empty task id")
	}
	return resp.ID, nil
}

func (c *client) GetTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	var resp struct {
		Status  string `json:"status"`
		VideoID string `json:"video_id"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/tasks/"+taskID, nil, &resp); err != nil {
		return nil, err
	}
	return &TaskStatus{Status: strings.ToLower(resp.Status), VideoID: resp.VideoID}, nil
}

func (c *client) GenerateText(ctx context.Context, videoID, prompt string) (string, error) {
	req := map[string]any{
		"video_id":    videoID,
		"prompt":      prompt,
		"temperature": 0.2,
		"stream":      false,
	}
	var resp struct {
		Data string `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/generate", req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Data), nil
}

func (c *client) CreateEmbeddingTask(ctx context.Context, filePath string) (string, error) {
	var resp struct {
		ID string `json:"_id"`
	}
	err := c.doMultipart(ctx, "/embed/tasks", map[string]string{"model_name": c.embedModel}, "video_file", filePath, &resp)
	if err != nil {
		return "", fmt.Errorf("create embedding task: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create embedding task: empty task id")
	}
	return resp.ID, nil
}

func (c *client) GetEmbeddingTaskStatus(ctx context.Context, taskID string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/embed/tasks/"+taskID+"/status", nil, &resp); err != nil {
		return "", err
	}
	return strings.ToLower(resp.Status), nil
}

func (c *client) RetrieveEmbedding(ctx context.Context, taskID string) ([]float32, error) {
	var resp struct {
		VideoEmbedding struct {
			Segments []struct {
				EmbeddingsFloat []float32 `json:"embeddings_float"`
			} `json:"segments"`
		} `json:"video_embedding"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/embed/tasks/"+taskID, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.VideoEmbedding.Segments) == 0 || len(resp.VideoEmbedding.Segments[0].EmbeddingsFloat) == 0 {
		return nil, fmt.Errorf("retrieve embedding: no segments in response")
	}
	return resp.VideoEmbedding.Segments[0].EmbeddingsFloat, nil
}

func (c *client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	req := map[string]any{
		"model_name": c.embedModel,
		"text":       text,
	}
	var resp struct {
		TextEmbedding struct {
			Segments []struct {
				EmbeddingsFloat []float32 `json:"embeddings_float"`
			} `json:"segments"`
		} `json:"text_embedding"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/embed", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.TextEmbedding.Segments) == 0 || len(resp.TextEmbedding.Segments[0].EmbeddingsFloat) == 0 {
		return nil, fmt.Errorf("embed text: no segments in response")
	}
	return resp.TextEmbedding.Segments[0].EmbeddingsFloat, nil
}
