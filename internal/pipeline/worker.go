package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/automations"
	"github.com/yungbote/lifeos-backend/internal/clients/redis"
	"github.com/yungbote/lifeos-backend/internal/clients/s3"
	"github.com/yungbote/lifeos-backend/internal/clients/twelvelabs"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/platform/qdrant"
	"github.com/yungbote/lifeos-backend/internal/repos"
	"github.com/yungbote/lifeos-backend/internal/types"
)

const summaryPrompt = "Provide a detailed summary of what's happening in this video segment, including any people, objects, actions, and conversations."

const (
	// Ingest readiness polling.
	ingestWaitCap       = 180 * time.Second
	pollInitialInterval = 500 * time.Millisecond
	pollMaxInterval     = 2 * time.Second
	pollGrowthFactor    = 1.2

	// Consecutive transport failures during polling back off exponentially
	// from 100 ms, capped at 2 s.
	transportBackoffBase = 100 * time.Millisecond
	transportBackoffCap  = 2 * time.Second

	summaryAttempts     = 3
	summaryBackoffStep  = 500 * time.Millisecond
	upsertAttempts      = 3
	embedPollInterval   = 2 * time.Second
	embedWaitCap        = 180 * time.Second
	finalizeTaskTimeout = 5 * time.Minute
)

// WorkerDeps are the process-wide collaborators a worker borrows. The blob
// store may be nil; segments are then committed without an s3_link.
type WorkerDeps struct {
	Queue       redis.VideoQueue
	TwelveLabs  twelvelabs.Client
	Blob        s3.BlobStore
	Vectors     qdrant.VectorStore
	Videos      repos.VideoRepo
	Automations automations.Controller
	Tasks       *TaskGroup
}

// Worker consumes segment jobs from the queue and drives each one through
// ingest, summarization and fan-out. The worker mints the video UUID before
// any external call and threads it through every store; external task ids
// stay opaque and are never used as keys.
type Worker struct {
	log  *logger.Logger
	id   int
	deps WorkerDeps

	indexID   string
	running   atomic.Bool
	processed atomic.Int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewWorker(log *logger.Logger, id int, deps WorkerDeps) *Worker {
	return &Worker{
		log:   log.With("service", "VideoWorker", "worker_id", id),
		id:    id,
		deps:  deps,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func (w *Worker) ID() int { return w.id }

func (w *Worker) Processed() int64 { return w.processed.Load() }

func (w *Worker) IsRunning() bool { return w.running.Load() }

func (w *Worker) Stop() { w.running.Store(false) }

// Run pops and processes jobs until Stop is called or ctx is cancelled.
// Routine job failures are logged and never kill the loop.
func (w *Worker) Run(ctx context.Context) {
	w.running.Store(true)
	defer w.running.Store(false)
	w.log.Info("Worker started")

	for w.running.Load() && ctx.Err() == nil {
		job, err := w.deps.Queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.log.Warn("Queue pop failed", "error", err)
			_ = w.sleep(ctx, time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := w.process(ctx, job); err != nil {
			w.log.Error("Segment job failed",
				"video_path", job.VideoPath,
				"user_id", job.Metadata.UserID,
				"error", err,
			)
		}
	}
	w.log.Info("Worker stopped", "processed", w.processed.Load())
}

type ingestOutcome struct {
	taskID string
	err    error
}

type blobOutcome struct {
	url string
	err error
}

type embedOutcome struct {
	taskID string
	err    error
}

// process runs one segment job end to end. The relational insert is the
// commit point; the processed count advances and the file is released only
// after it succeeds. Embedding finalization and automations run detached.
func (w *Worker) process(ctx context.Context, job *types.SegmentJob) error {
	info, err := os.Stat(job.VideoPath)
	if err != nil {
		return fmt.Errorf("segment file missing: %w", err)
	}
	fileSize := info.Size()

	videoID := uuid.New()
	log := w.log.With("video_id", videoID, "segment_id", job.Metadata.SegmentID)
	log.Info("Processing segment", "video_path", job.VideoPath, "file_size", fileSize)

	// Ingest, blob upload and embedding-task creation touch distinct
	// endpoints and share no state; launch all three at once.
	ingestCh := make(chan ingestOutcome, 1)
	blobCh := make(chan blobOutcome, 1)
	embedCh := make(chan embedOutcome, 1)

	go func() {
		indexID, err := w.ensureIndex(ctx)
		if err != nil {
			ingestCh <- ingestOutcome{err: fmt.Errorf("resolve index: %w", err)}
			return
		}
		taskID, err := w.deps.TwelveLabs.CreateIndexTask(ctx, indexID, job.VideoPath)
		ingestCh <- ingestOutcome{taskID: taskID, err: err}
	}()
	go func() {
		if w.deps.Blob == nil {
			blobCh <- blobOutcome{}
			return
		}
		url, err := w.deps.Blob.UploadSegment(ctx, job.VideoPath)
		blobCh <- blobOutcome{url: url, err: err}
	}()
	go func() {
		taskID, err := w.deps.TwelveLabs.CreateEmbeddingTask(ctx, job.VideoPath)
		embedCh <- embedOutcome{taskID: taskID, err: err}
	}()

	ingest := <-ingestCh
	if ingest.err != nil {
		w.releaseFile(job.VideoPath)
		return fmt.Errorf("create ingest task: %w", ingest.err)
	}

	tlVideoID, err := w.waitForReady(ctx, ingest.taskID)
	if err != nil {
		w.releaseFile(job.VideoPath)
		return fmt.Errorf("ingest task %s: %w", ingest.taskID, err)
	}

	summary, err := w.generateSummary(ctx, tlVideoID)
	if err != nil {
		w.releaseFile(job.VideoPath)
		return fmt.Errorf("generate summary: %w", err)
	}

	// Blob failure is degraded-success: the row is written without a link.
	blob := <-blobCh
	var s3Link *string
	if blob.err != nil {
		log.Warn("Blob upload failed, committing without s3_link", "error", blob.err)
	} else if blob.url != "" {
		s3Link = &blob.url
	}

	capturedAt := job.Metadata.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = w.now().UTC()
	}
	pending := types.VectorStatusPending
	row := &types.Video{
		VideoID:           videoID,
		UserID:            job.Metadata.UserID,
		Timestamp:         capturedAt,
		Datetime:          capturedAt,
		DetailedSummary:   summary,
		S3Link:            s3Link,
		FileSize:          fileSize,
		ProcessedAt:       w.now().UTC(),
		TwelveLabsVideoID: &tlVideoID,
		VectorStatus:      &pending,
	}
	if _, err := w.deps.Videos.Create(ctx, nil, []*types.Video{row}); err != nil {
		w.releaseFile(job.VideoPath)
		return fmt.Errorf("insert video row: %w", err)
	}

	w.processed.Add(1)
	w.releaseFile(job.VideoPath)
	log.Info("Segment committed", "s3_link_set", s3Link != nil, "summary_len", len(summary))

	meta := automations.Metadata{
		VideoID:   videoID,
		UserID:    job.Metadata.UserID,
		Timestamp: capturedAt,
	}
	if strings.TrimSpace(summary) != "" && w.deps.Automations != nil {
		w.deps.Tasks.Go("automations", func() error {
			taskCtx, cancel := context.WithTimeout(context.Background(), finalizeTaskTimeout)
			defer cancel()
			w.deps.Automations.Process(taskCtx, summary, meta)
			return nil
		})
	}
	w.deps.Tasks.Go("embedding_finalize", func() error {
		taskCtx, cancel := context.WithTimeout(context.Background(), finalizeTaskTimeout)
		defer cancel()
		embed := <-embedCh
		if embed.err != nil {
			w.markVectorFailed(taskCtx, videoID)
			return fmt.Errorf("create embedding task: %w", embed.err)
		}
		return w.finalizeEmbedding(taskCtx, embed.taskID, videoID, meta)
	})

	return nil
}

// ensureIndex resolves the ingest index once and caches it for the worker's
// lifetime.
func (w *Worker) ensureIndex(ctx context.Context) (string, error) {
	if w.indexID != "" {
		return w.indexID, nil
	}
	indexID, err := w.deps.TwelveLabs.EnsureIndex(ctx)
	if err != nil {
		return "", err
	}
	w.indexID = indexID
	return indexID, nil
}

// waitForReady polls the ingest task until it is ready. The interval starts
// at 0.5 s, grows by 1.2x while pending up to 2 s and clamps back to 0.5 s
// while processing. Transport failures back off exponentially and the
// failure streak resets on any successful poll. The whole wait is capped at
// 180 s; a terminal failed or error status is fatal for the job.
func (w *Worker) waitForReady(ctx context.Context, taskID string) (string, error) {
	deadline := w.now().Add(ingestWaitCap)
	interval := pollInitialInterval
	failures := 0

	for {
		if !w.now().Before(deadline) {
			return "", fmt.Errorf("not ready within %s", ingestWaitCap)
		}

		task, err := w.deps.TwelveLabs.GetTask(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			failures++
			backoff := transportBackoffBase << (failures - 1)
			if backoff > transportBackoffCap || backoff <= 0 {
				backoff = transportBackoffCap
			}
			w.log.Warn("Ingest poll failed", "task_id", taskID, "failures", failures, "backoff", backoff.String(), "error", err)
			if err := w.sleep(ctx, backoff); err != nil {
				return "", err
			}
			continue
		}
		failures = 0

		switch task.Status {
		case "ready":
			if task.VideoID == "" {
				return "", fmt.Errorf("ready without video id")
			}
			return task.VideoID, nil
		case "failed", "error":
			return "", fmt.Errorf("terminal status %q", task.Status)
		case "processing":
			interval = pollInitialInterval
		default: // pending and transitional states
			grown := time.Duration(float64(interval) * pollGrowthFactor)
			if grown > pollMaxInterval {
				grown = pollMaxInterval
			}
			interval = grown
		}

		if err := w.sleep(ctx, interval); err != nil {
			return "", err
		}
	}
}

// generateSummary retries the text-generation call with linear backoff.
func (w *Worker) generateSummary(ctx context.Context, tlVideoID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= summaryAttempts; attempt++ {
		summary, err := w.deps.TwelveLabs.GenerateText(ctx, tlVideoID, summaryPrompt)
		if err == nil {
			return summary, nil
		}
		lastErr = err
		if attempt < summaryAttempts {
			wait := time.Duration(attempt) * summaryBackoffStep
			w.log.Warn("Summary generation failed, retrying", "attempt", attempt, "wait", wait.String(), "error", err)
			if sErr := w.sleep(ctx, wait); sErr != nil {
				return "", sErr
			}
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", summaryAttempts, lastErr)
}

// finalizeEmbedding waits for the embedding task, retrieves the vector and
// upserts the point under the same UUID as the relational row. It runs
// detached; the vector_status column records its outcome.
func (w *Worker) finalizeEmbedding(ctx context.Context, embedTaskID string, videoID uuid.UUID, meta automations.Metadata) error {
	processing := types.VectorStatusProcessing
	if err := w.deps.Videos.UpdateVectorStatus(ctx, nil, videoID, processing, nil); err != nil {
		w.log.Warn("Vector status update failed", "video_id", videoID, "status", processing, "error", err)
	}

	if err := w.waitForEmbedding(ctx, embedTaskID); err != nil {
		w.markVectorFailed(ctx, videoID)
		return fmt.Errorf("embedding task %s: %w", embedTaskID, err)
	}

	vector, err := w.deps.TwelveLabs.RetrieveEmbedding(ctx, embedTaskID)
	if err != nil {
		w.markVectorFailed(ctx, videoID)
		return fmt.Errorf("retrieve embedding: %w", err)
	}

	point := qdrant.MemoryPoint{
		ID:        videoID,
		Vector:    vector,
		UserID:    meta.UserID,
		Timestamp: meta.Timestamp,
	}
	var upsertErr error
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		if attempt > 0 {
			if err := w.sleep(ctx, time.Duration(1<<(attempt-1))*time.Second); err != nil {
				w.markVectorFailed(ctx, videoID)
				return err
			}
		}
		if upsertErr = w.deps.Vectors.Upsert(ctx, point); upsertErr == nil {
			break
		}
		w.log.Warn("Vector upsert failed", "video_id", videoID, "attempt", attempt+1, "error", upsertErr)
	}
	if upsertErr != nil {
		w.markVectorFailed(ctx, videoID)
		return fmt.Errorf("vector upsert: %w", upsertErr)
	}

	completed := types.VectorStatusCompleted
	vectorID := videoID
	if err := w.deps.Videos.UpdateVectorStatus(ctx, nil, videoID, completed, &vectorID); err != nil {
		w.log.Warn("Vector status update failed", "video_id", videoID, "status", completed, "error", err)
	}
	w.log.Info("Embedding finalized", "video_id", videoID, "dims", len(vector))
	return nil
}

func (w *Worker) waitForEmbedding(ctx context.Context, taskID string) error {
	deadline := w.now().Add(embedWaitCap)
	for {
		if !w.now().Before(deadline) {
			return fmt.Errorf("not ready within %s", embedWaitCap)
		}
		status, err := w.deps.TwelveLabs.GetEmbeddingTaskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn("Embedding status poll failed", "task_id", taskID, "error", err)
		} else {
			switch status {
			case "ready":
				return nil
			case "failed", "error":
				return fmt.Errorf("terminal status %q", status)
			}
		}
		if err := w.sleep(ctx, embedPollInterval); err != nil {
			return err
		}
	}
}

func (w *Worker) markVectorFailed(ctx context.Context, videoID uuid.UUID) {
	failed := types.VectorStatusFailed
	if err := w.deps.Videos.UpdateVectorStatus(ctx, nil, videoID, failed, nil); err != nil {
		w.log.Warn("Vector status update failed", "video_id", videoID, "status", failed, "error", err)
	}
}

// releaseFile removes the segment from local disk. Committed and abandoned
// jobs both release their temporary; a missing file is not an error here.
func (w *Worker) releaseFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.log.Warn("Segment file cleanup failed", "video_path", path, "error", err)
	}
}
