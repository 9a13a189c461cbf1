package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/types"
)

const popTimeout = 500 * time.Millisecond

// VideoQueue is the FIFO of pending segment jobs. Jobs are left-pushed and
// right-popped; delivery is at-least-once, so consumers must be idempotent.
type VideoQueue interface {
	Push(ctx context.Context, job *types.SegmentJob) error
	PushBatch(ctx context.Context, jobs []*types.SegmentJob) (int, error)
	// Pop blocks for at most 500 ms and returns (nil, nil) when no work is
	// available, so shutdown signals are observed quickly.
	Pop(ctx context.Context) (*types.SegmentJob, error)
	Size(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
	Close() error
}

type videoQueue struct {
	log *logger.Logger
	rdb *goredis.Client
	key string
}

func NewVideoQueue(log *logger.Logger) (VideoQueue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	key := strings.TrimSpace(os.Getenv("REDIS_QUEUE_KEY"))
	if key == "" {
		key = "video_processing_queue"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newVideoQueue(log, rdb, key), nil
}

// NewVideoQueueWithClient wires an existing client, used by tests.
func NewVideoQueueWithClient(log *logger.Logger, rdb *goredis.Client, key string) VideoQueue {
	return newVideoQueue(log, rdb, key)
}

func newVideoQueue(log *logger.Logger, rdb *goredis.Client, key string) VideoQueue {
	return &videoQueue{
		log: log.With("service", "VideoQueue", "queue_key", key),
		rdb: rdb,
		key: key,
	}
}

func (q *videoQueue) Push(ctx context.Context, job *types.SegmentJob) error {
	if q == nil || q.rdb == nil {
		return fmt.Errorf("video queue not initialized")
	}
	raw, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("queue push: %w", err)
	}
	return nil
}

func (q *videoQueue) PushBatch(ctx context.Context, jobs []*types.SegmentJob) (int, error) {
	if q == nil || q.rdb == nil {
		return 0, fmt.Errorf("video queue not initialized")
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	pipe := q.rdb.Pipeline()
	queued := 0
	for _, job := range jobs {
		raw, err := encodeJob(job)
		if err != nil {
			q.log.Warn("Skipping unencodable segment job", "error", err)
			continue
		}
		pipe.LPush(ctx, q.key, raw)
		queued++
	}
	if queued == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("queue push batch: %w", err)
	}
	return queued, nil
}

func (q *videoQueue) Pop(ctx context.Context) (*types.SegmentJob, error) {
	if q == nil || q.rdb == nil {
		return nil, fmt.Errorf("video queue not initialized")
	}
	res, err := q.rdb.BRPop(ctx, popTimeout, q.key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue pop: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("queue pop: unexpected reply length %d", len(res))
	}
	var job types.SegmentJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("queue pop decode: %w", err)
	}
	return &job, nil
}

func (q *videoQueue) Size(ctx context.Context) (int64, error) {
	if q == nil || q.rdb == nil {
		return 0, fmt.Errorf("video queue not initialized")
	}
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return n, nil
}

func (q *videoQueue) Clear(ctx context.Context) error {
	if q == nil || q.rdb == nil {
		return fmt.Errorf("video queue not initialized")
	}
	if err := q.rdb.Del(ctx, q.key).Err(); err != nil {
		return fmt.Errorf("queue clear: %w", err)
	}
	return nil
}

func (q *videoQueue) Close() error {
	if q == nil || q.rdb == nil {
		return nil
	}
	return q.rdb.Close()
}

func encodeJob(job *types.SegmentJob) ([]byte, error) {
	if job == nil {
		return nil, fmt.Errorf("nil segment job")
	}
	if job.Status == "" {
		job.Status = types.SegmentJobStatusPending
	}
	if job.EnqueuedAt == 0 {
		job.EnqueuedAt = float64(time.Now().UnixNano()) / float64(time.Second)
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode segment job: %w", err)
	}
	return raw, nil
}
