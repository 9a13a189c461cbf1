package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

// TaskGroup hosts detached background work (embedding finalization,
// automation dispatch) that outlives the job it was spawned from. The group
// bounds concurrency and supports a best-effort drain on shutdown.
type TaskGroup struct {
	log *logger.Logger
	g   *errgroup.Group
}

func NewTaskGroup(log *logger.Logger, limit int) *TaskGroup {
	if limit <= 0 {
		limit = 16
	}
	g := &errgroup.Group{}
	g.SetLimit(limit)
	return &TaskGroup{
		log: log.With("service", "TaskGroup"),
		g:   g,
	}
}

// Go runs fn detached. Panics and errors are logged, never propagated; a
// background task must not kill a worker.
func (t *TaskGroup) Go(name string, fn func() error) {
	t.g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				t.log.Error("Background task panicked", "task", name, "panic", r)
			}
		}()
		if err := fn(); err != nil {
			t.log.Warn("Background task failed", "task", name, "error", err)
		}
		return nil
	})
}

// Drain waits up to timeout for in-flight tasks, then abandons them.
func (t *TaskGroup) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		_ = t.g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.log.Warn("Background task drain timed out, abandoning remaining tasks", "timeout", timeout.String())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
