package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

const (
	defaultNumWorkers      = 3
	defaultMonitorInterval = 10 * time.Second
	defaultDrainTimeout    = 30 * time.Second
)

// PoolConfig sizes the worker pool. Zero values take the defaults.
type PoolConfig struct {
	NumWorkers      int
	MonitorInterval time.Duration
	DrainTimeout    time.Duration
}

// PoolStats is one monitoring sample.
type PoolStats struct {
	QueueSize      int64 `json:"queue_size"`
	ActiveWorkers  int   `json:"active_workers"`
	TotalProcessed int64 `json:"total_processed"`
}

// Pool runs N workers against the shared queue and emits periodic
// monitoring samples. Shutdown is cooperative: workers observe the stop flag
// within the queue pop timeout, in-flight jobs finish on their own timeouts
// and detached tasks get a bounded drain.
type Pool struct {
	log     *logger.Logger
	cfg     PoolConfig
	deps    WorkerDeps
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(log *logger.Logger, cfg PoolConfig, deps WorkerDeps) *Pool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = defaultNumWorkers
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = defaultMonitorInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}

	p := &Pool{
		log:  log.With("service", "WorkerPool"),
		cfg:  cfg,
		deps: deps,
	}
	for i := 0; i < cfg.NumWorkers; i++ {
		p.workers = append(p.workers, NewWorker(log, i+1, deps))
	}
	return p
}

// Run blocks until ctx is cancelled, then stops the workers and drains the
// background task group.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("Worker pool starting", "num_workers", len(p.workers))

	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.monitor(ctx)
	}()

	<-ctx.Done()
	p.log.Info("Worker pool shutting down")
	for _, w := range p.workers {
		w.Stop()
	}
	p.wg.Wait()

	if p.deps.Tasks != nil {
		p.deps.Tasks.Drain(p.cfg.DrainTimeout)
	}
	stats := p.Stats(context.Background())
	p.log.Info("Worker pool stopped", "total_processed", stats.TotalProcessed)
}

// Stats samples the queue depth and worker counters. A broker error leaves
// the queue size at zero; monitoring must not fail the pool.
func (p *Pool) Stats(ctx context.Context) PoolStats {
	var stats PoolStats
	if size, err := p.deps.Queue.Size(ctx); err == nil {
		stats.QueueSize = size
	} else {
		p.log.Warn("Queue size probe failed", "error", err)
	}
	for _, w := range p.workers {
		if w.IsRunning() {
			stats.ActiveWorkers++
		}
		stats.TotalProcessed += w.Processed()
	}
	return stats
}

func (p *Pool) monitor(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := p.Stats(ctx)
			p.log.Info("Pool status",
				"queue_size", stats.QueueSize,
				"active_workers", stats.ActiveWorkers,
				"total_processed", stats.TotalProcessed,
			)
		}
	}
}
