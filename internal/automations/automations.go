package automations

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

// Metadata carries the job identity into automation handlers. VideoID is the
// UUID minted by the worker before any I/O; it matches the relational row
// and the vector point.
type Metadata struct {
	VideoID   uuid.UUID
	UserID    uuid.UUID
	Timestamp time.Time
}

type Result struct {
	Type   string         `json:"type"`
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

const (
	ResultStatusCompleted = "completed"
	ResultStatusFailed    = "failed"
	ResultStatusSkipped   = "skipped"
)

// Automation is one dispatchable handler keyed by its classifier label.
type Automation interface {
	Type() string
	Run(ctx context.Context, summary string, meta Metadata) Result
}

type Controller interface {
	Process(ctx context.Context, summary string, meta Metadata) []Result
}

type controller struct {
	log        *logger.Logger
	classifier Classifier
	handlers   map[string]Automation
}

func NewController(log *logger.Logger, classifier Classifier, handlers ...Automation) Controller {
	byType := make(map[string]Automation, len(handlers))
	for _, h := range handlers {
		byType[h.Type()] = h
	}
	return &controller{
		log:        log.With("service", "AutomationController"),
		classifier: classifier,
		handlers:   byType,
	}
}

// Process classifies the summary, dispatches the triggered automations
// concurrently and aggregates their results. Handler failures are reported
// in the result list, never propagated.
func (c *controller) Process(ctx context.Context, summary string, meta Metadata) []Result {
	analysis := c.classifier.Classify(ctx, summary)
	c.log.Info("Summary classified",
		"video_id", meta.VideoID,
		"triggered", analysis.TriggeredAutomations,
		"classification", analysis.SummaryClassification,
	)

	type job struct {
		label   string
		handler Automation
	}
	jobs := make([]job, 0, len(analysis.TriggeredAutomations))
	results := make([]Result, 0, len(analysis.TriggeredAutomations))
	for _, label := range analysis.TriggeredAutomations {
		handler, ok := c.handlers[label]
		if !ok {
			c.log.Warn("No handler registered for automation", "automation", label)
			results = append(results, Result{
				Type:   label,
				Status: ResultStatusSkipped,
				Error:  "no handler registered",
			})
			continue
		}
		jobs = append(jobs, job{label: label, handler: handler})
	}

	if len(jobs) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("Automation handler panicked", "automation", j.label, "panic", r)
					mu.Lock()
					results = append(results, Result{
						Type:   j.label,
						Status: ResultStatusFailed,
						Error:  "handler panicked",
					})
					mu.Unlock()
				}
			}()
			res := j.handler.Run(ctx, summary, meta)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(j)
	}
	wg.Wait()

	for _, r := range results {
		c.log.Info("Automation finished",
			"video_id", meta.VideoID,
			"automation", r.Type,
			"status", r.Status,
			"error", r.Error,
		)
	}
	return results
}
