package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/lifeos-backend/internal/automations"
	"github.com/yungbote/lifeos-backend/internal/db"
	"github.com/yungbote/lifeos-backend/internal/pipeline"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

// WorkerApp is the fully wired pipeline process. It shares the API's clients
// and repos but serves no HTTP traffic.
type WorkerApp struct {
	Log     *logger.Logger
	DB      *gorm.DB
	Cfg     Config
	Clients Clients
	Pool    *pipeline.Pool
}

func NewWorkerApp(ctx context.Context) (*WorkerApp, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clientset, err := wireClients(ctx, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	controller := wireAutomations(ctx, log, clientset, reposet)
	pool := wirePool(log, cfg, clientset, reposet, controller)

	return &WorkerApp{
		Log:     log,
		DB:      theDB,
		Cfg:     cfg,
		Clients: clientset,
		Pool:    pool,
	}, nil
}

// wireAutomations assembles the post-commit fan-out. Calendar is optional;
// without Google credentials the remaining automations still run.
func wireAutomations(ctx context.Context, log *logger.Logger, clientset Clients, reposet Repos) automations.Controller {
	log.Info("Wiring automations...")

	handlers := []automations.Automation{
		automations.NewHighlightsAutomation(log, reposet.Highlight),
	}
	calendar, err := automations.NewCalendarAutomation(ctx, log, clientset.OpenAI)
	if err != nil {
		log.Warn("Calendar automation unavailable", "error", err)
	} else {
		handlers = append(handlers, calendar)
	}

	classifier := automations.NewClassifier(log, clientset.OpenAI)
	return automations.NewController(log, classifier, handlers...)
}

func wirePool(log *logger.Logger, cfg Config, clientset Clients, reposet Repos, controller automations.Controller) *pipeline.Pool {
	return pipeline.NewPool(log, pipeline.PoolConfig{
		NumWorkers:      cfg.NumWorkers,
		MonitorInterval: cfg.MonitorInterval,
		DrainTimeout:    cfg.DrainTimeout,
	}, pipeline.WorkerDeps{
		Queue:       clientset.Queue,
		TwelveLabs:  clientset.TwelveLabs,
		Blob:        clientset.Blob,
		Vectors:     clientset.Vectors,
		Videos:      reposet.Video,
		Automations: controller,
		Tasks:       pipeline.NewTaskGroup(log, 0),
	})
}

// Run blocks until ctx is cancelled, then drains in-flight work.
func (w *WorkerApp) Run(ctx context.Context) {
	w.Pool.Run(ctx)
}

func (w *WorkerApp) Close() {
	if w == nil {
		return
	}
	if w.Clients.Queue != nil {
		if err := w.Clients.Queue.Close(); err != nil {
			w.Log.Warn("Queue close failed", "error", err)
		}
	}
	if w.Log != nil {
		w.Log.Sync()
	}
}
