package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/lifeos-backend/internal/db"
	"github.com/yungbote/lifeos-backend/internal/pipeline"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

// App is the fully wired API process. It carries an in-process worker pool
// so a single binary is a complete deployment; cmd/worker exists for scaling
// the pool separately.
type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Pool     *pipeline.Pool

	poolDone chan struct{}
}

func New(ctx context.Context) (*App, error) {
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

	serviceset, err := wireServices(log, cfg, clientset, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset)
	mw := wireMiddleware(log, serviceset)
	router := wireRouter(handlerset, mw)

	controller := wireAutomations(ctx, log, clientset, reposet)
	pool := wirePool(log, cfg, clientset, reposet, controller)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Clients:  clientset,
		Repos:    reposet,
		Services: serviceset,
		Pool:     pool,
	}, nil
}

// Start launches the in-process worker pool. It returns immediately; the
// pool runs until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.Pool == nil || a.poolDone != nil {
		return
	}
	a.poolDone = make(chan struct{})
	go func() {
		defer close(a.poolDone)
		a.Pool.Run(ctx)
	}()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.poolDone != nil {
		<-a.poolDone
	}
	if a.Clients.Queue != nil {
		if err := a.Clients.Queue.Close(); err != nil {
			a.Log.Warn("Queue close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

func newLogger() (*logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}
