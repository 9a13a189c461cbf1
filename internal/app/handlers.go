package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/lifeos-backend/internal/handlers"
	"github.com/yungbote/lifeos-backend/internal/middleware"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/server"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

type Handlers struct {
	Auth     *handlers.AuthHandler
	Video    *handlers.VideoHandler
	Memory   *handlers.MemoryHandler
	Insights *handlers.InsightsHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:     handlers.NewAuthHandler(log, serviceset.Auth),
		Video:    handlers.NewVideoHandler(log, serviceset.Video),
		Memory:   handlers.NewMemoryHandler(log, serviceset.Memory, serviceset.Chatbot),
		Insights: handlers.NewInsightsHandler(log, serviceset.Insights),
	}
}

func wireMiddleware(log *logger.Logger, serviceset Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, serviceset.Auth),
	}
}

func wireRouter(handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthHandler:     handlerset.Auth,
		VideoHandler:    handlerset.Video,
		MemoryHandler:   handlerset.Memory,
		InsightsHandler: handlerset.Insights,
		AuthMiddleware:  mw.Auth,
	})
}
