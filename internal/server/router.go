package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/lifeos-backend/internal/handlers"
	"github.com/yungbote/lifeos-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	VideoHandler    *handlers.VideoHandler
	MemoryHandler   *handlers.MemoryHandler
	InsightsHandler *handlers.InsightsHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/auth/register", cfg.AuthHandler.Register)
	router.POST("/auth/login", cfg.AuthHandler.Login)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.GET("/auth/me", cfg.AuthHandler.Me)
	// Videos
	protected.GET("/videos", cfg.VideoHandler.List)
	protected.GET("/videos/:id", cfg.VideoHandler.Get)
	protected.DELETE("/videos/:id", cfg.VideoHandler.Delete)
	protected.GET("/highlights/list", cfg.VideoHandler.ListHighlights)
	// Memory
	protected.POST("/memory/create", cfg.MemoryHandler.Create)
	protected.POST("/memory/search", cfg.MemoryHandler.Search)
	protected.POST("/memory/chatbot", cfg.MemoryHandler.Chatbot)
	protected.DELETE("/memory/delete", cfg.MemoryHandler.Delete)
	protected.GET("/memory/health", cfg.MemoryHandler.Health)
	protected.GET("/memory/stats/collection", cfg.MemoryHandler.CollectionStats)
	// Insights
	protected.GET("/insights/recent", cfg.InsightsHandler.Recent)
	protected.GET("/insights/summary", cfg.InsightsHandler.Summary)

	return router
}
