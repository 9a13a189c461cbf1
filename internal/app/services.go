package app

import (
	"fmt"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/services"
)

type Services struct {
	Auth     services.AuthService
	Video    services.VideoService
	Memory   services.MemoryService
	Chatbot  services.ChatbotService
	Insights services.InsightsService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	auth, err := services.NewAuthService(log, reposet.User, cfg.JWTSecretKey)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	return Services{
		Auth:     auth,
		Video:    services.NewVideoService(log, reposet.Video, reposet.Highlight, clients.Blob, clients.Vectors),
		Memory:   services.NewMemoryService(log, clients.TwelveLabs, clients.Vectors, reposet.Video),
		Chatbot:  services.NewChatbotService(log, clients.OpenAI, clients.TwelveLabs, clients.Vectors, reposet.Video),
		Insights: services.NewInsightsService(log, reposet.Video),
	}, nil
}
