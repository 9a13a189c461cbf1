package app

import (
	"time"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/utils"
)

type Config struct {
	JWTSecretKey    string
	Port            string
	NumWorkers      int
	MonitorInterval time.Duration
	DrainTimeout    time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	port := utils.GetEnv("PORT", "8080", log)
	numWorkers := utils.GetEnvAsInt("PIPELINE_WORKERS", 3, log)
	monitorSeconds := utils.GetEnvAsInt("PIPELINE_MONITOR_INTERVAL", 10, log)
	drainSeconds := utils.GetEnvAsInt("PIPELINE_DRAIN_TIMEOUT", 30, log)
	return Config{
		JWTSecretKey:    jwtSecretKey,
		Port:            port,
		NumWorkers:      numWorkers,
		MonitorInterval: time.Duration(monitorSeconds) * time.Second,
		DrainTimeout:    time.Duration(drainSeconds) * time.Second,
	}
}
