package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/yungbote/lifeos-backend/internal/capture"
	"github.com/yungbote/lifeos-backend/internal/clients/redis"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/utils"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userID, err := uuid.Parse(utils.GetEnv("CAPTURE_USER_ID", "", log))
	if err != nil {
		log.Error("CAPTURE_USER_ID must be a valid uuid", "error", err)
		os.Exit(1)
	}

	fps := utils.GetEnvAsInt("CAPTURE_FPS", 10, log)
	segmentDuration := utils.GetEnvAsInt("CAPTURE_SEGMENT_DURATION", 10, log)
	width := utils.GetEnvAsInt("CAPTURE_WIDTH", 1280, log)
	height := utils.GetEnvAsInt("CAPTURE_HEIGHT", 720, log)
	sampleRate := utils.GetEnvAsInt("CAPTURE_SAMPLE_RATE", 44100, log)
	channels := utils.GetEnvAsInt("CAPTURE_CHANNELS", 1, log)

	queue, err := redis.NewVideoQueue(log)
	if err != nil {
		log.Error("Failed to init video queue", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	builder, err := capture.NewBuilder(log, capture.BuilderConfig{
		FPS:             fps,
		SegmentDuration: segmentDuration,
		Resolution:      [2]int{width, height},
		SampleRate:      sampleRate,
		Channels:        channels,
		OutDir:          utils.GetEnv("CAPTURE_OUT_DIR", "", log),
		FFmpegPath:      utils.GetEnv("FFMPEG_PATH", "", log),
	})
	if err != nil {
		log.Error("Failed to init segment builder", "error", err)
		os.Exit(1)
	}

	deviceCfg := capture.DeviceConfig{
		FFmpegPath:  utils.GetEnv("FFMPEG_PATH", "", log),
		VideoInput:  utils.GetEnv("CAPTURE_VIDEO_DEVICE", "", log),
		VideoFormat: utils.GetEnv("CAPTURE_VIDEO_FORMAT", "", log),
		AudioInput:  utils.GetEnv("CAPTURE_AUDIO_DEVICE", "", log),
		AudioFormat: utils.GetEnv("CAPTURE_AUDIO_FORMAT", "", log),
		Resolution:  [2]int{width, height},
		SampleRate:  sampleRate,
		Channels:    channels,
	}

	camera, err := capture.NewFFmpegCamera(log, deviceCfg)
	if err != nil {
		log.Error("Failed to open camera", "error", err)
		os.Exit(1)
	}

	var mic capture.AudioSource
	microphone, err := capture.NewFFmpegMicrophone(log, deviceCfg)
	if err != nil {
		log.Warn("Microphone unavailable, capturing video only", "error", err)
	} else {
		mic = microphone
	}

	loop, err := capture.NewLoop(log, capture.LoopConfig{
		FPS:             fps,
		SegmentDuration: segmentDuration,
		UserID:          userID,
	}, camera, mic, builder, queue)
	if err != nil {
		log.Error("Failed to init capture loop", "error", err)
		os.Exit(1)
	}

	log.Info("Capture started", "fps", fps, "segment_duration", segmentDuration, "user_id", userID)
	if err := loop.Run(ctx); err != nil {
		log.Error("Capture loop failed", "error", err)
		os.Exit(1)
	}
	log.Info("Capture stopped")
}
