package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/lifeos-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := app.NewWorkerApp(ctx)
	if err != nil {
		fmt.Printf("Failed to start pipeline worker: %v\n", err)
		os.Exit(1)
	}
	defer w.Close()

	w.Log.Info("Pipeline worker started", "num_workers", w.Cfg.NumWorkers)
	w.Run(ctx)
	w.Log.Info("Pipeline worker stopped")
}
