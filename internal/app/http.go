package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

const shutdownTimeout = 10 * time.Second

// Run serves the API until ctx is cancelled, then shuts the listener down
// gracefully so in-flight requests finish before the process exits.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	ln, err := net.Listen("tcp", ":"+a.Cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", a.Cfg.Port, err)
	}
	a.Log.Info("API server listening", "port", a.Cfg.Port)
	return serveUntilDone(ctx, a.Log, &http.Server{Handler: a.Router}, ln)
}

// serveUntilDone blocks until the server fails or ctx ends. On cancellation
// the server gets shutdownTimeout to drain in-flight requests.
func serveUntilDone(ctx context.Context, log *logger.Logger, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown did not finish cleanly", "error", err)
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("API server stopped")
	return nil
}
