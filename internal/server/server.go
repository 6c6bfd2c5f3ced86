// Package server runs http servers of fittrack binaries.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nkiryanov/fittrack/internal/logger"
)

const ShutdownTimeout = 5 * time.Second

// Run starts http server and closes gracefully on context cancellation
// Returns nil when server stopped because of context cancellation
func Run(ctx context.Context, addr string, h http.Handler, l logger.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			l.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		l.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	l.Info("Starting server", "address", addr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
