package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tankwatch/tank-guard/internal/logger"
)

const (
	shutdownTimeout   = 2 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Serve runs the HTTP API on listener until ctx is done.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	ctx = logger.WithName(ctx, "http")

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		logger.InfoKV(ctx, "Status API listening", "address", listener.Addr().String())

		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve status api: %w", err)

			return
		}

		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	logger.InfoKV(ctx, "Status API stopped", "error", err)

	if serveErr := <-errCh; serveErr != nil {
		return serveErr
	}

	return err
}
