package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ListenAndServe serves the websocket at path on addr and shuts the HTTP server
// down gracefully when ctx is canceled.
func (m *Monitor) ListenAndServe(ctx context.Context, addr, path string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor listen on %s: %w", addr, err)
	}
	return m.Serve(ctx, l, path)
}

// Serve is ListenAndServe on an existing listener.
func (m *Monitor) Serve(ctx context.Context, l net.Listener, path string) error {
	mux := http.NewServeMux()
	m.Register(mux, path)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("Monitor listening", "addr", l.Addr().String(), "path", path)

	errCh := make(chan error, 1)
	go func() {
		// Serve returns http.ErrServerClosed on Shutdown.
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("monitor HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("monitor HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
