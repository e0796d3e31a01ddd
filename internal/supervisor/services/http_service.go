// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/stellr/internal/logging"
)

const defaultShutdownTimeout = 10 * time.Second

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the local API under supervision. Stopping the
// service drains in-flight requests; hijacked websocket connections are not
// tracked by the server and are closed by the hub instead.
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. addr is used for logging only. A
// non-positive shutdownTimeout means 10s.
func NewHTTPServerService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &HTTPServerService{server: server, addr: addr, shutdownTimeout: shutdownTimeout}
}

func (h *HTTPServerService) String() string {
	return "http-server"
}

// Serve implements suture.Service. A listener failure is returned so the
// supervisor restarts the service; a graceful stop returns ctx.Err().
func (h *HTTPServerService) Serve(ctx context.Context) error {
	exited := h.listen()
	logging.Info().Str("addr", h.addr).Msg("HTTP server listening")

	select {
	case err := <-exited:
		if err != nil {
			return fmt.Errorf("http server on %s: %w", h.addr, err)
		}
		return nil
	case <-ctx.Done():
		if err := h.drain(); err != nil {
			return err
		}
		<-exited
		return ctx.Err()
	}
}

// listen runs ListenAndServe and reports its outcome. http.ErrServerClosed
// is reported as nil.
func (h *HTTPServerService) listen() <-chan error {
	exited := make(chan error, 1)
	go func() {
		err := h.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		exited <- err
		close(exited)
	}()
	return exited
}

// drain shuts the server down with its own deadline, since the serve
// context is already canceled by the time this runs.
func (h *HTTPServerService) drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	start := time.Now()
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logging.Info().Str("addr", h.addr).Dur("drained_in", time.Since(start)).Msg("HTTP server stopped")
	return nil
}
