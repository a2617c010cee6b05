package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hivehq/hive/internal/config"
	"github.com/hivehq/hive/internal/pkg/logger"
)

// Server wraps the HTTP listener.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer builds the router around the handlers.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	return &Server{cfg: cfg, handler: NewRouter(h)}
}

// ListenAndServe blocks serving requests until the listener fails or
// Shutdown is called. WriteTimeout stays zero: push streams hold their
// response open for the life of the connection.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.GetHost(), s.cfg.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info("http server listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
