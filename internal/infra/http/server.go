package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bioarchive/api/internal/config"
	"github.com/bioarchive/api/pkg/logger"
)

// Server wraps the standard HTTP server with lifecycle management.
type Server struct {
	srv *http.Server
	cfg *config.ServerConfig
	log *logger.Logger
}

// NewServer creates an HTTP server serving the given handler.
func NewServer(cfg *config.ServerConfig, h http.Handler, log *logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      http.TimeoutHandler(h, cfg.RequestTimeout, "request timed out"),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  2 * time.Minute,
		},
		cfg: cfg,
		log: log,
	}
}

// Start blocks serving requests until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.log.Info("http server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
