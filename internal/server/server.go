// Package server owns the HTTP listener fronting the operator API, the
// health probe, and the metrics endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/socialx/agent/internal/config"
	"log/slog"
)

// Server wraps the standard http.Server with the agent's configured
// timeouts and graceful shutdown. The autonomous loops run independently
// of it; shutting the listener down only stops operator traffic.
type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger
	http   *http.Server
}

// New builds the server around the given handler on the configured port.
func New(cfg config.ServerConfig, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		http:   srv,
	}
}

// Start serves until Shutdown is called. The closed-server error raised by
// a graceful shutdown is swallowed; anything else is a real failure.
func (s *Server) Start() error {
	s.logger.Info("operator API listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, giving up after the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("stopping operator API")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
