// Package webserver exposes the pipeline over a small REST API with SSE
// progress and log streams.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/orchestrator"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	Orchestrator *orchestrator.Orchestrator
	Logger       *logger.Logger
}

// Server wraps the HTTP server with configuration.
type Server struct {
	cfg Config
	srv *http.Server
	log *logger.Logger
}

// New creates the HTTP server and registers all routes.
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("webserver requires an orchestrator")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New()
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	mux := http.NewServeMux()
	s := &Server{
		cfg: cfg,
		log: cfg.Logger.Component("webserver"),
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.registerRoutes(mux)
	return s, nil
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log.WithField("addr", s.srv.Addr).Info("HTTP server starting")

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Error("HTTP server shutdown error")
		}
	}()

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
