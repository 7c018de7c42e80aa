// Package core is the HTTP chassis for the courtwind API. It owns the chi
// router, the middleware chain, JSON envelopes and request validation. Domain
// handlers register their routes through V1RouteRegistrars.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"courtwind/internal/config"
)

// MetricsCollector records per-request API telemetry.
type MetricsCollector interface {
	RecordRequest(ctx context.Context, method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of routes onto the /v1 router.
type RouteRegistrar func(r chi.Router)

// Server bundles the router with its cross-cutting dependencies.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Metrics      MetricsCollector
	HealthChecks []HealthChecker

	V1RouteRegistrars []RouteRegistrar

	// Closers are released in order on Shutdown (database pools and the like).
	Closers []func()

	router *chi.Mux
}

// NewServer builds a Server. Routes are mounted separately with MountRoutes
// so callers can add registrars and health checks first.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for _, c := range s.Closers {
		c()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
