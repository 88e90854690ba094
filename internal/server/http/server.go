// Package httpserver serves the operational endpoints of the acquisition processes:
// liveness, readiness and Prometheus metrics.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/fulltext-acquisition-service/internal/database"
)

// readinessTimeout bounds every readiness probe.
const readinessTimeout = 3 * time.Second

// DatabaseHealth reports connection pool health.
type DatabaseHealth interface {
	Health(ctx context.Context) database.HealthStatus
}

// Checker is a named readiness dependency such as Temporal or Redis.
type Checker func(ctx context.Context) error

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MetricsEnabled  bool
	MetricsPath     string
	MetricsGatherer prometheus.Gatherer
}

// Server is the ops HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	db         DatabaseHealth
	checks     map[string]Checker
	logger     zerolog.Logger
}

// NewServer creates the server. db may be nil for processes without a database.
func NewServer(cfg Config, db DatabaseHealth, checks map[string]Checker, logger zerolog.Logger) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		db:     db,
		checks: checks,
		logger: logger.With().Str("component", "http-server").Logger(),
	}
	s.router = s.buildRouter(cfg)
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) buildRouter(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(accessLogMiddleware(s.logger))

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	if cfg.MetricsEnabled {
		r.Method(http.MethodGet, cfg.MetricsPath, promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens and serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	s.logger.Info().Str("address", ln.Addr().String()).Msg("HTTP server starting")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler reports liveness. It never touches dependencies.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readinessResponse struct {
	Status   string                 `json:"status"`
	Database *database.HealthStatus `json:"database,omitempty"`
	Checks   map[string]string      `json:"checks,omitempty"`
}

// readinessHandler reports ready only when the database and every checker are healthy.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := readinessResponse{Status: "ready"}
	ready := true

	if s.db != nil {
		health := s.db.Health(ctx)
		resp.Database = &health
		if !health.Healthy() {
			ready = false
		}
	}

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if err := s.checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				ready = false
				s.logger.Warn().Err(err).Str("check", name).Msg("readiness check failed")
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	if !ready {
		resp.Status = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
