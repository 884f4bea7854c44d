package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// ServerDeps holds the dependencies required by the monitoring server.
type ServerDeps struct {
	Config   config.MonitoringConfig
	Logger   *logging.Logger
	Registry *prometheus.Registry

	// Health reports pipeline health for the /healthz endpoint.
	// Optional; when nil the endpoint always returns 200.
	Health func(ctx context.Context) error
}

// Server exposes Prometheus metrics and a liveness probe over HTTP.
//
// The server is created with NewServer() and started with Start().
type Server struct {
	cfg      config.MonitoringConfig
	logger   *logging.Logger
	registry *prometheus.Registry
	health   func(ctx context.Context) error
	server   *http.Server
}

// NewServer creates a monitoring server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("metrics registry is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		registry: deps.Registry,
		health:   deps.Health,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	router.Get("/healthz", s.handleHealthz)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.logger.Info("monitoring server starting", "address", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitoring server error", "error", err)
		}
	}()

	return nil
}

// handleHealthz reports pipeline liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// Close gracefully shuts down the monitoring server.
//
// It waits up to 5 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("monitoring server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down monitoring server: %w", err)
	}
	return nil
}

// HealthCheck verifies the monitoring server has been started.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("monitoring health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("monitoring server not started")
	}

	return nil
}
