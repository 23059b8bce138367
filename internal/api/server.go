package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/storefront-auth/internal/audit"
	"github.com/nerrad567/storefront-auth/internal/auth"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/config"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/logging"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by the database and the optional brokers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	App        config.AppConfig
	APIKey     string
	Metrics    config.MetricsConfig
	Logger     *logging.Logger
	Auth       *auth.Service
	AuditRepo  audit.Repository        // optional: audit trail listing
	Health     map[string]HealthChecker // optional: checked by /api/v1/health
	Prometheus *metrics.Metrics         // optional: request metrics
	Gatherer   prometheus.Gatherer      // optional: /metrics exposition
	Version    string

	// Now overrides the clock used for cookie lifetimes (tests only).
	Now func() time.Time
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	app        config.AppConfig
	apiKey     string
	metricsCfg config.MetricsConfig
	logger     *logging.Logger
	auth       *auth.Service
	auditRepo  audit.Repository
	health     map[string]HealthChecker
	prom       *metrics.Metrics
	gatherer   prometheus.Gatherer
	cookies    cookiePolicy
	version    string
	now        func() time.Time
	startTime  time.Time
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	if deps.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	s := &Server{
		cfg:        deps.Config,
		app:        deps.App,
		apiKey:     deps.APIKey,
		metricsCfg: deps.Metrics,
		logger:     deps.Logger.With("component", "api"),
		auth:       deps.Auth,
		auditRepo:  deps.AuditRepo,
		health:     deps.Health,
		prom:       deps.Prometheus,
		gatherer:   deps.Gatherer,
		cookies:    newCookiePolicy(deps.App.IsProduction()),
		version:    deps.Version,
		now:        deps.Now,
		startTime:  time.Now(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Handler returns the fully wired router. Start serves it; tests call it
// directly with httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
