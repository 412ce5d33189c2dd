package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-obegraensad/internal/audit"
	"github.com/nerrad567/gray-logic-obegraensad/internal/entry"
	"github.com/nerrad567/gray-logic-obegraensad/internal/flow"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// FlowService runs pairing flows. *flow.Manager satisfies it.
type FlowService interface {
	Start(ctx context.Context) (string, flow.Result)
	Configure(ctx context.Context, flowID string, input *flow.UserInput) (flow.Result, error)
	Abort(flowID string) error
}

// EntryService reads and removes config entries. *entry.Registry satisfies it.
type EntryService interface {
	GetEntry(ctx context.Context, id string) (*entry.Entry, error)
	ListEntries(ctx context.Context) ([]entry.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// EntryRemover is told when an entry is deleted so its display can be
// released. *bridge.Bridge satisfies it.
type EntryRemover interface {
	RemoveEntry(ctx context.Context, id string)
}

// AuditLog lists recorded pairing activity. *audit.SQLiteRepository satisfies it.
type AuditLog interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// HealthChecker is a dependency reported by GET /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Flows    FlowService
	Entries  EntryService
	Bridge   EntryRemover             // optional
	Audit    *audit.Recorder          // optional; records entry deletions
	AuditLog AuditLog                 // optional; serves GET /audit
	Gatherer prometheus.Gatherer      // optional; defaults to prometheus.DefaultGatherer
	Checks   map[string]HealthChecker // optional; reported by /health
	Version  string
}

// Server is the HTTP API server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	flows    FlowService
	entries  EntryService
	bridge   EntryRemover
	audit    *audit.Recorder
	auditLog AuditLog
	gatherer prometheus.Gatherer
	checks   map[string]HealthChecker
	limiter  *RateLimiter
	version  string
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Flows == nil {
		return nil, fmt.Errorf("flow service is required")
	}
	if deps.Entries == nil {
		return nil, fmt.Errorf("entry service is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:      deps.Config,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		flows:    deps.Flows,
		entries:  deps.Entries,
		bridge:   deps.Bridge,
		audit:    deps.Audit,
		auditLog: deps.AuditLog,
		gatherer: gatherer,
		checks:   deps.Checks,
		version:  deps.Version,
	}

	if deps.Security.RateLimit.Enabled {
		s.limiter = NewRateLimiter(deps.Security.RateLimit.RequestsPerMinute, deps.Security.RateLimit.Burst)
	}

	return s, nil
}

// Handler returns the fully wired router. Start uses it; tests call it directly.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.limiter != nil {
		go s.limiter.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	if s.cancel != nil {
		s.cancel()
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
		return fmt.Errorf("api server not started")
	}

	return nil
}
