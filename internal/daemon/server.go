package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/OSchengdu/swissK-agent/internal/config"
	"github.com/OSchengdu/swissK-agent/internal/llm/configbuilder"
	"github.com/OSchengdu/swissK-agent/internal/observability"
	taskrpc "github.com/OSchengdu/swissK-agent/internal/rpc/tasks"
	toolrpc "github.com/OSchengdu/swissK-agent/internal/rpc/tools"
	"github.com/OSchengdu/swissK-agent/internal/tools"
	"github.com/OSchengdu/swissK-agent/internal/version"
)

// Server exposes the task pipeline over HTTP: NDJSON on /task and a Connect
// bidi stream, plus health and metrics.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  taskrpc.Runner
	metrics *observability.Metrics
	tools   *tools.Registry
}

// NewServer constructs a daemon instance.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics()
	opts, err := configbuilder.WorkerOptions(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	return NewServerWithRunner(cfg, logger, taskrpc.WorkerRunner{Options: opts}, metrics), nil
}

// NewServerWithRunner constructs a daemon around an existing runner.
func NewServerWithRunner(cfg *config.Config, logger *zap.Logger, runner taskrpc.Runner, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Server{cfg: cfg, logger: logger, runner: runner, metrics: metrics, tools: tools.Default()}
}

// Handler returns the daemon's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle("/tools", toolrpc.SchemaHandler{Registry: s.tools})
	mux.Handle("/tools/", toolrpc.SchemaHandler{Registry: s.tools})
	mux.Handle("/task", taskrpc.NewHandler(s.runner, s.metrics, s.logger))

	if s.transport() == "ndjson" {
		return mux
	}
	path, handler := taskrpc.NewConnectHandler(s.runner, s.metrics, s.logger)
	mux.Handle(path, handler)
	return h2c.NewHandler(mux, &http2.Server{})
}

func (s *Server) transport() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport))
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the daemon on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting swissk daemon",
			zap.String("addr", ln.Addr().String()),
			zap.String("transport", s.transport()),
		)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down swissk daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"status":"ok","version":%q}`, version.Version)
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
