// Package server hosts the optional diagnostics endpoint of the bridge.
//
// When a listen address is configured it serves:
//
//   - GET /healthz — liveness probe
//   - GET /readyz  — readiness probe
//   - GET /metrics — Prometheus scrape endpoint
//   - GET /stats   — one-shot JSON snapshot of bridge statistics
//   - GET /ws      — WebSocket stream of the same snapshot, one frame per second
//
// The server is deliberately decoupled from the audio path: handlers read
// [stream.BridgeStats] snapshots and never touch the pipeline itself, so a
// stalled scraper cannot stall playback.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/looptap/looptap/internal/health"
	"github.com/looptap/looptap/internal/observe"
	"github.com/looptap/looptap/internal/stream"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Config carries the dependencies of the diagnostics server.
type Config struct {
	// Addr is the host:port to listen on.
	Addr string

	// Stats is the statistics source shared with the pipeline.
	Stats *stream.BridgeStats

	// Health serves the liveness and readiness probes. When nil a handler
	// with no readiness checks is used.
	Health *health.Handler

	// Metrics instruments HTTP requests. Defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Log defaults to [slog.Default].
	Log *slog.Logger
}

// Server is the diagnostics HTTP server.
type Server struct {
	addr    string
	stats   *stream.BridgeStats
	health  *health.Handler
	metrics *observe.Metrics
	log     *slog.Logger

	pushInterval time.Duration
}

// New validates cfg and creates a Server. It does not start listening;
// call [Server.Run].
func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("server: listen address is required")
	}
	if cfg.Stats == nil {
		return nil, errors.New("server: stats source is required")
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Server{
		addr:         cfg.Addr,
		stats:        cfg.Stats,
		health:       cfg.Health,
		metrics:      cfg.Metrics,
		log:          cfg.Log.With("component", "diag"),
		pushInterval: statsPushInterval,
	}, nil
}

// Handler returns the routed diagnostics handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /stats", s.handleStats)

	root := http.NewServeMux()
	// The socket stays outside the request middleware: a subscriber session
	// lasts minutes and would skew the request duration histogram.
	root.HandleFunc("GET /ws", s.handleStatsSocket)
	root.Handle("/", observe.Middleware(s.metrics)(mux))
	return root
}

// Run serves until ctx is cancelled, then shuts down gracefully, waiting up
// to [shutdownTimeout] for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("diagnostics server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		s.log.Info("diagnostics server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve on %s: %w", s.addr, err)
	}
}

// handleStats serves a one-shot JSON snapshot of the bridge statistics.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(s.stats.Snapshot()); err != nil {
		s.log.Warn("encode stats snapshot", "error", err)
	}
}
