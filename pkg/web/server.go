// Package web serves the admin HTTP endpoint of a keyed executor:
// liveness, a JSON stats snapshot and Prometheus metrics.
package web

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/keyseq"
	"github.com/fluxorio/keyseq/pkg/observability/prometheus"
)

// StatsSource is the part of *keyseq.Executor the admin server reads.
type StatsSource interface {
	Name() string
	State() keyseq.State
	Stats() keyseq.Stats
}

// Config configures the admin server
type Config struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Gatherer backs /metrics. Default: prometheus.DefaultRegistry.
	Gatherer prom.Gatherer `yaml:"-"`
	// Logger default: core.NewDefaultLogger().
	Logger core.Logger `yaml:"-"`
}

// DefaultConfig returns default configuration for addr
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server is the fasthttp admin server.
type Server struct {
	router *Router
	server *fasthttp.Server
	addr   string
	source StatsSource
	logger core.Logger

	totalRequests      atomic.Int64
	successfulRequests atomic.Int64
	errorRequests      atomic.Int64
}

// ServerMetrics counts requests served
type ServerMetrics struct {
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"` // 200-299
	ErrorRequests      int64 `json:"error_requests"`      // 500-599
}

// NewServer creates an admin server for source with /healthz, /stats and
// /metrics registered. Add middleware through Router().Use.
func NewServer(source StatsSource, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = core.NewDefaultLogger()
	}

	s := &Server{
		router: NewRouter(),
		addr:   cfg.Addr,
		source: source,
		logger: cfg.Logger,
	}
	s.server = &fasthttp.Server{
		Handler:               s.handleRequest,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		NoDefaultServerHeader: true,
		Logger:                fasthttpLogger{cfg.Logger},
	}

	metrics := prometheus.Handler(cfg.Gatherer)
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/stats", s.stats)
	s.router.GET("/metrics", func(ctx *RequestContext) error {
		metrics(ctx.RequestCtx)
		return nil
	})
	return s
}

// Router returns the router
func (s *Server) Router() *Router {
	return s.router
}

// Handler returns the fasthttp handler, for serving on a custom listener.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.handleRequest
}

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("admin server listening on %s", s.addr)
	return s.server.ListenAndServe(s.addr)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Shutdown stops accepting connections and waits for open ones to finish
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.ShutdownWithContext(ctx)
}

// Metrics returns current server metrics
func (s *Server) Metrics() ServerMetrics {
	return ServerMetrics{
		TotalRequests:      s.totalRequests.Load(),
		SuccessfulRequests: s.successfulRequests.Load(),
		ErrorRequests:      s.errorRequests.Load(),
	}
}

func (s *Server) handleRequest(rc *fasthttp.RequestCtx) {
	requestID := string(rc.Request.Header.Peek("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	rc.Response.Header.Set("X-Request-ID", requestID)
	s.totalRequests.Add(1)

	s.router.Serve(newRequestContext(rc, requestID))

	status := rc.Response.StatusCode()
	if status >= 200 && status < 300 {
		s.successfulRequests.Add(1)
	} else if status >= 500 {
		s.errorRequests.Add(1)
	}
}

// healthz reports 200 while the executor accepts work and 503 otherwise.
func (s *Server) healthz(ctx *RequestContext) error {
	state := s.source.State()
	status := fasthttp.StatusOK
	if state != keyseq.StateRunning {
		status = fasthttp.StatusServiceUnavailable
	}
	return ctx.JSON(status, map[string]interface{}{
		"executor": s.source.Name(),
		"state":    state,
	})
}

func (s *Server) stats(ctx *RequestContext) error {
	return ctx.JSON(fasthttp.StatusOK, s.source.Stats())
}

// fasthttpLogger routes fasthttp's internal messages to a core.Logger.
type fasthttpLogger struct {
	l core.Logger
}

func (f fasthttpLogger) Printf(format string, args ...interface{}) {
	f.l.Warnf(format, args...)
}
