// Package api serves cached statistics over HTTP. Every response is a JSON
// Envelope; handlers only read published snapshots and never wait for a
// background refresh.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dailyyoga/regstats/cache"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/dailyyoga/regstats/routine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Option configures a Server
type Option func(*Server)

// WithCollector records request counts and latencies
func WithCollector(c metrics.Collector) Option {
	return func(s *Server) {
		if c != nil {
			s.collector = c
		}
	}
}

// WithGatherer exposes g in the prometheus text format on path
func WithGatherer(path string, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.gatherer = g
	}
}

// WithMiddleware appends middleware inside the built-in ones
func WithMiddleware(mws ...Middleware) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, mws...)
	}
}

// Health is the body of GET /api/health.
type Health struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Timestamp time.Time              `json:"timestamp"`
	Caches    map[string]CacheHealth `json:"caches"`
}

// CacheHealth is the per-cache part of Health.
type CacheHealth struct {
	State   cache.State `json:"state"`
	HasData bool        `json:"has_data"`
}

// Server is the HTTP front end for one or more caches.
type Server struct {
	cfg         *Config
	log         logger.Logger
	collector   metrics.Collector
	gatherer    prometheus.Gatherer
	metricsPath string
	middleware  []Middleware
	mounts      []Mount
	runner      routine.Runner
	handler     http.Handler

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// New builds a server for mounts. Routes are registered immediately, so
// Handler can be used without Start.
func New(cfg *Config, log logger.Logger, mounts []Mount, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(mounts) == 0 {
		return nil, ErrNoCaches
	}
	for _, m := range mounts {
		if err := m.validate(); err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:       cfg,
		log:       logger.Named(log, "api"),
		collector: metrics.NewNoop(),
		mounts:    mounts,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = routine.New(s.log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.health)
	for _, m := range mounts {
		newCacheHandler(m.Cache, s.log, cfg).register(mux, m.Prefix)
	}
	if s.gatherer != nil {
		path := s.metricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	mws := []Middleware{
		requestIDMiddleware,
		loggingMiddleware(s.log, s.collector),
		recoveryMiddleware(s.log, s.collector),
	}
	s.handler = chain(mux, append(mws, s.middleware...)...)
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned; serve errors after that are logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return ErrServerStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return ErrListen(s.cfg.Addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	srv := s.srv
	s.runner.GoNamed("http-server", func() {
		s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	})
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Shutdown stops accepting connections and waits for active requests,
// bounded by ctx and the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	s.runner.Wait()
	s.log.Info("http server stopped")
	return err
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	h := Health{
		Status:    "ok",
		Service:   s.cfg.Service,
		Timestamp: time.Now(),
		Caches:    make(map[string]CacheHealth, len(s.mounts)),
	}
	for _, m := range s.mounts {
		info := m.Cache.Info()
		h.Caches[m.Cache.Name()] = CacheHealth{State: info.State, HasData: info.HasData}
	}
	writeOK(w, s.log, h)
}
