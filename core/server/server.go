package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/appserver/core/connector"
	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/health"
	"github.com/dmitrymomot/appserver/core/host"
	"github.com/dmitrymomot/appserver/core/logger"
	"github.com/dmitrymomot/appserver/core/metrics"
	"github.com/dmitrymomot/appserver/core/processor"
	"github.com/dmitrymomot/appserver/core/scope"
	"github.com/dmitrymomot/appserver/core/session"
	"github.com/dmitrymomot/appserver/core/webapp"
)

// Server assembles the engine, the session store, the protocol processor
// and one connector per configured port. Safe for concurrent use.
type Server struct {
	cfg  Config
	desc descriptor.Server
	web  descriptor.Web

	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracerProvider trace.TracerProvider
	units          *scope.Scope
	hostOpts       []host.Option
	appOpts        []webapp.Option

	mu          sync.Mutex
	running     bool
	engine      *host.Engine
	sessions    *session.Store
	connectors  []*connector.Connector
	metricsSrv  *http.Server
	metricsAddr net.Addr

	// live is the engine while running; read by Ready without s.mu.
	live atomic.Pointer[host.Engine]
}

// New creates a Server from process settings and loaded descriptors.
// Defaults to a no-op logger and a private metrics registry.
func New(cfg Config, desc descriptor.Server, web descriptor.Web, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		desc:   desc,
		web:    web,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		units:  scope.Process(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.cfg.ShutdownTimeout <= 0 {
		s.cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.cfg.WorkDir == "" {
		s.cfg.WorkDir = DefaultWorkDir
	}
	return s
}

// Start deploys every host, binds every connector and returns. Any failure
// (invalid descriptor, missing default host or root application, port in
// use) undoes what was started and is returned.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrServerAlreadyRunning
	}

	if len(s.desc.Connectors) == 0 {
		return ErrNoConnectors
	}
	if err := s.desc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	engine, err := s.buildEngine()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	if err := engine.Init(ctx); err != nil {
		engine.Stop()
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	sessions := s.buildSessions()
	if err := sessions.Start(context.WithoutCancel(ctx)); err != nil {
		engine.Stop()
		return fmt.Errorf("%w: start sessions: %w", ErrStartup, err)
	}

	proc := processor.New(processor.EngineRouter(engine), sessions,
		processor.WithLogger(s.logger.With(logger.Component("processor"))),
		processor.WithMetrics(s.metrics),
		processor.WithTracerProvider(s.tracerProvider),
		processor.WithMaxBodySize(s.cfg.MaxBodySize),
		processor.WithReadTimeout(s.cfg.ReadTimeout),
		processor.WithServerName(s.serverName()),
	)

	connectors := make([]*connector.Connector, 0, len(s.desc.Connectors))
	g, gctx := errgroup.WithContext(ctx)
	for _, cd := range s.desc.Connectors {
		c := connector.New(cd, proc,
			connector.WithLogger(s.logger),
			connector.WithMetrics(s.metrics),
			connector.WithPoolConfig(s.cfg.Pool),
			connector.WithBindAddress(s.cfg.BindAddress),
		)
		connectors = append(connectors, c)
		g.Go(func() error { return c.Start(gctx) })
	}

	rollback := func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		for _, c := range connectors {
			_ = c.Stop(stopCtx)
		}
		sessions.Stop()
		engine.Stop()
	}

	if err := g.Wait(); err != nil {
		rollback()
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	if s.cfg.MetricsAddr != "" {
		srv, err := s.serveMetrics(ctx)
		if err != nil {
			rollback()
			return fmt.Errorf("%w: metrics listener: %w", ErrStartup, err)
		}
		s.metricsSrv = srv
	}

	s.engine = engine
	s.live.Store(engine)
	s.sessions = sessions
	s.connectors = connectors
	s.running = true

	s.logger.InfoContext(ctx, "server started",
		slog.String("service", s.serverName()),
		logger.Count("hosts", len(s.desc.Engine.Hosts)),
		logger.Count("connectors", len(connectors)),
	)
	return nil
}

func (s *Server) buildEngine() (*host.Engine, error) {
	hosts := make([]*host.Host, 0, len(s.desc.Engine.Hosts))
	for _, hd := range s.desc.Engine.Hosts {
		opts := []host.Option{
			host.WithLogger(s.logger),
			host.WithWorkDir(filepath.Join(s.cfg.WorkDir, hd.Name)),
			host.WithRedeployCounter(s.metrics.RedeployCounter()),
			host.WithRedeployFailureCounter(s.metrics.RedeployFailureCounter()),
			host.WithAppOptions(append([]webapp.Option{
				webapp.WithLogger(s.logger),
				webapp.WithParentScope(s.units),
			}, s.appOpts...)...),
		}
		hosts = append(hosts, host.New(hd, s.web, append(opts, s.hostOpts...)...))
	}
	return host.NewEngine(s.desc.Engine.DefaultHost, hosts...)
}

// buildSessions prefers the descriptor's session timeout over the
// environment's when the descriptor sets one.
func (s *Server) buildSessions() *session.Store {
	return session.NewFromConfig(s.cfg.Session,
		session.WithTimeout(s.web.SessionTimeoutOr(s.cfg.Session.Timeout)),
		session.WithLogger(s.logger),
		session.WithActiveGauge(s.metrics.SessionGauge()),
	)
}

func (s *Server) serveMetrics(ctx context.Context) (*http.Server, error) {
	ln, err := net.Listen("tcp", s.cfg.MetricsAddr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/health/live", health.Liveness)
	mux.Handle("/health/ready", health.Readiness(s.logger, s.Ready))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.metricsAddr = ln.Addr()
	go func() {
		s.logger.InfoContext(ctx, "metrics listening", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "metrics listener failed", logger.Error(err))
		}
	}()
	return srv, nil
}

func (s *Server) serverName() string {
	if s.desc.Service != "" {
		return s.desc.Service
	}
	return processor.DefaultServerName
}

// Stop closes every connector, drains in-flight requests within the
// shutdown timeout, then stops the session sweep and every application.
// Returns immediately if the server is not running.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.live.Store(nil)
	s.logger.Info("shutting down server gracefully", logger.Duration(s.cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, c := range s.connectors {
		if err := c.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics listener: %w", err))
		}
		s.metricsSrv = nil
		s.metricsAddr = nil
	}
	s.sessions.Stop()
	s.engine.Stop()
	s.running = false

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("server shutdown error", logger.Error(err))
		return fmt.Errorf("%w: %w", ErrShutdown, err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// The returned function starts the server, waits for ctx and shuts down.
func (s *Server) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return s.Stop()
	}
}

// Addrs returns the bound connector addresses in descriptor order.
func (s *Server) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]net.Addr, 0, len(s.connectors))
	for _, c := range s.connectors {
		addrs = append(addrs, c.Addr())
	}
	return addrs
}

// MetricsAddr is the bound metrics listener address, nil when disabled.
func (s *Server) MetricsAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsAddr
}

// Ready reports whether the server is running and every host still has a
// root application.
func (s *Server) Ready(context.Context) error {
	engine := s.live.Load()
	if engine == nil {
		return ErrNotRunning
	}
	for _, hd := range s.desc.Engine.Hosts {
		if h := engine.Host(hd.Name); h == nil || h.Resolve("/") == nil {
			return fmt.Errorf("%w: host %s", host.ErrNoRootApplication, hd.Name)
		}
	}
	return nil
}

// Engine returns the running engine, nil before Start.
func (s *Server) Engine() *host.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Sessions returns the running session store, nil before Start.
func (s *Server) Sessions() *session.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// Metrics returns the metrics set the server records into.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// Run is a convenience function that starts a server, serves until ctx is
// cancelled and shuts down.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	srv, err := NewFromConfig(cfg, opts...)
	if err != nil {
		return err
	}
	return srv.Run(ctx)()
}
