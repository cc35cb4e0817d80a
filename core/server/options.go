package server

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/appserver/core/host"
	"github.com/dmitrymomot/appserver/core/metrics"
	"github.com/dmitrymomot/appserver/core/scope"
	"github.com/dmitrymomot/appserver/core/webapp"
)

// Option configures server behavior.
type Option func(*Server)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics replaces the server's private metrics set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracerProvider sets the provider request spans are created with.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracerProvider = tp }
}

// WithUnits sets the scope every application's scope delegates to first.
// Defaults to scope.Process().
func WithUnits(units *scope.Scope) Option {
	return func(s *Server) {
		if units != nil {
			s.units = units
		}
	}
}

// WithHostOptions appends options applied to every virtual host.
func WithHostOptions(opts ...host.Option) Option {
	return func(s *Server) { s.hostOpts = append(s.hostOpts, opts...) }
}

// WithAppOptions appends options applied to every application.
func WithAppOptions(opts ...webapp.Option) Option {
	return func(s *Server) { s.appOpts = append(s.appOpts, opts...) }
}
