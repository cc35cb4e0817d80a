package processor

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/appserver/core/metrics"
)

const (
	// DefaultMaxBodySize bounds buffered request bodies.
	DefaultMaxBodySize int64 = 10 << 20
	// DefaultTraceLines caps the trace listing on error pages.
	DefaultTraceLines = 20
	// DefaultServerName appears in the Server header and on status pages.
	DefaultServerName = "appserver"
)

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithTracerProvider sets the provider request spans are created with.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Processor) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMaxBodySize bounds request bodies.
func WithMaxBodySize(n int64) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxBody = n
		}
	}
}

// WithTraceLines caps error page traces.
func WithTraceLines(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.traceLines = n
		}
	}
}

// WithReadTimeout sets a deadline for receiving the request. Zero means none.
func WithReadTimeout(d time.Duration) Option {
	return func(p *Processor) { p.readTimeout = d }
}

// WithServerName sets the Server header value.
func WithServerName(name string) Option {
	return func(p *Processor) {
		if name != "" {
			p.serverName = name
		}
	}
}
