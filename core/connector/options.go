package connector

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/appserver/core/metrics"
	"github.com/dmitrymomot/appserver/core/workerpool"
)

const (
	// MinAcceptBackoff is the first delay after a failed accept.
	MinAcceptBackoff = 5 * time.Millisecond
	// MaxAcceptBackoff caps the accept retry delay.
	MaxAcceptBackoff = time.Second
)

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records connection and pool metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connector) { c.metrics = m }
}

// WithPoolConfig sizes the connector's worker pool.
func WithPoolConfig(cfg workerpool.Config) Option {
	return func(c *Connector) { c.poolCfg = cfg }
}

// WithBindAddress sets the interface to listen on. Empty means all.
func WithBindAddress(host string) Option {
	return func(c *Connector) { c.bindHost = host }
}
