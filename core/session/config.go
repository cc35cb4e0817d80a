package session

import (
	"log/slog"
	"time"
)

// Config holds store settings loadable from the environment.
type Config struct {
	// Timeout is the default idle interval in minutes; -1 keeps sessions forever.
	Timeout       int           `env:"SESSION_TIMEOUT" envDefault:"30"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"30s"`
	CookieName    string        `env:"SESSION_COOKIE_NAME" envDefault:"JSESSIONID"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		SweepInterval: DefaultSweepInterval,
		CookieName:    DefaultCookieName,
	}
}

const (
	DefaultTimeout       = 30
	DefaultSweepInterval = 30 * time.Second
	DefaultCookieName    = "JSESSIONID"
)

// Gauge receives the live session count after every change.
// prometheus.Gauge satisfies it.
type Gauge interface {
	Set(float64)
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout sets the default idle interval in minutes for new sessions.
func WithTimeout(minutes int) Option {
	return func(s *Store) {
		if minutes > 0 || minutes == Forever {
			s.timeout = minutes
		}
	}
}

// WithSweepInterval sets how often expired sessions are removed.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.cookieName = name
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithActiveGauge reports the live session count.
func WithActiveGauge(g Gauge) Option {
	return func(s *Store) { s.gauge = g }
}
