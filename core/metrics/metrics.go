package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collectors.
type Config struct {
	Namespace string
	Buckets   []float64
	// Registry receives the collectors. A private registry is created when nil.
	Registry *prometheus.Registry
}

// Option configures Metrics.
type Option func(*Config)

// WithNamespace sets the metric namespace (default "appserver").
func WithNamespace(ns string) Option {
	return func(c *Config) {
		if ns != "" {
			c.Namespace = ns
		}
	}
}

// WithBuckets sets request duration histogram buckets.
func WithBuckets(b []float64) Option {
	return func(c *Config) {
		if len(b) > 0 {
			c.Buckets = b
		}
	}
}

// WithRegistry sets the registry collectors are registered with.
func WithRegistry(r *prometheus.Registry) Option {
	return func(c *Config) { c.Registry = r }
}

// Metrics holds the server's collectors. All methods are safe on a nil
// receiver, so components accept an optional *Metrics.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory
	ns       string

	connections   prometheus.Counter
	acceptErrors  prometheus.Counter
	rejected      prometheus.Counter
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	responseBytes prometheus.Counter
	sessions      prometheus.Gauge
	redeploys     prometheus.Counter
	redeployFails prometheus.Counter
}

// New registers the collectors.
func New(opts ...Option) *Metrics {
	cfg := Config{Namespace: "appserver", Buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	f := promauto.With(cfg.Registry)

	return &Metrics{
		registry: cfg.Registry,
		factory:  f,
		ns:       cfg.Namespace,
		connections: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted by all connectors",
		}),
		acceptErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "accept_errors_total",
			Help:      "Failed accept calls",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed because the worker pool was saturated",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "requests_total",
			Help:      "Requests served, by application and status code",
		}, []string{"app", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "request_duration_seconds",
			Help:      "Request processing time from parse to last byte written",
			Buckets:   cfg.Buckets,
		}, []string{"app"}),
		responseBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "response_body_bytes_total",
			Help:      "Response body bytes written after compression",
		}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "sessions_active",
			Help:      "Live sessions in the session store",
		}),
		redeploys: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "redeploys_total",
			Help:      "Application redeploys triggered by change detection",
		}),
		redeployFails: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "redeploy_failures_total",
			Help:      "Redeploys abandoned because the new instance failed to build",
		}),
	}
}

// ConnectionAccepted counts an accepted connection.
func (m *Metrics) ConnectionAccepted() {
	if m != nil {
		m.connections.Inc()
	}
}

// AcceptError counts a failed accept.
func (m *Metrics) AcceptError() {
	if m != nil {
		m.acceptErrors.Inc()
	}
}

// ConnectionRejected counts a connection dropped by the pool.
func (m *Metrics) ConnectionRejected() {
	if m != nil {
		m.rejected.Inc()
	}
}

// ObserveRequest records one framed response.
func (m *Metrics) ObserveRequest(app string, status int, bodyBytes int, d time.Duration) {
	if m == nil {
		return
	}
	if app == "" {
		app = "none"
	}
	m.requests.WithLabelValues(app, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(app).Observe(d.Seconds())
	m.responseBytes.Add(float64(bodyBytes))
}

// SessionGauge returns the live-session gauge, nil on a nil receiver.
func (m *Metrics) SessionGauge() prometheus.Gauge {
	if m == nil {
		return nil
	}
	return m.sessions
}

// RedeployCounter returns the redeploy counter, nil on a nil receiver.
func (m *Metrics) RedeployCounter() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.redeploys
}

// RedeployFailureCounter returns the failed-redeploy counter, nil on a nil
// receiver.
func (m *Metrics) RedeployFailureCounter() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.redeployFails
}

// PoolStats is the subset of worker pool stats exported as gauges.
type PoolStats struct {
	Workers int
	Active  int
	Queued  int
}

// RegisterPool exports pool gauges for one connector, read on scrape.
func (m *Metrics) RegisterPool(port int, stats func() PoolStats) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"port": strconv.Itoa(port)}
	gauge := func(name, help string, read func(PoolStats) int) {
		m.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   m.ns,
			Subsystem:   "pool",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(read(stats())) })
	}
	gauge("workers", "Running worker goroutines", func(s PoolStats) int { return s.Workers })
	gauge("active", "Workers executing a task", func(s PoolStats) int { return s.Active })
	gauge("queued", "Tasks waiting in the queue", func(s PoolStats) int { return s.Queued })
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
