// Package metrics defines the Prometheus collectors exported by the server:
// connection and request counters, request latency, worker pool gauges,
// live sessions and redeploys. A nil *Metrics is valid and records nothing.
package metrics
