// Package health provides liveness and readiness probes served next to
// the metrics endpoint.
//
//	mux.HandleFunc("/health/live", health.Liveness)
//	mux.Handle("/health/ready", health.Readiness(log, srv.Ready))
//
// Liveness always answers ALIVE. Readiness answers READY when every check
// passes and 503 otherwise, logging the failing check.
package health
