// Package server assembles a running application server from its
// descriptors: one virtual-host engine, one session store, one protocol
// processor and one connector per configured port, plus an optional
// Prometheus listener.
//
// # Basic Usage
//
//	cfg := server.DefaultConfig()
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	return srv.Run(ctx)()
//
// # Lifecycle
//
// Start validates the server descriptor, deploys every host (each must end
// up with a root application), starts the session sweep and binds every
// connector. A failure at any step rolls back what already started and is
// returned, so callers can exit with a non-zero status.
//
// Stop closes the listeners, waits up to ShutdownTimeout for in-flight
// requests and then stops the sweep and every application, invoking
// Destroy on pooled handlers.
//
// # Configuration
//
// Config is loaded from the environment (see core/config):
//
//	SERVER_CONF=conf/server.yaml
//	WEB_CONF=conf/web.yaml
//	WORK_DIR=work
//	SERVER_SHUTDOWN_TIMEOUT=30s
//	METRICS_ADDR=:9090
//	POOL_CORE_WORKERS=20
//	SESSION_SWEEP_INTERVAL=30s
//
// Handler and interceptor units are resolved from the scope passed with
// WithUnits, which defaults to scope.Process().
package server
