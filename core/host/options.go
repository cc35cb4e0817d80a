package host

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/appserver/core/scope"
	"github.com/dmitrymomot/appserver/core/webapp"
)

// Counter is incremented on every successful redeploy.
// prometheus.Counter satisfies it.
type Counter interface {
	Inc()
}

// LoaderFactory builds the unit loader for an application document root.
type LoaderFactory func(docRoot string) scope.Loader

// PluginLoaders loads application units from Go plugins in WEB-INF/lib.
func PluginLoaders(docRoot string) scope.Loader {
	return scope.NewPluginLoader(docRoot + "/WEB-INF/lib")
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithWorkDir sets the base directory for compiled page artifacts.
func WithWorkDir(dir string) Option {
	return func(h *Host) {
		if dir != "" {
			h.workDir = dir
		}
	}
}

// WithAppOptions appends options applied to every application the host builds.
func WithAppOptions(opts ...webapp.Option) Option {
	return func(h *Host) { h.appOpts = append(h.appOpts, opts...) }
}

// WithLoaderFactory sets how application-local unit loaders are built.
// Nil disables application-local units.
func WithLoaderFactory(f LoaderFactory) Option {
	return func(h *Host) { h.loaders = f }
}

// WithRedeployCounter counts redeploys.
func WithRedeployCounter(c Counter) Option {
	return func(h *Host) { h.redeploys = c }
}

// WithRedeployFailureCounter counts redeploys abandoned because the new
// instance could not be built.
func WithRedeployFailureCounter(c Counter) Option {
	return func(h *Host) { h.redeployFails = c }
}

// WithBundleWatch toggles watching app_base for new bundles. Enabled by default.
func WithBundleWatch(enabled bool) Option {
	return func(h *Host) { h.watchBundles = enabled }
}

// WithBundleSettle sets how long a new bundle must stay unchanged before it is
// unpacked.
func WithBundleSettle(d time.Duration) Option {
	return func(h *Host) {
		if d >= 0 {
			h.settle = d
		}
	}
}
