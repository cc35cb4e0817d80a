package webapp

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/appserver/core/page"
	"github.com/dmitrymomot/appserver/core/scope"
)

// Config identifies one deployment.
type Config struct {
	// Prefix is "/" for the root application or "/name".
	Prefix     string
	DocRoot    string
	Reloadable bool
	// WorkDir is the base directory for compiled page artifacts.
	WorkDir string
}

// DefaultReloadDebounce delays a reload after the first change event so a
// burst of writes triggers one redeploy.
const DefaultReloadDebounce = 200 * time.Millisecond

// ReloadFunc is called, on its own goroutine, when a reloadable application
// detects a change. The owning host redeploys the application.
type ReloadFunc func(app *Application)

// Option configures an Application.
type Option func(*Application)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Application) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithParentScope sets the scope application units delegate to.
// Defaults to scope.Process().
func WithParentScope(s *scope.Scope) Option {
	return func(a *Application) {
		if s != nil {
			a.parentScope = s
		}
	}
}

// WithLoader sets the loader for application-local units.
func WithLoader(l scope.Loader) Option {
	return func(a *Application) { a.loader = l }
}

// WithPageOptions configures the page handler.
func WithPageOptions(opts ...page.Option) Option {
	return func(a *Application) { a.pageOpts = append(a.pageOpts, opts...) }
}

// WithReloadFunc sets the callback for detected changes.
func WithReloadFunc(fn ReloadFunc) Option {
	return func(a *Application) { a.onReload = fn }
}

// WithReloadDebounce overrides DefaultReloadDebounce.
func WithReloadDebounce(d time.Duration) Option {
	return func(a *Application) {
		if d >= 0 {
			a.debounce = d
		}
	}
}
