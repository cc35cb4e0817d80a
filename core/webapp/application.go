package webapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/dispatch"
	"github.com/dmitrymomot/appserver/core/handler"
	"github.com/dmitrymomot/appserver/core/logger"
	"github.com/dmitrymomot/appserver/core/page"
	"github.com/dmitrymomot/appserver/core/scope"
	"github.com/dmitrymomot/appserver/core/static"
)

// Application is one deployed unit of content and code, served under a
// path prefix. A redeploy replaces the whole Application; requests already
// holding the old value finish on it.
type Application struct {
	prefix     string
	docRoot    string
	reloadable bool
	workDir    string
	web        descriptor.Web
	logger     *slog.Logger

	parentScope *scope.Scope
	loader      scope.Loader
	scope       *scope.Scope

	desc         descriptor.App
	mappings     mappings
	interceptors []boundInterceptor
	listeners    []handler.Listener
	pool         sync.Map // unit id -> *poolEntry

	static   *static.Handler
	pages    *page.Handler
	pageOpts []page.Option

	state     atomic.Int32
	serving   sync.RWMutex // held shared by every Serve call
	successor atomic.Pointer[Application]
	stopOnce  sync.Once
	onReload  ReloadFunc
	debounce  time.Duration
	reloading atomic.Bool
	dirty     atomic.Bool // changed while a reload was in progress
	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// New builds an application in the loading state. Its descriptor is read
// from the watched resource under the document root. A descriptor that
// fails validation is logged and the application serves static content and
// pages only. Interceptors and listeners are constructed here; a unit that
// cannot be constructed fails the deployment.
func New(cfg Config, web descriptor.Web, opts ...Option) (*Application, error) {
	root, err := filepath.Abs(cfg.DocRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve doc root %s: %w", cfg.DocRoot, err)
	}

	a := &Application{
		prefix:      normalizePrefix(cfg.Prefix),
		docRoot:     root,
		reloadable:  cfg.Reloadable,
		workDir:     cfg.WorkDir,
		web:         web,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		parentScope: scope.Process(),
		debounce:    DefaultReloadDebounce,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.state.Store(int32(StateLoading))
	a.logger = a.logger.With(logger.Component("webapp"), logger.App(a.prefix))

	a.scope = scope.New("app:"+a.prefix, a.parentScope, a.loader)
	pageOpts := append([]page.Option{page.WithLogger(a.logger)}, a.pageOpts...)
	a.pages = page.NewHandler(a.prefix, page.WorkDir(cfg.WorkDir, a.prefix), a.scope, pageOpts...)
	a.static = static.New(web.WelcomeFiles...).DelegatePages(web.IsPage, a.pages)

	desc, err := descriptor.LoadApp(a.DescriptorPath())
	if err != nil {
		a.logger.Error("application descriptor rejected, serving static content only",
			logger.Error(err),
		)
		desc = descriptor.App{}
	}
	a.desc = desc
	a.mappings = buildMappings(desc)

	if err := a.initInterceptors(); err != nil {
		a.scope.Invalidate()
		return nil, err
	}
	if err := a.initListeners(); err != nil {
		a.destroyInterceptors()
		a.scope.Invalidate()
		return nil, err
	}
	return a, nil
}

// Start constructs eager handlers, notifies listeners and, for reloadable
// applications, starts watching the descriptor directory.
func (a *Application) Start(ctx context.Context) error {
	if a.State() != StateLoading {
		return fmt.Errorf("start %s: state %s", a.prefix, a.State())
	}

	for _, h := range a.desc.Handlers {
		if !h.Eager {
			continue
		}
		if _, err := a.Handler(h.Unit); err != nil {
			return fmt.Errorf("start eager handler %s: %w", h.Name, err)
		}
	}

	for _, l := range a.listeners {
		l.Initialized(a)
	}

	if a.reloadable {
		if err := a.watch(); err != nil {
			a.logger.Warn("change watcher unavailable", logger.Error(err))
		}
	}

	a.state.Store(int32(StateRunning))
	a.logger.InfoContext(ctx, "application started",
		logger.Event("start"),
		slog.String("doc_root", a.docRoot),
		logger.Count("handlers", len(a.desc.Handlers)),
		logger.Count("interceptors", len(a.interceptors)),
	)
	return nil
}

// Stop tears the application down once requests already inside Serve have
// finished: its scope is invalidated, the watcher stopped, pooled handlers
// and interceptors destroyed and listeners notified. Safe to call more than
// once. It must not be called from inside a request of the same application.
func (a *Application) Stop() {
	a.stopOnce.Do(func() {
		a.serving.Lock()
		a.state.Store(int32(StateStopped))
		a.serving.Unlock()
		a.scope.Invalidate()
		a.stopWatch()
		a.destroyPool()
		a.pages.Destroy()
		a.destroyInterceptors()
		for _, l := range a.listeners {
			l.Destroyed(a)
		}
		a.logger.Info("application stopped", logger.Event("stop"))
	})
}

// Supersede records next as the instance that replaced a. Requests routed
// to a after it stopped are served by next.
func (a *Application) Supersede(next *Application) {
	if next != nil && next != a {
		a.successor.Store(next)
	}
}

// ResumeReload re-arms change detection after a reload that left a in place.
// Changes seen while that reload ran schedule another one.
func (a *Application) ResumeReload() {
	a.reloading.Store(false)
	if a.dirty.Swap(false) {
		a.triggerReload(a.DescriptorPath())
	}
}

// Serve dispatches a request whose Path is already relative to the prefix.
// A stopped application hands the request to its successor, if any.
func (a *Application) Serve(req *handler.Request, resp *handler.Response) error {
	a.serving.RLock()
	if a.State() == StateStopped {
		a.serving.RUnlock()
		if next := a.successor.Load(); next != nil {
			return next.Serve(req, resp)
		}
		return ErrNotRunning
	}
	defer a.serving.RUnlock()

	req.App = a
	req.SetForwarder(a.forward)
	return a.dispatch(req, resp)
}

// forward runs the handler for the rewritten path. Interceptors already ran
// for the original request and are not applied again.
func (a *Application) forward(req *handler.Request, resp *handler.Response) error {
	terminal, err := a.selectHandler(req.Path)
	if err != nil {
		return err
	}
	return dispatch.New(nil, terminal).Run(req, resp)
}

func (a *Application) dispatch(req *handler.Request, resp *handler.Response) error {
	terminal, err := a.selectHandler(req.Path)
	if err != nil {
		return err
	}
	return dispatch.New(a.MatchInterceptors(req.Path), terminal).Run(req, resp)
}

// selectHandler picks an explicitly mapped handler, then the page handler
// for page extensions, then the static handler.
func (a *Application) selectHandler(p string) (handler.Handler, error) {
	if unit, ok := a.ResolveHandler(p); ok {
		return a.Handler(unit)
	}
	if a.web.IsPage(p) {
		return a.pages, nil
	}
	return a.static, nil
}

// ResolveHandler returns the unit mapped to exactly p.
func (a *Application) ResolveHandler(p string) (string, bool) {
	unit, ok := a.mappings.patterns[p]
	return unit, ok
}

// MatchInterceptors returns every interceptor with a pattern matching p,
// in descriptor declaration order.
func (a *Application) MatchInterceptors(p string) []handler.Interceptor {
	var out []handler.Interceptor
	for _, ic := range a.interceptors {
		for _, pattern := range ic.patterns {
			if patternMatches(pattern, p) {
				out = append(out, ic.unit)
				break
			}
		}
	}
	return out
}

// Handler returns the pooled instance of a mapped handler unit,
// constructing and initializing it on first use.
func (a *Application) Handler(unit string) (handler.Handler, error) {
	decl, ok := a.mappings.handlers[unit]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, unit)
	}
	return a.pooled(unit, func() (handler.Handler, error) {
		v, err := a.scope.New(unit)
		if err != nil {
			return nil, fmt.Errorf("construct handler %s: %w", decl.Name, err)
		}
		h, ok := v.(handler.Handler)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T, want handler", ErrUnitType, unit, v)
		}
		if err := initUnit(h, handler.Config{Name: decl.Name, App: a, Params: decl.InitParams}); err != nil {
			return nil, fmt.Errorf("init handler %s: %w", decl.Name, err)
		}
		a.logger.Debug("handler constructed", logger.Unit(unit))
		return h, nil
	})
}

func (a *Application) initInterceptors() error {
	for _, decl := range a.desc.Interceptors {
		v, err := a.scope.New(decl.Unit)
		if err != nil {
			a.destroyInterceptors()
			return fmt.Errorf("construct interceptor %s: %w", decl.Name, err)
		}
		ic, ok := v.(handler.Interceptor)
		if !ok {
			a.destroyInterceptors()
			return fmt.Errorf("%w: %s is %T, want interceptor", ErrUnitType, decl.Unit, v)
		}
		if err := initUnit(ic, handler.Config{Name: decl.Name, App: a, Params: decl.InitParams}); err != nil {
			a.destroyInterceptors()
			return fmt.Errorf("init interceptor %s: %w", decl.Name, err)
		}
		a.interceptors = append(a.interceptors, boundInterceptor{name: decl.Name, patterns: decl.Patterns, unit: ic})
	}
	return nil
}

func (a *Application) destroyInterceptors() {
	for _, ic := range a.interceptors {
		if d, ok := ic.unit.(handler.Destroyer); ok {
			d.Destroy()
		}
	}
	a.interceptors = nil
}

func (a *Application) initListeners() error {
	for _, id := range a.desc.Listeners {
		v, err := a.scope.New(id)
		if err != nil {
			return fmt.Errorf("construct listener %s: %w", id, err)
		}
		l, ok := v.(handler.Listener)
		if !ok {
			return fmt.Errorf("%w: %s is %T, want listener", ErrUnitType, id, v)
		}
		a.listeners = append(a.listeners, l)
	}
	return nil
}

func initUnit(unit any, cfg handler.Config) error {
	if ini, ok := unit.(handler.Initializer); ok {
		return ini.Init(cfg)
	}
	return nil
}

// Prefix implements handler.Application.
func (a *Application) Prefix() string { return a.prefix }

// DocRoot implements handler.Application.
func (a *Application) DocRoot() string { return a.docRoot }

// RealPath implements handler.Application.
func (a *Application) RealPath(p string) string {
	return filepath.Join(a.docRoot, filepath.FromSlash(path.Clean("/"+p)))
}

// MimeType implements handler.Application.
func (a *Application) MimeType(p string) string { return a.web.MimeType(p) }

// Logger implements handler.Application.
func (a *Application) Logger() *slog.Logger { return a.logger }

// Reloadable reports whether the application watches itself for changes.
func (a *Application) Reloadable() bool { return a.reloadable }

// State returns the lifecycle state.
func (a *Application) State() State { return State(a.state.Load()) }

// Scope returns the application's private unit scope.
func (a *Application) Scope() *scope.Scope { return a.scope }

// DescriptorPath is the absolute path of the watched descriptor.
func (a *Application) DescriptorPath() string {
	return filepath.Join(a.docRoot, filepath.FromSlash(a.web.WatchedResource))
}

// Config returns the deployment identity used to rebuild the application.
func (a *Application) Config() Config {
	return Config{
		Prefix:     a.prefix,
		DocRoot:    a.docRoot,
		Reloadable: a.reloadable,
		WorkDir:    a.workDir,
	}
}

// RelativePath strips the application prefix from an absolute request path.
// The root application strips nothing; an empty remainder becomes "/".
func (a *Application) RelativePath(uri string) string {
	return StripPrefix(a.prefix, uri)
}

// StripPrefix removes prefix from uri, returning at least "/".
func StripPrefix(prefix, uri string) string {
	if prefix == "/" || prefix == "" {
		if uri == "" {
			return "/"
		}
		return uri
	}
	rest := strings.TrimPrefix(uri, prefix)
	if rest == "" || rest[0] != '/' {
		rest = "/" + rest
	}
	return rest
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	return "/" + strings.Trim(p, "/")
}
