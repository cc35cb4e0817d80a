package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/logger"
	"github.com/dmitrymomot/appserver/core/webapp"
)

// RootDirName is the app_base directory deployed at "/".
const RootDirName = "ROOT"

// DefaultBundleSettle is the delay before a newly dropped bundle is unpacked.
const DefaultBundleSettle = 500 * time.Millisecond

type appTable map[string]*webapp.Application

// Host is a virtual host: a table of applications keyed by path prefix.
// Lookups read an immutable snapshot and take no lock; deploy, redeploy
// and undeploy publish a modified copy under mu.
type Host struct {
	name     string
	appBase  string
	contexts []descriptor.Context
	web      descriptor.Web
	workDir  string
	logger   *slog.Logger

	appOpts       []webapp.Option
	loaders       LoaderFactory
	redeploys     Counter
	redeployFails Counter
	watchBundles  bool
	settle        time.Duration

	mu      sync.Mutex
	apps    atomic.Pointer[appTable]
	stopped bool

	ctx       context.Context
	watcher   *fsnotify.Watcher
	watchDone chan struct{}
	pending   sync.Map // bundle path -> struct{}
}

// New creates a host from its descriptor. Call Init to deploy applications.
func New(cfg descriptor.Host, web descriptor.Web, opts ...Option) *Host {
	h := &Host{
		name:         cfg.Name,
		appBase:      cfg.AppBase,
		contexts:     cfg.Contexts,
		web:          web,
		workDir:      "work",
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		loaders:      PluginLoaders,
		watchBundles: true,
		settle:       DefaultBundleSettle,
		ctx:          context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("host"), logger.Host(h.name))
	empty := appTable{}
	h.apps.Store(&empty)
	return h
}

// Name returns the host name.
func (h *Host) Name() string { return h.name }

// Init deploys explicit contexts, every directory under app_base (ROOT at
// "/") and every bundle without a matching directory. It fails when no
// application ends up at "/".
func (h *Host) Init(ctx context.Context) error {
	h.ctx = context.WithoutCancel(ctx)

	for _, c := range h.contexts {
		docBase := c.DocBase
		if !filepath.IsAbs(docBase) && h.appBase != "" {
			docBase = filepath.Join(h.appBase, docBase)
		}
		if err := h.Deploy(ctx, webapp.Config{Prefix: c.Path, DocRoot: docBase, Reloadable: c.Reloadable}); err != nil {
			h.logger.ErrorContext(ctx, "context deployment failed", logger.App(c.Path), logger.Error(err))
		}
	}

	if h.appBase != "" {
		if err := h.scanBundles(ctx); err != nil {
			h.logger.ErrorContext(ctx, "bundle scan failed", logger.Error(err))
		}
		if err := h.scanDirectories(ctx); err != nil {
			return err
		}
	}

	if h.Resolve("/") == nil {
		return fmt.Errorf("host %s: %w", h.name, ErrNoRootApplication)
	}

	if h.watchBundles && h.appBase != "" {
		if err := h.watch(); err != nil {
			h.logger.WarnContext(ctx, "bundle watcher unavailable", logger.Error(err))
		}
	}
	return nil
}

func (h *Host) scanDirectories(ctx context.Context) error {
	entries, err := os.ReadDir(h.appBase)
	if errors.Is(err, os.ErrNotExist) {
		h.logger.WarnContext(ctx, "app base does not exist", slog.String("app_base", h.appBase))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read app base %s: %w", h.appBase, err)
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		prefix := PrefixFor(e.Name())
		if h.deployed(prefix) {
			continue
		}
		cfg := webapp.Config{Prefix: prefix, DocRoot: filepath.Join(h.appBase, e.Name()), Reloadable: true}
		if err := h.Deploy(ctx, cfg); err != nil {
			h.logger.ErrorContext(ctx, "application deployment failed", logger.App(prefix), logger.Error(err))
		}
	}
	return nil
}

// PrefixFor maps an app_base directory name to its path prefix.
func PrefixFor(dir string) string {
	if dir == RootDirName {
		return "/"
	}
	return "/" + dir
}

// Resolve finds the application for an absolute request path: exact prefix,
// then the first path segment, then the root application.
func (h *Host) Resolve(uri string) *webapp.Application {
	apps := *h.apps.Load()
	if app, ok := apps[uri]; ok {
		return app
	}
	seg := uri
	if len(uri) > 1 {
		if i := strings.IndexByte(uri[1:], '/'); i >= 0 {
			seg = uri[:i+1]
		}
	}
	if app, ok := apps[seg]; ok {
		return app
	}
	return apps["/"]
}

// Apps returns deployed applications ordered by prefix.
func (h *Host) Apps() []*webapp.Application {
	apps := *h.apps.Load()
	out := make([]*webapp.Application, 0, len(apps))
	for _, a := range apps {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix() < out[j].Prefix() })
	return out
}

// Deploy builds, starts and publishes an application. An application
// already at the prefix is replaced and stopped.
func (h *Host) Deploy(ctx context.Context, cfg webapp.Config) error {
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(h.workDir, h.name)
	}
	app, err := h.build(ctx, cfg)
	if err != nil {
		return err
	}
	old, ok := h.swap(app.Prefix(), nil, app)
	if !ok {
		app.Stop()
		return fmt.Errorf("deploy %s: %w", app.Prefix(), ErrHostStopped)
	}
	if old != nil {
		old.Supersede(app)
		old.Stop()
	}
	h.logger.InfoContext(ctx, "application deployed", logger.App(app.Prefix()), slog.String("doc_root", app.DocRoot()))
	return nil
}

// Redeploy replaces app with a fresh instance built from the same Config.
// If building fails the current instance keeps serving and watching for
// further changes. It is the ReloadFunc installed on every application.
func (h *Host) Redeploy(app *webapp.Application) {
	ctx := h.ctx
	next, err := h.build(ctx, app.Config())
	if err != nil {
		if h.redeployFails != nil {
			h.redeployFails.Inc()
		}
		h.logger.ErrorContext(ctx, "redeploy failed, keeping current instance",
			logger.App(app.Prefix()), logger.Error(err))
		app.ResumeReload()
		return
	}
	if old, ok := h.swap(app.Prefix(), app, next); !ok || old != app {
		// The host stopped or a concurrent deploy already replaced app.
		next.Stop()
		return
	}
	app.Supersede(next)
	app.Stop()
	if h.redeploys != nil {
		h.redeploys.Inc()
	}
	h.logger.InfoContext(ctx, "application redeployed", logger.App(app.Prefix()), logger.Event("redeploy"))
}

// Undeploy removes and stops the application at prefix.
func (h *Host) Undeploy(prefix string) error {
	h.mu.Lock()
	cur := *h.apps.Load()
	app, ok := cur[prefix]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotDeployed, prefix)
	}
	next := make(appTable, len(cur))
	for k, v := range cur {
		if k != prefix {
			next[k] = v
		}
	}
	h.apps.Store(&next)
	h.mu.Unlock()

	app.Stop()
	h.logger.Info("application undeployed", logger.App(prefix))
	return nil
}

// Stop stops the bundle watcher and every application. Deployments that
// finish building afterwards are discarded.
func (h *Host) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
		<-h.watchDone
		h.watcher = nil
	}
	h.mu.Lock()
	h.stopped = true
	cur := *h.apps.Load()
	empty := appTable{}
	h.apps.Store(&empty)
	h.mu.Unlock()

	for _, app := range cur {
		app.Stop()
	}
}

func (h *Host) build(ctx context.Context, cfg webapp.Config) (*webapp.Application, error) {
	opts := []webapp.Option{
		webapp.WithLogger(h.logger),
		webapp.WithReloadFunc(h.Redeploy),
	}
	if h.loaders != nil {
		opts = append(opts, webapp.WithLoader(h.loaders(cfg.DocRoot)))
	}
	opts = append(opts, h.appOpts...)

	app, err := webapp.New(cfg, h.web, opts...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", cfg.Prefix, err)
	}
	if err := app.Start(ctx); err != nil {
		app.Stop()
		return nil, fmt.Errorf("deploy %s: %w", cfg.Prefix, err)
	}
	return app, nil
}

// swap publishes next at prefix and returns the previous entry. With a
// non-nil expect the swap only happens if expect is still current. It
// reports false when the host is stopped.
func (h *Host) swap(prefix string, expect, next *webapp.Application) (*webapp.Application, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, false
	}
	cur := *h.apps.Load()
	old := cur[prefix]
	if expect != nil && old != expect {
		return old, true
	}
	table := make(appTable, len(cur)+1)
	for k, v := range cur {
		table[k] = v
	}
	table[prefix] = next
	h.apps.Store(&table)
	return old, true
}

func (h *Host) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func (h *Host) deployed(prefix string) bool {
	_, ok := (*h.apps.Load())[prefix]
	return ok
}
