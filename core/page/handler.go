package page

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmitrymomot/appserver/core/handler"
	"github.com/dmitrymomot/appserver/core/logger"
	"github.com/dmitrymomot/appserver/core/scope"
	"github.com/dmitrymomot/appserver/core/static"
)

// Handler serves dynamic pages of one application. A page is compiled on
// first request and again whenever its source is newer than its artifact;
// recompiling discards the page's scope and its pooled instance.
type Handler struct {
	compiler Compiler
	loader   ArtifactLoader
	workDir  string
	appKey   string
	parent   *scope.Scope
	pages    *scope.PageScopes
	logger   *slog.Logger

	locks     sync.Map // page path -> *sync.Mutex
	instances sync.Map // page path -> handler.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithCompiler replaces the default TemplateCompiler.
func WithCompiler(c Compiler) Option {
	return func(h *Handler) {
		if c != nil {
			h.compiler = c
		}
	}
}

// WithArtifactLoader replaces the default TemplateLoader.
func WithArtifactLoader(l ArtifactLoader) Option {
	return func(h *Handler) {
		if l != nil {
			h.loader = l
		}
	}
}

// WithPageScopes shares a page scope cache across handlers.
func WithPageScopes(p *scope.PageScopes) Option {
	return func(h *Handler) {
		if p != nil {
			h.pages = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates the page handler for the application identified by
// appKey. Artifacts go to workDir; parent is the application scope.
func NewHandler(appKey, workDir string, parent *scope.Scope, opts ...Option) *Handler {
	h := &Handler{
		compiler: TemplateCompiler{},
		loader:   TemplateLoader{},
		workDir:  workDir,
		appKey:   appKey,
		parent:   parent,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.pages == nil {
		h.pages = scope.NewPageScopes()
	}
	return h
}

// WorkDir returns the artifact directory for an application prefix:
// "_" for the root application, the prefix name otherwise.
func WorkDir(base, prefix string) string {
	name := strings.Trim(prefix, "/")
	if name == "" {
		name = "_"
	}
	return filepath.Join(base, name)
}

// Serve implements handler.Handler.
func (h *Handler) Serve(req *handler.Request, resp *handler.Response) error {
	if req.App == nil {
		return handler.ErrNotFound
	}
	page := path.Clean("/" + req.Path)
	if static.IsPrivate(page) {
		return handler.ErrNotFound
	}
	src := req.App.RealPath(page)

	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		return handler.ErrNotFound
	}

	inst, err := h.instance(req.Context(), req.App, page, src, info)
	if err != nil {
		return err
	}
	return inst.Serve(req, resp)
}

func (h *Handler) instance(ctx context.Context, app handler.Application, page, src string, srcInfo fs.FileInfo) (handler.Handler, error) {
	lock, _ := h.locks.LoadOrStore(page, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	outDir := filepath.Join(h.workDir, filepath.FromSlash(path.Dir(page)))
	artifact := h.compiler.ArtifactPath(src, outDir)
	key := scope.PageKey{App: h.appKey, Page: page}

	if stale(artifact, srcInfo) {
		built, err := h.compiler.Compile(ctx, src, outDir)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", page, err)
		}
		artifact = built
		h.pages.Invalidate(key)
		h.instances.Delete(page)
		h.logger.Info("page compiled",
			logger.Component("page"),
			logger.App(h.appKey),
			logger.Path(page),
		)
	}

	if v, ok := h.instances.Load(page); ok {
		return v.(handler.Handler), nil
	}

	ps := h.pages.Get(key, h.parent, scope.LoaderFunc(func(string) (scope.Factory, error) {
		return h.loader.LoadArtifact(artifact)
	}))
	unit, err := ps.New(page)
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", page, err)
	}
	inst, ok := unit.(handler.Handler)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%T)", ErrNotHandler, page, unit)
	}
	if ini, ok := inst.(handler.Initializer); ok {
		if err := ini.Init(handler.Config{Name: page, App: app}); err != nil {
			return nil, fmt.Errorf("init page %s: %w", page, err)
		}
	}
	h.instances.Store(page, inst)
	return inst, nil
}

// Destroy discards every page scope and instance of the application.
func (h *Handler) Destroy() {
	h.pages.InvalidateApp(h.appKey)
	h.instances.Range(func(k, v any) bool {
		if d, ok := v.(handler.Destroyer); ok {
			d.Destroy()
		}
		h.instances.Delete(k)
		return true
	})
}

// stale reports whether the artifact is missing or older than the source.
func stale(artifact string, src fs.FileInfo) bool {
	info, err := os.Stat(artifact)
	if err != nil {
		return true
	}
	return info.ModTime().Before(src.ModTime())
}
