package static

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrymomot/appserver/core/handler"
)

// privateDir is never served.
const privateDir = "WEB-INF"

// Handler serves files from the application document root. It is the
// fallback when no handler mapping and no page matches a request.
type Handler struct {
	welcomeFiles []string
	isPage       func(string) bool
	pages        handler.Handler
}

// New returns a static handler. Empty welcomeFiles means index.html.
func New(welcomeFiles ...string) *Handler {
	if len(welcomeFiles) == 0 {
		welcomeFiles = []string{"index.html"}
	}
	return &Handler{welcomeFiles: welcomeFiles}
}

// DelegatePages hands welcome files for which isPage holds to pages instead
// of serving their source. It returns h.
func (h *Handler) DelegatePages(isPage func(string) bool, pages handler.Handler) *Handler {
	h.isPage = isPage
	h.pages = pages
	return h
}

// Serve implements handler.Handler. Missing files, directories without a
// welcome file and anything under WEB-INF yield handler.ErrNotFound.
func (h *Handler) Serve(req *handler.Request, resp *handler.Response) error {
	app := req.App
	if app == nil {
		return handler.ErrNotFound
	}

	file, welcome, err := h.resolve(app, req.Path)
	if err != nil {
		return err
	}
	if welcome != "" && h.pages != nil && h.isPage != nil && h.isPage(welcome) {
		orig := req.Path
		req.Path = welcome
		defer func() { req.Path = orig }()
		return h.pages.Serve(req, resp)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return handler.ErrNotFound
		}
		return fmt.Errorf("read %s: %w", req.Path, err)
	}

	resp.SetContentType(app.MimeType(file))
	return resp.SetBody(data)
}

// resolve maps reqPath to a file. For a directory it also returns the
// request path of the welcome file that was chosen.
func (h *Handler) resolve(app handler.Application, reqPath string) (file, welcome string, err error) {
	clean := path.Clean("/" + reqPath)
	if IsPrivate(clean) {
		return "", "", handler.ErrNotFound
	}

	root := app.DocRoot()
	file = filepath.Join(root, filepath.FromSlash(clean))
	if err := validatePathSecurity(root, file); err != nil {
		return "", "", handler.ErrNotFound
	}

	info, err := os.Stat(file)
	if err != nil {
		return "", "", handler.ErrNotFound
	}
	if !info.IsDir() {
		return file, "", nil
	}

	if name, ok := h.welcome(file); ok {
		return filepath.Join(file, name), path.Join(clean, name), nil
	}
	return "", "", handler.ErrNotFound
}

// welcome returns the name of the first welcome file present in dir.
func (h *Handler) welcome(dir string) (string, bool) {
	for _, name := range h.welcomeFiles {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return name, true
		}
	}
	return "", false
}

// IsPrivate reports whether the cleaned request path lies under WEB-INF,
// compared case-insensitively.
func IsPrivate(clean string) bool {
	first := strings.SplitN(strings.TrimPrefix(clean, "/"), "/", 2)[0]
	return strings.EqualFold(first, privateDir)
}

// validatePathSecurity ensures target stays inside root.
func validatePathSecurity(root, target string) error {
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(target)
	if cleanPath != cleanRoot && !strings.HasPrefix(cleanPath, cleanRoot+string(filepath.Separator)) {
		return fmt.Errorf("invalid path: outside root directory")
	}
	return nil
}
