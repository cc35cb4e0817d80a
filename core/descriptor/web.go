package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by DefaultWeb and filled in by LoadWeb for omitted fields.
// The session timeout is left unset so the environment value applies.
const (
	DefaultWelcomeFile     = "index.html"
	DefaultPageExtension   = ".gohtml"
	DefaultWatchedResource = "WEB-INF/web.yaml"
	DefaultMimeType        = "text/html"
)

// Web holds process-wide application defaults (conf/web.yaml).
type Web struct {
	MimeTypes       map[string]string `yaml:"mime_types"`
	WelcomeFiles    []string          `yaml:"welcome_files"`
	SessionTimeout  *int              `yaml:"session_timeout"`
	PageExtensions  []string          `yaml:"page_extensions"`
	WatchedResource string            `yaml:"watched_resource"`
}

// DefaultWeb returns defaults with a small built-in mime table.
func DefaultWeb() Web {
	w := Web{}
	w.fill()
	return w
}

func (w *Web) fill() {
	if w.MimeTypes == nil {
		w.MimeTypes = map[string]string{}
	}
	builtin := map[string]string{
		"html": "text/html",
		"htm":  "text/html",
		"txt":  "text/plain",
		"css":  "text/css",
		"js":   "application/javascript",
		"json": "application/json",
		"xml":  "text/xml",
		"png":  "image/png",
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"gif":  "image/gif",
		"svg":  "image/svg+xml",
		"ico":  "image/x-icon",
		"pdf":  "application/pdf",
	}
	for ext, typ := range builtin {
		if _, ok := w.MimeTypes[ext]; !ok {
			w.MimeTypes[ext] = typ
		}
	}
	if len(w.WelcomeFiles) == 0 {
		w.WelcomeFiles = []string{DefaultWelcomeFile}
	}
	if len(w.PageExtensions) == 0 {
		w.PageExtensions = []string{DefaultPageExtension}
	}
	if w.WatchedResource == "" {
		w.WatchedResource = DefaultWatchedResource
	}
}

// SessionTimeoutOr returns the session timeout in minutes, or fallback when
// the descriptor leaves it unset.
func (w Web) SessionTimeoutOr(fallback int) int {
	if w.SessionTimeout == nil {
		return fallback
	}
	return *w.SessionTimeout
}

// MimeType maps a path's extension to a content type, defaulting to text/html.
func (w Web) MimeType(p string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" {
		return DefaultMimeType
	}
	if t, ok := w.MimeTypes[ext]; ok {
		return t
	}
	return DefaultMimeType
}

// IsPage reports whether p has one of the page extensions.
func (w Web) IsPage(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, e := range w.PageExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// LoadWeb reads process defaults. A missing file yields DefaultWeb.
func LoadWeb(p string) (Web, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultWeb(), nil
	}
	if err != nil {
		return Web{}, fmt.Errorf("read web defaults %s: %w", p, err)
	}
	var w Web
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Web{}, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	w.fill()
	return w, nil
}
