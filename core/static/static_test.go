package static_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/handler"
	"github.com/dmitrymomot/appserver/core/static"
)

type testApp struct {
	root string
	web  descriptor.Web
}

func (a testApp) Prefix() string           { return "/" }
func (a testApp) DocRoot() string          { return a.root }
func (a testApp) RealPath(p string) string { return filepath.Join(a.root, filepath.FromSlash(p)) }
func (a testApp) MimeType(p string) string { return a.web.MimeType(p) }
func (a testApp) Logger() *slog.Logger     { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newDocRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":       "hello",
		"css/site.css":     "body{}",
		"docs/home.html":   "docs home",
		"empty/.keep":      "",
		"WEB-INF/web.yaml": "handlers: []",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func TestHandlerServe(t *testing.T) {
	t.Parallel()
	app := testApp{root: newDocRoot(t), web: descriptor.DefaultWeb()}
	h := static.New("index.html", "home.html")

	tests := []struct {
		name        string
		path        string
		body        string
		contentType string
		err         error
	}{
		{name: "root welcome file", path: "/", body: "hello", contentType: "text/html"},
		{name: "plain file", path: "/css/site.css", body: "body{}", contentType: "text/css"},
		{name: "directory welcome file", path: "/docs", body: "docs home", contentType: "text/html"},
		{name: "missing file", path: "/missing.html", err: handler.ErrNotFound},
		{name: "directory without welcome", path: "/empty", err: handler.ErrNotFound},
		{name: "private descriptor", path: "/WEB-INF/web.yaml", err: handler.ErrNotFound},
		{name: "private descriptor mixed case", path: "/web-inf/web.yaml", err: handler.ErrNotFound},
		{name: "traversal", path: "/../../etc/passwd", err: handler.ErrNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := &handler.Request{Path: tt.path, App: app}
			resp := handler.NewResponse()
			err := h.Serve(req, resp)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(resp.Body()))
			assert.Equal(t, tt.contentType, resp.ContentType())
			assert.Equal(t, 200, resp.Status())
		})
	}
}

func TestHandlerWithoutApplication(t *testing.T) {
	t.Parallel()
	err := static.New().Serve(&handler.Request{Path: "/"}, handler.NewResponse())
	assert.ErrorIs(t, err, handler.ErrNotFound)
}

func TestHandlerDelegatesPageWelcomeFiles(t *testing.T) {
	t.Parallel()
	root := newDocRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "index.gohtml"), []byte(`{{"rendered"}}`), 0o644))
	app := testApp{root: root, web: descriptor.DefaultWeb()}

	var served []string
	pages := handler.HandlerFunc(func(req *handler.Request, resp *handler.Response) error {
		served = append(served, req.Path)
		return resp.WriteString("rendered")
	})
	h := static.New("index.gohtml", "index.html").DelegatePages(app.web.IsPage, pages)

	req := &handler.Request{Path: "/docs", App: app}
	resp := handler.NewResponse()
	require.NoError(t, h.Serve(req, resp))
	assert.Equal(t, "rendered", string(resp.Body()))
	assert.Equal(t, []string{"/docs/index.gohtml"}, served)
	assert.Equal(t, "/docs", req.Path, "request path restored after delegation")

	t.Run("plain welcome file still served from disk", func(t *testing.T) {
		resp := handler.NewResponse()
		require.NoError(t, h.Serve(&handler.Request{Path: "/", App: app}, resp))
		assert.Equal(t, "hello", string(resp.Body()))
		assert.Len(t, served, 1)
	})

	t.Run("page source requested directly is not delegated", func(t *testing.T) {
		resp := handler.NewResponse()
		require.NoError(t, h.Serve(&handler.Request{Path: "/docs/index.gohtml", App: app}, resp))
		assert.Len(t, served, 1)
	})
}

func TestIsPrivate(t *testing.T) {
	t.Parallel()
	assert.True(t, static.IsPrivate("/WEB-INF/web.yaml"))
	assert.True(t, static.IsPrivate("/web-inf"))
	assert.True(t, static.IsPrivate("/Web-Inf/secret.gohtml"))
	assert.False(t, static.IsPrivate("/docs/WEB-INF"))
	assert.False(t, static.IsPrivate("/WEB-INFO/x"))
}
