package host_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/handler"
	"github.com/dmitrymomot/appserver/core/host"
	"github.com/dmitrymomot/appserver/core/scope"
	"github.com/dmitrymomot/appserver/core/webapp"
)

type counter struct{ n atomic.Int32 }

func (c *counter) Inc() { c.n.Add(1) }

func writeFile(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(body), 0o644))
}

func writeBundle(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func testUnits(t *testing.T) *scope.Scope {
	t.Helper()
	units := scope.New("process", nil, nil)
	require.NoError(t, units.Define("test.echo", func() (any, error) {
		return handler.HandlerFunc(func(req *handler.Request, resp *handler.Response) error {
			return resp.WriteString(req.Path)
		}), nil
	}))
	return units
}

func newHost(t *testing.T, base string, opts ...host.Option) *host.Host {
	t.Helper()
	opts = append([]host.Option{
		host.WithWorkDir(t.TempDir()),
		host.WithLoaderFactory(nil),
		host.WithBundleWatch(false),
		host.WithAppOptions(webapp.WithParentScope(testUnits(t)), webapp.WithReloadDebounce(0)),
	}, opts...)
	h := host.New(descriptor.Host{Name: "localhost", AppBase: base}, descriptor.DefaultWeb(), opts...)
	t.Cleanup(h.Stop)
	return h
}

const echoDescriptor = `
handlers:
  - {name: echo, unit: test.echo, patterns: [/echo]}
`

func TestHostResolve(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "ROOT", "index.html"), "root")
	writeFile(t, filepath.Join(base, "shop", "index.html"), "shop")
	writeFile(t, filepath.Join(base, ".hidden", "index.html"), "hidden")

	h := newHost(t, base)
	require.NoError(t, h.Init(context.Background()))

	tests := []struct {
		uri, prefix string
	}{
		{"/", "/"},
		{"/index.html", "/"},
		{"/shop", "/shop"},
		{"/shop/", "/shop"},
		{"/shop/cart/items", "/shop"},
		{"/shopping/cart", "/"},
		{"/.hidden/index.html", "/"},
		{"/unknown/deep/path", "/"},
	}
	for _, tt := range tests {
		app := h.Resolve(tt.uri)
		require.NotNil(t, app, tt.uri)
		assert.Equal(t, tt.prefix, app.Prefix(), tt.uri)
	}
	assert.Len(t, h.Apps(), 2)
}

func TestHostExplicitContextWins(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	external := t.TempDir()
	writeFile(t, filepath.Join(base, "ROOT", "index.html"), "root")
	writeFile(t, filepath.Join(base, "shop", "index.html"), "scanned")
	writeFile(t, filepath.Join(external, "index.html"), "explicit")

	h := host.New(descriptor.Host{
		Name:     "localhost",
		AppBase:  base,
		Contexts: []descriptor.Context{{Path: "/shop", DocBase: external}},
	}, descriptor.DefaultWeb(),
		host.WithWorkDir(t.TempDir()),
		host.WithLoaderFactory(nil),
		host.WithBundleWatch(false),
		host.WithAppOptions(webapp.WithParentScope(testUnits(t))),
	)
	t.Cleanup(h.Stop)
	require.NoError(t, h.Init(context.Background()))

	app := h.Resolve("/shop/")
	require.NotNil(t, app)
	assert.Equal(t, external, app.DocRoot())
}

func TestHostRequiresRoot(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "shop", "index.html"), "shop")

	err := newHost(t, base).Init(context.Background())
	assert.ErrorIs(t, err, host.ErrNoRootApplication)
}

func TestHostRedeployYieldsFreshHandlers(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "ROOT", "WEB-INF", "web.yaml"), echoDescriptor)
	redeploys := &counter{}

	h := newHost(t, base, host.WithRedeployCounter(redeploys))
	require.NoError(t, h.Init(context.Background()))

	before := h.Resolve("/")
	first, err := before.Handler("test.echo")
	require.NoError(t, err)

	h.Redeploy(before)

	after := h.Resolve("/")
	require.NotSame(t, before, after)
	assert.Equal(t, webapp.StateStopped, before.State())
	assert.Equal(t, webapp.StateRunning, after.State())
	assert.Equal(t, 0, after.PoolSize())

	second, err := after.Handler("test.echo")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(1), redeploys.n.Load())

	h.Redeploy(before)
	assert.Same(t, after, h.Resolve("/"), "stale redeploy must not replace the current instance")
}

func TestHostReloadOnDescriptorChange(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	desc := filepath.Join(base, "ROOT", "WEB-INF", "web.yaml")
	writeFile(t, desc, echoDescriptor)

	h := newHost(t, base)
	require.NoError(t, h.Init(context.Background()))
	before := h.Resolve("/")
	require.True(t, before.Reloadable())

	writeFile(t, desc, echoDescriptor+"\n# changed\n")

	assert.Eventually(t, func() bool {
		return h.Resolve("/") != before
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return before.State() == webapp.StateStopped
	}, time.Second, 10*time.Millisecond)
}

func TestHostUndeploy(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "ROOT", "index.html"), "root")
	writeFile(t, filepath.Join(base, "shop", "index.html"), "shop")

	h := newHost(t, base)
	require.NoError(t, h.Init(context.Background()))
	shop := h.Resolve("/shop")

	require.NoError(t, h.Undeploy("/shop"))
	assert.Equal(t, "/", h.Resolve("/shop").Prefix())
	assert.Equal(t, webapp.StateStopped, shop.State())
	assert.ErrorIs(t, h.Undeploy("/shop"), host.ErrNotDeployed)
}

func TestHostBundles(t *testing.T) {
	t.Parallel()

	t.Run("unpacked at init", func(t *testing.T) {
		t.Parallel()
		base := t.TempDir()
		writeFile(t, filepath.Join(base, "ROOT", "index.html"), "root")
		writeBundle(t, filepath.Join(base, "store.war"), map[string]string{
			"index.html":       "store",
			"WEB-INF/web.yaml": echoDescriptor,
		})

		h := newHost(t, base)
		require.NoError(t, h.Init(context.Background()))

		app := h.Resolve("/store/echo")
		require.NotNil(t, app)
		assert.Equal(t, "/store", app.Prefix())
		assert.FileExists(t, filepath.Join(base, "store", "index.html"))
		_, ok := app.ResolveHandler("/echo")
		assert.True(t, ok)
	})

	t.Run("dropped at runtime", func(t *testing.T) {
		t.Parallel()
		base := t.TempDir()
		writeFile(t, filepath.Join(base, "ROOT", "index.html"), "root")

		h := newHost(t, base, host.WithBundleWatch(true), host.WithBundleSettle(20*time.Millisecond))
		require.NoError(t, h.Init(context.Background()))

		writeBundle(t, filepath.Join(base, "late.zip"), map[string]string{"index.html": "late"})

		assert.Eventually(t, func() bool {
			return h.Resolve("/late/").Prefix() == "/late"
		}, 5*time.Second, 20*time.Millisecond)
	})
}

func TestUnpackRejectsEscapingEntries(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	bundle := filepath.Join(dir, "evil.zip")
	writeBundle(t, bundle, map[string]string{"../escape.txt": "x"})

	err := host.Unpack(bundle, filepath.Join(dir, "evil"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestEngine(t *testing.T) {
	t.Parallel()
	web := descriptor.DefaultWeb()
	local := host.New(descriptor.Host{Name: "localhost"}, web)
	shop := host.New(descriptor.Host{Name: "shop.example.com"}, web)

	_, err := host.NewEngine("missing", local, shop)
	assert.ErrorIs(t, err, host.ErrDefaultHostMissing)

	e, err := host.NewEngine("localhost", local, shop)
	require.NoError(t, err)

	assert.Same(t, shop, e.Host("shop.example.com:8080"))
	assert.Same(t, shop, e.Host("SHOP.example.com"))
	assert.Same(t, local, e.Host("other.example.com"))
	assert.Same(t, local, e.Host(""))
	assert.Same(t, local, e.DefaultHost())
}

func TestHostReloadRecoversAfterFailedRedeploy(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	desc := filepath.Join(base, "ROOT", "WEB-INF", "web.yaml")
	writeFile(t, desc, echoDescriptor)
	redeploys, failures := &counter{}, &counter{}

	h := newHost(t, base, host.WithRedeployCounter(redeploys), host.WithRedeployFailureCounter(failures))
	require.NoError(t, h.Init(context.Background()))
	before := h.Resolve("/")

	writeFile(t, desc, echoDescriptor+"  - {name: broken, unit: test.missing, patterns: [/broken], eager: true}\n")
	assert.Eventually(t, func() bool {
		return failures.n.Load() >= 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Same(t, before, h.Resolve("/"), "failed build keeps the current instance")
	assert.Equal(t, webapp.StateRunning, before.State())
	assert.Equal(t, int32(0), redeploys.n.Load())

	writeFile(t, desc, echoDescriptor+"\n# fixed\n")
	assert.Eventually(t, func() bool {
		return h.Resolve("/") != before && redeploys.n.Load() >= 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return before.State() == webapp.StateStopped
	}, time.Second, 10*time.Millisecond)
}

func TestHostDeployAfterStop(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "ROOT", "index.html"), "root")
	late := t.TempDir()
	writeFile(t, filepath.Join(late, "index.html"), "late")

	h := newHost(t, base)
	require.NoError(t, h.Init(context.Background()))
	h.Stop()

	err := h.Deploy(context.Background(), webapp.Config{Prefix: "/late", DocRoot: late, Reloadable: true})
	assert.ErrorIs(t, err, host.ErrHostStopped)
	assert.Nil(t, h.Resolve("/late"))
	assert.Empty(t, h.Apps())
}
