package server_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/handler"
	"github.com/dmitrymomot/appserver/core/host"
	"github.com/dmitrymomot/appserver/core/scope"
	"github.com/dmitrymomot/appserver/core/server"
)

const rootDescriptor = `
handlers:
  - {name: slow, unit: test.slow, patterns: [/slow]}
  - {name: fault, unit: test.fault, patterns: [/trigger-fault]}
`

func writeFile(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(body), 0o644))
}

func testUnits(t *testing.T) *scope.Scope {
	t.Helper()
	units := scope.New("test", nil, nil)
	require.NoError(t, units.Define("test.slow", func() (any, error) {
		return handler.HandlerFunc(func(req *handler.Request, resp *handler.Response) error {
			time.Sleep(time.Second)
			return resp.WriteString("done")
		}), nil
	}))
	require.NoError(t, units.Define("test.fault", func() (any, error) {
		return handler.HandlerFunc(func(*handler.Request, *handler.Response) error {
			return errors.New("fault triggered on purpose")
		}), nil
	}))
	return units
}

func testDescriptor(base string) descriptor.Server {
	return descriptor.Server{
		Service: "test-server",
		Engine: descriptor.Engine{
			DefaultHost: "localhost",
			Hosts:       []descriptor.Host{{Name: "localhost", AppBase: base}},
		},
		Connectors: []descriptor.Connector{{Port: 0}},
	}
}

func startServer(t *testing.T) (*server.Server, string) {
	t.Helper()

	base := t.TempDir()
	writeFile(t, filepath.Join(base, "ROOT", "index.html"), "hello")
	writeFile(t, filepath.Join(base, "ROOT", "WEB-INF", "web.yaml"), rootDescriptor)

	cfg := server.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	cfg.BindAddress = "127.0.0.1"
	cfg.ShutdownTimeout = 5 * time.Second

	srv := server.New(cfg, testDescriptor(base), descriptor.DefaultWeb(),
		server.WithUnits(testUnits(t)),
		server.WithHostOptions(host.WithLoaderFactory(nil), host.WithBundleWatch(false)),
	)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, srv.Stop()) })

	addrs := srv.Addrs()
	require.Len(t, addrs, 1)
	return srv, "http://" + addrs[0].String()
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServerScenarios(t *testing.T) {
	t.Parallel()

	srv, base := startServer(t)

	t.Run("welcome file", func(t *testing.T) {
		t.Parallel()
		resp, body := get(t, base+"/")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
		assert.Equal(t, "hello", body)
		assert.Equal(t, "test-server", resp.Header.Get("Server"))
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		resp, body := get(t, base+"/missing.html")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, "/missing.html")
	})

	t.Run("handler fault", func(t *testing.T) {
		t.Parallel()
		resp, body := get(t, base+"/trigger-fault")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, body, "fault triggered on purpose")
	})

	t.Run("descriptor is never served", func(t *testing.T) {
		t.Parallel()
		resp, _ := get(t, base+"/WEB-INF/web.yaml")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("session cookie", func(t *testing.T) {
		t.Parallel()
		resp, _ := get(t, base+"/")
		var found bool
		for _, c := range resp.Cookies() {
			if c.Name == "JSESSIONID" {
				found = true
				assert.Equal(t, "/", c.Path)
				assert.Len(t, c.Value, 32)
			}
		}
		assert.True(t, found)
	})

	require.NotNil(t, srv.Engine())
	require.NotNil(t, srv.Sessions())
}

func TestServerConcurrentRequests(t *testing.T) {
	t.Parallel()

	_, base := startServer(t)

	start := time.Now()
	var wg sync.WaitGroup
	bodies := make([]string, 3)
	for i := range bodies {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(base + "/slow")
			if err != nil {
				return
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			bodies[i] = string(b)
		}()
	}
	wg.Wait()

	assert.Less(t, time.Since(start), 3*time.Second)
	for _, b := range bodies {
		assert.Equal(t, "done", b)
	}
}

func TestServerStartFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing root application", func(t *testing.T) {
		t.Parallel()
		base := t.TempDir()
		writeFile(t, filepath.Join(base, "shop", "index.html"), "shop")

		cfg := server.DefaultConfig()
		cfg.WorkDir = t.TempDir()
		srv := server.New(cfg, testDescriptor(base), descriptor.DefaultWeb(),
			server.WithHostOptions(host.WithLoaderFactory(nil), host.WithBundleWatch(false)))

		err := srv.Start(context.Background())
		require.ErrorIs(t, err, server.ErrStartup)
		assert.ErrorIs(t, err, host.ErrNoRootApplication)
		assert.NoError(t, srv.Stop())
	})

	t.Run("port in use", func(t *testing.T) {
		t.Parallel()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		base := t.TempDir()
		writeFile(t, filepath.Join(base, "ROOT", "index.html"), "hello")
		desc := testDescriptor(base)
		desc.Connectors[0].Port = ln.Addr().(*net.TCPAddr).Port

		cfg := server.DefaultConfig()
		cfg.WorkDir = t.TempDir()
		cfg.BindAddress = "127.0.0.1"
		srv := server.New(cfg, desc, descriptor.DefaultWeb(),
			server.WithHostOptions(host.WithLoaderFactory(nil), host.WithBundleWatch(false)))

		err = srv.Start(context.Background())
		assert.ErrorIs(t, err, server.ErrStartup)
	})

	t.Run("no connectors", func(t *testing.T) {
		t.Parallel()
		desc := testDescriptor(t.TempDir())
		desc.Connectors = nil
		srv := server.New(server.DefaultConfig(), desc, descriptor.DefaultWeb())
		assert.ErrorIs(t, srv.Start(context.Background()), server.ErrNoConnectors)
	})
}

func TestServerAlreadyRunning(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)
	assert.ErrorIs(t, srv.Start(context.Background()), server.ErrServerAlreadyRunning)
}

func TestNewFromConfigMissingDescriptors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := server.DefaultConfig()
	cfg.ServerConf = filepath.Join(dir, "server.yaml")
	cfg.WebConf = filepath.Join(dir, "web.yaml")

	srv, err := server.NewFromConfig(cfg)
	require.NoError(t, err)
	assert.NotNil(t, srv.Metrics())
}

func TestNewFromConfigInvalidDescriptor(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "server.yaml"), "engine: [not, a, map]")
	cfg := server.DefaultConfig()
	cfg.ServerConf = filepath.Join(dir, "server.yaml")

	_, err := server.NewFromConfig(cfg)
	assert.ErrorIs(t, err, descriptor.ErrInvalidDescriptor)
}

func TestServerMetricsListener(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeFile(t, filepath.Join(base, "ROOT", "index.html"), "hello")

	cfg := server.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	cfg.BindAddress = "127.0.0.1"
	cfg.MetricsAddr = "127.0.0.1:0"

	srv := server.New(cfg, testDescriptor(base), descriptor.DefaultWeb(),
		server.WithHostOptions(host.WithLoaderFactory(nil), host.WithBundleWatch(false)))
	assert.ErrorIs(t, srv.Ready(context.Background()), server.ErrNotRunning)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, srv.Stop()) })

	app := "http://" + srv.Addrs()[0].String()
	resp, body := get(t, app+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hello", body)

	admin := "http://" + srv.MetricsAddr().String()

	resp, body = get(t, admin+"/health/live")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ALIVE", body)

	resp, body = get(t, admin+"/health/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "READY", body)

	resp, body = get(t, admin+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "appserver_requests_total")
	assert.Contains(t, body, "appserver_connections_accepted_total")
}

func TestServerSessionTimeoutSource(t *testing.T) {
	t.Parallel()

	fromDescriptor := 12
	tests := []struct {
		name string
		web  descriptor.Web
		want int
	}{
		{name: "environment when descriptor omits it", web: descriptor.DefaultWeb(), want: 5},
		{name: "descriptor wins when set", web: func() descriptor.Web {
			w := descriptor.DefaultWeb()
			w.SessionTimeout = &fromDescriptor
			return w
		}(), want: 12},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			base := t.TempDir()
			writeFile(t, filepath.Join(base, "ROOT", "index.html"), "hello")

			cfg := server.DefaultConfig()
			cfg.WorkDir = t.TempDir()
			cfg.BindAddress = "127.0.0.1"
			cfg.Session.Timeout = 5

			srv := server.New(cfg, testDescriptor(base), tt.web,
				server.WithUnits(testUnits(t)),
				server.WithHostOptions(host.WithLoaderFactory(nil), host.WithBundleWatch(false)),
			)
			require.NoError(t, srv.Start(context.Background()))
			t.Cleanup(func() { assert.NoError(t, srv.Stop()) })

			assert.Equal(t, tt.want, srv.Sessions().Timeout())
		})
	}
}
