package descriptor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/appserver/core/descriptor"
)

func TestParseServer(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		s, err := descriptor.ParseServer([]byte(`
service: main
engine:
  default_host: localhost
  hosts:
    - name: localhost
      app_base: webapps
      contexts:
        - path: /shop
          doc_base: /srv/shop
          reloadable: true
connectors:
  - port: 18080
    compression: "on"
    compression_min_size: 20
    no_compression_user_agents: "gozilla, traviata"
    compressible_mime_types: "text/html,text/plain"
`))
		require.NoError(t, err)
		assert.Equal(t, "localhost", s.Engine.DefaultHost)
		require.Len(t, s.Engine.Hosts[0].Contexts, 1)
		assert.True(t, s.Engine.Hosts[0].Contexts[0].Reloadable)
		assert.True(t, s.Connectors[0].CompressionEnabled())
		assert.Equal(t, 20, s.Connectors[0].CompressionMinSize)
	})

	t.Run("default host must be declared", func(t *testing.T) {
		t.Parallel()
		_, err := descriptor.ParseServer([]byte(`
engine:
  default_host: missing
  hosts: [{name: localhost}]
connectors: [{port: 1}]
`))
		assert.ErrorIs(t, err, descriptor.ErrDefaultHostMissing)
	})

	t.Run("duplicate port", func(t *testing.T) {
		t.Parallel()
		_, err := descriptor.ParseServer([]byte(`
engine:
  default_host: a
  hosts: [{name: a}]
connectors: [{port: 80}, {port: 80}]
`))
		assert.ErrorIs(t, err, descriptor.ErrDuplicateMapping)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		_, err := descriptor.ParseServer([]byte("engine: ["))
		assert.ErrorIs(t, err, descriptor.ErrInvalidDescriptor)
	})
}

func TestLoadServerMissingFile(t *testing.T) {
	t.Parallel()
	s, err := descriptor.LoadServer(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, descriptor.DefaultServer(), s)
}

func TestWeb(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		w := descriptor.DefaultWeb()
		assert.Equal(t, []string{"index.html"}, w.WelcomeFiles)
		assert.Nil(t, w.SessionTimeout)
		assert.Equal(t, 45, w.SessionTimeoutOr(45))
		assert.Equal(t, "WEB-INF/web.yaml", w.WatchedResource)
		assert.Equal(t, "text/css", w.MimeType("/a/site.CSS"))
		assert.Equal(t, "text/html", w.MimeType("/noext"))
		assert.Equal(t, "text/html", w.MimeType("/file.unknown"))
		assert.True(t, w.IsPage("/hello.gohtml"))
		assert.False(t, w.IsPage("/hello.html"))
	})

	t.Run("file overrides", func(t *testing.T) {
		t.Parallel()
		p := filepath.Join(t.TempDir(), "web.yaml")
		require.NoError(t, os.WriteFile(p, []byte(`
mime_types: {md: text/markdown}
welcome_files: [home.html, index.html]
session_timeout: -1
`), 0o644))
		w, err := descriptor.LoadWeb(p)
		require.NoError(t, err)
		assert.Equal(t, "text/markdown", w.MimeType("x.md"))
		assert.Equal(t, "image/png", w.MimeType("x.png"))
		assert.Equal(t, []string{"home.html", "index.html"}, w.WelcomeFiles)
		assert.Equal(t, -1, w.SessionTimeoutOr(45))
	})
}

func TestParseApp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		err  error
	}{
		{
			name: "valid",
			yaml: `
handlers:
  - {name: hello, unit: demo.hello, patterns: [/hello, /hi], eager: true}
interceptors:
  - {name: log, unit: builtin.logging, patterns: ["/*"]}
listeners: [demo.listener]
`,
		},
		{
			name: "duplicate pattern",
			yaml: `
handlers:
  - {name: a, unit: u.a, patterns: [/x]}
  - {name: b, unit: u.b, patterns: [/x]}
`,
			err: descriptor.ErrDuplicateMapping,
		},
		{
			name: "duplicate unit",
			yaml: `
handlers:
  - {name: a, unit: u.a, patterns: [/x]}
  - {name: b, unit: u.a, patterns: [/y]}
`,
			err: descriptor.ErrDuplicateMapping,
		},
		{
			name: "duplicate handler name",
			yaml: `
handlers:
  - {name: a, unit: u.a}
  - {name: a, unit: u.b}
`,
			err: descriptor.ErrDuplicateMapping,
		},
		{
			name: "interceptor without unit",
			yaml: `
interceptors:
  - {name: a}
`,
			err: descriptor.ErrInvalidDescriptor,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := descriptor.ParseApp([]byte(tt.yaml))
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLoadAppMissingFile(t *testing.T) {
	t.Parallel()
	a, err := descriptor.LoadApp(filepath.Join(t.TempDir(), "WEB-INF", "web.yaml"))
	require.NoError(t, err)
	assert.Empty(t, a.Handlers)
}
