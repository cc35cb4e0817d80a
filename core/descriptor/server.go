package descriptor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Server is the top-level deployment descriptor (conf/server.yaml).
type Server struct {
	Service    string      `yaml:"service"`
	Engine     Engine      `yaml:"engine"`
	Connectors []Connector `yaml:"connectors"`
}

// Engine lists virtual hosts.
type Engine struct {
	DefaultHost string `yaml:"default_host"`
	Hosts       []Host `yaml:"hosts"`
}

// Host declares one virtual host.
type Host struct {
	Name     string    `yaml:"name"`
	AppBase  string    `yaml:"app_base"`
	Contexts []Context `yaml:"contexts"`
}

// Context deploys one application at an explicit prefix.
type Context struct {
	Path       string `yaml:"path"`
	DocBase    string `yaml:"doc_base"`
	Reloadable bool   `yaml:"reloadable"`
}

// Connector configures one listening port.
type Connector struct {
	Port                    int    `yaml:"port"`
	Compression             string `yaml:"compression"`
	CompressionMinSize      int    `yaml:"compression_min_size"`
	NoCompressionUserAgents string `yaml:"no_compression_user_agents"`
	CompressibleMimeTypes   string `yaml:"compressible_mime_types"`
}

// CompressionEnabled reports whether compression is switched on ("on" or "true").
func (c Connector) CompressionEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(c.Compression)) {
	case "on", "true", "yes":
		return true
	}
	return false
}

// DefaultServer is used when no server descriptor exists: one host "localhost"
// rooted at "webapps" and one connector on 18080.
func DefaultServer() Server {
	return Server{
		Service: "appserver",
		Engine: Engine{
			DefaultHost: "localhost",
			Hosts:       []Host{{Name: "localhost", AppBase: "webapps"}},
		},
		Connectors: []Connector{{
			Port:                  18080,
			Compression:           "on",
			CompressionMinSize:    20,
			CompressibleMimeTypes: "text/html,text/xml,text/javascript,application/javascript,text/css,text/plain",
		}},
	}
}

// LoadServer reads and validates a server descriptor.
// A missing file yields DefaultServer.
func LoadServer(path string) (Server, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultServer(), nil
	}
	if err != nil {
		return Server{}, fmt.Errorf("read server descriptor %s: %w", path, err)
	}
	return ParseServer(data)
}

// ParseServer decodes and validates a server descriptor.
func ParseServer(data []byte) (Server, error) {
	var s Server
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Server{}, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	if err := s.Validate(); err != nil {
		return Server{}, err
	}
	return s, nil
}

// Validate checks host and connector declarations.
func (s Server) Validate() error {
	if len(s.Connectors) == 0 {
		return fmt.Errorf("%w: no connectors declared", ErrInvalidDescriptor)
	}
	ports := make(map[int]struct{}, len(s.Connectors))
	for _, c := range s.Connectors {
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("%w: connector port %d out of range", ErrInvalidDescriptor, c.Port)
		}
		if _, dup := ports[c.Port]; dup && c.Port != 0 {
			return fmt.Errorf("%w: connector port %d declared twice", ErrDuplicateMapping, c.Port)
		}
		ports[c.Port] = struct{}{}
	}

	names := make(map[string]struct{}, len(s.Engine.Hosts))
	for _, h := range s.Engine.Hosts {
		if h.Name == "" {
			return fmt.Errorf("%w: host without name", ErrInvalidDescriptor)
		}
		if _, dup := names[h.Name]; dup {
			return fmt.Errorf("%w: host %q declared twice", ErrDuplicateMapping, h.Name)
		}
		names[h.Name] = struct{}{}
	}
	if _, ok := names[s.Engine.DefaultHost]; !ok {
		return fmt.Errorf("%w: %q", ErrDefaultHostMissing, s.Engine.DefaultHost)
	}
	return nil
}
