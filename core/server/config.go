package server

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/session"
	"github.com/dmitrymomot/appserver/core/workerpool"
)

// Config holds process settings with environment variable support.
// Deployment topology lives in the descriptors it points to.
type Config struct {
	// Descriptor locations
	ServerConf string `env:"SERVER_CONF" envDefault:"conf/server.yaml"`
	WebConf    string `env:"WEB_CONF" envDefault:"conf/web.yaml"`

	// WorkDir holds compiled page artifacts, one subdirectory per host.
	WorkDir string `env:"WORK_DIR" envDefault:"work"`

	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	// ReadTimeout bounds receiving a request. Zero disables it.
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"0s"`
	MaxBodySize int64         `env:"SERVER_MAX_BODY_SIZE" envDefault:"10485760"`
	BindAddress string        `env:"SERVER_BIND_ADDRESS" envDefault:""`

	// MetricsAddr enables a Prometheus listener when set, e.g. ":9090".
	MetricsAddr string `env:"METRICS_ADDR" envDefault:""`

	Pool    workerpool.Config
	Session session.Config
}

// DefaultConfig returns a Config with the same values as the envDefault tags.
func DefaultConfig() Config {
	return Config{
		ServerConf:      DefaultServerConf,
		WebConf:         DefaultWebConf,
		WorkDir:         DefaultWorkDir,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxBodySize:     DefaultMaxBodySize,
		Pool:            workerpool.DefaultConfig(),
		Session:         session.DefaultConfig(),
	}
}

// NewFromConfig loads both descriptors named by cfg and creates a Server.
// A missing server descriptor falls back to descriptor.DefaultServer.
func NewFromConfig(cfg Config, opts ...Option) (*Server, error) {
	srv, err := descriptor.LoadServer(cfg.ServerConf)
	if err != nil {
		return nil, fmt.Errorf("load server descriptor %s: %w", cfg.ServerConf, err)
	}
	web, err := descriptor.LoadWeb(cfg.WebConf)
	if err != nil {
		return nil, fmt.Errorf("load web defaults %s: %w", cfg.WebConf, err)
	}
	return New(cfg, srv, web, opts...), nil
}
