package workerpool

import (
	"log/slog"
	"time"
)

// Policy decides what Submit does when the queue is full and no extra
// worker can be started.
type Policy string

const (
	// PolicyBlock makes Submit wait for queue space.
	PolicyBlock Policy = "block"
	// PolicyReject makes Submit fail with ErrPoolSaturated.
	PolicyReject Policy = "reject"
)

const (
	DefaultCoreWorkers = 20
	DefaultMaxWorkers  = 100
	DefaultQueueSize   = 1000
	DefaultKeepAlive   = 60 * time.Second
)

// Config sizes the pool.
type Config struct {
	CoreWorkers int           `env:"POOL_CORE_WORKERS" envDefault:"20"`
	MaxWorkers  int           `env:"POOL_MAX_WORKERS" envDefault:"100"`
	QueueSize   int           `env:"POOL_QUEUE_SIZE" envDefault:"1000"`
	KeepAlive   time.Duration `env:"POOL_KEEP_ALIVE" envDefault:"60s"`
	Policy      Policy        `env:"POOL_POLICY" envDefault:"block"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		CoreWorkers: DefaultCoreWorkers,
		MaxWorkers:  DefaultMaxWorkers,
		QueueSize:   DefaultQueueSize,
		KeepAlive:   DefaultKeepAlive,
		Policy:      PolicyBlock,
	}
}

func (c Config) normalized() Config {
	if c.CoreWorkers < 1 {
		c.CoreWorkers = 1
	}
	if c.MaxWorkers < c.CoreWorkers {
		c.MaxWorkers = c.CoreWorkers
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.Policy != PolicyReject {
		c.Policy = PolicyBlock
	}
	return c
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for recovered panics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
