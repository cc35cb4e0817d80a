package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/logger"
	"github.com/dmitrymomot/appserver/core/metrics"
	"github.com/dmitrymomot/appserver/core/processor"
	"github.com/dmitrymomot/appserver/core/workerpool"
)

// ConnHandler serves one accepted connection and closes it.
type ConnHandler interface {
	ServeConn(ctx context.Context, conn net.Conn, comp processor.Compression)
}

// Connector owns one listening socket and the worker pool its connections
// run on.
type Connector struct {
	port     int
	bindHost string
	comp     processor.Compression
	handler  ConnHandler

	logger  *slog.Logger
	metrics *metrics.Metrics
	poolCfg workerpool.Config

	mu       sync.Mutex
	ln       net.Listener
	pool     *workerpool.Pool
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// New creates a connector for cfg. Nothing is bound until Start.
func New(cfg descriptor.Connector, h ConnHandler, opts ...Option) *Connector {
	c := &Connector{
		port:    cfg.Port,
		comp:    processor.CompressionFrom(cfg),
		handler: h,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		poolCfg: workerpool.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("connector"), logger.Port(c.port))
	return c
}

// Start binds the port and runs the accept loop in the background. Bind
// failures are returned; later accept failures are only logged.
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ln != nil {
		return ErrAlreadyStarted
	}

	addr := net.JoinHostPort(c.bindHost, strconv.Itoa(c.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, addr, err)
	}

	c.ln = ln
	c.pool = workerpool.New(c.poolCfg, workerpool.WithLogger(c.logger))
	c.metrics.RegisterPool(c.boundPort(), func() metrics.PoolStats {
		s := c.pool.Stats()
		return metrics.PoolStats{Workers: s.Workers, Active: s.Active, Queued: s.Queued}
	})

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.loopDone = make(chan struct{})
	go c.acceptLoop(loopCtx, ln, c.pool, c.loopDone)

	c.logger.InfoContext(ctx, "connector listening", slog.String("addr", ln.Addr().String()))
	return nil
}

func (c *Connector) acceptLoop(ctx context.Context, ln net.Listener, pool *workerpool.Pool, done chan<- struct{}) {
	defer close(done)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			c.metrics.AcceptError()
			backoff = nextBackoff(backoff)
			c.logger.WarnContext(ctx, "accept failed", logger.Error(err), logger.Duration(backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		backoff = 0
		c.metrics.ConnectionAccepted()

		connID := uuid.NewString()
		c.logger.DebugContext(ctx, "connection accepted",
			logger.ConnID(connID), logger.ClientIP(conn.RemoteAddr().String()))

		task := func() { c.handler.ServeConn(ctx, conn, c.comp) }
		if err := pool.Submit(ctx, task); err != nil {
			c.metrics.ConnectionRejected()
			c.logger.WarnContext(ctx, "connection rejected", logger.ConnID(connID), logger.Error(err))
			_ = conn.Close()
		}
	}
}

// nextBackoff doubles d within [MinAcceptBackoff, MaxAcceptBackoff].
func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return MinAcceptBackoff
	}
	d *= 2
	if d > MaxAcceptBackoff {
		d = MaxAcceptBackoff
	}
	return d
}

// Stop closes the listener, waits for the accept loop and drains the pool
// until ctx expires.
func (c *Connector) Stop(ctx context.Context) error {
	c.mu.Lock()
	ln, pool, cancel, done := c.ln, c.pool, c.cancel, c.loopDone
	c.mu.Unlock()
	if ln == nil {
		return nil
	}

	err := ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	cancel()
	<-done

	if perr := pool.Shutdown(ctx); perr != nil {
		err = errors.Join(err, fmt.Errorf("drain pool: %w", perr))
	}
	c.logger.InfoContext(ctx, "connector stopped")
	return err
}

// Addr is the bound address, nil before Start.
func (c *Connector) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ln == nil {
		return nil
	}
	return c.ln.Addr()
}

// Port is the configured port; zero asks the OS for one.
func (c *Connector) Port() int { return c.port }

// Compression is the policy handed to every connection.
func (c *Connector) Compression() processor.Compression { return c.comp }

// PoolStats snapshots the worker pool.
func (c *Connector) PoolStats() workerpool.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool == nil {
		return workerpool.Stats{}
	}
	return c.pool.Stats()
}

func (c *Connector) boundPort() int {
	if tcp, ok := c.ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return c.port
}
