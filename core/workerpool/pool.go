package workerpool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrymomot/appserver/core/logger"
)

// Task is a unit of work. Panics are recovered and logged.
type Task func()

// Pool runs tasks on a bounded set of goroutines: core workers live for the
// pool's lifetime, extra workers up to MaxWorkers start only when the queue
// is full and exit after KeepAlive without work.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	tasks chan Task
	extra *semaphore.Weighted
	quit  chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup

	workers   atomic.Int32
	active    atomic.Int32
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

// New starts the core workers.
func New(cfg Config, opts ...Option) *Pool {
	cfg = cfg.normalized()
	p := &Pool{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tasks:  make(chan Task, cfg.QueueSize),
		extra:  semaphore.NewWeighted(int64(cfg.MaxWorkers - cfg.CoreWorkers)),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < cfg.CoreWorkers; i++ {
		p.wg.Add(1)
		p.workers.Add(1)
		go p.coreWorker()
	}
	return p
}

// Submit schedules t. It queues when possible, otherwise starts an extra
// worker, otherwise blocks or rejects according to the policy. A blocked
// Submit returns early when ctx is done or the pool shuts down.
func (p *Pool) Submit(ctx context.Context, t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- t:
		return nil
	default:
	}

	if p.extra.TryAcquire(1) {
		p.wg.Add(1)
		p.workers.Add(1)
		go p.extraWorker(t)
		return nil
	}

	if p.cfg.Policy == PolicyReject {
		p.rejected.Add(1)
		return ErrPoolSaturated
	}

	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

func (p *Pool) coreWorker() {
	defer p.wg.Done()
	defer p.workers.Add(-1)
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *Pool) extraWorker(first Task) {
	defer p.wg.Done()
	defer p.workers.Add(-1)
	defer p.extra.Release(1)

	p.run(first)

	idle := time.NewTimer(p.cfg.KeepAlive)
	defer idle.Stop()
	for {
		select {
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(t)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.cfg.KeepAlive)
		case <-idle.C:
			return
		}
	}
}

func (p *Pool) run(t Task) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("task panicked",
				logger.Component("workerpool"),
				logger.Error(fmt.Errorf("recovered from panic: %v", r)),
				logger.StackBytes(debug.Stack()),
			)
			return
		}
		p.completed.Add(1)
	}()
	t()
}

// Shutdown stops accepting tasks, lets queued tasks finish and waits for
// the workers or ctx, whichever comes first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		close(p.quit)
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Workers   int
	Active    int
	Queued    int
	Completed int64
	Rejected  int64
	Panics    int64
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(p.workers.Load()),
		Active:    int(p.active.Load()),
		Queued:    len(p.tasks),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
}

// Config returns the normalized configuration.
func (p *Pool) Config() Config { return p.cfg }
