package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/appserver/core/logger"
)

// Store keeps sessions in memory and removes idle ones on a fixed interval.
// One Store serves every application of a server.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	timeout       int
	sweepInterval time.Duration
	cookieName    string
	now           func() time.Time
	logger        *slog.Logger
	gauge         Gauge

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a store with a 30 minute timeout and a 30 second sweep.
func New(opts ...Option) *Store {
	s := &Store{
		sessions:      make(map[string]*Session),
		timeout:       DefaultTimeout,
		sweepInterval: DefaultSweepInterval,
		cookieName:    DefaultCookieName,
		now:           time.Now,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig creates a store from cfg; opts are applied afterwards.
func NewFromConfig(cfg Config, opts ...Option) *Store {
	base := []Option{
		WithTimeout(cfg.Timeout),
		WithSweepInterval(cfg.SweepInterval),
		WithCookieName(cfg.CookieName),
	}
	return New(append(base, opts...)...)
}

// Timeout is the idle interval in minutes given to new sessions.
func (s *Store) Timeout() int { return s.timeout }

// CookieName is the cookie carrying the session id.
func (s *Store) CookieName() string { return s.cookieName }

// Resolve returns the session for token, touching it. An empty or unknown
// token yields a new session and created=true.
func (s *Store) Resolve(token string) (sess *Session, created bool, err error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != "" {
		if existing, ok := s.sessions[token]; ok {
			existing.touch(now)
			return existing, false, nil
		}
	}

	for {
		id, err := generateToken()
		if err != nil {
			return nil, false, err
		}
		if _, taken := s.sessions[id]; taken {
			continue
		}
		sess = newSession(id, s.timeout, now)
		s.sessions[id] = sess
		s.report()
		return sess, true, nil
	}
}

// Get returns a session without touching it.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Invalidate removes a session immediately.
func (s *Store) Invalidate(id string) {
	s.mu.Lock()
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.report()
	}
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle longer than their interval and returns how many.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.report()
	}
	s.mu.Unlock()

	return removed
}

// Cookie builds the session cookie scoped to path. Expires is omitted for
// sessions that never expire.
func (s *Store) Cookie(sess *Session, path string) *http.Cookie {
	c := &http.Cookie{
		Name:     s.cookieName,
		Value:    sess.ID(),
		Path:     path,
		HttpOnly: true,
	}
	if m := sess.MaxInactive(); m != Forever {
		c.Expires = s.now().Add(time.Duration(m) * time.Minute)
	}
	return c
}

// Start launches the background sweep. It returns immediately; the sweep
// stops when ctx is canceled or Stop is called.
func (s *Store) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.sweepLoop(ctx, s.stop, s.done)
	return nil
}

// Stop ends the sweep and waits for it. Safe to call on a stopped store.
func (s *Store) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.runMu.Unlock()

	<-done
}

func (s *Store) sweepLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired sessions removed",
					logger.Component("session"),
					logger.Count("removed", n),
				)
			}
		}
	}
}

// report must be called with mu held.
func (s *Store) report() {
	if s.gauge != nil {
		s.gauge.Set(float64(len(s.sessions)))
	}
}
