package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Forever disables idle expiry for a session.
const Forever = -1

// tokenEntropy is the number of random bytes hashed into a token.
const tokenEntropy = 16

// Session is per-client state keyed by its id. Attribute access is safe for
// concurrent requests carrying the same cookie.
type Session struct {
	id        string
	createdAt time.Time

	mu           sync.RWMutex
	attrs        map[string]any
	lastAccessed time.Time
	maxInactive  int
}

func newSession(id string, timeout int, now time.Time) *Session {
	return &Session{
		id:           id,
		createdAt:    now,
		attrs:        make(map[string]any),
		lastAccessed: now,
		maxInactive:  timeout,
	}
}

// ID is the 32 character uppercase hex token sent as the cookie value.
func (s *Session) ID() string { return s.id }

// CreatedAt is the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Attr returns an attribute or nil.
func (s *Session) Attr(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attrs[key]
}

// SetAttr stores an attribute.
func (s *Session) SetAttr(key string, v any) {
	s.mu.Lock()
	s.attrs[key] = v
	s.mu.Unlock()
}

// RemoveAttr deletes an attribute.
func (s *Session) RemoveAttr(key string) {
	s.mu.Lock()
	delete(s.attrs, key)
	s.mu.Unlock()
}

// AttrNames lists attribute keys in no particular order.
func (s *Session) AttrNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		names = append(names, k)
	}
	return names
}

// LastAccessed is the time of the last request carrying this session.
func (s *Session) LastAccessed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessed
}

// MaxInactive is the idle timeout in minutes, or Forever.
func (s *Session) MaxInactive() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxInactive
}

// SetMaxInactive changes the idle timeout in minutes. Forever disables expiry.
func (s *Session) SetMaxInactive(minutes int) {
	s.mu.Lock()
	s.maxInactive = minutes
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccessed = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.maxInactive == Forever {
		return false
	}
	return now.Sub(s.lastAccessed) > time.Duration(s.maxInactive)*time.Minute
}

// generateToken hashes fresh random bytes with BLAKE2b-128 and renders the
// digest as uppercase hex.
func generateToken() (string, error) {
	seed := make([]byte, tokenEntropy)
	if _, err := rand.Read(seed); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	h, err := blake2b.New(16, nil)
	if err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	h.Write(seed)
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}
