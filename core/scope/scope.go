package scope

import (
	"fmt"
	"sync"
)

// Factory constructs a fresh instance of a unit.
type Factory func() (any, error)

// Loader resolves unit ids a scope does not define itself.
type Loader interface {
	Load(id string) (Factory, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(id string) (Factory, error)

// Load calls f.
func (f LoaderFunc) Load(id string) (Factory, error) { return f(id) }

// Scope is a namespace of unit factories with parent-first delegation.
// A unit defined in a child is invisible to its parent and siblings.
type Scope struct {
	name   string
	parent *Scope
	loader Loader

	mu          sync.RWMutex
	units       map[string]Factory
	invalidated bool
}

// New creates a scope. parent and loader may be nil.
func New(name string, parent *Scope, loader Loader) *Scope {
	return &Scope{
		name:   name,
		parent: parent,
		loader: loader,
		units:  make(map[string]Factory),
	}
}

// Name identifies the scope in logs and errors.
func (s *Scope) Name() string { return s.name }

// Parent returns the delegation parent, nil for the process scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Define registers a factory in this scope.
func (s *Scope) Define(id string, f Factory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidated {
		return ErrScopeInvalidated
	}
	if _, ok := s.units[id]; ok {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateUnit, id, s.name)
	}
	s.units[id] = f
	return nil
}

// Lookup finds the factory for id: the parent chain first, then this
// scope's own units, then its loader. Loaded factories are cached locally.
func (s *Scope) Lookup(id string) (Factory, error) {
	s.mu.RLock()
	dead := s.invalidated
	s.mu.RUnlock()
	if dead {
		return nil, fmt.Errorf("%w: %s", ErrScopeInvalidated, s.name)
	}

	if s.parent != nil {
		f, err := s.parent.Lookup(id)
		if err == nil {
			return f, nil
		}
	}

	s.mu.RLock()
	f, ok := s.units[id]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}

	if s.loader == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrUnitNotFound, id, s.name)
	}

	f, err := s.loader.Load(id)
	if err != nil {
		return nil, fmt.Errorf("%s: load %s: %w", s.name, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidated {
		return nil, fmt.Errorf("%w: %s", ErrScopeInvalidated, s.name)
	}
	if existing, ok := s.units[id]; ok {
		return existing, nil
	}
	s.units[id] = f
	return f, nil
}

// New constructs a fresh instance of id.
func (s *Scope) New(id string) (any, error) {
	f, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	return f()
}

// Invalidate discards every unit this scope holds. Later lookups fail;
// callers replace the scope with a new one.
func (s *Scope) Invalidate() {
	s.mu.Lock()
	s.invalidated = true
	s.units = make(map[string]Factory)
	s.mu.Unlock()
}

// Invalidated reports whether Invalidate was called.
func (s *Scope) Invalidated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invalidated
}

var process = New("process", nil, nil)

// Process is the process-wide scope, parent of every application scope.
// Built-in and compiled-in units are defined here at bootstrap.
func Process() *Scope { return process }
