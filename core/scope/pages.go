package scope

import "sync"

// PageKey identifies one compiled page of one application.
type PageKey struct {
	App  string
	Page string
}

// PageScopes caches one child scope per compiled page so a recompiled page
// can be discarded without touching its application.
type PageScopes struct {
	mu     sync.Mutex
	scopes map[PageKey]*Scope
}

// NewPageScopes creates an empty cache.
func NewPageScopes() *PageScopes {
	return &PageScopes{scopes: make(map[PageKey]*Scope)}
}

// Get returns the scope for key, creating it as a child of parent with
// loader when absent.
func (p *PageScopes) Get(key PageKey, parent *Scope, loader Loader) *Scope {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.scopes[key]; ok && !s.Invalidated() {
		return s
	}
	s := New("page:"+key.App+key.Page, parent, loader)
	p.scopes[key] = s
	return s
}

// Invalidate discards the scope for key.
func (p *PageScopes) Invalidate(key PageKey) {
	p.mu.Lock()
	s, ok := p.scopes[key]
	delete(p.scopes, key)
	p.mu.Unlock()
	if ok {
		s.Invalidate()
	}
}

// InvalidateApp discards every page scope of an application.
func (p *PageScopes) InvalidateApp(app string) {
	p.mu.Lock()
	var dead []*Scope
	for k, s := range p.scopes {
		if k.App == app {
			dead = append(dead, s)
			delete(p.scopes, k)
		}
	}
	p.mu.Unlock()
	for _, s := range dead {
		s.Invalidate()
	}
}

// Len returns the number of cached page scopes.
func (p *PageScopes) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.scopes)
}
