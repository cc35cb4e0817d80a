package webapp

import (
	"path"

	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/handler"
)

// boundInterceptor is a constructed interceptor with its patterns.
type boundInterceptor struct {
	name     string
	patterns []string
	unit     handler.Interceptor
}

// mappings holds the lookup tables built from a descriptor.
type mappings struct {
	patterns map[string]string             // exact URI pattern -> unit id
	handlers map[string]descriptor.Handler // unit id -> declaration
}

func buildMappings(d descriptor.App) mappings {
	m := mappings{
		patterns: make(map[string]string),
		handlers: make(map[string]descriptor.Handler, len(d.Handlers)),
	}
	for _, h := range d.Handlers {
		m.handlers[h.Unit] = h
		for _, p := range h.Patterns {
			m.patterns[p] = h.Unit
		}
	}
	return m
}

// patternMatches implements interceptor pattern semantics: an exact path,
// "/*" for everything, or "/*.ext" for a path extension.
func patternMatches(pattern, p string) bool {
	if pattern == p || pattern == "/*" {
		return true
	}
	if len(pattern) > 3 && pattern[:3] == "/*." {
		return path.Ext(p) == pattern[2:]
	}
	return false
}
