// Package scope implements the unit registry hierarchy used to isolate
// applications from each other: a process scope, one scope per application
// and one per compiled page.
//
// Lookups delegate to the parent first, so units defined at bootstrap in the
// process scope are shared, while units an application or page loads itself
// stay private to it. Invalidating a scope drops all of its units; the owner
// replaces it with a fresh scope to pick up new code.
package scope
