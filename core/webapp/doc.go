// Package webapp implements a deployed application: its handler and
// interceptor mappings, private unit scope, single-instance handler pool,
// lifecycle and change watching.
//
// Requests are dispatched to an explicitly mapped handler when the path
// matches a handler pattern exactly, to the page handler when the path has
// a page extension, and to the static handler otherwise. Interceptors whose
// patterns match run first, in declaration order.
//
// A reloadable application watches its WEB-INF directory. The first change
// calls the ReloadFunc once on a new goroutine; the host then builds a fresh
// Application from the same Config and swaps it in.
package webapp
