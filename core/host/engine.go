package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/dmitrymomot/appserver/core/webapp"
)

// Engine selects a Host by the request's Host header and falls back to the
// default host.
type Engine struct {
	defaultHost *Host
	hosts       map[string]*Host
}

// NewEngine registers hosts; defaultHost must name one of them.
func NewEngine(defaultHost string, hosts ...*Host) (*Engine, error) {
	e := &Engine{hosts: make(map[string]*Host, len(hosts))}
	for _, h := range hosts {
		e.hosts[strings.ToLower(h.Name())] = h
	}
	def, ok := e.hosts[strings.ToLower(defaultHost)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDefaultHostMissing, defaultHost)
	}
	e.defaultHost = def
	return e, nil
}

// Init deploys every host's applications.
func (e *Engine) Init(ctx context.Context) error {
	var errs []error
	for _, h := range e.hosts {
		if err := h.Init(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every host.
func (e *Engine) Stop() {
	for _, h := range e.hosts {
		h.Stop()
	}
}

// DefaultHost returns the fallback host.
func (e *Engine) DefaultHost() *Host { return e.defaultHost }

// Host returns the host named by a Host header value (port ignored), or
// the default host.
func (e *Engine) Host(hostHeader string) *Host {
	name := hostHeader
	if h, _, err := net.SplitHostPort(hostHeader); err == nil {
		name = h
	}
	if h, ok := e.hosts[strings.ToLower(strings.TrimSpace(name))]; ok {
		return h
	}
	return e.defaultHost
}

// Resolve returns the host and application for a request.
func (e *Engine) Resolve(hostHeader, uri string) (*Host, *webapp.Application) {
	h := e.Host(hostHeader)
	return h, h.Resolve(uri)
}
