package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dmitrymomot/appserver/core/session"
)

// MaxForwardDepth bounds nested Request.Forward calls.
const MaxForwardDepth = 8

// Forwarder re-dispatches a request inside its application.
type Forwarder func(req *Request, resp *Response) error

// Request is a parsed HTTP request. Only the session, attributes, forwarded
// flag and (on forward) Path change after parsing.
type Request struct {
	Method string
	// RawURI is the request target as received, query included.
	RawURI string
	// URI is the decoded absolute path, without query.
	URI string
	// Path is URI with the application prefix removed; "/" at minimum.
	Path       string
	Proto      string
	Params     url.Values
	Header     http.Header
	Cookies    []*http.Cookie
	Body       []byte
	RemoteAddr string

	App     Application
	Session *session.Session

	ctx       context.Context
	attrs     map[string]any
	forwarded bool
	depth     int
	forwarder Forwarder
}

// Context returns the request context, never nil.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext replaces the request context in place and returns r.
func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// Param returns the first value of a query or form parameter.
func (r *Request) Param(name string) string {
	return r.Params.Get(name)
}

// Cookie returns the named cookie value and whether it was sent.
func (r *Request) Cookie(name string) (string, bool) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Attr returns a request attribute.
func (r *Request) Attr(key string) any {
	return r.attrs[key]
}

// SetAttr stores a request attribute shared along the dispatch chain.
func (r *Request) SetAttr(key string, v any) {
	if r.attrs == nil {
		r.attrs = make(map[string]any)
	}
	r.attrs[key] = v
}

// Forwarded reports whether the request reached its handler through Forward.
func (r *Request) Forwarded() bool {
	return r.forwarded
}

// SetForwarder installs the re-dispatch hook. Called by the application.
func (r *Request) SetForwarder(f Forwarder) {
	r.forwarder = f
}

// Forward re-dispatches the request to another path in the same application.
// The caller should return right after; resp is shared with the target.
func (r *Request) Forward(resp *Response, path string) error {
	if r.forwarder == nil {
		return ErrForwardUnavailable
	}
	if r.depth >= MaxForwardDepth {
		return ErrForwardLoop
	}
	r.depth++
	r.forwarded = true
	r.Path = path
	return r.forwarder(r, resp)
}
