package handler

import (
	"log/slog"
)

// Handler is a terminal unit producing the response for a request.
type Handler interface {
	Serve(req *Request, resp *Response) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *Request, resp *Response) error

// Serve calls f.
func (f HandlerFunc) Serve(req *Request, resp *Response) error {
	return f(req, resp)
}

// Chain is the continuation passed to interceptors.
// Not calling Next short-circuits the rest of the chain and the handler.
type Chain interface {
	Next(req *Request, resp *Response) error
}

// Interceptor runs before the handler and may veto it.
type Interceptor interface {
	Intercept(req *Request, resp *Response, chain Chain) error
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(req *Request, resp *Response, chain Chain) error

// Intercept calls f.
func (f InterceptorFunc) Intercept(req *Request, resp *Response, chain Chain) error {
	return f(req, resp, chain)
}

// Initializer is implemented by units that need their init parameters.
// Init runs once, before the unit serves its first request.
type Initializer interface {
	Init(cfg Config) error
}

// Destroyer is implemented by units holding resources released on undeploy.
type Destroyer interface {
	Destroy()
}

// Listener receives application lifecycle notifications.
type Listener interface {
	Initialized(app Application)
	Destroyed(app Application)
}

// Application is the view of a deployed application that units may use.
type Application interface {
	// Prefix is "/" for the root application, "/name" otherwise.
	Prefix() string
	// DocRoot is the absolute document root directory.
	DocRoot() string
	// RealPath maps an application-relative path to a file path under DocRoot.
	RealPath(p string) string
	// MimeType maps a path to a content type.
	MimeType(p string) string
	Logger() *slog.Logger
}

// Config is passed to Initializer.Init.
type Config struct {
	Name   string
	App    Application
	Params map[string]string
}

// Param returns an init parameter or "".
func (c Config) Param(key string) string {
	if c.Params == nil {
		return ""
	}
	return c.Params[key]
}
