package middleware

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/dmitrymomot/appserver/core/handler"
)

// RequestIDAttr is the request attribute holding the request id.
const RequestIDAttr = "middleware.request_id"

// RequestID assigns each request a unique id, stores it as a request
// attribute and echoes it in a response header.
//
// Init params: header (default X-Request-ID), use_existing (default false).
type RequestID struct {
	// Generator creates new ids (default: UUID v4).
	Generator   func() string
	HeaderName  string
	UseExisting bool
}

// Init implements handler.Initializer.
func (m *RequestID) Init(cfg handler.Config) error {
	m.HeaderName = cfg.Param("header")
	if m.HeaderName == "" {
		m.HeaderName = "X-Request-ID"
	}
	if v := cfg.Param("use_existing"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return paramError(cfg, "use_existing", err)
		}
		m.UseExisting = b
	}
	if m.Generator == nil {
		m.Generator = uuid.NewString
	}
	return nil
}

// Intercept implements handler.Interceptor.
func (m *RequestID) Intercept(req *handler.Request, resp *handler.Response, chain handler.Chain) error {
	var id string
	if m.UseExisting {
		id = req.Header.Get(m.HeaderName)
	}
	if id == "" {
		id = m.Generator()
	}

	req.SetAttr(RequestIDAttr, id)
	resp.Header().Set(m.HeaderName, id)
	return chain.Next(req, resp)
}

// GetRequestID returns the id assigned by RequestID, if any.
func GetRequestID(req *handler.Request) (string, bool) {
	id, ok := req.Attr(RequestIDAttr).(string)
	return id, ok
}
