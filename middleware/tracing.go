package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/appserver/core/handler"
)

const tracerName = "github.com/dmitrymomot/appserver/middleware"

// Tracing wraps the rest of the chain in a span and propagates the span
// context through the request.
//
// Init params: span_name (default "dispatch").
type Tracing struct {
	// Provider defaults to the global tracer provider.
	Provider trace.TracerProvider
	SpanName string

	tracer trace.Tracer
}

// Init implements handler.Initializer.
func (m *Tracing) Init(cfg handler.Config) error {
	if m.SpanName = cfg.Param("span_name"); m.SpanName == "" {
		m.SpanName = "dispatch"
	}
	if m.Provider == nil {
		m.Provider = otel.GetTracerProvider()
	}
	m.tracer = m.Provider.Tracer(tracerName)
	return nil
}

// Intercept implements handler.Interceptor.
func (m *Tracing) Intercept(req *handler.Request, resp *handler.Response, chain handler.Chain) error {
	tracer, name := m.tracer, m.SpanName
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	if name == "" {
		name = "dispatch"
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.URI),
		attribute.String("appserver.path", req.Path),
	}
	if req.App != nil {
		attrs = append(attrs, attribute.String("appserver.app", req.App.Prefix()))
	}
	if id, ok := GetRequestID(req); ok {
		attrs = append(attrs, attribute.String("appserver.request_id", id))
	}

	parent := req.Context()
	ctx, span := tracer.Start(parent, name, trace.WithAttributes(attrs...))
	defer span.End()

	req.WithContext(ctx)
	defer req.WithContext(parent)

	err := chain.Next(req, resp)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if resp.Status() >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.Status()))
	}
	return err
}
