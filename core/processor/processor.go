package processor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/appserver/core/dispatch"
	"github.com/dmitrymomot/appserver/core/handler"
	"github.com/dmitrymomot/appserver/core/logger"
	"github.com/dmitrymomot/appserver/core/metrics"
	"github.com/dmitrymomot/appserver/core/session"
)

const tracerName = "github.com/dmitrymomot/appserver/core/processor"

// Application is the routed target of a request.
type Application interface {
	Prefix() string
	RelativePath(uri string) string
	Serve(req *handler.Request, resp *handler.Response) error
}

// Router resolves the application for a Host header and absolute path.
type Router interface {
	Route(hostHeader, uri string) Application
}

// RouterFunc adapts a function to Router.
type RouterFunc func(hostHeader, uri string) Application

// Route calls f.
func (f RouterFunc) Route(hostHeader, uri string) Application { return f(hostHeader, uri) }

// Sessions is the session store as seen by the processor.
type Sessions interface {
	Resolve(token string) (*session.Session, bool, error)
	Cookie(s *session.Session, path string) *http.Cookie
	CookieName() string
}

// Processor turns one connection into one request and one response.
type Processor struct {
	router   Router
	sessions Sessions

	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	maxBody     int64
	traceLines  int
	readTimeout time.Duration
	serverName  string
}

// New creates a processor.
func New(router Router, sessions Sessions, opts ...Option) *Processor {
	p := &Processor{
		router:     router,
		sessions:   sessions,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
		maxBody:    DefaultMaxBodySize,
		traceLines: DefaultTraceLines,
		serverName: DefaultServerName,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// exchange carries per-connection state through ServeConn.
type exchange struct {
	conn     net.Conn
	start    time.Time
	comp     Compression
	httpReq  *http.Request
	req      *handler.Request
	resp     *handler.Response
	app      Application
	written  bool
	status   int
	bodySize int
}

// ServeConn reads one request from conn, dispatches it and writes exactly
// one response. The connection is always closed. Any fault, including a
// panic outside the dispatch chain, ends in a 500 response when nothing has
// been written yet.
func (p *Processor) ServeConn(ctx context.Context, conn net.Conn, comp Compression) {
	ex := &exchange{conn: conn, start: time.Now(), comp: comp, resp: handler.NewResponse()}
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			err := &dispatch.PanicError{Value: r, Stack: debug.Stack()}
			p.logger.ErrorContext(ctx, "processor panic", logger.Error(err), logger.StackBytes(err.Stack))
			if !ex.written {
				p.fail(ctx, ex, err)
			}
		}
	}()

	if p.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(p.readTimeout))
	}

	httpReq, body, err := p.read(conn)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		p.logger.DebugContext(ctx, "request parse failed", logger.Error(err), logger.ClientIP(remoteAddr(conn)))
		p.fail(ctx, ex, fmt.Errorf("parse request: %w", err))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	ex.httpReq = httpReq

	ctx, span := p.tracer.Start(ctx, "appserver.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", httpReq.Method),
			attribute.String("url.path", requestPath(httpReq)),
			attribute.String("server.address", httpReq.Host),
		),
	)
	defer func() {
		span.SetAttributes(attribute.Int("http.response.status_code", ex.status))
		if ex.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ex.status))
		}
		span.End()
	}()

	ex.req = newRequest(ctx, httpReq, body, remoteAddr(conn))

	app := p.router.Route(httpReq.Host, ex.req.URI)
	if app == nil {
		p.fail(ctx, ex, ErrNoApplication)
		return
	}
	ex.app = app
	ex.req.Path = app.RelativePath(ex.req.URI)

	if err := p.attachSession(ex); err != nil {
		p.fail(ctx, ex, err)
		return
	}

	err = app.Serve(ex.req, ex.resp)
	switch {
	case errors.Is(err, handler.ErrNotFound):
		p.notFound(ctx, ex)
	case err != nil:
		span.RecordError(err)
		p.fail(ctx, ex, err)
	case ex.resp.Location() != "":
		p.finish(ctx, ex, frame{
			status:      http.StatusFound,
			contentType: ex.resp.ContentType(),
			location:    ex.resp.Location(),
			cookies:     ex.resp.Cookies(),
			extra:       ex.resp.Header(),
		})
	case ex.resp.Status() == http.StatusNotFound && len(ex.resp.Body()) == 0:
		p.notFound(ctx, ex)
	default:
		p.respond(ctx, ex)
	}
}

// read parses the request line, headers and body.
func (p *Processor) read(conn net.Conn) (*http.Request, []byte, error) {
	br := bufio.NewReader(conn)
	if _, err := br.Peek(1); err != nil {
		return nil, nil, err
	}
	req, err := http.ReadRequest(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}
	if req.ContentLength > p.maxBody {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, req.ContentLength)
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, p.maxBody+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > p.maxBody {
		return nil, nil, ErrBodyTooLarge
	}
	return req, body, nil
}

func (p *Processor) attachSession(ex *exchange) error {
	token, _ := ex.req.Cookie(p.sessions.CookieName())
	sess, _, err := p.sessions.Resolve(token)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	ex.req.Session = sess
	ex.resp.AddCookie(p.sessions.Cookie(sess, ex.app.Prefix()))
	return nil
}

func (p *Processor) respond(ctx context.Context, ex *exchange) {
	body := ex.resp.Body()
	f := frame{
		status:      ex.resp.Status(),
		contentType: ex.resp.ContentType(),
		body:        body,
		cookies:     ex.resp.Cookies(),
		extra:       ex.resp.Header(),
	}
	h := ex.httpReq.Header
	if f.status == http.StatusOK && ex.comp.Applies(h.Get("Accept-Encoding"), h.Get("User-Agent"), f.contentType, len(body)) {
		if zipped, err := gzipBytes(body); err == nil {
			f.body = zipped
			f.gzipped = true
		} else {
			p.logger.WarnContext(ctx, "gzip failed, sending identity body", logger.Error(err))
		}
	}
	p.finish(ctx, ex, f)
}

func (p *Processor) notFound(ctx context.Context, ex *exchange) {
	uri := ""
	if ex.req != nil {
		uri = ex.req.URI
	}
	p.finish(ctx, ex, frame{
		status:      http.StatusNotFound,
		contentType: "text/html; charset=utf-8",
		body:        renderNotFound(uri, p.serverName),
		cookies:     ex.resp.Cookies(),
	})
}

func (p *Processor) fail(ctx context.Context, ex *exchange, err error) {
	attrs := []any{logger.Error(err)}
	if ex.req != nil {
		attrs = append(attrs, logger.Method(ex.req.Method), logger.Path(ex.req.URI))
	}
	var pe *dispatch.PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, logger.StackBytes(pe.Stack))
	}
	p.logger.ErrorContext(ctx, "request failed", attrs...)

	p.finish(ctx, ex, frame{
		status:      http.StatusInternalServerError,
		contentType: "text/html; charset=utf-8",
		body:        renderServerError(err, p.traceLines, p.serverName),
		cookies:     ex.resp.Cookies(),
	})
}

func (p *Processor) finish(ctx context.Context, ex *exchange, f frame) {
	if err := validHeaders(f); err != nil {
		p.fail(ctx, ex, err)
		return
	}
	if ex.httpReq != nil && ex.httpReq.Method == http.MethodHead {
		f.headOnly = true
	}
	ex.written = true
	ex.status = f.status
	if !f.headOnly {
		ex.bodySize = len(f.body)
	}

	prefix := ""
	if ex.app != nil {
		prefix = ex.app.Prefix()
	}
	p.metrics.ObserveRequest(prefix, f.status, ex.bodySize, time.Since(ex.start))

	if _, err := p.writeFrame(ex.conn, f); err != nil {
		p.logger.DebugContext(ctx, "response write failed", logger.Error(err))
	}
}

func newRequest(ctx context.Context, r *http.Request, body []byte, remote string) *handler.Request {
	params := r.URL.Query()
	if hasFormBody(r) {
		if form, err := url.ParseQuery(string(body)); err == nil {
			for k, vs := range form {
				params[k] = append(params[k], vs...)
			}
		}
	}
	req := &handler.Request{
		Method:     r.Method,
		RawURI:     r.RequestURI,
		URI:        requestPath(r),
		Proto:      r.Proto,
		Params:     params,
		Header:     r.Header,
		Cookies:    r.Cookies(),
		Body:       body,
		RemoteAddr: remote,
	}
	return req.WithContext(ctx)
}

func hasFormBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(r.Header.Get("Content-Type"), ";", 2)[0]))
	return ct == "application/x-www-form-urlencoded"
}

func requestPath(r *http.Request) string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
