package processor_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/appserver/core/descriptor"
	"github.com/dmitrymomot/appserver/core/handler"
	"github.com/dmitrymomot/appserver/core/processor"
	"github.com/dmitrymomot/appserver/core/session"
	"github.com/dmitrymomot/appserver/core/webapp"
)

type fakeApp struct {
	prefix string
	serve  func(req *handler.Request, resp *handler.Response) error
}

func (a *fakeApp) Prefix() string                 { return a.prefix }
func (a *fakeApp) RelativePath(uri string) string { return webapp.StripPrefix(a.prefix, uri) }
func (a *fakeApp) Serve(req *handler.Request, resp *handler.Response) error {
	return a.serve(req, resp)
}

func single(app processor.Application) processor.Router {
	return processor.RouterFunc(func(string, string) processor.Application { return app })
}

// exchange runs one request through p over an in-memory connection.
func exchange(t *testing.T, p *processor.Processor, comp processor.Compression, raw string) *http.Response {
	t.Helper()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.ServeConn(context.Background(), server, comp)
	}()

	go func() {
		_, _ = io.WriteString(client, raw)
	}()

	out, err := io.ReadAll(client)
	require.NoError(t, err)
	<-done

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(out)), nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestProcessorResponses(t *testing.T) {
	t.Parallel()

	app := &fakeApp{prefix: "/shop", serve: func(req *handler.Request, resp *handler.Response) error {
		switch req.Path {
		case "/hello":
			return resp.WriteString("hello " + req.Param("name"))
		case "/go":
			resp.Redirect("/shop/there")
			return nil
		case "/fault":
			return errors.New("database connection refused")
		case "/blank404":
			resp.SetStatus(http.StatusNotFound)
			return nil
		default:
			return handler.ErrNotFound
		}
	}}
	p := processor.New(single(app), session.New())

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		resp := exchange(t, p, processor.Compression{}, "GET /shop/hello?name=bob HTTP/1.1\r\nHost: localhost\r\n\r\n")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
		assert.Equal(t, "close", resp.Header.Get("Connection"))
		assert.Equal(t, "hello bob", readBody(t, resp))
	})

	t.Run("redirect", func(t *testing.T) {
		t.Parallel()
		resp := exchange(t, p, processor.Compression{}, "GET /shop/go HTTP/1.1\r\nHost: localhost\r\n\r\n")
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/shop/there", resp.Header.Get("Location"))
	})

	t.Run("not found names the path", func(t *testing.T) {
		t.Parallel()
		resp := exchange(t, p, processor.Compression{}, "GET /shop/missing.html HTTP/1.1\r\nHost: localhost\r\n\r\n")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		body := readBody(t, resp)
		assert.Contains(t, body, "/shop/missing.html")
		assert.Contains(t, body, "404")
	})

	t.Run("empty 404 gets the status page", func(t *testing.T) {
		t.Parallel()
		resp := exchange(t, p, processor.Compression{}, "GET /shop/blank404 HTTP/1.1\r\nHost: localhost\r\n\r\n")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "/shop/blank404")
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		resp := exchange(t, p, processor.Compression{}, "GET /shop/fault HTTP/1.1\r\nHost: localhost\r\n\r\n")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body := readBody(t, resp)
		assert.Contains(t, body, "database connection refused")
		assert.Contains(t, body, "database connection...")
	})

	t.Run("head has no body", func(t *testing.T) {
		t.Parallel()
		client, server := net.Pipe()
		go p.ServeConn(context.Background(), server, processor.Compression{})
		go func() { _, _ = io.WriteString(client, "HEAD /shop/hello HTTP/1.1\r\nHost: localhost\r\n\r\n") }()
		out, err := io.ReadAll(client)
		require.NoError(t, err)
		assert.Contains(t, string(out), "Content-Length: 6\r\n")
		assert.True(t, strings.HasSuffix(string(out), "\r\n\r\n"))
	})
}

func TestProcessorPanicInsideHandler(t *testing.T) {
	t.Parallel()

	app := &fakeApp{prefix: "/", serve: func(*handler.Request, *handler.Response) error {
		panic("boom")
	}}
	p := processor.New(single(app), session.New())

	resp := exchange(t, p, processor.Compression{}, "GET /x HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "boom")
}

func TestProcessorNoApplication(t *testing.T) {
	t.Parallel()

	p := processor.New(single(nil), session.New())
	resp := exchange(t, p, processor.Compression{}, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestProcessorClosedBeforeRequest(t *testing.T) {
	t.Parallel()

	p := processor.New(single(nil), session.New())
	client, server := net.Pipe()
	require.NoError(t, client.Close())

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.ServeConn(context.Background(), server, processor.Compression{})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeConn did not return on a closed connection")
	}
}

func TestProcessorSessionCookie(t *testing.T) {
	t.Parallel()

	store := session.New()
	app := &fakeApp{prefix: "/shop", serve: func(req *handler.Request, resp *handler.Response) error {
		return resp.WriteString(req.Session.ID())
	}}
	p := processor.New(single(app), store)

	first := exchange(t, p, processor.Compression{}, "GET /shop/ HTTP/1.1\r\nHost: localhost\r\n\r\n")
	cookies := first.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "JSESSIONID", cookies[0].Name)
	assert.Equal(t, "/shop", cookies[0].Path)
	assert.Equal(t, cookies[0].Value, readBody(t, first))

	second := exchange(t, p, processor.Compression{}, "GET /shop/ HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.NotEqual(t, cookies[0].Value, readBody(t, second))

	again := exchange(t, p, processor.Compression{},
		"GET /shop/ HTTP/1.1\r\nHost: localhost\r\nCookie: JSESSIONID="+cookies[0].Value+"\r\n\r\n")
	assert.Equal(t, cookies[0].Value, readBody(t, again))
	assert.Equal(t, 2, store.Len())
}

func TestProcessorFormParams(t *testing.T) {
	t.Parallel()

	app := &fakeApp{prefix: "/", serve: func(req *handler.Request, resp *handler.Response) error {
		return resp.WriteString(req.Param("a") + "," + req.Param("b"))
	}}
	p := processor.New(single(app), session.New())

	body := "b=two"
	raw := "POST /form?a=one HTTP/1.1\r\nHost: localhost\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: 5\r\n\r\n" + body
	resp := exchange(t, p, processor.Compression{}, raw)
	assert.Equal(t, "one,two", readBody(t, resp))
}

func TestProcessorBodyLimit(t *testing.T) {
	t.Parallel()

	app := &fakeApp{prefix: "/", serve: func(*handler.Request, *handler.Response) error { return nil }}
	p := processor.New(single(app), session.New(), processor.WithMaxBodySize(4))

	raw := "POST / HTTP/1.1\r\nHost: localhost\r\nContent-Length: 10\r\n\r\n0123456789"
	resp := exchange(t, p, processor.Compression{}, raw)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestProcessorCompression(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("compress me please ", 20)
	app := &fakeApp{prefix: "/", serve: func(req *handler.Request, resp *handler.Response) error {
		return resp.WriteString(text)
	}}
	p := processor.New(single(app), session.New())
	comp := processor.CompressionFrom(descriptor.Connector{
		Compression:           "on",
		CompressionMinSize:    20,
		CompressibleMimeTypes: "text/html,text/plain",
	})

	t.Run("gzip round trip", func(t *testing.T) {
		t.Parallel()
		resp := exchange(t, p, comp, "GET / HTTP/1.1\r\nHost: localhost\r\nAccept-Encoding: gzip, deflate\r\n\r\n")
		require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
		zr, err := gzip.NewReader(resp.Body)
		require.NoError(t, err)
		plain, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Equal(t, text, string(plain))
	})

	t.Run("identity without accept-encoding", func(t *testing.T) {
		t.Parallel()
		resp := exchange(t, p, comp, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
		assert.Empty(t, resp.Header.Get("Content-Encoding"))
		assert.Equal(t, text, readBody(t, resp))
	})

	t.Run("q zero refuses gzip", func(t *testing.T) {
		t.Parallel()
		resp := exchange(t, p, comp, "GET / HTTP/1.1\r\nHost: localhost\r\nAccept-Encoding: gzip;q=0\r\n\r\n")
		assert.Empty(t, resp.Header.Get("Content-Encoding"))
	})
}

func TestProcessorRejectsHeaderInjection(t *testing.T) {
	t.Parallel()

	app := &fakeApp{prefix: "/", serve: func(req *handler.Request, resp *handler.Response) error {
		switch req.Path {
		case "/next":
			resp.Redirect(req.Param("next"))
		case "/header":
			resp.Header()["X-Note"] = []string{req.Param("v")}
			return resp.WriteString("ok")
		case "/type":
			resp.SetContentType(req.Param("v"))
			return resp.WriteString("ok")
		}
		return nil
	}}
	p := processor.New(single(app), session.New())

	tests := []struct {
		name string
		uri  string
	}{
		{name: "redirect target", uri: "/next?next=/home%0d%0aSet-Cookie:%20JSESSIONID=ATTACKER"},
		{name: "extra header value", uri: "/header?v=a%0d%0aX-Injected:%201"},
		{name: "content type", uri: "/type?v=text/html%0aX-Injected:%201"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := exchange(t, p, processor.Compression{}, "GET "+tt.uri+" HTTP/1.1\r\nHost: localhost\r\n\r\n")
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Empty(t, resp.Header.Get("Location"))
			assert.Empty(t, resp.Header.Get("X-Injected"))
			for _, c := range resp.Cookies() {
				assert.NotEqual(t, "ATTACKER", c.Value)
			}
			assert.Contains(t, readBody(t, resp), "invalid response header")
		})
	}

	t.Run("clean redirect passes", func(t *testing.T) {
		t.Parallel()
		resp := exchange(t, p, processor.Compression{}, "GET /next?next=/home HTTP/1.1\r\nHost: localhost\r\n\r\n")
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/home", resp.Header.Get("Location"))
	})
}
