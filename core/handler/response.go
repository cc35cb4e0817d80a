package handler

import (
	"bytes"
	"io"
	"net/http"
)

// DefaultContentType is used until a handler sets another type.
const DefaultContentType = "text/html"

type bodyMode uint8

const (
	bodyUnset bodyMode = iota
	bodyText
	bodyRaw
)

// Response collects status, headers, cookies and body until the processor
// frames it. The body is either text written through Writer or raw bytes set
// through SetBody, never both.
type Response struct {
	status      int
	contentType string
	header      http.Header
	cookies     []*http.Cookie
	text        bytes.Buffer
	raw         []byte
	mode        bodyMode
	location    string
}

// NewResponse returns a 200 text/html response.
func NewResponse() *Response {
	return &Response{
		status:      http.StatusOK,
		contentType: DefaultContentType,
		header:      make(http.Header),
	}
}

func (r *Response) Status() int              { return r.status }
func (r *Response) SetStatus(code int)       { r.status = code }
func (r *Response) ContentType() string      { return r.contentType }
func (r *Response) SetContentType(ct string) { r.contentType = ct }

// Header holds extra headers written after the standard ones.
func (r *Response) Header() http.Header { return r.header }

// AddCookie appends a Set-Cookie entry. Nil is ignored.
func (r *Response) AddCookie(c *http.Cookie) {
	if c != nil {
		r.cookies = append(r.cookies, c)
	}
}

// Cookies returns cookies in insertion order.
func (r *Response) Cookies() []*http.Cookie { return r.cookies }

// Writer returns the text body writer.
func (r *Response) Writer() (io.Writer, error) {
	if r.mode == bodyRaw {
		return nil, ErrBodyConflict
	}
	r.mode = bodyText
	return &r.text, nil
}

// WriteString appends to the text body.
func (r *Response) WriteString(s string) error {
	w, err := r.Writer()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

// SetBody sets the raw body, replacing any earlier raw body.
func (r *Response) SetBody(b []byte) error {
	if r.mode == bodyText {
		return ErrBodyConflict
	}
	r.mode = bodyRaw
	r.raw = b
	return nil
}

// Body returns the body bytes regardless of how they were produced.
func (r *Response) Body() []byte {
	if r.mode == bodyRaw {
		return r.raw
	}
	return r.text.Bytes()
}

// Redirect marks the response as a 302 to location.
func (r *Response) Redirect(location string) {
	r.location = location
	r.status = http.StatusFound
}

// Location returns the redirect target, "" if none.
func (r *Response) Location() string { return r.location }
