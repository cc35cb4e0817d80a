package processor

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"golang.org/x/net/http/httpguts"
)

// frame is a response ready to be written to the wire.
type frame struct {
	status      int
	contentType string
	location    string
	body        []byte
	gzipped     bool
	headOnly    bool
	cookies     []*http.Cookie
	extra       http.Header
}

// managedHeaders are written by writeFrame and ignored in frame.extra.
var managedHeaders = map[string]struct{}{
	"Content-Type":     {},
	"Content-Length":   {},
	"Content-Encoding": {},
	"Connection":       {},
	"Location":         {},
	"Set-Cookie":       {},
	"Date":             {},
	"Server":           {},
	"Vary":             {},
}

func (p *Processor) writeFrame(w io.Writer, f frame) (int, error) {
	bw := bufio.NewWriter(w)

	text := http.StatusText(f.status)
	if text == "" {
		text = "Status " + strconv.Itoa(f.status)
	}
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", f.status, text)
	fmt.Fprintf(bw, "Date: %s\r\n", time.Now().UTC().Format(http.TimeFormat))
	fmt.Fprintf(bw, "Server: %s\r\n", p.serverName)

	if f.status == http.StatusFound {
		fmt.Fprintf(bw, "Location: %s\r\n", f.location)
	}
	if f.contentType != "" {
		fmt.Fprintf(bw, "Content-Type: %s\r\n", f.contentType)
	}
	fmt.Fprintf(bw, "Content-Length: %d\r\n", len(f.body))
	if f.gzipped {
		bw.WriteString("Content-Encoding: gzip\r\n")
		bw.WriteString("Vary: Accept-Encoding\r\n")
	}
	for _, c := range f.cookies {
		if v := c.String(); v != "" {
			fmt.Fprintf(bw, "Set-Cookie: %s\r\n", v)
		}
	}

	keys := make([]string, 0, len(f.extra))
	for k := range f.extra {
		if _, managed := managedHeaders[http.CanonicalHeaderKey(k)]; !managed {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range f.extra[k] {
			fmt.Fprintf(bw, "%s: %s\r\n", k, v)
		}
	}
	bw.WriteString("Connection: close\r\n\r\n")

	n := 0
	if !f.headOnly {
		n, _ = bw.Write(f.body)
	}
	return n, bw.Flush()
}

// validHeaders rejects handler-supplied header names and values that would
// split the response.
func validHeaders(f frame) error {
	if !httpguts.ValidHeaderFieldValue(f.location) {
		return fmt.Errorf("%w: Location %q", ErrInvalidHeader, f.location)
	}
	if !httpguts.ValidHeaderFieldValue(f.contentType) {
		return fmt.Errorf("%w: Content-Type %q", ErrInvalidHeader, f.contentType)
	}
	for name, values := range f.extra {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("%w: name %q", ErrInvalidHeader, name)
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return fmt.Errorf("%w: %s %q", ErrInvalidHeader, name, v)
			}
		}
	}
	return nil
}
