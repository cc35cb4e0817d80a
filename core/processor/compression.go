package processor

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/dmitrymomot/appserver/core/descriptor"
)

// Compression is a connector's gzip policy.
type Compression struct {
	Enabled bool
	// MinSize is the smallest body, in bytes, worth compressing.
	MinSize int
	// ExcludedAgents are user agent substrings that never receive gzip.
	ExcludedAgents []string
	// MimeTypes are compressible content types, without parameters.
	MimeTypes []string
}

// CompressionFrom parses a connector descriptor's comma separated lists.
func CompressionFrom(c descriptor.Connector) Compression {
	return Compression{
		Enabled:        c.CompressionEnabled(),
		MinSize:        c.CompressionMinSize,
		ExcludedAgents: splitList(c.NoCompressionUserAgents),
		MimeTypes:      splitList(strings.ToLower(c.CompressibleMimeTypes)),
	}
}

// Applies reports whether a response qualifies: compression enabled, the
// client accepts gzip, the body reaches MinSize, the user agent is not
// excluded and the content type is compressible.
func (c Compression) Applies(acceptEncoding, userAgent, contentType string, bodyLen int) bool {
	if !c.Enabled || bodyLen < c.MinSize || bodyLen == 0 {
		return false
	}
	if !acceptsGzip(acceptEncoding) {
		return false
	}
	for _, ua := range c.ExcludedAgents {
		if ua != "" && strings.Contains(userAgent, ua) {
			return false
		}
	}
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, allowed := range c.MimeTypes {
		if mt == allowed {
			return true
		}
	}
	return false
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		if !strings.EqualFold(strings.TrimSpace(fields[0]), "gzip") {
			continue
		}
		q := 1.0
		for _, f := range fields[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(f), "=")
			if ok && strings.EqualFold(k, "q") {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					q = parsed
				}
			}
		}
		return q > 0
	}
	return false
}

func gzipBytes(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
