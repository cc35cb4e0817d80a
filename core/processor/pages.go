package processor

import (
	"bytes"
	"errors"
	"html/template"
	"strings"

	"github.com/dmitrymomot/appserver/core/dispatch"
)

// Status pages are parsed once at package initialization.
var (
	notFoundTemplate = template.Must(template.New("404").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>404 Not Found</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 40px; color: #333; }
        h1 { font-size: 24px; border-bottom: 1px solid #ddd; padding-bottom: 8px; }
        code { background: #f4f4f4; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>HTTP Status 404 - Not Found</h1>
    <p>The requested resource <code>{{.Path}}</code> is not available.</p>
    <hr>
    <p>{{.Server}}</p>
</body>
</html>`))

	serverErrorTemplate = template.Must(template.New("500").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>500 Internal Server Error</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 40px; color: #333; }
        h1 { font-size: 24px; border-bottom: 1px solid #ddd; padding-bottom: 8px; }
        pre { background: #f4f4f4; padding: 12px; overflow-x: auto; font-size: 13px; }
    </style>
</head>
<body>
    <h1>HTTP Status 500 - {{.Summary}}</h1>
    <p><b>Error:</b> {{.Message}}</p>
    <pre>{{range .Trace}}{{.}}
{{end}}</pre>
    <hr>
    <p>{{.Server}}</p>
</body>
</html>`))
)

const (
	// summaryLimit is the longest message shown untruncated in the heading.
	summaryLimit = 20
	summaryKeep  = 19
)

func renderNotFound(path, server string) []byte {
	var buf bytes.Buffer
	_ = notFoundTemplate.Execute(&buf, struct{ Path, Server string }{path, server})
	return buf.Bytes()
}

func renderServerError(err error, traceLines int, server string) []byte {
	msg := err.Error()
	var buf bytes.Buffer
	_ = serverErrorTemplate.Execute(&buf, struct {
		Summary string
		Message string
		Trace   []string
		Server  string
	}{
		Summary: summarize(msg),
		Message: msg,
		Trace:   traceOf(err, traceLines),
		Server:  server,
	})
	return buf.Bytes()
}

// summarize shortens messages longer than summaryLimit to summaryKeep
// characters followed by an ellipsis.
func summarize(msg string) string {
	r := []rune(msg)
	if len(r) <= summaryLimit {
		return msg
	}
	return string(r[:summaryKeep]) + "..."
}

// traceOf returns the recovered stack for panics and the wrap chain for
// ordinary errors, capped at limit lines.
func traceOf(err error, limit int) []string {
	var lines []string
	var pe *dispatch.PanicError
	if errors.As(err, &pe) && len(pe.Stack) > 0 {
		for _, l := range strings.Split(strings.TrimSpace(string(pe.Stack)), "\n") {
			lines = append(lines, strings.TrimRight(l, "\r"))
		}
	} else {
		for e := err; e != nil; e = errors.Unwrap(e) {
			lines = append(lines, e.Error())
		}
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}
