// Package static provides the default handler that serves files from an
// application's document root.
//
// "/" and directory requests resolve to the first existing welcome file.
// Content types come from the application's mime table. Requests for
// missing files, bare directories, paths escaping the root and anything
// under WEB-INF end in handler.ErrNotFound, which the processor renders as
// a 404 page.
package static
