package processor

import "errors"

var (
	// ErrBodyTooLarge is reported when Content-Length exceeds the configured limit.
	ErrBodyTooLarge = errors.New("request body too large")
	// ErrNoApplication is reported when routing yields nothing. Hosts always
	// carry a root application, so this indicates a startup defect.
	ErrNoApplication = errors.New("no application resolved")
	// ErrInvalidHeader is reported when a handler sets a header name or value
	// that cannot be framed, such as one containing CR or LF.
	ErrInvalidHeader = errors.New("invalid response header")
)
