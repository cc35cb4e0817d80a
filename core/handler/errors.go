package handler

import "errors"

var (
	// ErrBodyConflict is returned when a response body is set through both the
	// text writer and the raw byte setter.
	ErrBodyConflict = errors.New("response body already written in another mode")

	// ErrNotFound makes the processor answer 404 with the not-found page.
	ErrNotFound = errors.New("resource not found")

	// ErrForwardUnavailable is returned by Request.Forward outside a dispatch.
	ErrForwardUnavailable = errors.New("request forwarding is not available")

	// ErrForwardLoop is returned when forwards nest deeper than MaxForwardDepth.
	ErrForwardLoop = errors.New("request forwarded too many times")
)
