package page

import "errors"

var (
	// ErrCompile wraps failures reported by a Compiler.
	ErrCompile = errors.New("page compilation failed")
	// ErrNotHandler is returned when a loaded page unit does not implement handler.Handler.
	ErrNotHandler = errors.New("page unit is not a handler")
)
