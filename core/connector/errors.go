package connector

import "errors"

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("connector already started")
	// ErrBind wraps listen failures.
	ErrBind = errors.New("connector bind failed")
)
