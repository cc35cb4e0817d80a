package session

import "errors"

var (
	// ErrTokenGeneration is returned when the random source fails.
	ErrTokenGeneration = errors.New("failed to generate session token")
	// ErrAlreadyStarted is returned by Start on a running store.
	ErrAlreadyStarted = errors.New("session sweep already running")
)
