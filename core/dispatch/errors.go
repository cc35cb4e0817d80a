package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrChainReused is returned when Run is called twice.
	ErrChainReused = errors.New("dispatch chain already run")
	// ErrChainCompleted is returned when Next is called after the handler ran.
	ErrChainCompleted = errors.New("dispatch chain already completed")
)

// PanicError wraps a value recovered from a unit.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

// Unwrap exposes a panicked error value to errors.Is/As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// StackTrace returns the stack captured at recovery.
func (e *PanicError) StackTrace() []byte { return e.Stack }
