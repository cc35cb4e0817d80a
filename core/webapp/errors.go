package webapp

import "errors"

var (
	// ErrNotRunning is returned when a stopped application is asked to serve.
	ErrNotRunning = errors.New("application is not running")
	// ErrUnitType is returned when a unit does not implement the role it is mapped to.
	ErrUnitType = errors.New("unit has wrong type")
	// ErrUnknownUnit is returned by Handler for unit ids absent from the descriptor.
	ErrUnknownUnit = errors.New("unit not mapped")
)
