package descriptor

import "errors"

var (
	// ErrDuplicateMapping is returned when an application descriptor maps the same
	// pattern, handler name or handler unit more than once.
	ErrDuplicateMapping = errors.New("descriptor: duplicate mapping")

	// ErrInvalidDescriptor is returned for structurally invalid descriptors.
	ErrInvalidDescriptor = errors.New("descriptor: invalid")

	// ErrDefaultHostMissing is returned when engine.default_host names no declared host.
	ErrDefaultHostMissing = errors.New("descriptor: default host not declared")
)
