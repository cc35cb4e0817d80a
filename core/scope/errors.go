package scope

import "errors"

var (
	// ErrUnitNotFound is returned when neither the scope chain nor any loader
	// knows the unit id.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrScopeInvalidated is returned by lookups on an invalidated scope.
	ErrScopeInvalidated = errors.New("scope invalidated")
	// ErrDuplicateUnit is returned by Define for an id already defined locally.
	ErrDuplicateUnit = errors.New("unit already defined")
)
