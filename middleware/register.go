package middleware

import (
	"errors"

	"github.com/dmitrymomot/appserver/core/scope"
)

// Unit ids under which Register defines the built-in interceptors.
const (
	UnitLogging         = "middleware.logging"
	UnitRequestID       = "middleware.requestid"
	UnitSecurityHeaders = "middleware.security"
	UnitBasicAuth       = "middleware.basicauth"
	UnitTracing         = "middleware.tracing"
)

// Register defines every built-in interceptor in s. Each lookup yields a
// fresh, unconfigured instance.
func Register(s *scope.Scope) error {
	return errors.Join(
		s.Define(UnitLogging, func() (any, error) { return &Logging{}, nil }),
		s.Define(UnitRequestID, func() (any, error) { return &RequestID{}, nil }),
		s.Define(UnitSecurityHeaders, func() (any, error) { return &SecurityHeaders{}, nil }),
		s.Define(UnitBasicAuth, func() (any, error) { return &BasicAuth{}, nil }),
		s.Define(UnitTracing, func() (any, error) { return &Tracing{}, nil }),
	)
}
