package middleware

import "errors"

var (
	ErrInvalidParam   = errors.New("invalid interceptor parameter")
	ErrUnknownPreset  = errors.New("unknown security headers preset")
	ErrNoCredentials  = errors.New("basic auth requires at least one user")
	ErrMalformedUsers = errors.New("basic auth users must be user:password pairs")
)
