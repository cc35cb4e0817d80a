package server

import "errors"

var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrNotRunning           = errors.New("server is not running")
	ErrNoConnectors         = errors.New("no connectors configured")
	ErrInvalidDescriptor    = errors.New("invalid server descriptor")
	ErrStartup              = errors.New("server startup failed")
	ErrShutdown             = errors.New("server shutdown error")
)
