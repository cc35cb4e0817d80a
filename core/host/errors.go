package host

import "errors"

var (
	// ErrNoRootApplication is returned when a host finishes deployment without
	// an application at "/".
	ErrNoRootApplication = errors.New("no root application deployed")
	// ErrDefaultHostMissing is returned when the engine's default host is not registered.
	ErrDefaultHostMissing = errors.New("default host not found")
	// ErrUnsafeArchivePath is returned for bundle entries escaping the target directory.
	ErrUnsafeArchivePath = errors.New("archive entry escapes target directory")
	// ErrNotDeployed is returned by Undeploy for an unknown prefix.
	ErrNotDeployed = errors.New("no application at prefix")
	// ErrHostStopped is returned by Deploy once the host has been stopped.
	ErrHostStopped = errors.New("host stopped")
)
