package workerpool

import "errors"

var (
	// ErrPoolSaturated is returned by Submit under PolicyReject when every
	// worker is busy and the queue is full.
	ErrPoolSaturated = errors.New("worker pool saturated")
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("worker pool closed")
)
