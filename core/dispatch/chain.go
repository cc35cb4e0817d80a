package dispatch

import (
	"fmt"
	"runtime/debug"

	"github.com/dmitrymomot/appserver/core/handler"
)

// State is the position of a Chain in its run.
type State int

const (
	Pending State = iota
	RunningInterceptor
	RunningHandler
	Done
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case RunningInterceptor:
		return "running_interceptor"
	case RunningHandler:
		return "running_handler"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Chain runs matched interceptors in order, then the handler. It is used for
// exactly one request and is not safe for concurrent use.
type Chain struct {
	interceptors []handler.Interceptor
	terminal     handler.Handler

	state          State
	index          int
	handlerCalled  bool
	shortCircuited bool
}

// New builds a chain. terminal must not be nil.
func New(interceptors []handler.Interceptor, terminal handler.Handler) *Chain {
	return &Chain{
		interceptors: interceptors,
		terminal:     terminal,
	}
}

// Run executes the chain. Panics in any unit are recovered into *PanicError.
func (c *Chain) Run(req *handler.Request, resp *handler.Response) (err error) {
	if c.state != Pending {
		return ErrChainReused
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		if !c.handlerCalled && err == nil {
			c.shortCircuited = true
		}
		c.state = Done
	}()
	return c.Next(req, resp)
}

// Next advances to the next interceptor or, past the last, the handler.
func (c *Chain) Next(req *handler.Request, resp *handler.Response) error {
	if c.state == Done || c.handlerCalled {
		return ErrChainCompleted
	}
	if c.index < len(c.interceptors) {
		ic := c.interceptors[c.index]
		c.index++
		c.state = RunningInterceptor
		return ic.Intercept(req, resp, c)
	}
	c.state = RunningHandler
	c.handlerCalled = true
	return c.terminal.Serve(req, resp)
}

// State reports the current state.
func (c *Chain) State() State { return c.state }

// Position is the number of interceptors entered so far.
func (c *Chain) Position() int { return c.index }

// ShortCircuited reports whether an interceptor ended the run without
// reaching the handler.
func (c *Chain) ShortCircuited() bool { return c.shortCircuited }

// HandlerCalled reports whether the handler ran.
func (c *Chain) HandlerCalled() bool { return c.handlerCalled }
