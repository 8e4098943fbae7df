package fiber

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSuspendContext is returned when a suspend or resume
	// primitive is used with a context that carries no fiber, or from a
	// goroutine that is not the fiber's own stack.
	ErrInvalidSuspendContext = errors.New("fiber: invalid suspend context")

	// ErrCannotWait is returned by Wait, Sleep, Await and every wrapped
	// function when called outside a managed fiber.
	ErrCannotWait = fmt.Errorf("%w: cannot wait outside a managed fiber", ErrInvalidSuspendContext)

	// ErrDoubleResume is reported when a wait is resumed more than once.
	// The extra resume is ignored.
	ErrDoubleResume = errors.New("fiber: wait resumed more than once")

	// ErrTerminated is the panic value used to unwind a fiber torn down
	// by its scope, and the cancellation cause of the scope's context.
	ErrTerminated = errors.New("fiber: fiber terminated")

	// ErrLoopClosed is returned when work is submitted to a closed Loop.
	ErrLoopClosed = errors.New("fiber: loop closed")

	// ErrNotCallbackStyle is returned by WrapFunc for functions whose
	// last parameter is not a completion callback.
	ErrNotCallbackStyle = errors.New("fiber: not a callback-style function")
)
