package fiber

import (
	"errors"
	"fmt"
	"unsafe"
)

// coroutine represents a native Go coroutine instance. It's an opaque
// struct used by the runtime functions.
type coroutine struct{}

//go:linkname newcoro runtime.newcoro
func newcoro(func(*coroutine)) *coroutine

//go:linkname coroswitch runtime.coroswitch
func coroswitch(*coroutine)

// newCoroutine creates the logical stack behind a [Fiber].
//
// Parameters:
//   - fn: the body. It receives a 'suspend' function that parks the
//     stack and hands control back to whoever called resume. Once the
//     coroutine has been canceled, suspend panics with an error
//     wrapping ErrTerminated instead of parking.
//
// Returns:
//   - resume: switches into the coroutine and runs it until it
//     suspends or returns. It reports whether the coroutine is still
//     alive. A panic escaping fn is rethrown by resume as a
//     *PanicError.
//   - cancel: unwinds a parked (or never started) coroutine. Deferred
//     calls in fn run; the ErrTerminated panic is absorbed here.
//
// resume and cancel must not be called from the coroutine itself.
func newCoroutine(fn func(suspend func())) (resume func() bool, cancel func()) {
	var (
		c     *coroutine
		done  bool
		perr  error
		fault error
		racer int
	)

	// switchTo hands control to the other side of the coroutine. Every
	// switch is a release followed by an acquire on racer.
	switchTo := func() {
		raceRelease(unsafe.Pointer(&racer))
		coroswitch(c)
		raceAcquire(unsafe.Pointer(&racer))
	}

	c = newcoro(func(*coroutine) {
		raceAcquire(unsafe.Pointer(&racer))
		defer func() {
			if p := recover(); p != nil {
				if err, ok := p.(error); !ok || !errors.Is(err, ErrTerminated) {
					fault = newPanicError(p)
				}
			}
			done = true
			raceRelease(unsafe.Pointer(&racer))
		}()

		suspend := func() {
			if done {
				panic(ErrTerminated)
			}
			if perr != nil {
				panic(perr)
			}
			switchTo()
			if perr != nil {
				panic(perr)
			}
		}

		if perr == nil {
			fn(suspend)
		}
	})

	resume = func() bool {
		if done {
			return false
		}
		switchTo()
		if fault != nil {
			err := fault
			fault = nil
			panic(err)
		}
		return !done
	}

	cancel = func() {
		if done {
			return
		}
		perr = fmt.Errorf("%w", ErrTerminated)
		switchTo()
		if fault != nil {
			err := fault
			fault = nil
			panic(err)
		}
	}

	return
}
