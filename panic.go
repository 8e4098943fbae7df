package fiber

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// PanicError is the error a [Scope] receives when a fiber body, a bound
// callback, or an error handler panics. It keeps the recovered value and
// the stack of the panicking goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("%v", p.Value)
}

// ErrorWithStack returns the panic value followed by the captured stack.
func (p *PanicError) ErrorWithStack() string {
	return fmt.Sprintf("%v\n\n%s", p.Value, p.Stack)
}

// Unwrap returns the panic value if it is an error.
func (p *PanicError) Unwrap() error {
	err, ok := p.Value.(error)
	if !ok {
		return nil
	}
	return err
}

// DebugString renders the whole error chain, expanding the stack of
// every *PanicError found along the way.
func (p *PanicError) DebugString() string {
	return debugString(p)
}

func debugString(err error) string {
	var sb strings.Builder
	seen := make(map[error]bool)

	var unwrap func(error)
	unwrap = func(e error) {
		if e == nil || seen[e] {
			return
		}
		seen[e] = true

		if p, ok := e.(*PanicError); ok {
			sb.WriteString(p.ErrorWithStack())
		} else {
			sb.WriteString(e.Error())
		}

		if unwrapper, ok := e.(interface{ Unwrap() []error }); ok {
			for _, ue := range unwrapper.Unwrap() {
				sb.WriteString("\n")
				unwrap(ue)
			}
		} else if ue := errors.Unwrap(e); ue != nil {
			sb.WriteString("\n")
			unwrap(ue)
		}
	}

	unwrap(err)
	return sb.String()
}

func newPanicError(v any) error {
	if p, ok := v.(*PanicError); ok {
		return p
	}
	return &PanicError{
		Value: v,
		Stack: debug.Stack(),
	}
}

// protect calls f and converts a panic into a *PanicError. Panics
// carrying ErrTerminated are let through so a fiber being torn down
// keeps unwinding.
func protect(f func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok && errors.Is(e, ErrTerminated) {
				panic(p)
			}
			err = newPanicError(p)
		}
	}()
	return f()
}
