package fiber

import (
	"context"
	"time"
)

// ResumeFunc completes a pending wait with a value or an error. Only the
// first call has an effect; later calls are reported as ErrDoubleResume
// and ignored. It may be called from any goroutine.
type ResumeFunc func(v any, err error)

// Wait parks the calling fiber until its current wait is resumed through
// Resume or a ResumeFunc from Resumer, and returns the payload. pending
// may carry markers of the outstanding operations (timers, cancel
// functions); the first resume wins, and markers are stopped if the
// fiber is torn down while parked.
//
// Outside a managed fiber Wait returns ErrCannotWait.
func Wait(ctx context.Context, pending ...any) (any, error) {
	f := Current(ctx)
	if f == nil {
		return nil, ErrCannotWait
	}
	tok := f.currentToken(true)
	defer f.clearToken(tok)
	return f.wait(tok, pending)
}

// Resumer returns a ResumeFunc completing the current wait of the fiber
// carried by ctx. Hand it to a callback-style API, then call Wait.
//
// On the fiber's own stack Resumer opens the next wait if none is
// outstanding. Anywhere else it binds to the wait in progress, and fails
// with ErrDoubleResume when there is none: the wait it belonged to has
// already returned.
func Resumer(ctx context.Context) (ResumeFunc, error) {
	f := fiberFrom(ctx)
	if f == nil {
		return nil, ErrInvalidSuspendContext
	}
	tok := f.currentToken(f.owns())
	if tok == nil {
		return nil, f.loop.doubleResume()
	}
	return func(v any, err error) {
		_ = f.loop.resolve(tok, v, err)
	}, nil
}

// Resume completes the current wait of the fiber carried by ctx. It
// returns ErrDoubleResume, and changes nothing, when that wait was
// already resumed.
func Resume(ctx context.Context, v any, err error) error {
	f := fiberFrom(ctx)
	if f == nil {
		return ErrInvalidSuspendContext
	}
	tok := f.currentToken(f.owns())
	if tok == nil {
		return f.loop.doubleResume()
	}
	return f.loop.resolve(tok, v, err)
}

// Pair returns a resolve callback and a wait function linked by a fresh
// token, independent of the fiber's current wait. resolve and wait may
// be called in either order.
func Pair(ctx context.Context) (resolve ResumeFunc, wait func() (any, error), err error) {
	f := fiberFrom(ctx)
	if f == nil {
		return nil, nil, ErrInvalidSuspendContext
	}
	tok := &token{}
	resolve = func(v any, err error) {
		_ = f.loop.resolve(tok, v, err)
	}
	wait = func() (any, error) {
		return f.wait(tok, nil)
	}
	return resolve, wait, nil
}

// Sleep parks the calling fiber for d.
func Sleep(ctx context.Context, d time.Duration) error {
	f := Current(ctx)
	if f == nil {
		return ErrCannotWait
	}
	tok := &token{}
	timer := time.AfterFunc(d, func() {
		_ = f.loop.resolve(tok, nil, nil)
	})
	_, err := f.wait(tok, []any{timer})
	return err
}

// Await calls op with a completion callback and parks the calling fiber
// until the callback fires. op is not called outside a managed fiber.
func Await[T any](ctx context.Context, op func(cb func(T, error))) (T, error) {
	var zero T
	f := Current(ctx)
	if f == nil {
		return zero, ErrCannotWait
	}
	tok := &token{}
	op(func(v T, err error) {
		_ = f.loop.resolve(tok, v, err)
	})
	v, err := f.wait(tok, nil)
	if err != nil {
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}
