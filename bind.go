package fiber

import (
	"context"
	"time"
)

// Bind returns a function that runs fn on the loop of the scope carried
// by ctx. Errors and panics from fn go to that scope, even after its
// fiber has returned. Without a scope in ctx every call starts a fresh
// Run on the Default loop.
func Bind(ctx context.Context, fn Func) func() {
	s := ScopeFrom(ctx)
	if s == nil {
		return func() {
			_, _ = Run(ctx, fn)
		}
	}
	return func() {
		_ = s.loop.post(func() {
			s.runCallback(ctx, fn)
		})
	}
}

// AfterFunc is time.AfterFunc with fn bound to the scope carried by ctx.
func AfterFunc(ctx context.Context, d time.Duration, fn Func) *time.Timer {
	return time.AfterFunc(d, Bind(ctx, fn))
}

// Post queues fn on the loop of the scope carried by ctx.
func Post(ctx context.Context, fn Func) error {
	s := ScopeFrom(ctx)
	if s == nil {
		return ErrInvalidSuspendContext
	}
	return s.loop.post(func() {
		s.runCallback(ctx, fn)
	})
}
