package fiber

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type scopeState int

const (
	scopeActive scopeState = iota
	scopeExited
)

type scopeKey struct{}

// Scope is the error-isolation boundary of one top-level Run. The first
// error raised by the fiber body, or by any callback bound to the scope,
// goes to the primary handler and tears the fiber down. Later errors go
// to the secondary handler, or are dropped when there is none.
type Scope struct {
	id         uuid.UUID
	loop       *Loop
	fiber      *Fiber
	resources  []any
	onError    ErrorHandler
	onSubError ErrorHandler

	mu    sync.Mutex
	state scopeState
	err   error

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
}

func newScope(ctx context.Context, l *Loop, onError, onSubError ErrorHandler, resources []any) *Scope {
	s := &Scope{
		id:         uuid.New(),
		loop:       l,
		resources:  resources,
		onError:    onError,
		onSubError: onSubError,
		done:       make(chan struct{}),
	}
	ctx, s.cancel = context.WithCancelCause(ctx)
	s.ctx = context.WithValue(ctx, scopeKey{}, s)
	return s
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() uuid.UUID { return s.id }

// Context returns the scope context. It is canceled when the fiber is
// finalized, with cause ErrTerminated if the scope dispatched an error.
func (s *Scope) Context() context.Context { return s.ctx }

// Done is closed once the scope's fiber has returned or been torn down.
func (s *Scope) Done() <-chan struct{} { return s.done }

// Fiber returns the fiber running the scope's body.
func (s *Scope) Fiber() *Fiber { return s.fiber }

// Resources returns the non-handler arguments passed to Run, in order.
func (s *Scope) Resources() []any {
	return append([]any(nil), s.resources...)
}

// Err returns the error dispatched to the primary handler, if any.
func (s *Scope) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Exited reports whether the scope has dispatched its primary error.
func (s *Scope) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == scopeExited
}

// ScopeFrom returns the scope carried by ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// fail routes err. Runs on the loop goroutine.
func (s *Scope) fail(err error) {
	s.mu.Lock()
	if s.state == scopeActive {
		s.state = scopeExited
		s.err = err
		s.mu.Unlock()

		s.loop.metrics.RecordScopeError(s.loop.name, ErrorPrimary)
		s.loop.logger.Debug("scope error", "loop", s.loop.name, "scope", s.id, "error", err)
		s.invoke(s.onError, err)
		if s.fiber != nil {
			s.fiber.terminate()
		}
		return
	}
	s.mu.Unlock()

	if s.onSubError == nil {
		s.loop.metrics.RecordScopeError(s.loop.name, ErrorDropped)
		s.loop.logger.Debug("subsequent error dropped", "loop", s.loop.name, "scope", s.id, "error", err)
		return
	}
	s.loop.metrics.RecordScopeError(s.loop.name, ErrorSubsequent)
	s.invoke(s.onSubError, err)
}

// invoke calls h. A panicking handler goes to Fatal, never back into the
// scope.
func (s *Scope) invoke(h ErrorHandler, err error) {
	if h == nil {
		Fatal(err)
		return
	}
	if fault := hostCall(func() { h(err) }); fault != nil {
		s.loop.metrics.RecordScopeError(s.loop.name, ErrorHandlerPanic)
		Fatal(fault)
	}
}

// runCallback runs a bound callback on the loop goroutine.
func (s *Scope) runCallback(ctx context.Context, fn Func) {
	if err := protect(func() error { return fn(ctx) }); err != nil {
		s.fail(err)
	}
}

func (s *Scope) close() {
	if s.Err() != nil {
		s.cancel(ErrTerminated)
	} else {
		s.cancel(nil)
	}
	close(s.done)
}
