package fiber

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FiberState is the lifecycle state of a [Fiber].
type FiberState int32

const (
	// FiberRunnable means the fiber is running or about to run.
	FiberRunnable FiberState = iota
	// FiberSuspended means the fiber is parked in a wait.
	FiberSuspended
	// FiberTerminated means the fiber returned or was torn down.
	FiberTerminated
)

func (s FiberState) String() string {
	switch s {
	case FiberRunnable:
		return "runnable"
	case FiberSuspended:
		return "suspended"
	case FiberTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type fiberKey struct{}

// Fiber is one logical stack started by Run. Its body runs on the stack
// of a runtime coroutine while the owning [Loop] is switched into it.
type Fiber struct {
	loop  *Loop
	scope *Scope
	ctx   context.Context
	fn    Func

	gid   atomic.Uint64
	state atomic.Int32

	resume  func() bool
	cancel  func()
	suspend func()
	err     error

	mu      sync.Mutex
	current *token
	parked  *token
	markers []any

	// loop goroutine only
	finalized bool
}

func newFiber(l *Loop, s *Scope, fn Func) *Fiber {
	f := &Fiber{loop: l, scope: s, fn: fn}
	f.ctx = context.WithValue(s.ctx, fiberKey{}, f)
	return f
}

// Scope returns the scope the fiber belongs to.
func (f *Fiber) Scope() *Scope { return f.scope }

// State returns the fiber's lifecycle state.
func (f *Fiber) State() FiberState { return FiberState(f.state.Load()) }

// Context returns the context the fiber body was started with.
func (f *Fiber) Context() context.Context { return f.ctx }

func (f *Fiber) main(suspend func()) {
	f.suspend = suspend
	id := goroutineID()
	f.gid.Store(id)
	f.loop.running.Store(id)
	f.err = protect(func() error {
		return f.fn(f.ctx)
	})
}

// park hands control back to the loop until a wake task steps the fiber
// again. It panics with ErrTerminated once the fiber is torn down.
func (f *Fiber) park() {
	f.suspend()
	f.loop.running.Store(f.gid.Load())
}

// owns reports whether the calling goroutine is the fiber's own stack.
func (f *Fiber) owns() bool {
	return f.State() != FiberTerminated && f.gid.Load() == goroutineID()
}

// wait parks the fiber until tok is resumed. Markers are released if the
// fiber is torn down while parked.
func (f *Fiber) wait(tok *token, markers []any) (any, error) {
	if !f.owns() {
		return nil, ErrCannotWait
	}

	start := time.Now()
	parked := false
	for tok.arm(f) {
		f.mu.Lock()
		f.parked = tok
		f.markers = markers
		f.mu.Unlock()

		parked = true
		f.park()
	}

	f.mu.Lock()
	f.parked = nil
	f.markers = nil
	f.mu.Unlock()

	if parked {
		f.loop.metrics.RecordWait(f.loop.name, time.Since(start))
	}
	return tok.payload()
}

func (f *Fiber) parkedOn(tok *token) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parked == tok
}

// currentToken returns the token of the fiber's current wait. A missing
// token is created only when create is set, which callers limit to the
// fiber's own stack: a resume arriving from elsewhere after the wait
// returned must not pre-resolve the next one.
func (f *Fiber) currentToken(create bool) *token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil && create {
		f.current = &token{}
	}
	return f.current
}

func (f *Fiber) clearToken(tok *token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == tok {
		f.current = nil
	}
}

func (f *Fiber) releaseMarkers() {
	f.mu.Lock()
	markers := f.markers
	f.markers = nil
	f.mu.Unlock()

	for _, m := range markers {
		switch m := m.(type) {
		case interface{ Stop() bool }:
			m.Stop()
		case interface{ Cancel() }:
			m.Cancel()
		case context.CancelFunc:
			m()
		case func():
			m()
		}
	}
}

// terminate unwinds a parked fiber. Deferred calls in the body run;
// waits attempted from them fail with ErrCannotWait.
func (f *Fiber) terminate() {
	if f.State() == FiberTerminated {
		return
	}
	f.state.Store(int32(FiberTerminated))
	f.releaseMarkers()

	if f.cancel != nil {
		f.loop.running.Store(f.gid.Load())
		if fault := hostCall(f.cancel); fault != nil {
			f.scope.fail(fault)
		}
	}
	f.loop.running.Store(0)
	f.finalize()
}

func (f *Fiber) finalize() {
	if f.finalized {
		return
	}
	f.finalized = true
	f.state.Store(int32(FiberTerminated))
	f.releaseMarkers()
	f.loop.unregister(f)
	f.scope.close()
}

func fiberFrom(ctx context.Context) *Fiber {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(fiberKey{}).(*Fiber)
	return f
}

// Current returns the fiber whose stack is executing the caller, provided
// ctx belongs to that fiber. It returns nil everywhere else, including
// completion callbacks running on other goroutines with the fiber's
// context.
func Current(ctx context.Context) *Fiber {
	f := fiberFrom(ctx)
	if f == nil || !f.owns() {
		return nil
	}
	return f
}

// IsManaged reports whether the caller may wait: it runs on the stack of
// the fiber carried by ctx.
func IsManaged(ctx context.Context) bool {
	return Current(ctx) != nil
}
