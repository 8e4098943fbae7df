package fiber

import (
	"sync"
	"sync/atomic"

	"github.com/webriots/fiber/logging"
)

// Loop is a single-goroutine event loop. Fiber bodies, bound callbacks
// and error handlers all run on it, one at a time, in the order their
// tasks were posted. Completion callbacks may fire on any goroutine;
// they only post to the loop.
type Loop struct {
	name    string
	logger  logging.Logger
	metrics Metrics

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}

	stopped chan struct{}
	exit    bool

	gid     atomic.Uint64
	running atomic.Uint64
	live    atomic.Int64

	// loop goroutine only
	fibers map[*Fiber]struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithName sets the loop name used in log lines and metric labels.
func WithName(name string) LoopOption {
	return func(l *Loop) {
		if name != "" {
			l.name = name
		}
	}
}

// WithLogger sets the loop logger. The default discards everything.
func WithLogger(logger logging.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. The default is NilMetrics.
func WithMetrics(m Metrics) LoopOption {
	return func(l *Loop) {
		if m != nil {
			l.metrics = m
		}
	}
}

// NewLoop creates a loop and starts its goroutine. Call Close to stop it.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		name:    "loop",
		logger:  logging.NoOpLogger{},
		metrics: NilMetrics{},
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		fibers:  make(map[*Fiber]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	started := make(chan struct{})
	go l.run(started)
	<-started
	return l
}

var (
	defaultLoop     *Loop
	defaultLoopOnce sync.Once
)

// Default returns the process-wide loop used by the package-level
// functions. It is created on first use and never closed.
func Default() *Loop {
	defaultLoopOnce.Do(func() {
		defaultLoop = NewLoop(WithName("default"))
	})
	return defaultLoop
}

// Name returns the loop name.
func (l *Loop) Name() string { return l.name }

// Fibers returns the number of fibers started and not yet terminated.
func (l *Loop) Fibers() int { return int(l.live.Load()) }

func (l *Loop) run(started chan<- struct{}) {
	defer close(l.stopped)
	l.gid.Store(goroutineID())
	close(started)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, task := range batch {
			task()
		}
		if l.exit {
			return
		}
		if len(batch) == 0 {
			<-l.wake
		}
	}
}

// post queues task for the loop goroutine.
func (l *Loop) post(task func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Debug("task rejected", "loop", l.name, "error", ErrLoopClosed)
		return ErrLoopClosed
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// onLoop reports whether the caller runs on the loop goroutine or on the
// fiber the loop is currently switched into.
func (l *Loop) onLoop() bool {
	id := goroutineID()
	return id == l.gid.Load() || id == l.running.Load()
}

// Close rejects further work, tears down every live fiber and stops the
// loop goroutine once the tasks queued before Close have run. Close
// called from the loop itself does not wait.
func (l *Loop) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.queue = append(l.queue, l.shutdown)
	}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	if !l.onLoop() {
		<-l.stopped
	}
	return nil
}

func (l *Loop) shutdown() {
	for f := range l.fibers {
		f.terminate()
	}
	l.exit = true
	l.logger.Debug("loop stopped", "loop", l.name)
}

func (l *Loop) start(f *Fiber) {
	f.resume, f.cancel = newCoroutine(f.main)
	l.fibers[f] = struct{}{}
	l.metrics.RecordLiveFibers(l.name, int(l.live.Add(1)))
	l.logger.Debug("fiber started", "loop", l.name, "scope", f.scope.id)
	l.step(f)
}

// step switches into f until it parks or returns.
func (l *Loop) step(f *Fiber) {
	f.state.Store(int32(FiberRunnable))
	var alive bool
	fault := hostCall(func() { alive = f.resume() })
	l.running.Store(0)

	if fault != nil {
		f.err = fault
		alive = false
	}
	if alive {
		f.state.Store(int32(FiberSuspended))
		return
	}
	l.finish(f)
}

func (l *Loop) finish(f *Fiber) {
	if f.err != nil {
		f.scope.fail(f.err)
	}
	f.finalize()
}

func (l *Loop) unregister(f *Fiber) {
	if _, ok := l.fibers[f]; !ok {
		return
	}
	delete(l.fibers, f)
	l.metrics.RecordLiveFibers(l.name, int(l.live.Add(-1)))
}

// resolve completes tok and schedules its waiter. Safe from any
// goroutine. It returns ErrDoubleResume when tok was already resumed.
func (l *Loop) resolve(tok *token, v any, err error) error {
	waiter, ok := tok.resume(v, err)
	if !ok {
		return l.doubleResume()
	}
	if waiter == nil {
		return nil
	}
	_ = l.post(func() {
		if waiter.State() == FiberSuspended && waiter.parkedOn(tok) {
			l.step(waiter)
		}
	})
	return nil
}

func (l *Loop) doubleResume() error {
	l.logger.Warn("double resume ignored", "loop", l.name, "error", ErrDoubleResume)
	l.metrics.RecordDoubleResume(l.name)
	return ErrDoubleResume
}

// hostCall runs fn and returns a panic escaping it as an error.
func hostCall(fn func()) (fault error) {
	defer func() {
		if p := recover(); p != nil {
			fault = newPanicError(p)
		}
	}()
	fn()
	return nil
}
