package fiber

import "time"

// ErrorKind classifies what a [Scope] did with an error it received.
type ErrorKind string

const (
	// ErrorPrimary is the first error of a scope, sent to its primary
	// handler.
	ErrorPrimary ErrorKind = "primary"
	// ErrorSubsequent is an error that arrived after the scope exited and
	// was sent to its secondary handler.
	ErrorSubsequent ErrorKind = "subsequent"
	// ErrorDropped is an error that arrived after the scope exited with
	// no secondary handler configured.
	ErrorDropped ErrorKind = "dropped"
	// ErrorHandlerPanic is a panic raised by a handler itself.
	ErrorHandlerPanic ErrorKind = "handler"
)

// Metrics defines the interface for collecting loop and scope metrics.
// Implementations can send metrics to monitoring systems (Prometheus,
// StatsD, etc.).
//
// RecordScopeError and RecordLiveFibers are called from the loop
// goroutine. RecordWait is called from the fiber's own stack, a
// coroutine the loop has switched into, so it is still serialized with
// the loop. RecordScopeCreated is called by Run and RecordDoubleResume by
// whichever goroutine resumed. They should be non-blocking and fast.
type Metrics interface {
	// RecordScopeCreated records a new top-level execution.
	RecordScopeCreated(loop string)

	// RecordScopeError records an error routed through a scope.
	RecordScopeError(loop string, kind ErrorKind)

	// RecordWait records how long a fiber stayed parked in one wait.
	RecordWait(loop string, d time.Duration)

	// RecordDoubleResume records an ignored extra resume.
	RecordDoubleResume(loop string)

	// RecordLiveFibers records the number of fibers that have started
	// and not yet terminated.
	RecordLiveFibers(loop string, n int)
}

// NilMetrics provides a no-op metrics implementation.
// This is the default when no metrics are configured.
type NilMetrics struct{}

// RecordScopeCreated is a no-op.
func (NilMetrics) RecordScopeCreated(string) {}

// RecordScopeError is a no-op.
func (NilMetrics) RecordScopeError(string, ErrorKind) {}

// RecordWait is a no-op.
func (NilMetrics) RecordWait(string, time.Duration) {}

// RecordDoubleResume is a no-op.
func (NilMetrics) RecordDoubleResume(string) {}

// RecordLiveFibers is a no-op.
func (NilMetrics) RecordLiveFibers(string, int) {}
