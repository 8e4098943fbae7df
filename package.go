// Package fiber lets code built on callback-style asynchronous
// operations be written as straight-line code, while each top-level
// execution gets an error-isolation boundary.
//
// Run starts a function on a fiber: a logical stack backed by a runtime
// coroutine and driven by a single-goroutine [Loop]. Inside the fiber,
// Wait, Sleep, Await and the Wrap family park the stack until a
// completion callback fires, from any goroutine, and then continue
// where they left off. Only one fiber of a loop runs at a time, so
// fiber bodies interleave only at those suspension points.
//
// Every Run that is not already inside a fiber creates a [Scope]. The
// first error from the body, a panic in it, or an error from a callback
// bound with Bind or AfterFunc is sent once to the scope's primary
// handler, after which the fiber is unwound. Errors arriving later go
// to the secondary handler, or are dropped. A handler that panics
// reaches Fatal, which crashes the process unless HandleUncaught hooks
// are registered.
//
// A fiber parked on a wait that is never resumed never completes. Its
// coroutine stays alive until the loop is closed.
package fiber
