// Package fiberhttp runs net/http handlers inside fibers, one scope per
// request.
package fiberhttp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/webriots/fiber"
	"github.com/webriots/fiber/logging"
)

// ErrResponseClosed is returned by writes to a request's ResponseWriter
// after ServeHTTP has returned, which happens when the client goes away
// while the request fiber is still parked.
var ErrResponseClosed = errors.New("fiberhttp: response already closed")

// Options configures Middleware.
type Options struct {
	// Loop runs the request fibers. Defaults to fiber.Default().
	Loop *fiber.Loop
	// OnError receives the first error of a request while its response
	// can still be written. Defaults to a plain 500 response.
	OnError func(err error, w http.ResponseWriter, r *http.Request)
	// OnSubError receives errors raised after the response was produced
	// or after OnError ran. They are always logged.
	OnSubError fiber.ErrorHandler
	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger
}

func (o *Options) withDefaults() {
	if o.Loop == nil {
		o.Loop = fiber.Default()
	}
	if o.OnError == nil {
		o.OnError = internalServerError
	}
	if o.Logger == nil {
		o.Logger = logging.NoOpLogger{}
	}
}

func internalServerError(_ error, w http.ResponseWriter, _ *http.Request) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Middleware returns a middleware that serves each request from a fiber
// with the ResponseWriter and Request attached to its scope as
// resources. Handlers receive a request whose context lets them wait.
// ServeHTTP returns once the fiber finishes or the client goes away; in
// the latter case later writes fail with ErrResponseClosed and errors go
// to the secondary path.
func Middleware(opts Options) func(http.Handler) http.Handler {
	opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fiber.IsManaged(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			rw := &responseGuard{w: w}
			var responded atomic.Bool
			subsequent := func(err error) {
				opts.Logger.Warn("subsequent request error", "method", r.Method, "path", r.URL.Path, "error", err)
				if opts.OnSubError != nil {
					opts.OnSubError(err)
				}
			}
			primary := func(err error) {
				if responded.Swap(true) || rw.isClosed() {
					subsequent(err)
					return
				}
				opts.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
				opts.OnError(err, rw, r)
			}

			scope, err := opts.Loop.Run(r.Context(), func(ctx context.Context) error {
				next.ServeHTTP(rw, r.WithContext(ctx))
				responded.Store(true)
				return nil
			}, rw, r, fiber.ErrorHandler(primary), fiber.ErrorHandler(subsequent))
			if err != nil {
				primary(err)
				return
			}

			select {
			case <-scope.Done():
			case <-r.Context().Done():
				rw.close()
				opts.Logger.Debug("client gone before response", "method", r.Method, "path", r.URL.Path, "error", context.Cause(r.Context()))
			}
		})
	}
}

// responseGuard forwards to the server's ResponseWriter until ServeHTTP
// returns.
type responseGuard struct {
	w http.ResponseWriter

	mu     sync.Mutex
	closed bool
	header http.Header
}

func (g *responseGuard) Header() http.Header {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		if g.header == nil {
			g.header = make(http.Header)
		}
		return g.header
	}
	return g.w.Header()
}

func (g *responseGuard) Write(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, ErrResponseClosed
	}
	return g.w.Write(p)
}

func (g *responseGuard) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.w.WriteHeader(code)
	}
}

func (g *responseGuard) Flush() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if f, ok := g.w.(http.Flusher); ok && !g.closed {
		f.Flush()
	}
}

func (g *responseGuard) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

func (g *responseGuard) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
