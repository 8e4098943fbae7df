package fiber

import (
	"sync"
	"sync/atomic"

	"github.com/webriots/fiber/logging"
)

// ErrorHandler receives an error routed through a [Scope].
type ErrorHandler func(err error)

// Config holds the process-wide default handlers used by Run when the
// caller supplies none.
type Config struct {
	// OnError receives the first error of a scope. Never nil.
	OnError ErrorHandler
	// OnSubError receives errors arriving after a scope has exited. Nil
	// means such errors are dropped.
	OnSubError ErrorHandler
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithOnError sets the default primary handler. A nil handler is ignored.
func WithOnError(h ErrorHandler) ConfigOption {
	return func(c *Config) {
		if h != nil {
			c.OnError = h
		}
	}
}

// WithOnSubError sets the default secondary handler. Passing nil clears
// it.
func WithOnSubError(h ErrorHandler) ConfigOption {
	return func(c *Config) {
		c.OnSubError = h
	}
}

var config atomic.Pointer[Config]

func defaultConfig() Config {
	return Config{OnError: Fatal}
}

// CurrentConfig returns a copy of the process-wide configuration.
func CurrentConfig() Config {
	if c := config.Load(); c != nil {
		return *c
	}
	return defaultConfig()
}

// Configure applies opts to the process-wide configuration and returns
// the result. Called without options it only reports the current value.
func Configure(opts ...ConfigOption) Config {
	for {
		old := config.Load()
		next := defaultConfig()
		if old != nil {
			next = *old
		}
		for _, opt := range opts {
			opt(&next)
		}
		if config.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// ResetConfig restores the built-in defaults: OnError is Fatal and
// OnSubError is unset.
func ResetConfig() Config {
	c := defaultConfig()
	config.Store(&c)
	return c
}

var uncaught struct {
	sync.Mutex
	next  uint64
	hooks map[uint64]ErrorHandler
}

// HandleUncaught registers h to observe errors passed to Fatal. While at
// least one hook is registered Fatal does not crash the process. The
// returned function removes the hook.
func HandleUncaught(h ErrorHandler) (remove func()) {
	uncaught.Lock()
	defer uncaught.Unlock()
	if uncaught.hooks == nil {
		uncaught.hooks = make(map[uint64]ErrorHandler)
	}
	id := uncaught.next
	uncaught.next++
	uncaught.hooks[id] = h
	return func() {
		uncaught.Lock()
		defer uncaught.Unlock()
		delete(uncaught.hooks, id)
	}
}

// Fatal is the default primary handler and the destination of errors
// raised by handlers themselves. Registered uncaught hooks receive err;
// without any, err is logged with its stack and Fatal panics, which
// crashes the process when called on a loop goroutine.
func Fatal(err error) {
	uncaught.Lock()
	hooks := make([]ErrorHandler, 0, len(uncaught.hooks))
	for _, h := range uncaught.hooks {
		hooks = append(hooks, h)
	}
	uncaught.Unlock()

	if len(hooks) > 0 {
		for _, h := range hooks {
			h(err)
		}
		return
	}

	logging.NewDefaultSlogLogger().Error("fiber: uncaught error",
		"error", err,
		"detail", debugString(err),
	)
	panic(err)
}
