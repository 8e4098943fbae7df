package fiber

import "context"

// Func is a fiber body, and the shape of callbacks bound to a scope.
type Func func(ctx context.Context) error

// Run runs fn in a new fiber on the Default loop. See [Loop.Run].
func Run(ctx context.Context, fn Func, args ...any) (*Scope, error) {
	return Default().Run(ctx, fn, args...)
}

// Run starts fn in a new fiber inside a new [Scope] and returns without
// waiting for it. Errors raised by fn, including panics, never come back
// through Run; they go to the scope's handlers.
//
// args are handlers and resources. The first ErrorHandler (or
// func(error)) is the primary handler and the second one is the
// secondary handler; nil handlers are skipped. Every other argument is
// recorded as a resource of the scope. Handlers not supplied come from
// CurrentConfig.
//
// When the caller already runs inside a fiber, fn is called inline: no
// scope is created, the enclosing scope is returned along with fn's
// error, and args are ignored.
func (l *Loop) Run(ctx context.Context, fn Func, args ...any) (*Scope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if IsManaged(ctx) {
		return ScopeFrom(ctx), fn(ctx)
	}

	onError, onSubError, resources := parseArgs(args)
	cfg := CurrentConfig()
	if onError == nil {
		onError = cfg.OnError
	}
	if onSubError == nil {
		onSubError = cfg.OnSubError
	}

	s := newScope(ctx, l, onError, onSubError, resources)
	f := newFiber(l, s, fn)
	s.fiber = f

	if err := l.post(func() { l.start(f) }); err != nil {
		s.cancel(err)
		return nil, err
	}
	l.metrics.RecordScopeCreated(l.name)
	return s, nil
}

func parseArgs(args []any) (onError, onSubError ErrorHandler, resources []any) {
	handlers := 0
	for _, arg := range args {
		var h ErrorHandler
		switch a := arg.(type) {
		case ErrorHandler:
			h = a
		case func(error):
			h = a
		default:
			resources = append(resources, arg)
			continue
		}
		if h == nil {
			continue
		}
		switch handlers {
		case 0:
			onError = h
		case 1:
			onSubError = h
		}
		handlers++
	}
	return onError, onSubError, resources
}
