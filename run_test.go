package fiber

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWrappedCallbackReturnsResult(t *testing.T) {
	loop := newTestLoop(t)
	results := make(chan int, 1)

	double := Wrap1(fakeAsyncDouble)
	scope, err := loop.Run(context.Background(), func(ctx context.Context) error {
		v, err := double(ctx, 5)
		if err != nil {
			return err
		}
		results <- v
		return nil
	}, func(err error) { t.Errorf("unexpected error: %v", err) })
	require.NoError(t, err)

	assert.Equal(t, 10, recv(t, results))
	waitDone(t, scope)
	assert.NoError(t, scope.Err())
	assert.Equal(t, FiberTerminated, scope.Fiber().State())
}

func TestRunReturnsBeforeBodyCompletes(t *testing.T) {
	loop := newTestLoop(t)
	release := make(chan struct{})
	var resume ResumeFunc

	scope, err := loop.Run(context.Background(), func(ctx context.Context) error {
		var err error
		resume, err = Resumer(ctx)
		if err != nil {
			return err
		}
		close(release)
		_, err = Wait(ctx)
		return err
	}, func(err error) { t.Errorf("unexpected error: %v", err) })
	require.NoError(t, err)

	recv(t, release)
	select {
	case <-scope.Done():
		t.Fatal("scope finished while its fiber was parked")
	case <-time.After(20 * time.Millisecond):
	}

	resume(nil, nil)
	waitDone(t, scope)
}

func TestRunSynchronousErrorDeliveredOnce(t *testing.T) {
	loop := newTestLoop(t)
	primary := make(chan error, 4)
	secondary := make(chan error, 4)

	scope, err := loop.Run(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	},
		func(err error) { primary <- err },
		func(err error) { secondary <- err },
	)
	require.NoError(t, err)
	waitDone(t, scope)

	captured := recv(t, primary)
	assert.EqualError(t, captured, "boom")
	assert.Len(t, primary, 0)
	assert.Len(t, secondary, 0)
	assert.EqualError(t, scope.Err(), "boom")
	assert.True(t, scope.Exited())
	assert.ErrorIs(t, context.Cause(scope.Context()), ErrTerminated)
}

func TestRunPanicBecomesPanicError(t *testing.T) {
	loop := newTestLoop(t)
	primary := make(chan error, 1)

	scope, err := loop.Run(context.Background(), func(ctx context.Context) error {
		panic("kaboom")
	}, func(err error) { primary <- err })
	require.NoError(t, err)
	waitDone(t, scope)

	var pErr *PanicError
	require.ErrorAs(t, recv(t, primary), &pErr)
	assert.Equal(t, "kaboom", pErr.Value)
	assert.NotEmpty(t, pErr.Stack)
}

func TestRunCapturesStragglerError(t *testing.T) {
	loop := newTestLoop(t)
	primary := make(chan error, 1)

	scope, err := loop.Run(context.Background(), func(ctx context.Context) error {
		AfterFunc(ctx, 10*time.Millisecond, func(ctx context.Context) error {
			return errors.New("late")
		})
		return nil
	}, func(err error) { primary <- err })
	require.NoError(t, err)

	waitDone(t, scope)
	assert.NoError(t, scope.Err())

	assert.EqualError(t, recv(t, primary), "late")
	assert.True(t, scope.Exited())
}

func TestRunSubsequentErrorRouting(t *testing.T) {
	t.Run("secondary handler", func(t *testing.T) {
		loop := newTestLoop(t)
		primary := make(chan error, 4)
		secondary := make(chan error, 4)

		_, err := loop.Run(context.Background(), func(ctx context.Context) error {
			AfterFunc(ctx, 10*time.Millisecond, func(ctx context.Context) error {
				return errors.New("second")
			})
			return errors.New("first")
		},
			func(err error) { primary <- err },
			func(err error) { secondary <- err },
		)
		require.NoError(t, err)

		assert.EqualError(t, recv(t, primary), "first")
		assert.EqualError(t, recv(t, secondary), "second")
		assert.Len(t, primary, 0)
	})

	t.Run("dropped without secondary handler", func(t *testing.T) {
		metrics := newCountingMetrics()
		loop := newTestLoop(t, WithMetrics(metrics))
		primary := make(chan error, 4)
		handled := make(chan struct{})

		_, err := loop.Run(context.Background(), func(ctx context.Context) error {
			AfterFunc(ctx, 10*time.Millisecond, func(ctx context.Context) error {
				defer close(handled)
				return errors.New("second")
			})
			return errors.New("first")
		}, func(err error) { primary <- err })
		require.NoError(t, err)

		assert.EqualError(t, recv(t, primary), "first")
		recv(t, handled)
		assert.Eventually(t, func() bool {
			return metrics.errorCount(ErrorDropped) == 1
		}, testTimeout, time.Millisecond)
		assert.Len(t, primary, 0)
		assert.Equal(t, 1, metrics.errorCount(ErrorPrimary))
	})
}

func TestRunErrorUnwindsParkedFiber(t *testing.T) {
	loop := newTestLoop(t)
	primary := make(chan error, 1)
	unwound := make(chan error, 1)
	released := make(chan struct{})

	scope, err := loop.Run(context.Background(), func(ctx context.Context) error {
		defer func() {
			_, err := Wait(ctx)
			unwound <- err
		}()
		AfterFunc(ctx, 5*time.Millisecond, func(ctx context.Context) error {
			return errors.New("callback failed")
		})
		_, err := Wait(ctx, func() { close(released) })
		t.Errorf("wait returned after teardown: %v", err)
		return nil
	}, func(err error) { primary <- err })
	require.NoError(t, err)

	assert.EqualError(t, recv(t, primary), "callback failed")
	waitDone(t, scope)
	assert.ErrorIs(t, recv(t, unwound), ErrCannotWait)
	recv(t, released)
	assert.Equal(t, 0, loop.Fibers())
}

func TestRunInsideFiberRunsInline(t *testing.T) {
	metrics := newCountingMetrics()
	loop := newTestLoop(t, WithMetrics(metrics))
	inner := make(chan *Scope, 1)

	outer, err := loop.Run(context.Background(), func(ctx context.Context) error {
		ran := false
		s, err := loop.Run(ctx, func(ctx context.Context) error {
			ran = true
			return nil
		}, func(error) { t.Error("inline run must not install handlers") })
		if !ran {
			t.Error("nested run did not execute inline")
		}
		inner <- s
		return err
	}, func(err error) { t.Errorf("unexpected error: %v", err) })
	require.NoError(t, err)
	waitDone(t, outer)

	assert.Same(t, outer, recv(t, inner))
	assert.Equal(t, 1, metrics.scopes())
}

func TestRunInlineErrorReturnedToCaller(t *testing.T) {
	loop := newTestLoop(t)
	primary := make(chan error, 1)
	nested := make(chan error, 1)

	scope, err := loop.Run(context.Background(), func(ctx context.Context) error {
		_, err := loop.Run(ctx, func(ctx context.Context) error {
			return errors.New("inner")
		})
		nested <- err
		return err
	}, func(err error) { primary <- err })
	require.NoError(t, err)
	waitDone(t, scope)

	assert.EqualError(t, recv(t, nested), "inner")
	assert.EqualError(t, recv(t, primary), "inner")
}

func TestRunResources(t *testing.T) {
	loop := newTestLoop(t)
	seen := make(chan []any, 1)

	scope, err := loop.Run(context.Background(), func(ctx context.Context) error {
		seen <- ScopeFrom(ctx).Resources()
		return nil
	}, "request", 42, func(error) {})
	require.NoError(t, err)
	waitDone(t, scope)

	assert.Equal(t, []any{"request", 42}, recv(t, seen))
	assert.Equal(t, []any{"request", 42}, scope.Resources())
}

func TestParseArgs(t *testing.T) {
	first := func(error) {}
	second := ErrorHandler(func(error) {})
	third := func(error) {}

	onError, onSubError, resources := parseArgs([]any{"a", ErrorHandler(nil), first, 1, second, third})
	require.NotNil(t, onError)
	require.NotNil(t, onSubError)
	assert.Equal(t, []any{"a", 1}, resources)

	onError, onSubError, resources = parseArgs(nil)
	assert.Nil(t, onError)
	assert.Nil(t, onSubError)
	assert.Empty(t, resources)
}

func TestRunFallsBackToConfig(t *testing.T) {
	t.Cleanup(func() { ResetConfig() })
	loop := newTestLoop(t)
	primary := make(chan error, 1)
	secondary := make(chan error, 1)

	Configure(
		WithOnError(func(err error) { primary <- err }),
		WithOnSubError(func(err error) { secondary <- err }),
	)

	_, err := loop.Run(context.Background(), func(ctx context.Context) error {
		AfterFunc(ctx, 5*time.Millisecond, func(ctx context.Context) error {
			return errors.New("late")
		})
		return errors.New("configured")
	})
	require.NoError(t, err)

	assert.EqualError(t, recv(t, primary), "configured")
	assert.EqualError(t, recv(t, secondary), "late")
}

func TestHandlerPanicGoesToFatal(t *testing.T) {
	loop := newTestLoop(t)
	uncaught := make(chan error, 2)
	remove := HandleUncaught(func(err error) { uncaught <- err })
	t.Cleanup(remove)

	scope, err := loop.Run(context.Background(), func(ctx context.Context) error {
		return errors.New("first failure")
	}, func(err error) { panic("handler exploded") })
	require.NoError(t, err)
	waitDone(t, scope)

	var pErr *PanicError
	require.ErrorAs(t, recv(t, uncaught), &pErr)
	assert.Equal(t, "handler exploded", pErr.Value)
	assert.EqualError(t, scope.Err(), "first failure")
}

func TestRunOnClosedLoop(t *testing.T) {
	loop := NewLoop()
	require.NoError(t, loop.Close())

	scope, err := loop.Run(context.Background(), func(ctx context.Context) error { return nil })
	assert.Nil(t, scope)
	assert.ErrorIs(t, err, ErrLoopClosed)
}
