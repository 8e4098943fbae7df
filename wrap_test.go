package fiber

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runInFiber(t *testing.T, fn Func) {
	t.Helper()
	loop := newTestLoop(t)
	scope, err := loop.Run(context.Background(), fn, func(err error) {
		t.Errorf("unexpected error: %v", err)
	})
	require.NoError(t, err)
	waitDone(t, scope)
}

func TestWrapFamily(t *testing.T) {
	upper := Wrap1(func(s string, cb func(string, error)) {
		go cb(strings.ToUpper(s), nil)
	})
	join := Wrap2(func(a, b string, cb func(string, error)) {
		go cb(a+b, nil)
	})
	sum := Wrap3(func(a, b, c int, cb func(int, error)) {
		time.AfterFunc(time.Millisecond, func() { cb(a+b+c, nil) })
	})
	answer := Wrap(func(cb func(int, error)) { cb(42, nil) })

	runInFiber(t, func(ctx context.Context) error {
		s, err := upper(ctx, "fiber")
		assert.NoError(t, err)
		assert.Equal(t, "FIBER", s)

		s, err = join(ctx, "a", "b")
		assert.NoError(t, err)
		assert.Equal(t, "ab", s)

		n, err := sum(ctx, 1, 2, 3)
		assert.NoError(t, err)
		assert.Equal(t, 6, n)

		n, err = answer(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 42, n)
		return nil
	})
}

func TestWrapReturnsCallbackError(t *testing.T) {
	sentinel := errors.New("nope")
	failing := Wrap1(func(n int, cb func(int, error)) {
		go cb(n, sentinel)
	})

	runInFiber(t, func(ctx context.Context) error {
		n, err := failing(ctx, 5)
		assert.ErrorIs(t, err, sentinel)
		assert.Zero(t, n)
		return nil
	})
}

func TestWrapOutsideFiber(t *testing.T) {
	called := false
	double := Wrap1(func(n int, cb func(int, error)) {
		called = true
		cb(n*2, nil)
	})

	_, err := double(context.Background(), 5)
	assert.ErrorIs(t, err, ErrCannotWait)
	assert.False(t, called)
}

func TestWrapFunc(t *testing.T) {
	read := func(name string, cb func([]byte, error)) {
		go cb([]byte("contents of "+name), nil)
	}
	remove := func(name string, cb func(error)) {
		if name == "missing" {
			cb(errors.New("not found"))
			return
		}
		go cb(nil)
	}

	wrappedRead, err := WrapFunc(read)
	require.NoError(t, err)
	readSync, ok := wrappedRead.(func(context.Context, string) ([]byte, error))
	require.True(t, ok, "unexpected type %T", wrappedRead)

	wrappedRemove, err := WrapFunc(remove)
	require.NoError(t, err)
	removeSync, ok := wrappedRemove.(func(context.Context, string) error)
	require.True(t, ok, "unexpected type %T", wrappedRemove)

	runInFiber(t, func(ctx context.Context) error {
		b, err := readSync(ctx, "a.txt")
		assert.NoError(t, err)
		assert.Equal(t, "contents of a.txt", string(b))

		assert.NoError(t, removeSync(ctx, "a.txt"))
		assert.EqualError(t, removeSync(ctx, "missing"), "not found")
		return nil
	})

	_, err = readSync(context.Background(), "a.txt")
	assert.ErrorIs(t, err, ErrCannotWait)
}

func TestWrapFuncRejects(t *testing.T) {
	for name, fn := range map[string]any{
		"nil":          nil,
		"not a func":   42,
		"no params":    func() {},
		"no callback":  func(int) {},
		"no error":     func(cb func(int)) {},
		"callback out": func(cb func(error) bool) {},
		"variadic":     func(cb ...func(error)) {},
		"error first":  func(cb func(error, int)) {},
		"three args":   func(cb func(int, int, error)) {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := WrapFunc(fn)
			assert.ErrorIs(t, err, ErrNotCallbackStyle)
		})
	}
}

func TestWrapNamespace(t *testing.T) {
	ns := Namespace{
		"double":  fakeAsyncDouble,
		"version": "1.0",
		"plain":   strings.ToUpper,
		"nested": Namespace{
			"double": fakeAsyncDouble,
		},
	}

	shallow := WrapNamespace(ns, false)
	assert.IsType(t, func(context.Context, int) (int, error) { return 0, nil }, shallow["double"])
	assert.Equal(t, "1.0", shallow["version"])
	assert.IsType(t, strings.ToUpper, shallow["plain"])
	nested, ok := shallow["nested"].(Namespace)
	require.True(t, ok)
	assert.IsType(t, fakeAsyncDouble, nested["double"])

	deep := WrapNamespace(ns, true)
	nested, ok = deep["nested"].(Namespace)
	require.True(t, ok)
	double, ok := nested["double"].(func(context.Context, int) (int, error))
	require.True(t, ok)

	runInFiber(t, func(ctx context.Context) error {
		v, err := double(ctx, 5)
		assert.NoError(t, err)
		assert.Equal(t, 10, v)
		return nil
	})

	assert.IsType(t, fakeAsyncDouble, ns["double"], "input namespace must not change")
}
