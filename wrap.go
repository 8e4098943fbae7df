package fiber

import (
	"context"
	"fmt"
	"reflect"
)

// Wrap turns a callback-style operation into a call that parks the
// calling fiber until the callback fires.
func Wrap[T any](fn func(cb func(T, error))) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Await(ctx, fn)
	}
}

// Wrap1 is Wrap for operations taking one argument before the callback.
func Wrap1[A, T any](fn func(a A, cb func(T, error))) func(ctx context.Context, a A) (T, error) {
	return func(ctx context.Context, a A) (T, error) {
		return Await(ctx, func(cb func(T, error)) { fn(a, cb) })
	}
}

// Wrap2 is Wrap for operations taking two arguments before the callback.
func Wrap2[A, B, T any](fn func(a A, b B, cb func(T, error))) func(ctx context.Context, a A, b B) (T, error) {
	return func(ctx context.Context, a A, b B) (T, error) {
		return Await(ctx, func(cb func(T, error)) { fn(a, b, cb) })
	}
}

// Wrap3 is Wrap for operations taking three arguments before the
// callback.
func Wrap3[A, B, C, T any](fn func(a A, b B, c C, cb func(T, error))) func(ctx context.Context, a A, b B, c C) (T, error) {
	return func(ctx context.Context, a A, b B, c C) (T, error) {
		return Await(ctx, func(cb func(T, error)) { fn(a, b, c, cb) })
	}
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// WrapFunc wraps any callback-style function: its last parameter is a
// callback of type func(T, error) or func(error), and it is not
// variadic. The result has the same leading parameters preceded by a
// context.Context, and returns (T, error) or error. Results of fn itself
// are discarded.
//
// For example func(string, func([]byte, error)) becomes
// func(context.Context, string) ([]byte, error).
func WrapFunc(fn any) (any, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: %T", ErrNotCallbackStyle, fn)
	}
	t := v.Type()
	cbType, ok := callbackType(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCallbackStyle, t)
	}
	hasResult := cbType.NumIn() == 2

	in := []reflect.Type{contextType}
	for i := 0; i < t.NumIn()-1; i++ {
		in = append(in, t.In(i))
	}
	var out []reflect.Type
	if hasResult {
		out = append(out, cbType.In(0))
	}
	out = append(out, errorType)

	wrapped := reflect.MakeFunc(reflect.FuncOf(in, out, false), func(args []reflect.Value) []reflect.Value {
		ctx, _ := args[0].Interface().(context.Context)
		result, err := Await(ctx, func(cb func(reflect.Value, error)) {
			callback := reflect.MakeFunc(cbType, func(cargs []reflect.Value) []reflect.Value {
				errv := cargs[len(cargs)-1]
				var cerr error
				if !errv.IsNil() {
					cerr = errv.Interface().(error)
				}
				var rv reflect.Value
				if hasResult {
					rv = cargs[0]
				}
				cb(rv, cerr)
				return nil
			})
			call := make([]reflect.Value, 0, len(args))
			call = append(call, args[1:]...)
			call = append(call, callback)
			v.Call(call)
		})

		errOut := reflect.Zero(errorType)
		if err != nil {
			errOut = reflect.ValueOf(&err).Elem()
		}
		if !hasResult {
			return []reflect.Value{errOut}
		}
		if err != nil || !result.IsValid() {
			result = reflect.Zero(cbType.In(0))
		}
		return []reflect.Value{result, errOut}
	})
	return wrapped.Interface(), nil
}

func callbackType(t reflect.Type) (reflect.Type, bool) {
	if t.IsVariadic() || t.NumIn() == 0 {
		return nil, false
	}
	cb := t.In(t.NumIn() - 1)
	if cb.Kind() != reflect.Func || cb.IsVariadic() || cb.NumOut() != 0 {
		return nil, false
	}
	switch cb.NumIn() {
	case 1, 2:
		return cb, cb.In(cb.NumIn()-1) == errorType
	default:
		return nil, false
	}
}

// Namespace is a named collection of functions, possibly nested.
type Namespace map[string]any

// WrapNamespace returns a namespace parallel to ns in which every
// callback-style function is replaced by its WrapFunc form. Other
// members are kept as they are. Nested namespaces are wrapped
// recursively when deep is set.
func WrapNamespace(ns Namespace, deep bool) Namespace {
	out := make(Namespace, len(ns))
	for name, member := range ns {
		switch m := member.(type) {
		case Namespace:
			if deep {
				out[name] = WrapNamespace(m, deep)
			} else {
				out[name] = m
			}
		case map[string]any:
			if deep {
				out[name] = WrapNamespace(m, deep)
			} else {
				out[name] = m
			}
		default:
			if w, err := WrapFunc(member); err == nil {
				out[name] = w
			} else {
				out[name] = member
			}
		}
	}
	return out
}
