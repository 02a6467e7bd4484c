package jsonrpc

import (
	"context"
	"encoding/json"
	"reflect"
)

// Handler is one invocation of a method.
//
// The server calls Decode exactly once with the raw params, and Invoke only
// if Decode succeeded. A Decode error that wraps a *Error is sent to the
// client as is; the constructors in this package report binding failures
// as Invalid params. Invoke may return a *Error for business failures; any
// other error is reported as an Internal error.
type Handler interface {
	Decode(params json.RawMessage) error
	Invoke(ctx context.Context) (any, error)
}

// Factory returns a fresh Handler for each call. Handlers are never shared
// between calls; any state shared between calls is whatever the factory
// closes over.
type Factory func() Handler

// Binding selects how params map onto a method's declared parameter type.
type Binding uint8

const (
	// NoParams accepts absent, [] or {} params and never decodes.
	NoParams Binding = iota
	// ByPosition binds an array: struct fields in declaration order, or a
	// whole slice.
	ByPosition
	// ByName decodes an object into the parameter type.
	ByName
	// ByEither binds an array positionally and an object by name.
	ByEither
)

func (b Binding) String() string {
	switch b {
	case NoParams:
		return "none"
	case ByPosition:
		return "by-position"
	case ByName:
		return "by-name"
	case ByEither:
		return "by-position-or-name"
	}
	return "unknown"
}

type funcHandler[P, R any] struct {
	fn     func(context.Context, P) (R, error)
	binder *binder
	params P
}

func (h *funcHandler[P, R]) Decode(raw json.RawMessage) error {
	return h.binder.bind(raw, &h.params)
}

func (h *funcHandler[P, R]) Invoke(ctx context.Context) (any, error) {
	return h.fn(ctx, h.params)
}

func newFactory[P, R any](binding Binding, fn func(context.Context, P) (R, error)) Factory {
	if fn == nil {
		panic("jsonrpc: nil method func")
	}
	b := newBinder(reflect.TypeFor[P](), binding)
	return func() Handler {
		return &funcHandler[P, R]{fn: fn, binder: b}
	}
}

// Positional binds array params to P. P is either a struct, whose exported
// fields take the array elements in declaration order, or a slice or array
// type that receives the whole array. The number of elements must match
// the number of fields.
func Positional[P, R any](fn func(context.Context, P) (R, error)) Factory {
	return newFactory(ByPosition, fn)
}

// Named decodes object params into P. For struct P, exported fields that
// are neither pointers nor tagged omitempty must be present.
func Named[P, R any](fn func(context.Context, P) (R, error)) Factory {
	return newFactory(ByName, fn)
}

// Params binds struct P from either an array (positional) or an object
// (named).
func Params[P, R any](fn func(context.Context, P) (R, error)) Factory {
	return newFactory(ByEither, fn)
}

// Func0 adapts a method without parameters.
func Func0[R any](fn func(context.Context) (R, error)) Factory {
	if fn == nil {
		panic("jsonrpc: nil method func")
	}
	return newFactory(NoParams, func(ctx context.Context, _ struct{}) (R, error) {
		return fn(ctx)
	})
}

type args1[A any] struct{ V0 A }

type args2[A, B any] struct {
	V0 A
	V1 B
}

type args3[A, B, C any] struct {
	V0 A
	V1 B
	V2 C
}

// Func1 adapts a method taking one positional parameter.
func Func1[A, R any](fn func(context.Context, A) (R, error)) Factory {
	if fn == nil {
		panic("jsonrpc: nil method func")
	}
	return Positional(func(ctx context.Context, p args1[A]) (R, error) {
		return fn(ctx, p.V0)
	})
}

// Func2 adapts a method taking two positional parameters.
func Func2[A, B, R any](fn func(context.Context, A, B) (R, error)) Factory {
	if fn == nil {
		panic("jsonrpc: nil method func")
	}
	return Positional(func(ctx context.Context, p args2[A, B]) (R, error) {
		return fn(ctx, p.V0, p.V1)
	})
}

// Func3 adapts a method taking three positional parameters. Use Reflect or
// Positional with a struct for more.
func Func3[A, B, C, R any](fn func(context.Context, A, B, C) (R, error)) Factory {
	if fn == nil {
		panic("jsonrpc: nil method func")
	}
	return Positional(func(ctx context.Context, p args3[A, B, C]) (R, error) {
		return fn(ctx, p.V0, p.V1, p.V2)
	})
}
