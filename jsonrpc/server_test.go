package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a method whose invocations are observable.
type counter struct {
	calls atomic.Int64
}

func (c *counter) factory() Factory {
	return Func2(func(_ context.Context, a, b int) (int, error) {
		c.calls.Add(1)
		return a + b, nil
	})
}

func newTestServer(t *testing.T, logs *bytes.Buffer, register func(b *ServerBuilder)) *Server {
	t.Helper()
	var opts []Option
	if logs != nil {
		opts = append(opts, WithLogger(log.New(logs, "", 0)))
	}
	b := NewServerBuilder(opts...)
	register(b)
	srv, err := b.Build()
	require.NoError(t, err)
	return srv
}

func dispatchJSON(t *testing.T, srv *Server, body string) string {
	t.Helper()
	req, err := ParseRequest([]byte(body))
	require.NoError(t, err)
	out, err := json.Marshal(srv.Dispatch(context.Background(), req))
	require.NoError(t, err)
	return string(out)
}

func TestDispatch_Scenarios(t *testing.T) {
	add := &counter{}
	srv := newTestServer(t, nil, func(b *ServerBuilder) {
		b.Register("add", add.factory())
		b.Register("notify_only", Func0(func(context.Context) (bool, error) { return true, nil }))
	})

	t.Run("positional add", func(t *testing.T) {
		got := dispatchJSON(t, srv, `{"jsonrpc":"2.0","id":1,"method":"add","params":[2,3]}`)
		assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":5}`, got)
	})

	t.Run("unknown method", func(t *testing.T) {
		got := dispatchJSON(t, srv, `{"jsonrpc":"2.0","id":"x","method":"sub","params":[1]}`)
		assert.Equal(t, `{"jsonrpc":"2.0","id":"x","error":{"code":-32601,"message":"Method not found"}}`, got)
	})

	t.Run("named params for positional method", func(t *testing.T) {
		got := dispatchJSON(t, srv, `{"jsonrpc":"2.0","id":2,"method":"add","params":{"a":2,"b":3}}`)
		assert.Equal(t, `{"jsonrpc":"2.0","id":2,"error":{"code":-32602,"message":"Invalid params"}}`, got)
	})

	t.Run("null id", func(t *testing.T) {
		got := dispatchJSON(t, srv, `{"jsonrpc":"2.0","id":null,"method":"notify_only"}`)
		assert.Equal(t, `{"jsonrpc":"2.0","id":null,"result":true}`, got)
	})
}

func TestDispatch_HandlerInvocationCount(t *testing.T) {
	adder := &counter{}
	var subCalls atomic.Int64
	srv := newTestServer(t, nil, func(b *ServerBuilder) {
		b.Register("add", adder.factory())
		b.Register("sub", Named(func(_ context.Context, p pair) (int, error) {
			subCalls.Add(1)
			return p.A - p.B, nil
		}))
	})
	ctx := context.Background()

	resp := srv.Dispatch(ctx, NewRequest(NumberID(1), "ADD", json.RawMessage(`[1,2]`)))
	assert.Equal(t, CodeMethodNotFound, resp.Err().Code, "names are case-sensitive")
	assert.Equal(t, NumberID(1), resp.ID())

	for _, params := range []string{`[1]`, `[1,2,3]`, `["a","b"]`, `{"a":1}`, `[null,3]`, `[1,null]`} {
		resp = srv.Dispatch(ctx, NewRequest(StringID(params), "add", json.RawMessage(params)))
		require.True(t, resp.IsError(), params)
		assert.Equal(t, CodeInvalidParams, resp.Err().Code, params)
		assert.Equal(t, StringID(params), resp.ID())
	}
	for _, params := range []string{`{"a":null,"b":3}`, `{"b":3}`} {
		resp = srv.Dispatch(ctx, NewRequest(StringID(params), "sub", json.RawMessage(params)))
		require.True(t, resp.IsError(), params)
		assert.Equal(t, CodeInvalidParams, resp.Err().Code, params)
	}
	assert.EqualValues(t, 0, adder.calls.Load(), "handler must not run on lookup or decode failure")
	assert.EqualValues(t, 0, subCalls.Load(), "handler must not run on null params")

	resp = srv.Dispatch(ctx, NewRequest(NumberID(9), "add", json.RawMessage(`[4,5]`)))
	assert.EqualValues(t, 1, adder.calls.Load())
	var sum int
	require.NoError(t, resp.DecodeResult(&sum))
	assert.Equal(t, 9, sum)
	assert.Equal(t, NumberID(9), resp.ID())
}

func TestDispatch_Idempotent(t *testing.T) {
	srv := newTestServer(t, nil, func(b *ServerBuilder) {
		b.Register("add", (&counter{}).factory())
	})
	req := NewRequest(StringID("same"), "add", json.RawMessage(`[20,22]`))

	first, err := json.Marshal(srv.Dispatch(context.Background(), req))
	require.NoError(t, err)
	second, err := json.Marshal(srv.Dispatch(context.Background(), req))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

type accumulator struct {
	total int
}

func (a *accumulator) Decode(raw json.RawMessage) error {
	var args []int
	if err := json.Unmarshal(raw, &args); err != nil {
		return invalidParams(err)
	}
	for _, n := range args {
		a.total += n
	}
	return nil
}

func (a *accumulator) Invoke(context.Context) (any, error) {
	return a.total, nil
}

func TestDispatch_FreshHandlerPerCall(t *testing.T) {
	srv := newTestServer(t, nil, func(b *ServerBuilder) {
		b.Register("acc", func() Handler { return &accumulator{} })
	})
	for i := 0; i < 3; i++ {
		resp := srv.Dispatch(context.Background(), NewRequest(NumberID(int64(i)), "acc", json.RawMessage(`[5]`)))
		var got int
		require.NoError(t, resp.DecodeResult(&got))
		assert.Equal(t, 5, got, "state must not leak between calls")
	}
}

func TestDispatch_Concurrent(t *testing.T) {
	adder := &counter{}
	var subCalls atomic.Int64
	srv := newTestServer(t, nil, func(b *ServerBuilder) {
		b.Register("add", adder.factory())
		b.Register("sub", Named(func(_ context.Context, p pair) (int, error) {
			subCalls.Add(1)
			return p.A - p.B, nil
		}))
	})

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			params := json.RawMessage(fmt.Sprintf("[%d,%d]", i, i))
			resp := <-srv.Go(context.Background(), NewRequest(NumberID(int64(i)), "add", params))
			var got int
			if assert.NoError(t, resp.DecodeResult(&got)) {
				assert.Equal(t, 2*i, got)
			}
			assert.Equal(t, NumberID(int64(i)), resp.ID())
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, n, adder.calls.Load())
}

func TestGo_ClosesChannel(t *testing.T) {
	srv := newTestServer(t, nil, func(b *ServerBuilder) {})
	ch := srv.Go(context.Background(), NewRequest(NumberID(1), "nope", nil))
	resp, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, CodeMethodNotFound, resp.Err().Code)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestDispatch_Errors(t *testing.T) {
	var logs bytes.Buffer
	srv := newTestServer(t, &logs, func(b *ServerBuilder) {
		b.Register("business", Func0(func(context.Context) (int, error) {
			return 0, NewError(-1000, "insufficient funds").WithData(map[string]int{"balance": 3})
		}))
		b.Register("wrapped", Func0(func(context.Context) (int, error) {
			return 0, fmt.Errorf("charge: %w", NewError(4001, "declined"))
		}))
		b.Register("plain", Func0(func(context.Context) (int, error) {
			return 0, errors.New("database unreachable")
		}))
		b.Register("panics", Func0(func(context.Context) (int, error) {
			panic("something went wrong")
		}))
		b.Register("nil-handler", func() Handler { return nil })
		b.Register("unencodable", Func0(func(context.Context) (any, error) {
			return make(chan int), nil
		}))
		b.Register("decode-fault", func() Handler { return &faultyDecoder{} })
	})

	tests := []struct {
		method  string
		code    int64
		message string
		data    string
		log     string
	}{
		{"business", -1000, "insufficient funds", `{"balance":3}`, ""},
		{"wrapped", 4001, "declined", "", ""},
		{"plain", CodeInternalError, "Internal error", "", "database unreachable"},
		{"panics", CodeInternalError, "Internal error", "", "jsonrpc panic: method \"panics\": something went wrong"},
		{"nil-handler", CodeInternalError, "Internal error", "", "factory returned nil handler"},
		{"unencodable", CodeInternalError, "Internal error", "", "encode result"},
		{"decode-fault", CodeInternalError, "Internal error", "", "decode: broken decoder"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			logs.Reset()
			resp := srv.Dispatch(context.Background(), NewRequest(StringID(tt.method), tt.method, nil))
			require.True(t, resp.IsError())
			assert.Equal(t, StringID(tt.method), resp.ID())
			assert.Equal(t, tt.code, resp.Err().Code)
			assert.Equal(t, tt.message, resp.Err().Message)
			if tt.data != "" {
				assert.JSONEq(t, tt.data, string(resp.Err().Data.(json.RawMessage)))
			} else {
				assert.Nil(t, resp.Err().Data)
			}
			if tt.log != "" {
				assert.Contains(t, logs.String(), tt.log)
			}
			_, err := json.Marshal(resp)
			assert.NoError(t, err)
		})
	}
}

type faultyDecoder struct{}

func (faultyDecoder) Decode(json.RawMessage) error { return errors.New("broken decoder") }

func (faultyDecoder) Invoke(context.Context) (any, error) { return nil, nil }

func TestDispatch_PropagatesContext(t *testing.T) {
	type key struct{}
	srv := newTestServer(t, nil, func(b *ServerBuilder) {
		b.Register("whoami", Func0(func(ctx context.Context) (string, error) {
			v, _ := ctx.Value(key{}).(string)
			return v, nil
		}))
	})
	ctx := context.WithValue(context.Background(), key{}, "alice")
	resp := srv.Dispatch(ctx, NewRequest(NumberID(1), "whoami", nil))
	var got string
	require.NoError(t, resp.DecodeResult(&got))
	assert.Equal(t, "alice", got)
}

func TestDispatch_DebugLogging(t *testing.T) {
	var logs bytes.Buffer
	b := NewServerBuilder(WithLogger(log.New(&logs, "", 0)), WithDebug(true))
	b.Register("add", (&counter{}).factory())
	srv := b.MustBuild()

	srv.Dispatch(context.Background(), NewRequest(NumberID(1), "missing", nil))
	srv.Dispatch(context.Background(), NewRequest(NumberID(1), "add", json.RawMessage(`[1]`)))

	assert.Contains(t, logs.String(), `method not found: "missing"`)
	assert.Contains(t, logs.String(), "invalid number of params")
}

func TestServerBuilder_Errors(t *testing.T) {
	f := (&counter{}).factory()

	_, err := NewServerBuilder().
		Register("add", f).
		Register("add", f).
		Register("", f).
		Register("nil", nil).
		Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateMethod)
	assert.ErrorIs(t, err, ErrEmptyMethodName)
	assert.ErrorIs(t, err, ErrNilFactory)
	assert.Contains(t, err.Error(), `"add"`)

	assert.Panics(t, func() {
		NewServerBuilder().Register("x", f).Register("x", f).MustBuild()
	})
}

func TestServerBuilder_FrozenAfterBuild(t *testing.T) {
	f := (&counter{}).factory()
	b := NewServerBuilder().Register("add", f)
	srv, err := b.Build()
	require.NoError(t, err)

	b.Register("late", f)
	_, err = b.Build()
	assert.ErrorIs(t, err, ErrBuilt)
	assert.False(t, srv.Has("late"))
	assert.Equal(t, []string{"add"}, srv.Methods())
}

func TestServer_Methods(t *testing.T) {
	f := (&counter{}).factory()
	srv := NewServerBuilder().
		Register("zeta", f).
		Register("alpha", f).
		Register("math.add", f).
		MustBuild()
	assert.Equal(t, []string{"alpha", "math.add", "zeta"}, srv.Methods())
	assert.True(t, srv.Has("alpha"))
	assert.False(t, srv.Has("Alpha"))
}

func TestConstructors_PanicOnNil(t *testing.T) {
	assert.Panics(t, func() { Func0[int](nil) })
	assert.Panics(t, func() { Func1[int, int](nil) })
	assert.Panics(t, func() { Func2[int, int, int](nil) })
	assert.Panics(t, func() { Func3[int, int, int, int](nil) })
	assert.Panics(t, func() { Named[pair, int](nil) })
}

func TestConstructors(t *testing.T) {
	srv := NewServerBuilder().
		Register("one", Func1(func(_ context.Context, s string) (string, error) { return s + "!", nil })).
		Register("three", Func3(func(_ context.Context, a int, b string, c bool) (string, error) {
			return fmt.Sprint(a, b, c), nil
		})).
		Register("sum", Positional(func(_ context.Context, xs []int) (int, error) {
			total := 0
			for _, x := range xs {
				total += x
			}
			return total, nil
		})).
		Register("pair", Named(func(_ context.Context, p pair) (int, error) { return p.A * p.B, nil })).
		Register("either", Params(func(_ context.Context, p pair) (int, error) { return p.A - p.B, nil })).
		MustBuild()

	tests := []struct {
		method, params, want string
	}{
		{"one", `["hi"]`, `"hi!"`},
		{"three", `[1,"x",true]`, `"1xtrue"`},
		{"sum", `[1,2,3,4]`, `10`},
		{"sum", `[]`, `0`},
		{"pair", `{"a":3,"b":4}`, `12`},
		{"either", `[5,2]`, `3`},
		{"either", `{"b":2,"a":5}`, `3`},
	}
	for _, tt := range tests {
		t.Run(tt.method+tt.params, func(t *testing.T) {
			resp := srv.Dispatch(context.Background(), NewRequest(NumberID(1), tt.method, json.RawMessage(tt.params)))
			raw, ok := resp.Result()
			require.True(t, ok, "error: %v", resp.Err())
			assert.JSONEq(t, tt.want, string(raw))
		})
	}

	resp := srv.Dispatch(context.Background(), NewRequest(NumberID(1), "pair", json.RawMessage(`[3,4]`)))
	assert.Equal(t, CodeInvalidParams, resp.Err().Code)
}

func TestBinding_String(t *testing.T) {
	assert.Equal(t, "by-position", ByPosition.String())
	assert.Equal(t, "by-name", ByName.String())
	assert.Equal(t, "none", NoParams.String())
	assert.Equal(t, "by-position-or-name", ByEither.String())
}
