package main

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, mutate func(*Config)) (http.Handler, *bytes.Buffer) {
	t.Helper()
	cfg := defaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	var logs bytes.Buffer
	h, err := newHandler(cfg, log.New(&logs, "", 0))
	require.NoError(t, err)
	return h, &logs
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Methods(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "add",
			body: `{"jsonrpc":"2.0","id":1,"method":"add","params":[40,2]}`,
			want: `{"jsonrpc":"2.0","id":1,"result":42}`,
		},
		{
			name: "greet",
			body: `{"jsonrpc":"2.0","id":"g","method":"greet","params":["Ann"]}`,
			want: `{"jsonrpc":"2.0","id":"g","result":"Hello Ann"}`,
		},
		{
			name: "sub",
			body: `{"jsonrpc":"2.0","id":2,"method":"math.sub","params":{"a":5,"b":3}}`,
			want: `{"jsonrpc":"2.0","id":2,"result":2}`,
		},
		{
			name: "divide",
			body: `{"jsonrpc":"2.0","id":3,"method":"math.divide","params":{"n":1,"d":4}}`,
			want: `{"jsonrpc":"2.0","id":3,"result":0.25}`,
		},
		{
			name: "divide by zero",
			body: `{"jsonrpc":"2.0","id":4,"method":"math.divide","params":{"n":1,"d":0}}`,
			want: `{"jsonrpc":"2.0","id":4,"error":{"code":1001,"message":"division by zero","data":{"n":1,"d":0}}}`,
		},
		{
			name: "unknown",
			body: `{"jsonrpc":"2.0","id":5,"method":"math.mul","params":[]}`,
			want: `{"jsonrpc":"2.0","id":5,"error":{"code":-32601,"message":"Method not found"}}`,
		},
		{
			name: "add rejects negatives",
			body: `{"jsonrpc":"2.0","id":6,"method":"add","params":[-1,2]}`,
			want: `{"jsonrpc":"2.0","id":6,"error":{"code":-32602,"message":"Invalid params"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(h, "/api", tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestHandler_Headers(t *testing.T) {
	h, logs := newTestHandler(t, nil)
	rec := post(h, "/api", `{"jsonrpc":"2.0","id":1,"method":"add","params":[1,1]}`)

	id := rec.Header().Get("X-Request-Id")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, logs.String(), "rpc "+id+" POST /api 200 ")
}

func TestHandler_Notifications(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"notify_only"}`

	h, _ := newTestHandler(t, nil)
	rec := post(h, "/api", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}`, rec.Body.String())

	h, logs := newTestHandler(t, func(c *Config) { c.Notifications = true })
	rec = post(h, "/api", body)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, logs.String(), "notify_only called")
}

func TestHandler_BodyLimit(t *testing.T) {
	h, _ := newTestHandler(t, func(c *Config) { c.MaxBody = 16 })
	rec := post(h, "/api", `{"jsonrpc":"2.0","id":1,"method":"add","params":[1,1]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	big := `{"jsonrpc":"2.0","id":1,"method":"greet","params":["` + strings.Repeat("x", 2<<20) + `"]}`
	for _, limit := range []int64{4 << 20, 0} {
		h, _ = newTestHandler(t, func(c *Config) { c.MaxBody = limit })
		rec = post(h, "/api", big)
		require.Equal(t, http.StatusOK, rec.Code, "limit %d", limit)
		assert.Contains(t, rec.Body.String(), `"result":"Hello xxx`)
	}

	h, _ = newTestHandler(t, func(c *Config) { c.MaxBody = 1 << 20 })
	rec = post(h, "/api", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandler_MethodIndex(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := get(h, "/api/methods")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "add\ngreet\nmath.divide\nmath.sub\nnotify_only\n", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "rpcserve/"+Version, rec.Header().Get("Server"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = get(h, "/api/methods?prefix=math.&prefix=add&format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["add","math.divide","math.sub"]`, rec.Body.String())

	rec = get(h, "/api/methods?prefix=nope&format=json")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = get(h, "/api/methods?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(h, "/api/methods/math.sub")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "math.sub\n", rec.Body.String())

	rec = get(h, "/api/methods/math.mul")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(h, "/api/methods", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_Path(t *testing.T) {
	h, _ := newTestHandler(t, func(c *Config) { c.Path = "/rpc" })
	rec := post(h, "/api", `{"jsonrpc":"2.0","id":1,"method":"add","params":[1,1]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(h, "/rpc", `{"jsonrpc":"2.0","id":1,"method":"add","params":[1,1]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/rpc", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewServer_GreetPrefix(t *testing.T) {
	cfg := defaultConfig()
	cfg.GreetPrefix = "Yo "
	srv, err := newServer(cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "greet", "math.divide", "math.sub", "notify_only"}, srv.Methods())

	h, err := newHandler(cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	rec := post(h, "/api", `{"jsonrpc":"2.0","id":1,"method":"greet","params":["Bo"]}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"Yo Bo"}`, rec.Body.String())
}
