// Package jsonrpc implements the dispatch core of a JSON-RPC 2.0 server and
// binds it to HTTP through the endpoint package.
//
// See https://www.jsonrpc.org/specification.
//
// # Envelopes
//
// ParseRequest turns bytes into a Request, answering malformed input with a
// *Error (Parse error or Invalid Request) and the id to reply with. A
// Response always holds exactly one of a result or an error and is produced
// by a ResponseBuilder, which guarantees it encodes.
//
// # Methods
//
// A method is a Factory: a function returning a fresh Handler per call. The
// generic constructors cover the usual shapes:
//
//	jsonrpc.Func2(func(ctx context.Context, a, b int) (int, error) { ... })
//	jsonrpc.Named(func(ctx context.Context, p GreetParams) (string, error) { ... })
//	jsonrpc.Func0(func(ctx context.Context) (string, error) { ... })
//
// Reflect adapts an arbitrary func(ctx, args...) (R, error), and
// ServerBuilder.RegisterReceiver registers every method of a receiver
// shaped func(ctx, P) (R, error), naming them "namespace.Method". A field
// named _ with a jsonrpc tag overrides the method name:
//
//	type AddParams struct {
//	    _ struct{} `jsonrpc:"add"`
//	    A int      `json:"a"`
//	    B int      `json:"b" validate:"gte=0"`
//	}
//
// Struct params are checked against their validate tags after decoding.
//
// # Server
//
//	srv, err := jsonrpc.NewServerBuilder().
//	    Register("add", jsonrpc.Func2(add)).
//	    RegisterReceiver("math", &Math{}).
//	    Build()
//
// Build reports every registration error at once. A built Server is
// immutable and safe for concurrent use. Dispatch never panics and always
// returns a Response: Method not found for unknown names, Invalid params
// for binding failures, the handler's own *Error verbatim, and Internal
// error for everything else.
//
// # HTTP
//
//	http.Handle("/rpc", jsonrpc.NewHTTPEndpoint(srv).Handler(processors...))
//
// Each POST carries one request. Processor errors become HTTP errors, not
// JSON-RPC errors. Batches are answered with Invalid Request.
package jsonrpc
