package main

import (
	"context"
	"log"
	"net/http"

	"github.com/mnehpets/rpcserve/jsonrpc"
	"github.com/mnehpets/rpcserve/middleware"
)

type MathMethods struct{}

type SubArgs struct {
	_ struct{} `jsonrpc:"sub"`
	A int      `json:"a"`
	B int      `json:"b"`
}

func (m *MathMethods) Sub(ctx context.Context, args SubArgs) (int, error) {
	return args.A - args.B, nil
}

func main() {
	server := jsonrpc.NewServerBuilder().
		Register("add", jsonrpc.Func2(func(ctx context.Context, a, b int) (int, error) {
			return a + b, nil
		})).
		RegisterReceiver("math", &MathMethods{}).
		MustBuild()

	rpc := jsonrpc.NewHTTPEndpoint(server)
	http.Handle("/rpc", rpc.Handler(&middleware.RequestLog{}, middleware.NewAPIHeaders()))

	// curl -d '{"jsonrpc":"2.0","id":1,"method":"math.sub","params":{"a":5,"b":3}}' localhost:8080/rpc
	log.Println("Starting server on :8080")
	log.Fatal(http.ListenAndServe(":8080", nil))
}
