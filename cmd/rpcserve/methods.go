package main

import (
	"context"
	"log"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

// mathService is registered under the "math" namespace.
type mathService struct{}

type SubParams struct {
	_ struct{} `jsonrpc:"sub"`
	A int64    `json:"a"`
	B int64    `json:"b"`
}

func (mathService) Sub(_ context.Context, p SubParams) (int64, error) {
	return p.A - p.B, nil
}

type DivideParams struct {
	_ struct{} `jsonrpc:"divide"`
	N float64  `json:"n"`
	D float64  `json:"d"`
}

// Divide reports division by zero as an application error with the
// offending operands attached.
func (mathService) Divide(_ context.Context, p DivideParams) (float64, error) {
	if p.D == 0 {
		return 0, jsonrpc.NewError(codeDivideByZero, "division by zero").WithData(p)
	}
	return p.N / p.D, nil
}

const codeDivideByZero = 1001

func add(_ context.Context, a, b uint64) (uint64, error) {
	return a + b, nil
}

// greeter captures prefix; every call gets a fresh handler around the same
// closure.
func greeter(prefix string) jsonrpc.Factory {
	return jsonrpc.Func1(func(_ context.Context, name string) (string, error) {
		return prefix + name, nil
	})
}

func newServer(cfg Config, logger *log.Logger) (*jsonrpc.Server, error) {
	return jsonrpc.NewServerBuilder(jsonrpc.WithLogger(logger), jsonrpc.WithDebug(cfg.Debug)).
		Register("add", jsonrpc.Func2(add)).
		Register("greet", greeter(cfg.GreetPrefix)).
		Register("notify_only", jsonrpc.Func0(func(context.Context) (bool, error) {
			logger.Printf("rpcserve: notify_only called")
			return true, nil
		})).
		RegisterReceiver("math", mathService{}).
		Build()
}
