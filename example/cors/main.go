package main

import (
	"context"
	"log"
	"net/http"

	"github.com/mnehpets/rpcserve/jsonrpc"
	"github.com/mnehpets/rpcserve/middleware"
)

func main() {
	server := jsonrpc.NewServerBuilder(jsonrpc.WithDebug(true)).
		Register("echo", jsonrpc.Func1(func(ctx context.Context, s string) (string, error) {
			return s, nil
		})).
		MustBuild()
	rpc := jsonrpc.NewHTTPEndpoint(server, jsonrpc.WithNotifications(true))

	// Browser clients on these origins may call the API with cookies.
	private := middleware.NewAPIHeaders(middleware.WithCORS(&middleware.CORSConfig{
		AllowedOrigins:   []string{"https://example.com", "https://app.example.com"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	// Any origin, no credentials.
	public := middleware.NewAPIHeaders(middleware.WithCORS(&middleware.CORSConfig{
		AllowedOrigins: []string{"*"},
		MaxAge:         3600,
	}))

	logger := &middleware.RequestLog{}
	mux := http.NewServeMux()
	// OPTIONS reaches the processor chain, which answers the preflight.
	mux.Handle("/api/private", rpc.Handler(logger, private, middleware.BodyLimit(64<<10)))
	mux.Handle("/api/public", rpc.Handler(logger, public, middleware.BodyLimit(4<<10)))

	log.Println("Server starting on :8080")
	log.Println("  - http://localhost:8080/api/private  (CORS for specific origins)")
	log.Println("  - http://localhost:8080/api/public   (wildcard CORS)")

	if err := http.ListenAndServe(":8080", mux); err != nil {
		log.Fatal(err)
	}
}
