// Command rpcserve serves demo JSON-RPC 2.0 methods over HTTP.
//
// Configuration comes from defaults, a .env file, RPCSERVE_* environment
// variables and finally command-line flags, each overriding the last.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mnehpets/rpcserve/endpoint"
	"github.com/mnehpets/rpcserve/jsonrpc"
	"github.com/mnehpets/rpcserve/middleware"
	"github.com/spf13/cobra"
)

// Version is set during build.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	envFile       string
	addr          string
	path          string
	maxBody       int64
	notifications bool
	debug         bool
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:          "rpcserve",
		Short:        "JSON-RPC 2.0 over HTTP demo server",
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "dotenv file to read before the environment")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveHTTP(ctx, cfg, log.Default())
		},
	}
	serve.Flags().StringVar(&f.addr, "addr", "", "listen address (RPCSERVE_ADDR)")
	serve.Flags().StringVar(&f.path, "path", "", "endpoint path (RPCSERVE_PATH)")
	serve.Flags().Int64Var(&f.maxBody, "max-body", 0, "request body limit in bytes, 0 for none (RPCSERVE_MAX_BODY)")
	serve.Flags().BoolVar(&f.notifications, "notifications", false, "accept requests without an id (RPCSERVE_NOTIFICATIONS)")
	serve.Flags().BoolVar(&f.debug, "debug", false, "log method resolution and params failures (RPCSERVE_DEBUG)")

	methods := &cobra.Command{
		Use:   "methods",
		Short: "List registered method names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			srv, err := newServer(cfg, log.New(io.Discard, "", 0))
			if err != nil {
				return err
			}
			for _, name := range srv.Methods() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	root.AddCommand(serve, methods)
	return root
}

// resolveConfig layers explicitly set flags over the file and environment.
func resolveConfig(cmd *cobra.Command, f flags) (Config, error) {
	required := cmd.Flags().Changed("env-file")
	cfg, err := loadConfig(f.envFile, required)
	if err != nil {
		return Config{}, err
	}
	fl := cmd.Flags()
	if fl.Changed("addr") {
		cfg.Addr = f.addr
	}
	if fl.Changed("path") {
		cfg.Path = f.path
	}
	if fl.Changed("max-body") {
		cfg.MaxBody = f.maxBody
	}
	if fl.Changed("notifications") {
		cfg.Notifications = f.notifications
	}
	if fl.Changed("debug") {
		cfg.Debug = f.debug
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// newHandler builds the HTTP handler tree for cfg: JSON-RPC calls at
// cfg.Path and a read-only method index under cfg.Path/methods.
func newHandler(cfg Config, logger *log.Logger) (http.Handler, error) {
	srv, err := newServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	rpc := jsonrpc.NewHTTPEndpoint(srv, jsonrpc.WithNotifications(cfg.Notifications))

	common := []endpoint.Processor{
		&middleware.RequestLog{Logger: logger},
		middleware.NewAPIHeaders(),
		endpoint.ProcessorFunc(serverHeader),
	}
	processors := common
	if cfg.MaxBody > 0 {
		processors = append(processors[:len(processors):len(processors)], middleware.BodyLimit(cfg.MaxBody))
	}

	index := methodIndex{srv: srv}
	base := strings.TrimSuffix(cfg.Path, "/")

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, rpc.Handler(processors...))
	mux.HandleFunc("GET "+base+"/methods", endpoint.HandleFunc(index.List, common...))
	mux.HandleFunc("GET "+base+"/methods/{name}", endpoint.HandleFunc(index.Get, common...))
	return mux, nil
}

func serverHeader(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	w.Header().Set("Server", "rpcserve/"+Version)
	return next(w, r)
}

func serveHTTP(ctx context.Context, cfg Config, logger *log.Logger) error {
	handler, err := newHandler(cfg, logger)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("rpcserve: listening on http://%s%s", cfg.Addr, cfg.Path)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Printf("rpcserve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
