package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sort"
)

var (
	ErrDuplicateMethod = errors.New("jsonrpc: duplicate method")
	ErrEmptyMethodName = errors.New("jsonrpc: empty method name")
	ErrNilFactory      = errors.New("jsonrpc: nil factory")
	ErrBuilt           = errors.New("jsonrpc: registration after build")
)

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	logger *log.Logger
	debug  bool
}

// WithLogger sets the logger for internal faults and debug output.
// Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(c *serverConfig) {
		c.logger = l
	}
}

// WithDebug logs every method resolution and params decode failure.
func WithDebug(on bool) Option {
	return func(c *serverConfig) {
		c.debug = on
	}
}

// ServerBuilder collects method registrations. Configuration errors are
// reported together by Build.
type ServerBuilder struct {
	cfg     serverConfig
	methods map[string]Factory
	errs    []error
	built   bool
}

// NewServerBuilder starts an empty registry.
func NewServerBuilder(opts ...Option) *ServerBuilder {
	cfg := serverConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.Default()
	}
	return &ServerBuilder{
		cfg:     cfg,
		methods: make(map[string]Factory),
	}
}

// Register binds name to factory. Names match exactly and case-sensitively;
// registering a name twice is an error, not an override.
func (b *ServerBuilder) Register(name string, factory Factory) *ServerBuilder {
	switch {
	case b.built:
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrBuilt, name))
	case name == "":
		b.errs = append(b.errs, ErrEmptyMethodName)
	case factory == nil:
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrNilFactory, name))
	default:
		if _, exists := b.methods[name]; exists {
			b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrDuplicateMethod, name))
			break
		}
		b.methods[name] = factory
	}
	return b
}

// RegisterReceiver registers every exported method of receiver shaped
// func(ctx context.Context, params P) (R, error), where P is a struct bound
// either positionally or by name. See Receiver for naming.
func (b *ServerBuilder) RegisterReceiver(namespace string, receiver any) *ServerBuilder {
	for _, m := range Receiver(namespace, receiver) {
		b.Register(m.Name, m.Factory)
	}
	return b
}

// Build freezes the registry. It returns every configuration error recorded
// so far, and no Server, if there were any.
func (b *ServerBuilder) Build() (*Server, error) {
	if b.built {
		b.errs = append(b.errs, ErrBuilt)
	}
	b.built = true
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}

	methods := make(map[string]Factory, len(b.methods))
	for name, f := range b.methods {
		methods[name] = f
	}
	return &Server{
		methods: methods,
		logger:  b.cfg.logger,
		debug:   b.cfg.debug,
	}, nil
}

// MustBuild is like Build but panics on configuration errors.
func (b *ServerBuilder) MustBuild() *Server {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// Server dispatches requests to registered methods.
//
// The routing table is never written after Build, so a Server is safe for
// concurrent use without locking.
type Server struct {
	methods map[string]Factory
	logger  *log.Logger
	debug   bool
}

// Has reports whether name is registered.
func (s *Server) Has(name string) bool {
	_, ok := s.methods[name]
	return ok
}

// Methods returns the registered names, sorted.
func (s *Server) Methods() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch resolves req to its method, binds params, invokes the handler
// and returns exactly one Response. It never panics: unknown methods yield
// Method not found, binding failures Invalid params, handler *Error values
// are returned verbatim, and every other fault becomes Internal error.
//
// A Response is produced for notifications too; the host decides whether
// to send it.
func (s *Server) Dispatch(ctx context.Context, req Request) (resp Response) {
	res := NewResponseBuilder(req.ID())
	res.logger = s.logger

	factory, ok := s.methods[req.Method()]
	if !ok {
		s.debugf("jsonrpc: method not found: %q", req.Method())
		return res.Error(MethodNotFound())
	}
	s.debugf("jsonrpc: %q RPC", req.Method())

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("jsonrpc panic: method %q: %v\n%s", req.Method(), r, debug.Stack())
			resp = res.Error(InternalError())
		}
	}()

	h := factory()
	if h == nil {
		s.logger.Printf("jsonrpc: method %q: factory returned nil handler", req.Method())
		return res.Error(InternalError())
	}

	if err := h.Decode(req.Params()); err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			s.debugf("jsonrpc: method %q: %v", req.Method(), err)
			return res.Error(rpcErr)
		}
		s.logger.Printf("jsonrpc: method %q: decode: %v", req.Method(), err)
		return res.Error(InternalError())
	}

	result, err := h.Invoke(ctx)
	return res.Result(result, err)
}

// Go runs Dispatch on its own goroutine. The channel receives exactly one
// Response and is then closed.
func (s *Server) Go(ctx context.Context, req Request) <-chan Response {
	ch := make(chan Response, 1)
	go func() {
		defer close(ch)
		ch <- s.Dispatch(ctx, req)
	}()
	return ch
}

func (s *Server) debugf(format string, args ...any) {
	if s.debug {
		s.logger.Printf(format, args...)
	}
}
