// Package endpoint provides typed HTTP handlers for hosting RPC endpoints.
//
// A request passes through three phases:
//
//  1. Processors run in order. Each may inspect or wrap the request and
//     writer, then calls next or stops the chain with an error.
//  2. Unmarshal decodes the request (body, headers, query) into the typed
//     params of the EndpointFunc, which runs the call and returns a
//     Renderer. It never writes the response itself.
//  3. The Renderer writes status, headers and body.
//
// Errors from any phase become plain-text HTTP errors; an *EndpointError
// selects the status code.
package endpoint

import (
	"errors"
	"io"
	"log"
	"net/http"
)

// EndpointError is an error with an HTTP status and a client-visible message.
type EndpointError struct {
	Status int
	// Message is sent as the response body. Empty means the status text.
	Message string
	Cause   error
}

func (e *EndpointError) Error() string {
	if e == nil {
		return "endpoint: error: <nil>"
	}
	msg := e.text()
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *EndpointError) text() string {
	if e.Message != "" {
		return e.Message
	}
	if t := http.StatusText(e.Status); t != "" {
		return t
	}
	return "unknown error"
}

// Error creates an *EndpointError. If err already is one, it is returned
// unchanged.
func Error(status int, message string, err error) error {
	var ee *EndpointError
	if errors.As(err, &ee) {
		return err
	}
	return &EndpointError{Status: status, Message: message, Cause: err}
}

// Renderer writes a complete response. Render must call WriteHeader; it may
// set headers first.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Processor runs before the endpoint. It must call next unless it stops the
// chain by returning an error, and must not write the status or body.
// Returning an *EndpointError with a 2xx status stops the chain with an
// empty response of that status.
type Processor interface {
	Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error

func (f ProcessorFunc) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	return f(w, r, next)
}

// EndpointFunc handles a request whose params have been decoded into P and
// returns the Renderer for the response.
type EndpointFunc[P any] func(w http.ResponseWriter, r *http.Request, params P) (Renderer, error)

// EndpointHandler is an http.Handler running Processors, then Endpoint.
type EndpointHandler[P any] struct {
	Endpoint   EndpointFunc[P]
	Processors []Processor
}

// Handler constructs an EndpointHandler, inferring P from fn.
func Handler[P any](fn EndpointFunc[P], processors ...Processor) *EndpointHandler[P] {
	return &EndpointHandler[P]{
		Endpoint:   fn,
		Processors: processors,
	}
}

// HandleFunc is Handler as an http.HandlerFunc.
func HandleFunc[P any](fn EndpointFunc[P], processors ...Processor) http.HandlerFunc {
	return Handler(fn, processors...).ServeHTTP
}

func (h *EndpointHandler[P]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Endpoint == nil {
		http.Error(w, "endpoint: nil EndpointFunc", http.StatusInternalServerError)
		return
	}
	if err := h.run(0, w, r); err != nil {
		writeError(w, err)
	}
}

// run calls processor i, whose next continues at i+1; past the last
// processor it decodes params, calls the endpoint and renders.
func (h *EndpointHandler[P]) run(i int, w http.ResponseWriter, r *http.Request) error {
	if i < len(h.Processors) {
		p := h.Processors[i]
		if p == nil {
			return errors.New("endpoint: nil processor")
		}
		return p.Process(w, r, func(w2 http.ResponseWriter, r2 *http.Request) error {
			return h.run(i+1, w2, r2)
		})
	}

	var params P
	if err := Unmarshal(r, &params); err != nil {
		return err
	}
	renderer, err := h.Endpoint(w, r, params)
	if err != nil {
		return err
	}
	if renderer == nil {
		return errors.New("endpoint: nil renderer")
	}
	if c, ok := renderer.(io.Closer); ok {
		defer c.Close()
	}
	if err := renderer.Render(w, r); err != nil {
		log.Printf("endpoint: render %s %s: %v", r.Method, r.URL.Path, err)
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	var ee *EndpointError
	if errors.As(err, &ee) && ee != nil {
		if ee.Status >= 100 {
			status = ee.Status
		}
		message = ee.text()
		if ee.Message == "" {
			message = http.StatusText(status)
		}
		if status >= http.StatusOK && status < http.StatusMultipleChoices {
			w.WriteHeader(status)
			return
		}
	}
	http.Error(w, message, status)
}
