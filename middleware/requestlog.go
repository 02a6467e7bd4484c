package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mnehpets/rpcserve/endpoint"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by RequestLog.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// RequestLog assigns each request an id and logs one line per request
// once the chain has finished:
//
//	rpc 0b6c... POST /rpc 200 1.2ms
//
// A well-formed UUID in the incoming X-Request-Id header is kept; otherwise
// a new random one is generated.
type RequestLog struct {
	// Logger defaults to log.Default().
	Logger *log.Logger
}

func (p *RequestLog) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	id := r.Header.Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

	start := time.Now()
	sw := &statusWriter{ResponseWriter: w}
	err := next(sw, r)

	status := sw.status
	if err != nil {
		status = errorStatus(err)
	} else if status == 0 {
		status = http.StatusOK
	}

	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("rpc %s %s %s %d %s", id, r.Method, r.URL.Path, status, time.Since(start).Round(time.Microsecond))
	return err
}

// errorStatus is the status the endpoint handler will write for err.
func errorStatus(err error) int {
	var ee *endpoint.EndpointError
	if errors.As(err, &ee) && ee.Status >= 100 {
		return ee.Status
	}
	return http.StatusInternalServerError
}

// statusWriter records the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

var _ endpoint.Processor = (*RequestLog)(nil)
