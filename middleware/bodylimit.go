package middleware

import (
	"net/http"

	"github.com/mnehpets/rpcserve/endpoint"
)

// BodyLimit caps request bodies at n bytes. Reading past the limit fails
// and the endpoint answers 413. Requests declaring a larger Content-Length
// are rejected before the body is read.
type BodyLimit int64

func (n BodyLimit) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	if n <= 0 {
		return next(w, r)
	}
	if r.ContentLength > int64(n) {
		return endpoint.Error(http.StatusRequestEntityTooLarge, "", nil)
	}
	if r.Body != nil && r.Body != http.NoBody {
		r = r.WithContext(r.Context())
		r.Body = http.MaxBytesReader(w, r.Body, int64(n))
	}
	return next(w, r)
}

var _ endpoint.Processor = BodyLimit(0)
