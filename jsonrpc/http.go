package jsonrpc

import (
	"bytes"
	"context"
	"mime"
	"net/http"

	"github.com/mnehpets/rpcserve/endpoint"
)

// HTTPOption configures an HTTPEndpoint.
type HTTPOption func(*HTTPEndpoint)

// WithNotifications accepts requests without an id. They are dispatched and
// answered with 204 No Content.
func WithNotifications(on bool) HTTPOption {
	return func(e *HTTPEndpoint) {
		e.notifications = on
	}
}

// HTTPEndpoint serves a Server over JSON-RPC over HTTP: one request per POST
// body, one response per HTTP response.
type HTTPEndpoint struct {
	server        *Server
	notifications bool
}

// NewHTTPEndpoint binds server to HTTP.
func NewHTTPEndpoint(server *Server, opts ...HTTPOption) *HTTPEndpoint {
	e := &HTTPEndpoint{server: server}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handler wraps Endpoint with processors.
func (e *HTTPEndpoint) Handler(processors ...endpoint.Processor) http.Handler {
	return endpoint.Handler(e.Endpoint, processors...)
}

// rpcParams captures the raw body. Parsing is deferred to ParseRequest
// because JSON-RPC answers malformed JSON with an envelope, not an HTTP
// error. The body is not capped here; limits belong to processors such as
// middleware.BodyLimit.
type rpcParams struct {
	ContentType string `header:"Content-Type"`
	Body        []byte `body:"" maxLength:""`
}

// Endpoint is the endpoint.EndpointFunc handling one JSON-RPC call.
func (e *HTTPEndpoint) Endpoint(w http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodPost {
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST method", nil)
	}

	if !acceptsJSON(params.ContentType) {
		return nil, endpoint.Error(http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
	}

	return e.handleBody(r.Context(), params.Body), nil
}

// acceptsJSON reports whether contentType is empty or application/json,
// with any parameters.
func acceptsJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func (e *HTTPEndpoint) handleBody(ctx context.Context, body []byte) endpoint.Renderer {
	if b := bytes.TrimSpace(body); len(b) > 0 && b[0] == '[' {
		// Batches are not supported.
		return &responseRenderer{resp: NewResponseBuilder(NullID()).Error(InvalidRequest())}
	}

	var opts []ParseOption
	if e.notifications {
		opts = append(opts, AllowNotifications())
	}
	req, err := ParseRequest(body, opts...)
	if err != nil {
		rpcErr, _ := err.(*Error)
		return &responseRenderer{resp: NewResponseBuilder(req.ID()).Error(rpcErr)}
	}

	resp := e.server.Dispatch(ctx, req)
	if req.IsNotification() {
		return &endpoint.NoContentRenderer{}
	}
	return &responseRenderer{resp: resp}
}

// responseRenderer writes a single Response as application/json.
type responseRenderer struct {
	resp Response
}

func (r *responseRenderer) Render(w http.ResponseWriter, req *http.Request) error {
	jr := endpoint.JSONRenderer{Status: http.StatusOK, Value: r.resp}
	return jr.Render(w, req)
}
