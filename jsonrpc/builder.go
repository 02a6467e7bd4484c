package jsonrpc

import (
	"encoding/json"
	"errors"
	"log"
)

// ResponseBuilder produces responses for one request id.
//
// Every Response it returns carries the id verbatim, holds exactly one of a
// result or an error, and encodes without error. Values that cannot be
// encoded degrade to an Internal error response.
type ResponseBuilder struct {
	id     ID
	logger *log.Logger
}

// NewResponseBuilder returns a builder answering the request with id.
func NewResponseBuilder(id ID) ResponseBuilder {
	return ResponseBuilder{id: id}
}

func (b ResponseBuilder) ID() ID { return b.id }

// Success wraps v as the result.
func (b ResponseBuilder) Success(v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		b.logf("jsonrpc: encode result for id %s: %v", b.id, err)
		return b.internal()
	}
	return Response{id: b.id, result: raw}
}

// Error wraps e as the error. A nil e is an Internal error.
func (b ResponseBuilder) Error(e *Error) Response {
	if e == nil {
		b.logf("jsonrpc: nil error for id %s", b.id)
		return b.internal()
	}
	n, err := e.normalize()
	if err != nil {
		b.logf("jsonrpc: encode error data for id %s: %v", b.id, err)
		return b.internal()
	}
	return Response{id: b.id, err: n}
}

// Result collapses a handler outcome into a response. A nil err yields a
// success; an err wrapping a *Error is surfaced verbatim; any other err is
// an Internal error.
func (b ResponseBuilder) Result(v any, err error) Response {
	if err == nil {
		return b.Success(v)
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return b.Error(rpcErr)
	}
	b.logf("jsonrpc: id %s: %v", b.id, err)
	return b.internal()
}

func (b ResponseBuilder) internal() Response {
	return Response{id: b.id, err: InternalError()}
}

func (b ResponseBuilder) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
