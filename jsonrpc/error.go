package jsonrpc

import (
	"encoding/json"
	"strconv"
)

// Reserved JSON-RPC 2.0 error codes.
// See: https://www.jsonrpc.org/specification#error_object
const (
	CodeParseError     int64 = -32700
	CodeInvalidRequest int64 = -32600
	CodeMethodNotFound int64 = -32601
	CodeInvalidParams  int64 = -32602
	CodeInternalError  int64 = -32603

	// -32768 to -32000 is reserved for pre-defined errors.
	reservedMin int64 = -32768
	reservedMax int64 = -32000
)

// Error is a JSON-RPC error object.
//
// Data is omitted from the wire form unless set.
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "jsonrpc: error: <nil>"
	}
	return "jsonrpc: " + strconv.FormatInt(e.Code, 10) + " " + e.Message
}

// NewError creates an application error. Application code should stay
// outside the reserved range; see IsReserved.
func NewError(code int64, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithData returns a copy of e carrying data.
func (e *Error) WithData(data any) *Error {
	c := *e
	c.Data = data
	return &c
}

// IsReserved reports whether code lies in the range the protocol reserves.
func IsReserved(code int64) bool {
	return code >= reservedMin && code <= reservedMax
}

// ParseError is returned when the request is not valid JSON.
func ParseError() *Error {
	return &Error{Code: CodeParseError, Message: "Parse error"}
}

// InvalidRequest is returned when the JSON is not a valid request object.
func InvalidRequest() *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Invalid Request"}
}

// MethodNotFound is returned when no method is registered under the name.
func MethodNotFound() *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found"}
}

// InvalidParams is returned when params do not decode into the method's
// declared parameter type.
func InvalidParams() *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params"}
}

// InternalError covers every fault that is not attributable to the caller.
func InternalError() *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error"}
}

// normalize returns a copy of e whose Data is pre-encoded JSON, so that
// encoding the enclosing Response cannot fail.
func (e *Error) normalize() (*Error, error) {
	c := *e
	if c.Data == nil {
		return &c, nil
	}
	if raw, ok := c.Data.(json.RawMessage); ok && json.Valid(raw) {
		return &c, nil
	}
	b, err := json.Marshal(c.Data)
	if err != nil {
		return nil, err
	}
	c.Data = json.RawMessage(b)
	return &c, nil
}
