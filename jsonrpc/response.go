package jsonrpc

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

var (
	errMalformedResponse = errors.New("jsonrpc: malformed response")
	errResultAndError    = errors.New("jsonrpc: response must carry exactly one of result and error")
)

// Response is a JSON-RPC response envelope holding either a result or an
// error, never both.
//
// Responses are built with ResponseBuilder, which guarantees the value
// encodes successfully.
type Response struct {
	id     ID
	result json.RawMessage
	err    *Error
}

func (r Response) ID() ID { return r.id }

// Result returns the encoded result and whether the response is a success.
func (r Response) Result() (json.RawMessage, bool) {
	if r.err != nil {
		return nil, false
	}
	return cloneRaw(r.result), true
}

// Err returns the error object of an error response, or nil.
func (r Response) Err() *Error {
	if r.err == nil {
		return nil
	}
	c := *r.err
	return &c
}

func (r Response) IsError() bool { return r.err != nil }

// DecodeResult decodes a success result into v. For an error response the
// *Error is returned.
func (r Response) DecodeResult(v any) error {
	if r.err != nil {
		return r.Err()
	}
	return json.Unmarshal(r.result, v)
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// MarshalJSON writes jsonrpc, id, then result or error. An absent id is
// omitted; a null id is written as null.
func (r Response) MarshalJSON() ([]byte, error) {
	w := wireResponse{JSONRPC: Version}
	if !r.id.IsAbsent() {
		b, err := r.id.MarshalJSON()
		if err != nil {
			return nil, err
		}
		w.ID = b
	}
	if r.err != nil {
		w.Error = r.err
	} else {
		w.Result = r.result
		if len(w.Result) == 0 {
			w.Result = json.RawMessage("null")
		}
	}
	return json.Marshal(w)
}

func (r *Response) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errMalformedResponse
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return errMalformedResponse
	}
	if v := doc.Get("jsonrpc"); v.Type != gjson.String || v.Str != Version {
		return errMalformedResponse
	}

	var resp Response
	if v := doc.Get("id"); v.Exists() {
		id, err := idFromResult(v)
		if err != nil {
			return err
		}
		resp.id = id
	}

	result, errObj := doc.Get("result"), doc.Get("error")
	switch {
	case result.Exists() == errObj.Exists():
		return errResultAndError
	case result.Exists():
		resp.result = json.RawMessage(result.Raw)
	default:
		if !errObj.IsObject() {
			return errMalformedResponse
		}
		var e Error
		if err := json.Unmarshal([]byte(errObj.Raw), &e); err != nil {
			return err
		}
		if d := errObj.Get("data"); d.Exists() {
			e.Data = json.RawMessage(d.Raw)
		}
		resp.err = &e
	}

	*r = resp
	return nil
}
