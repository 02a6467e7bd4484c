package jsonrpc

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// Version is the only protocol version token accepted and produced.
const Version = "2.0"

var errNoParams = errors.New("jsonrpc: request has no params")

// Request is a parsed JSON-RPC request envelope.
//
// A Request is immutable: fields are only set by NewRequest and
// ParseRequest, and Params returns a copy. The same value may be shared by
// any number of readers.
type Request struct {
	id     ID
	method string
	params json.RawMessage
}

// NewRequest constructs a request. params must be nil, a JSON array or a
// JSON object; it is copied.
func NewRequest(id ID, method string, params json.RawMessage) Request {
	return Request{id: id, method: method, params: cloneRaw(params)}
}

func (r Request) ID() ID         { return r.id }
func (r Request) Method() string { return r.method }

// Params returns a copy of the raw params, or nil when the request had none.
func (r Request) Params() json.RawMessage { return cloneRaw(r.params) }

// IsNotification reports whether the request carried no id member.
func (r Request) IsNotification() bool { return r.id.IsAbsent() }

// DecodeParams decodes the raw params into v.
func (r Request) DecodeParams(v any) error {
	if len(r.params) == 0 {
		return errNoParams
	}
	return json.Unmarshal(r.params, v)
}

type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	w := wireRequest{JSONRPC: Version, Method: r.method, Params: r.params}
	if !r.id.IsAbsent() {
		b, err := r.id.MarshalJSON()
		if err != nil {
			return nil, err
		}
		w.ID = b
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses with the default (strict) rules of ParseRequest.
func (r *Request) UnmarshalJSON(data []byte) error {
	req, err := ParseRequest(data)
	if err != nil {
		return err
	}
	*r = req
	return nil
}

// ParseOption configures ParseRequest.
type ParseOption func(*parseConfig)

type parseConfig struct {
	allowNotifications bool
}

// AllowNotifications accepts requests without an id member. Without this
// option a missing id member is an Invalid Request.
func AllowNotifications() ParseOption {
	return func(c *parseConfig) {
		c.allowNotifications = true
	}
}

// ParseRequest parses a single request envelope.
//
// On failure the returned error is a *Error: Parse Error when data is not
// JSON, Invalid Request when it is JSON but not a well-formed request. The
// returned Request then carries the id to answer with: the request's own id
// if it could be read, NullID otherwise.
//
// A params member of null is treated as absent.
func ParseRequest(data []byte, opts ...ParseOption) (Request, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	failed := Request{id: NullID()}
	if !gjson.ValidBytes(data) {
		return failed, ParseError()
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return failed, InvalidRequest()
	}

	var req Request
	if v := doc.Get("id"); v.Exists() {
		id, err := idFromResult(v)
		if err != nil {
			return failed, InvalidRequest()
		}
		req.id = id
	} else if !cfg.allowNotifications {
		return failed, InvalidRequest()
	}
	failed.id = req.id
	if failed.id.IsAbsent() {
		failed.id = NullID()
	}

	if v := doc.Get("jsonrpc"); v.Type != gjson.String || v.Str != Version {
		return failed, InvalidRequest()
	}

	v := doc.Get("method")
	if v.Type != gjson.String || v.Str == "" {
		return failed, InvalidRequest()
	}
	req.method = v.Str

	if v := doc.Get("params"); v.Exists() && v.Type != gjson.Null {
		if !v.IsArray() && !v.IsObject() {
			return failed, InvalidRequest()
		}
		req.params = json.RawMessage(v.Raw)
	}

	return req, nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	c := make(json.RawMessage, len(raw))
	copy(c, raw)
	return c
}
