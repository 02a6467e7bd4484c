package jsonrpc

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/tidwall/gjson"
)

// IDKind identifies which variant an ID holds.
type IDKind uint8

const (
	// IDAbsent is the zero value: the request carried no id member.
	IDAbsent IDKind = iota
	IDString
	IDNumber
	IDNull
)

func (k IDKind) String() string {
	switch k {
	case IDAbsent:
		return "absent"
	case IDString:
		return "string"
	case IDNumber:
		return "number"
	case IDNull:
		return "null"
	}
	return "IDKind(" + strconv.Itoa(int(k)) + ")"
}

var errInvalidID = errors.New("jsonrpc: id must be a string, an integer or null")

// ID correlates a Response with its Request.
//
// IDs are comparable; two IDs are equal when == holds. The zero value is an
// absent id, which is distinct from NullID.
type ID struct {
	kind IDKind
	str  string
	num  int64
}

func StringID(s string) ID { return ID{kind: IDString, str: s} }
func NumberID(n int64) ID  { return ID{kind: IDNumber, num: n} }
func NullID() ID           { return ID{kind: IDNull} }

func (id ID) Kind() IDKind { return id.kind }

// IsAbsent reports whether the id member was missing from the request.
func (id ID) IsAbsent() bool { return id.kind == IDAbsent }

// IsNull reports whether the id member was present and null.
func (id ID) IsNull() bool { return id.kind == IDNull }

// Str returns the string value and whether the id is a string.
func (id ID) Str() (string, bool) { return id.str, id.kind == IDString }

// Number returns the numeric value and whether the id is a number.
func (id ID) Number() (int64, bool) { return id.num, id.kind == IDNumber }

func (id ID) Equal(other ID) bool { return id == other }

func (id ID) String() string {
	switch id.kind {
	case IDString:
		return strconv.Quote(id.str)
	case IDNumber:
		return strconv.FormatInt(id.num, 10)
	case IDNull:
		return "null"
	}
	return "<absent>"
}

// MarshalJSON encodes the id. An absent id encodes as null; Response omits
// the member instead of calling this.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case IDString:
		return json.Marshal(id.str)
	case IDNumber:
		return strconv.AppendInt(nil, id.num, 10), nil
	}
	return []byte("null"), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errInvalidID
	}
	parsed, err := idFromResult(gjson.ParseBytes(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// idFromResult converts a gjson value into an ID. Fractional, exponent and
// out-of-range numbers are rejected.
func idFromResult(r gjson.Result) (ID, error) {
	switch r.Type {
	case gjson.Null:
		return NullID(), nil
	case gjson.String:
		return StringID(r.Str), nil
	case gjson.Number:
		n, err := strconv.ParseInt(r.Raw, 10, 64)
		if err != nil {
			return ID{}, errInvalidID
		}
		return NumberID(n), nil
	}
	return ID{}, errInvalidID
}
