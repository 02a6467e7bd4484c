package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

// Validator checks decoded struct parameters against their `validate` tags.
// Custom validations may be registered on it before serving.
var Validator = validator.New(validator.WithRequiredStructEnabled())

var (
	errUnexpectedParams = errors.New("method takes no params")
	errWantArray        = errors.New("params must be an array")
	errWantObject       = errors.New("params must be an object")
	errArity            = errors.New("invalid number of params")
	errNull             = errors.New("null is not allowed")
)

// paramsError is a binding failure. It matches *Error as Invalid params
// and keeps the cause for logging.
type paramsError struct {
	cause error
}

func (e *paramsError) Error() string {
	return "jsonrpc: invalid params: " + e.cause.Error()
}

func (e *paramsError) Unwrap() []error {
	return []error{InvalidParams(), e.cause}
}

func invalidParams(cause error) error {
	return &paramsError{cause: cause}
}

type paramsShape uint8

const (
	shapeAbsent paramsShape = iota
	shapeArray
	shapeObject
	shapeOther
)

func shapeOf(raw json.RawMessage) (paramsShape, gjson.Result) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return shapeAbsent, gjson.Result{}
	}
	r := gjson.ParseBytes(raw)
	switch {
	case r.IsArray():
		return shapeArray, r
	case r.IsObject():
		return shapeObject, r
	case r.Type == gjson.Null:
		return shapeAbsent, r
	}
	return shapeOther, r
}

// binder holds the binding plan for one parameter type, computed once when
// the method is constructed.
type binder struct {
	typ     reflect.Type
	binding Binding

	// positional struct: field indices in declaration order
	fields []int
	// positional slice or array: the whole array decodes into the value
	sequence bool
	// positional array: the exact element count, -1 for slices
	length int
	// positional slice or array: elements may be null
	nullElems bool
	// named struct: json names that must be present
	required []requiredField
	// struct parameters are validated after decoding
	isStruct bool
}

// newBinder panics if typ cannot be bound with binding.
func newBinder(typ reflect.Type, binding Binding) *binder {
	b := &binder{typ: typ, binding: binding, length: -1}
	if binding == NoParams {
		return b
	}

	base := typ
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	b.isStruct = base.Kind() == reflect.Struct

	switch binding {
	case ByPosition:
		switch base.Kind() {
		case reflect.Struct:
			b.fields = positionalFields(base)
		case reflect.Slice:
			b.sequence = true
			b.nullElems = nullable(base.Elem())
		case reflect.Array:
			b.sequence = true
			b.length = base.Len()
			b.nullElems = nullable(base.Elem())
		default:
			panic(fmt.Sprintf("jsonrpc: positional params must be a struct, slice or array, got %s", typ))
		}
	case ByName:
		switch base.Kind() {
		case reflect.Struct:
			b.required = requiredNames(base)
		case reflect.Map:
			if base.Key().Kind() != reflect.String {
				panic(fmt.Sprintf("jsonrpc: named params map must have string keys, got %s", typ))
			}
		case reflect.Interface:
		default:
			panic(fmt.Sprintf("jsonrpc: named params must be a struct or map, got %s", typ))
		}
	case ByEither:
		if !b.isStruct {
			panic(fmt.Sprintf("jsonrpc: params must be a struct, got %s", typ))
		}
		b.fields = positionalFields(base)
		b.required = requiredNames(base)
	default:
		panic(fmt.Sprintf("jsonrpc: unknown binding %d", binding))
	}
	return b
}

// bind decodes raw into dst, which must be a non-nil pointer to the
// binder's type.
func (b *binder) bind(raw json.RawMessage, dst any) error {
	shape, parsed := shapeOf(raw)
	if shape == shapeOther {
		return invalidParams(errors.New("params must be an array or an object"))
	}

	var err error
	switch b.binding {
	case NoParams:
		if shape != shapeAbsent && !isEmptyContainer(parsed) {
			return invalidParams(errUnexpectedParams)
		}
		return nil
	case ByPosition:
		if shape == shapeObject {
			return invalidParams(errWantArray)
		}
		err = b.bindPositional(raw, shape, dst)
	case ByName:
		if shape == shapeArray {
			return invalidParams(errWantObject)
		}
		err = b.bindNamed(raw, shape, dst)
	case ByEither:
		if shape == shapeObject {
			err = b.bindNamed(raw, shape, dst)
		} else {
			err = b.bindPositional(raw, shape, dst)
		}
	}
	if err != nil {
		return err
	}
	return b.validate(dst)
}

func (b *binder) bindPositional(raw json.RawMessage, shape paramsShape, dst any) error {
	if b.sequence {
		if shape == shapeAbsent {
			if b.length > 0 {
				return invalidParams(fmt.Errorf("%w: got 0, want %d", errArity, b.length))
			}
			return nil
		}
		elems := gjson.ParseBytes(raw).Array()
		if b.length >= 0 && len(elems) != b.length {
			return invalidParams(fmt.Errorf("%w: got %d, want %d", errArity, len(elems), b.length))
		}
		if !b.nullElems {
			for i, elem := range elems {
				if elem.Type == gjson.Null {
					return invalidParams(fmt.Errorf("param %d: %w", i, errNull))
				}
			}
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return invalidParams(err)
		}
		return nil
	}

	var elems []json.RawMessage
	if shape != shapeAbsent {
		if err := json.Unmarshal(raw, &elems); err != nil {
			return invalidParams(err)
		}
	}
	if len(elems) != len(b.fields) {
		return invalidParams(fmt.Errorf("%w: got %d, want %d", errArity, len(elems), len(b.fields)))
	}

	v := structValue(dst)
	for i, elem := range elems {
		field := v.Field(b.fields[i])
		if isNull(elem) && !nullable(field.Type()) {
			return invalidParams(fmt.Errorf("param %d: %w", i, errNull))
		}
		if err := json.Unmarshal(elem, field.Addr().Interface()); err != nil {
			return invalidParams(fmt.Errorf("param %d: %w", i, err))
		}
	}
	return nil
}

func (b *binder) bindNamed(raw json.RawMessage, shape paramsShape, dst any) error {
	if shape == shapeAbsent {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalidParams(err)
	}
	if len(b.required) == 0 {
		return nil
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return invalidParams(err)
	}
	for _, f := range b.required {
		v, ok := lookupKey(present, f.name)
		if !ok {
			return invalidParams(errors.New("missing param: " + f.name))
		}
		if !f.nullable && isNull(v) {
			return invalidParams(fmt.Errorf("param %s: %w", f.name, errNull))
		}
	}
	return nil
}

// lookupKey matches keys the way encoding/json matches field names:
// exactly, then case-insensitively.
func lookupKey(m map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// nullable reports whether JSON null is a meaningful value for t.
func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

func (b *binder) validate(dst any) error {
	if !b.isStruct {
		return nil
	}
	v := reflect.ValueOf(dst).Elem()
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		dst = v.Interface()
	}
	if err := Validator.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return invalidParams(err)
	}
	return nil
}

// structValue returns the struct dst points at, allocating through a
// pointer-to-pointer when needed.
func structValue(dst any) reflect.Value {
	v := reflect.ValueOf(dst).Elem()
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	return v
}

func isEmptyContainer(r gjson.Result) bool {
	empty := true
	r.ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	return empty
}

// positionalFields lists the exported, non-ignored fields of t in
// declaration order.
func positionalFields(t reflect.Type) []int {
	fields := make([]int, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if name, _ := jsonName(sf); name == "-" {
			continue
		}
		fields = append(fields, i)
	}
	return fields
}

type requiredField struct {
	name     string
	nullable bool
}

// requiredNames lists the fields that must be present in named params:
// exported, not embedded, not pointers, not omitempty.
func requiredNames(t reflect.Type) []requiredField {
	names := make([]requiredField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		name, omitempty := jsonName(sf)
		if name == "-" || omitempty || sf.Type.Kind() == reflect.Pointer {
			continue
		}
		names = append(names, requiredField{name: name, nullable: nullable(sf.Type)})
	}
	return names
}

func jsonName(sf reflect.StructField) (name string, omitempty bool) {
	tag, ok := sf.Tag.Lookup("json")
	if !ok {
		return sf.Name, false
	}
	if tag == "-" {
		return "-", false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = sf.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	return name, omitempty
}
