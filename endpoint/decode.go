package endpoint

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// DefaultBodyLimit caps `body` fields without a maxLength tag.
var DefaultBodyLimit int64 = 1 << 20

// defaultFieldLimit caps path, query and header values without a maxLength tag.
const defaultFieldLimit = 16 * 1024

// Unmarshal populates the struct dst points to from r.
//
// Fields are selected with struct tags naming the source:
//   - `path:"name"`   r.PathValue(name)
//   - `query:"name"`  URL query parameter
//   - `header:"name"` request header
//   - `body:""`       the whole request body
//
// An empty name defaults to the lower-cased field name; "-" skips the field.
// Slice fields take every value. Body fields of type string or []byte
// receive the raw body; other body fields are decoded as JSON.
// `maxLength:"n"` overrides the byte limit (0 for none). Values that are too
// long or do not parse are 400 errors; an oversized body is 413.
// Untagged fields are left unchanged.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer"))
	}
	root := v.Elem()
	if root.Kind() == reflect.Pointer {
		if root.IsNil() {
			root.Set(reflect.New(root.Type().Elem()))
		}
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must point to a struct"))
	}

	t := root.Type()
	bodyField := -1
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		src, ok, err := fieldSource(sf)
		if err != nil {
			return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: field %s: %w", sf.Name, err))
		}
		if !ok {
			continue
		}
		if src.kind == "body" {
			if bodyField != -1 {
				return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: multiple body fields: %s and %s", t.Field(bodyField).Name, sf.Name))
			}
			bodyField = i
		}
		if err := src.decode(r, root.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

type source struct {
	kind  string // path, query, header or body
	name  string
	limit int64 // 0 means unlimited
}

var sourceKinds = []string{"path", "query", "header", "body"}

func fieldSource(sf reflect.StructField) (source, bool, error) {
	for _, kind := range sourceKinds {
		tag, ok := sf.Tag.Lookup(kind)
		if !ok {
			continue
		}
		src := source{kind: kind, name: strings.TrimSpace(tag)}
		if src.name == "-" {
			return source{}, false, nil
		}
		if src.name == "" {
			src.name = strings.ToLower(sf.Name)
		}

		src.limit = defaultFieldLimit
		if kind == "body" {
			src.limit = DefaultBodyLimit
		}
		if ml, ok := sf.Tag.Lookup("maxLength"); ok {
			ml = strings.TrimSpace(ml)
			if ml == "" {
				src.limit = 0
			} else {
				n, err := strconv.ParseInt(ml, 10, 64)
				if err != nil || n < 0 {
					return source{}, false, fmt.Errorf("invalid maxLength %q", ml)
				}
				src.limit = n
			}
		}
		return src, true, nil
	}
	return source{}, false, nil
}

func (s source) decode(r *http.Request, field reflect.Value) error {
	var values []string
	switch s.kind {
	case "path":
		if v := r.PathValue(s.name); v != "" {
			values = []string{v}
		}
	case "query":
		if r.URL != nil {
			values = r.URL.Query()[s.name]
		}
	case "header":
		values = r.Header.Values(s.name)
	case "body":
		return s.decodeBody(r, field)
	}
	if len(values) == 0 {
		return nil
	}
	for _, v := range values {
		if s.limit > 0 && int64(len(v)) > s.limit {
			return Error(http.StatusBadRequest, "", fmt.Errorf("%s %q exceeds %d bytes", s.kind, s.name, s.limit))
		}
	}
	if err := setField(field, values); err != nil {
		return Error(http.StatusBadRequest, "", fmt.Errorf("%s %q: %w", s.kind, s.name, err))
	}
	return nil
}

func (s source) decodeBody(r *http.Request, field reflect.Value) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	reader := io.Reader(r.Body)
	if s.limit > 0 {
		reader = io.LimitReader(r.Body, s.limit+1)
	}
	b, err := io.ReadAll(reader)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return Error(http.StatusRequestEntityTooLarge, "", err)
		}
		return Error(http.StatusBadRequest, "", fmt.Errorf("read body: %w", err))
	}
	if s.limit > 0 && int64(len(b)) > s.limit {
		return Error(http.StatusRequestEntityTooLarge, "", fmt.Errorf("body exceeds %d bytes", s.limit))
	}

	ft := field.Type()
	switch {
	case ft.Kind() == reflect.String:
		field.SetString(string(b))
	case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Uint8:
		field.SetBytes(b)
	default:
		if err := json.Unmarshal(b, field.Addr().Interface()); err != nil {
			return Error(http.StatusBadRequest, "", fmt.Errorf("body: %w", err))
		}
	}
	return nil
}

// setField stores values into field. Slices take every value; other kinds
// take the first.
func setField(field reflect.Value, values []string) error {
	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() != reflect.Uint8 {
		out := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, v := range values {
			if err := setScalar(out.Index(i), v); err != nil {
				return err
			}
		}
		field.Set(out)
		return nil
	}
	return setScalar(field, values[0])
}

func setScalar(v reflect.Value, s string) error {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return setScalar(v.Elem(), s)
	}
	if v.CanAddr() {
		if tu, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return tu.UnmarshalText([]byte(s))
		}
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("unsupported type %s", v.Type())
		}
		v.SetBytes([]byte(s))
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("unsupported type %s", v.Type())
	}
	return nil
}
