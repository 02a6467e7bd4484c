package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// reflectHandler calls fn with receiver (if any), ctx, then the decoded
// parameter value spread according to spread.
type reflectHandler struct {
	fn       reflect.Value
	receiver reflect.Value
	binder   *binder
	param    reflect.Value // pointer to the parameter value
	spread   bool          // param is a synthesized struct of positional args
}

func (h *reflectHandler) Decode(raw json.RawMessage) error {
	return h.binder.bind(raw, h.param.Interface())
}

func (h *reflectHandler) Invoke(ctx context.Context) (any, error) {
	args := make([]reflect.Value, 0, 2+h.param.Elem().NumField())
	if h.receiver.IsValid() {
		args = append(args, h.receiver)
	}
	args = append(args, reflect.ValueOf(&ctx).Elem())

	p := h.param.Elem()
	if h.spread {
		for i := 0; i < p.NumField(); i++ {
			args = append(args, p.Field(i))
		}
	} else {
		args = append(args, p)
	}

	out := h.fn.Call(args)
	var err error
	if !out[1].IsNil() {
		err = out[1].Interface().(error)
	}
	return out[0].Interface(), err
}

// Reflect adapts any func(ctx context.Context, a1 A1, ..., an An) (R, error)
// into a positionally bound method. It panics if fn has another shape.
func Reflect(fn any) Factory {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic(fmt.Sprintf("jsonrpc: Reflect needs a func, got %T", fn))
	}
	ft := v.Type()
	if !validResults(ft) || ft.IsVariadic() || ft.NumIn() < 1 || ft.In(0) != contextType {
		panic(fmt.Sprintf("jsonrpc: Reflect needs func(context.Context, ...) (R, error), got %s", ft))
	}

	fields := make([]reflect.StructField, 0, ft.NumIn()-1)
	for i := 1; i < ft.NumIn(); i++ {
		fields = append(fields, reflect.StructField{
			Name: "V" + strconv.Itoa(i-1),
			Type: ft.In(i),
		})
	}
	argsType := reflect.StructOf(fields)

	binding := ByPosition
	if len(fields) == 0 {
		binding = NoParams
	}
	b := newBinder(argsType, binding)

	return func() Handler {
		return &reflectHandler{
			fn:     v,
			binder: b,
			param:  reflect.New(argsType),
			spread: true,
		}
	}
}

// Method is a named Factory, as discovered by Receiver.
type Method struct {
	Name    string
	Factory Factory
}

// Receiver lists the exported methods of receiver shaped
// func(ctx context.Context, params P) (R, error) with struct P, sorted by
// name. Other methods are skipped. A field named _ in P with a jsonrpc tag
// overrides the method name; namespace, when not empty, prefixes it as
// "namespace.Name". Params bind positionally or by name.
func Receiver(namespace string, receiver any) []Method {
	val := reflect.ValueOf(receiver)
	if !val.IsValid() {
		panic("jsonrpc: nil receiver")
	}
	typ := val.Type()

	var methods []Method
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}
		name, factory := parseMethod(val, method)
		if factory == nil {
			continue
		}
		if namespace != "" {
			name = namespace + "." + name
		}
		methods = append(methods, Method{Name: name, Factory: factory})
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })
	return methods
}

func parseMethod(receiver reflect.Value, method reflect.Method) (string, Factory) {
	ft := method.Func.Type()
	// In(0) is the receiver.
	if ft.NumIn() != 3 || ft.In(1) != contextType || !validResults(ft) {
		return "", nil
	}
	paramType := ft.In(2)
	if paramType.Kind() != reflect.Struct {
		return "", nil
	}

	name := method.Name
	if sf, ok := paramType.FieldByName("_"); ok {
		if tag := sf.Tag.Get("jsonrpc"); tag != "" {
			name = tag
		}
	}

	b := newBinder(paramType, ByEither)
	fn := method.Func
	return name, func() Handler {
		return &reflectHandler{
			fn:       fn,
			receiver: receiver,
			binder:   b,
			param:    reflect.New(paramType),
		}
	}
}

func validResults(ft reflect.Type) bool {
	return ft.NumOut() == 2 && ft.Out(1) == errorType
}
