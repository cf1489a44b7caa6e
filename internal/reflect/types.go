package reflect

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

type Shape int

const (
	ShapeInvalid Shape = iota
	ShapeObject
	ShapeFactory
)

func (s Shape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeFactory:
		return "factory"
	default:
		return "invalid"
	}
}

// Classify reports whether v is an object (map, struct, or pointer to one of
// those) or a factory (func with no parameters or a single variadic one).
func Classify(v any) Shape {
	if IsNil(v) {
		return ShapeInvalid
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		return ShapeObject
	case reflect.Ptr:
		switch rv.Elem().Kind() {
		case reflect.Map, reflect.Struct:
			return ShapeObject
		default:
			return ShapeInvalid
		}
	case reflect.Func:
		t := rv.Type()
		if t.NumIn() == 0 || (t.IsVariadic() && t.NumIn() == 1) {
			return ShapeFactory
		}
		return ShapeInvalid
	default:
		return ShapeInvalid
	}
}

var typeKeyCache sync.Map

func typeKeyFromReflect(t reflect.Type) string {
	if cached, ok := typeKeyCache.Load(t); ok {
		return cached.(string)
	}

	key := buildTypeKey(t)
	typeKeyCache.Store(t, key)
	return key
}

func buildTypeKey(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Ptr:
		return "*" + buildTypeKey(t.Elem())
	case reflect.Slice:
		return "[]" + buildTypeKey(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), buildTypeKey(t.Elem()))
	case reflect.Map:
		return "map[" + buildTypeKey(t.Key()) + "]" + buildTypeKey(t.Elem())
	case reflect.Func:
		return t.String()
	default:
		if t.PkgPath() != "" {
			return t.PkgPath() + "." + t.Name()
		}
		if t.Name() == "" {
			return t.String()
		}
		return t.Name()
	}
}

func TypeKeyFromValue(v any) string {
	if v == nil {
		return "<nil>"
	}
	return typeKeyFromReflect(reflect.TypeOf(v))
}

func IsNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// IsFunc reports whether v is a non-nil function of any signature.
func IsFunc(v any) bool {
	fv := reflect.ValueOf(v)
	return fv.Kind() == reflect.Func && !fv.IsNil()
}

// CallFactory invokes fn with args mapped positionally onto its parameters.
// The first result is returned as the value; a trailing error result is
// returned as the error.
func CallFactory(fn any, args []any) (any, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, fmt.Errorf("factory must be a function, got %T", fn)
	}
	ft := fv.Type()

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var pt reflect.Type
		switch {
		case ft.IsVariadic() && i >= ft.NumIn()-1:
			pt = ft.In(ft.NumIn() - 1).Elem()
		case i < ft.NumIn():
			pt = ft.In(i)
		default:
			return nil, fmt.Errorf("factory takes %d arguments, got %d", ft.NumIn(), len(args))
		}

		av, err := convertArg(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, av)
	}

	minIn := ft.NumIn()
	if ft.IsVariadic() {
		minIn--
	}
	if len(in) < minIn {
		return nil, fmt.Errorf("factory takes %d arguments, got %d", minIn, len(args))
	}

	out := fv.Call(in)
	if len(out) == 0 {
		return nil, nil
	}

	if last := out[len(out)-1]; ft.Out(len(out)-1) == errorType {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		if len(out) == 1 {
			return nil, nil
		}
	}

	return out[0].Interface(), nil
}

func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	av := reflect.ValueOf(arg)
	if !av.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("cannot use %s as %s", av.Type(), t)
	}
	return av, nil
}

type Field struct {
	Index  int
	Name   string
	Module string
	Type   reflect.Type
}

var ErrNotStruct = errors.New("not a struct type")

// StructFields returns the exported fields of t (or *t) carrying tagKey.
// An empty tag value falls back to the field name.
func StructFields(t reflect.Type, tagKey string) ([]Field, error) {
	if t == nil {
		return nil, ErrNotStruct
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}

	var fields []Field
	for i := range t.NumField() {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup(tagKey)
		if !ok {
			continue
		}
		if !sf.IsExported() {
			return nil, fmt.Errorf("field %s is tagged but unexported", sf.Name)
		}

		name := strings.TrimSpace(tag)
		if name == "" {
			name = sf.Name
		}

		fields = append(fields, Field{
			Index:  i,
			Name:   sf.Name,
			Module: name,
			Type:   sf.Type,
		})
	}
	return fields, nil
}
