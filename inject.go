package tamd

import (
	"context"
	"fmt"
	reflectPkg "reflect"

	"github.com/danpasecinic/tamd/internal/reflect"
)

// TagKey is the struct tag AwaitStruct reads module names from. An empty tag
// value uses the field name.
const TagKey = "tamd"

// AwaitAs awaits a single module and asserts its value to T.
func AwaitAs[T any](ctx context.Context, r *Runtime, name string) (T, error) {
	var zero T

	values, err := r.Await(ctx, name)
	if err != nil {
		return zero, err
	}

	typed, ok := values[0].(T)
	if !ok {
		return zero, errTypeMismatch(name, values[0], reflectPkg.TypeFor[T]().String())
	}
	return typed, nil
}

// AwaitStruct awaits every module named by a `tamd` tag on T's fields and
// returns T with those fields set. T may be a struct or a pointer to one.
//
//	type Deps struct {
//	    Store *Store `tamd:"store"`
//	    Clock any    `tamd:""`
//	}
func AwaitStruct[T any](ctx context.Context, r *Runtime) (T, error) {
	var zero T

	t := reflectPkg.TypeFor[T]()
	isPtr := t.Kind() == reflectPkg.Pointer
	if isPtr {
		t = t.Elem()
	}

	fields, err := reflect.StructFields(t, TagKey)
	if err != nil {
		return zero, err
	}

	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Module
	}

	values, err := r.Await(ctx, names...)
	if err != nil {
		return zero, err
	}

	structVal := reflectPkg.New(t).Elem()
	for i, field := range fields {
		fieldVal := structVal.Field(field.Index)

		if values[i] == nil {
			continue
		}

		instanceVal := reflectPkg.ValueOf(values[i])
		if !instanceVal.Type().AssignableTo(fieldVal.Type()) {
			return zero, errTypeMismatch(
				field.Module, values[i],
				fmt.Sprintf("field %s of type %s", field.Name, fieldVal.Type()),
			)
		}
		fieldVal.Set(instanceVal)
	}

	if isPtr {
		return structVal.Addr().Interface().(T), nil
	}
	return structVal.Interface().(T), nil
}
