package container

import (
	"context"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// callable returns the function to invoke: target itself when method is
// empty, otherwise the method of that name. Definitions may spell Go methods
// with a lower-case first letter ("build" finds Build). Maps of functions
// are accepted as modules of named exports.
func callable(target any, method string) (reflect.Value, error) {
	if target == nil {
		return reflect.Value{}, fmt.Errorf("cannot call a nil target")
	}
	v := reflect.ValueOf(target)
	if method == "" {
		if v.Kind() != reflect.Func {
			return reflect.Value{}, fmt.Errorf("%T is not callable", target)
		}
		return v, nil
	}

	for _, name := range []string{method, exported(method)} {
		if m := v.MethodByName(name); m.IsValid() {
			return m, nil
		}
	}
	if v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String {
		if e := v.MapIndex(reflect.ValueOf(method).Convert(v.Type().Key())); e.IsValid() {
			if e.Kind() == reflect.Interface {
				e = e.Elem()
			}
			if e.Kind() == reflect.Func {
				return e, nil
			}
		}
	}
	return reflect.Value{}, fmt.Errorf("method %q not found on %T", method, target)
}

func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// bindMethod returns the bound method value for "id:method" references.
func bindMethod(instance any, method string) (any, error) {
	fn, err := callable(instance, method)
	if err != nil {
		return nil, err
	}
	return fn.Interface(), nil
}

// invoke calls fn with args. A leading context.Context parameter receives
// ctx unless args already start with a context. Results may be (), (T),
// (error) or (T, error). Panics are returned as errors.
func invoke(ctx context.Context, fn reflect.Value, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	t := fn.Type()
	if t.NumIn() > 0 && t.In(0) == contextType {
		if len(args) == 0 {
			args = []any{ctx}
		} else if _, ok := args[0].(context.Context); !ok {
			args = append([]any{ctx}, args...)
		}
	}

	in, err := convertArgs(t, args)
	if err != nil {
		return nil, err
	}
	return results(fn.Call(in))
}

func convertArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	n := t.NumIn()
	if t.IsVariadic() {
		if len(args) < n-1 {
			return nil, fmt.Errorf("expects at least %d arguments, got %d", n-1, len(args))
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("expects %d arguments, got %d", n, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if t.IsVariadic() && i >= n-1 {
			pt = t.In(n - 1).Elem()
		} else {
			pt = t.In(i)
		}
		v, err := convertValue(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}
	return in, nil
}

// convertValue adapts a resolved value to the parameter type: nil becomes the
// zero value, numbers convert between kinds, []any and map[string]any are
// rebuilt element by element.
func convertValue(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	switch {
	case isNumber(v.Kind()) && isNumber(t.Kind()):
		return v.Convert(t), nil
	case v.Kind() == reflect.String && t.Kind() == reflect.String:
		return v.Convert(t), nil
	case v.Kind() == reflect.Slice && t.Kind() == reflect.Slice:
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := convertValue(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(e)
		}
		return out, nil
	case v.Kind() == reflect.Map && t.Kind() == reflect.Map &&
		v.Type().Key().Kind() == reflect.String && t.Key().Kind() == reflect.String:
		out := reflect.MakeMapWithSize(t, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			e, err := convertValue(iter.Value().Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			out.SetMapIndex(iter.Key().Convert(t.Key()), e)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, t)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func results(out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	if last.Type() == errorType {
		var err error
		if !last.IsNil() {
			err = last.Interface().(error)
		}
		if len(out) == 1 {
			return nil, err
		}
		return valueOf(out[0]), err
	}
	return valueOf(out[0]), nil
}

func valueOf(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}
