package transcoder

import (
	"math"
	"reflect"
	"strconv"

	"github.com/wippyai/jsbridge/errors"
)

// Coerce converts a canonical host value into a value of Go type t.
// Supports: numeric widening/narrowing with range checks, []any to typed
// slices, map[string]any to typed maps and structs (json tags), pointers.
func Coerce(v any, t reflect.Type) (reflect.Value, error) {
	return coerce(v, t, nil)
}

// CoerceArgs converts canonical arguments to the parameter types of fn,
// starting at parameter offset.
func CoerceArgs(args []any, fn reflect.Type, offset int) ([]reflect.Value, error) {
	out := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := fn.In(offset + i)
		rv, err := coerce(arg, pt, []string{strconv.Itoa(i)})
		if err != nil {
			return nil, err
		}
		out[i] = rv
	}
	return out, nil
}

func coerce(v any, t reflect.Type, path []string) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}

	vt := reflect.TypeOf(v)
	if vt.AssignableTo(t) {
		return reflect.ValueOf(v), nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem, err := coerce(v, t.Elem(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, ok := toFloat(v)
		if !ok {
			break
		}
		out := reflect.New(t).Elem()
		if f != math.Trunc(f) || out.OverflowInt(int64(f)) {
			return reflect.Value{}, errors.Overflow(errors.PhaseCall, path, v, t.String())
		}
		out.SetInt(int64(f))
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f, ok := toFloat(v)
		if !ok {
			break
		}
		out := reflect.New(t).Elem()
		if f < 0 || f != math.Trunc(f) || out.OverflowUint(uint64(f)) {
			return reflect.Value{}, errors.Overflow(errors.PhaseCall, path, v, t.String())
		}
		out.SetUint(uint64(f))
		return out, nil
	case reflect.Float32, reflect.Float64:
		f, ok := toFloat(v)
		if !ok {
			break
		}
		out := reflect.New(t).Elem()
		out.SetFloat(f)
		return out, nil
	case reflect.Slice:
		items, ok := v.([]any)
		if !ok {
			break
		}
		out := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			ev, err := coerce(item, t.Elem(), appendPath(path, strconv.Itoa(i)))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	case reflect.Map:
		m, ok := v.(map[string]any)
		if !ok || t.Key().Kind() != reflect.String {
			break
		}
		out := reflect.MakeMapWithSize(t, len(m))
		for k, item := range m {
			ev, err := coerce(item, t.Elem(), appendPath(path, k))
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
		}
		return out, nil
	case reflect.Struct:
		m, ok := v.(map[string]any)
		if !ok {
			break
		}
		return coerceStruct(m, t, path)
	}

	if vt.ConvertibleTo(t) && vt.Kind() == t.Kind() {
		return reflect.ValueOf(v).Convert(t), nil
	}

	return reflect.Value{}, errors.TypeMismatch(errors.PhaseCall, path, vt.String(), t.String())
}

func coerceStruct(m map[string]any, t reflect.Type, path []string) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, skip := fieldName(f)
		if skip {
			continue
		}
		item, ok := m[name]
		if !ok {
			item, ok = m[f.Name]
		}
		if !ok {
			continue
		}
		fv, err := coerce(item, f.Type, appendPath(path, name))
		if err != nil {
			return reflect.Value{}, err
		}
		out.Field(i).Set(fv)
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case ViewTag:
		return float64(n), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
