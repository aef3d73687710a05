package transcoder

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
)

var (
	reflectTypeError = reflect.TypeOf((*error)(nil)).Elem()
	reflectTypeBytes = reflect.TypeOf([]byte(nil))
)

// Lower converts a host value into a script value.
// It must run on the goroutine that owns env's runtime.
func Lower(env Env, v any) (goja.Value, error) {
	return lower(env, v, nil)
}

// NewError creates a script Error carrying a code property.
func NewError(vm *goja.Runtime, code, msg string) *goja.Object {
	var obj *goja.Object
	if ctor, ok := vm.Get("Error").(*goja.Object); ok {
		obj, _ = vm.New(ctor, vm.ToValue(msg))
	}
	if obj == nil {
		obj = vm.NewObject()
		_ = obj.Set("message", msg)
	}
	if code != "" {
		_ = obj.Set("code", code)
	}
	return obj
}

// ErrorValue creates the script Error thrown for err.
func ErrorValue(vm *goja.Runtime, err error) *goja.Object {
	code, msg, _ := errors.Classify(err)
	return NewError(vm, code, msg)
}

func lower(env Env, v any, path []string) (goja.Value, error) {
	vm := env.Runtime()

	switch x := v.(type) {
	case nil:
		return goja.Null(), nil
	case undefined:
		return goja.Undefined(), nil
	case goja.Value:
		return x, nil
	case Lowerable:
		return x.LowerJS(env)
	case ViewTag:
		return vm.ToValue(int32(x)), nil
	case bool, string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return vm.ToValue(x), nil
	case []byte:
		return newUint8Array(vm, x)
	case goja.ArrayBuffer:
		return vm.ToValue(x), nil
	}

	if val, ok, err := env.LowerShared(v); ok || err != nil {
		return val, err
	}

	if err, ok := v.(error); ok {
		return ErrorValue(vm, err), nil
	}

	return lowerReflect(env, reflect.ValueOf(v), path)
}

func lowerReflect(env Env, rv reflect.Value, path []string) (goja.Value, error) {
	vm := env.Runtime()

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return goja.Null(), nil
		}
		if rv.Kind() == reflect.Pointer && rv.Type().Implements(reflectTypeError) {
			return ErrorValue(vm, rv.Interface().(error)), nil
		}
		return lower(env, rv.Elem().Interface(), path)
	case reflect.Bool:
		return vm.ToValue(rv.Bool()), nil
	case reflect.String:
		return vm.ToValue(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vm.ToValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return vm.ToValue(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return vm.ToValue(rv.Float()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return goja.Null(), nil
		}
		if rv.Type().ConvertibleTo(reflectTypeBytes) && rv.Type().Elem().Kind() == reflect.Uint8 {
			return newUint8Array(vm, rv.Bytes())
		}
		return lowerList(env, rv, path)
	case reflect.Array:
		return lowerList(env, rv, path)
	case reflect.Map:
		if rv.IsNil() {
			return goja.Null(), nil
		}
		if rv.Type().Key().Kind() != reflect.String {
			return nil, errors.TypeMismatch(errors.PhaseLower, path, rv.Type().String(), "map<string, T>")
		}
		return lowerMap(env, rv, path)
	case reflect.Struct:
		return lowerStruct(env, rv, path)
	case reflect.Func:
		if rv.IsNil() {
			return goja.Null(), nil
		}
		return vm.ToValue(rv.Interface()), nil
	}

	return nil, errors.New(errors.PhaseLower, errors.KindTypeMismatch).
		Path(path...).
		GoType(rv.Type().String()).
		Detail("no script representation").
		Build()
}

func lowerList(env Env, rv reflect.Value, path []string) (goja.Value, error) {
	n := rv.Len()
	items := make([]any, n)
	for i := 0; i < n; i++ {
		item, err := lower(env, rv.Index(i).Interface(), appendPath(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return env.Runtime().NewArray(items...), nil
}

func lowerMap(env Env, rv reflect.Value, path []string) (goja.Value, error) {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	obj := env.Runtime().NewObject()
	for _, k := range keys {
		name := k.String()
		item, err := lower(env, rv.MapIndex(k).Interface(), appendPath(path, name))
		if err != nil {
			return nil, err
		}
		if err := obj.Set(name, item); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func lowerStruct(env Env, rv reflect.Value, path []string) (goja.Value, error) {
	obj := env.Runtime().NewObject()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitEmpty, skip := fieldName(f)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		item, err := lower(env, fv.Interface(), appendPath(path, name))
		if err != nil {
			return nil, err
		}
		if err := obj.Set(name, item); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// fieldName resolves the script property name from a json tag,
// defaulting to the lowerCamel form of the Go field name.
func fieldName(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = LowerCamel(f.Name)
	}
	return name, strings.Contains(opts, "omitempty"), false
}

func newUint8Array(vm *goja.Runtime, data []byte) (goja.Value, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	ctor, ok := vm.Get("Uint8Array").(*goja.Object)
	if !ok {
		return vm.ToValue(vm.NewArrayBuffer(buf)), nil
	}
	arr, err := vm.New(ctor, vm.ToValue(vm.NewArrayBuffer(buf)))
	if err != nil {
		return nil, err
	}
	return arr, nil
}

func appendPath(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}
