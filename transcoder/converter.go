package transcoder

import (
	"math"
	"reflect"
	"strconv"

	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
)

// Converter turns a script value into the host representation of one descriptor.
// Converters are stateless and shared across calls and runtimes.
type Converter interface {
	// CanConvert reports whether Convert would succeed for v.
	CanConvert(env Env, v goja.Value) bool

	// Convert returns the canonical host value for v.
	Convert(env Env, v goja.Value) (any, error)

	// Type returns the descriptor this converter serves.
	Type() Type
}

const maxSafeInteger = 1<<53 - 1

var (
	reflectTypeMap         = reflect.TypeOf(map[string]any(nil))
	reflectTypeArrayBuffer = reflect.TypeOf(goja.ArrayBuffer{})
)

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// Stringify returns the script string form of v, falling back to its class
// name when toString throws.
func Stringify(v goja.Value) (s string) {
	if v == nil {
		return "undefined"
	}
	defer func() {
		if recover() != nil {
			if obj, ok := v.(*goja.Object); ok {
				s = "[object " + obj.ClassName() + "]"
			} else {
				s = "<unprintable>"
			}
		}
	}()
	return v.String()
}

func conversionError(t Type, v goja.Value) *errors.Error {
	return errors.Conversion(nil, t.String(), v, Stringify(v))
}

// prependPath adds an outer path segment to a nested conversion error.
func prependPath(err error, seg string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append([]string{seg}, e.Path...)
		return e
	}
	return err
}

func integral(v goja.Value) (float64, bool) {
	if !goja.IsNumber(v) {
		return 0, false
	}
	f := v.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return f, true
}

func isArray(v goja.Value) (*goja.Object, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil, false
	}
	return obj, true
}

func isPlainObject(v goja.Value) (*goja.Object, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Object" {
		return nil, false
	}
	if obj.ExportType() != reflectTypeMap {
		return nil, false
	}
	if _, fn := goja.AssertFunction(obj); fn {
		return nil, false
	}
	return obj, true
}

func arrayLength(obj *goja.Object) int {
	return int(obj.Get("length").ToInteger())
}

// numberConverter serves Int, Long, Float and Double.
type numberConverter struct {
	t Type
}

func (c numberConverter) Type() Type { return c.t }

func (c numberConverter) CanConvert(_ Env, v goja.Value) bool {
	switch c.t.Kind() {
	case KindInt:
		f, ok := integral(v)
		return ok && f >= math.MinInt32 && f <= math.MaxInt32
	case KindLong:
		f, ok := integral(v)
		return ok && f >= -maxSafeInteger && f <= maxSafeInteger
	case KindFloat:
		if !goja.IsNumber(v) {
			return false
		}
		f := v.ToFloat()
		return math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) <= math.MaxFloat32
	default:
		return goja.IsNumber(v)
	}
}

func (c numberConverter) Convert(env Env, v goja.Value) (any, error) {
	if !c.CanConvert(env, v) {
		if goja.IsNumber(v) {
			return nil, errors.Overflow(errors.PhaseConvert, nil, Stringify(v), c.t.String())
		}
		return nil, conversionError(c.t, v)
	}
	switch c.t.Kind() {
	case KindInt:
		return int32(v.ToInteger()), nil
	case KindLong:
		return v.ToInteger(), nil
	case KindFloat:
		return float32(v.ToFloat()), nil
	default:
		return v.ToFloat(), nil
	}
}

type booleanConverter struct{}

func (booleanConverter) Type() Type { return Boolean }

func (booleanConverter) CanConvert(_ Env, v goja.Value) bool {
	if v == nil {
		return false
	}
	_, ok := v.Export().(bool)
	return ok
}

func (c booleanConverter) Convert(env Env, v goja.Value) (any, error) {
	if !c.CanConvert(env, v) {
		return nil, conversionError(Boolean, v)
	}
	return v.ToBoolean(), nil
}

type stringConverter struct{}

func (stringConverter) Type() Type { return String }

func (stringConverter) CanConvert(_ Env, v goja.Value) bool {
	return v != nil && goja.IsString(v)
}

func (c stringConverter) Convert(env Env, v goja.Value) (any, error) {
	if !c.CanConvert(env, v) {
		return nil, conversionError(String, v)
	}
	return v.String(), nil
}

// anyConverter exports any defined value; null becomes nil.
type anyConverter struct{}

func (anyConverter) Type() Type { return Any }

func (anyConverter) CanConvert(_ Env, v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v)
}

func (c anyConverter) Convert(env Env, v goja.Value) (any, error) {
	if !c.CanConvert(env, v) {
		return nil, conversionError(Any, v)
	}
	if goja.IsNull(v) {
		return nil, nil
	}
	if host, ok := env.SharedObject(v); ok {
		if _, isObj := v.(*goja.Object); isObj {
			return host, nil
		}
	}
	return v.Export(), nil
}

type sharedObjectConverter struct{}

func (sharedObjectConverter) Type() Type { return SharedObjectID }

func (sharedObjectConverter) CanConvert(env Env, v goja.Value) bool {
	if isNullish(v) {
		return false
	}
	_, ok := env.SharedObject(v)
	return ok
}

func (sharedObjectConverter) Convert(env Env, v goja.Value) (any, error) {
	if isNullish(v) {
		return nil, conversionError(SharedObjectID, v)
	}
	host, ok := env.SharedObject(v)
	if !ok {
		return nil, conversionError(SharedObjectID, v)
	}
	return host, nil
}

// viewTagConverter accepts a numeric tag or an object carrying __nativeTag.
type viewTagConverter struct{}

func (viewTagConverter) Type() Type { return ViewTagType }

func (viewTagConverter) tag(v goja.Value) (ViewTag, bool) {
	if obj, ok := v.(*goja.Object); ok {
		v = obj.Get("__nativeTag")
		if v == nil {
			return 0, false
		}
	}
	f, ok := integral(v)
	if !ok || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return ViewTag(f), true
}

func (c viewTagConverter) CanConvert(_ Env, v goja.Value) bool {
	_, ok := c.tag(v)
	return ok
}

func (c viewTagConverter) Convert(_ Env, v goja.Value) (any, error) {
	tag, ok := c.tag(v)
	if !ok {
		return nil, conversionError(ViewTagType, v)
	}
	return tag, nil
}

type rawArrayConverter struct{}

func (rawArrayConverter) Type() Type { return RawArray }

func (rawArrayConverter) CanConvert(_ Env, v goja.Value) bool {
	_, ok := isArray(v)
	return ok
}

func (rawArrayConverter) Convert(_ Env, v goja.Value) (any, error) {
	obj, ok := isArray(v)
	if !ok {
		return nil, conversionError(RawArray, v)
	}
	n := arrayLength(obj)
	out := make([]any, n)
	for i := 0; i < n; i++ {
		out[i] = obj.Get(strconv.Itoa(i)).Export()
	}
	return out, nil
}

type rawMapConverter struct{}

func (rawMapConverter) Type() Type { return RawMap }

func (rawMapConverter) CanConvert(_ Env, v goja.Value) bool {
	_, ok := isPlainObject(v)
	return ok
}

func (rawMapConverter) Convert(_ Env, v goja.Value) (any, error) {
	obj, ok := isPlainObject(v)
	if !ok {
		return nil, conversionError(RawMap, v)
	}
	keys := obj.Keys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = obj.Get(k).Export()
	}
	return out, nil
}

// opaqueConverter passes engine handles through.
type opaqueConverter struct {
	t Type
}

func (c opaqueConverter) Type() Type { return c.t }

func (c opaqueConverter) CanConvert(_ Env, v goja.Value) bool {
	if v == nil {
		return false
	}
	switch c.t.Kind() {
	case KindValue:
		return true
	case KindObject:
		_, ok := v.(*goja.Object)
		return ok
	case KindFunction:
		_, ok := goja.AssertFunction(v)
		return ok
	case KindTypedArray:
		obj, ok := v.(*goja.Object)
		if !ok {
			return false
		}
		et := obj.ExportType()
		return et != nil && et.Kind() == reflect.Slice && et.Elem().Kind() != reflect.Interface
	case KindArrayBuffer:
		obj, ok := v.(*goja.Object)
		if !ok {
			return false
		}
		et := obj.ExportType()
		return et == reflectTypeArrayBuffer || et == reflect.TypeOf([]byte(nil))
	}
	return false
}

func (c opaqueConverter) Convert(env Env, v goja.Value) (any, error) {
	if !c.CanConvert(env, v) {
		return nil, conversionError(c.t, v)
	}
	switch c.t.Kind() {
	case KindObject:
		return v.(*goja.Object), nil
	case KindFunction:
		call, _ := goja.AssertFunction(v)
		return Function{Value: v.(*goja.Object), Call: call}, nil
	case KindTypedArray:
		obj := v.(*goja.Object)
		return TypedArray{Object: obj, Data: obj.Export(), Type: typedArrayName(obj)}, nil
	case KindArrayBuffer:
		switch b := v.Export().(type) {
		case goja.ArrayBuffer:
			return b.Bytes(), nil
		case []byte:
			return b, nil
		}
		return nil, conversionError(c.t, v)
	default:
		return v, nil
	}
}

func typedArrayName(obj *goja.Object) string {
	if ctor, ok := obj.Get("constructor").(*goja.Object); ok {
		if name := ctor.Get("name"); name != nil {
			return name.String()
		}
	}
	return obj.ExportType().String()
}

type arrayConverter struct {
	t    Type
	elem Converter
	list bool
}

func (c *arrayConverter) Type() Type { return c.t }

func (c *arrayConverter) CanConvert(env Env, v goja.Value) bool {
	obj, ok := isArray(v)
	if !ok {
		return c.list && c.elem.CanConvert(env, v)
	}
	n := arrayLength(obj)
	for i := 0; i < n; i++ {
		if !c.elem.CanConvert(env, obj.Get(strconv.Itoa(i))) {
			return false
		}
	}
	return true
}

func (c *arrayConverter) Convert(env Env, v goja.Value) (any, error) {
	obj, ok := isArray(v)
	if !ok {
		if c.list && c.elem.CanConvert(env, v) {
			item, err := c.elem.Convert(env, v)
			if err != nil {
				return nil, prependPath(err, "0")
			}
			return []any{item}, nil
		}
		return nil, conversionError(c.t, v)
	}
	n := arrayLength(obj)
	out := make([]any, n)
	for i := 0; i < n; i++ {
		item, err := c.elem.Convert(env, obj.Get(strconv.Itoa(i)))
		if err != nil {
			return nil, prependPath(err, strconv.Itoa(i))
		}
		out[i] = item
	}
	return out, nil
}

type mapConverter struct {
	t    Type
	elem Converter
}

func (c *mapConverter) Type() Type { return c.t }

func (c *mapConverter) CanConvert(env Env, v goja.Value) bool {
	obj, ok := isPlainObject(v)
	if !ok {
		return false
	}
	for _, k := range obj.Keys() {
		if !c.elem.CanConvert(env, obj.Get(k)) {
			return false
		}
	}
	return true
}

func (c *mapConverter) Convert(env Env, v goja.Value) (any, error) {
	obj, ok := isPlainObject(v)
	if !ok {
		return nil, conversionError(c.t, v)
	}
	keys := obj.Keys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		item, err := c.elem.Convert(env, obj.Get(k))
		if err != nil {
			return nil, prependPath(err, k)
		}
		out[k] = item
	}
	return out, nil
}

type recordField struct {
	conv  Converter
	field Field
}

type recordConverter struct {
	t      Record
	fields []recordField
}

func (c *recordConverter) Type() Type { return c.t }

func (c *recordConverter) CanConvert(env Env, v goja.Value) bool {
	obj, ok := isPlainObject(v)
	if !ok {
		return false
	}
	for _, f := range c.fields {
		fv := obj.Get(f.field.ScriptKey())
		if isNullish(fv) {
			if f.field.Required && !f.conv.CanConvert(env, fv) {
				return false
			}
			continue
		}
		if !f.conv.CanConvert(env, fv) {
			return false
		}
	}
	return true
}

func (c *recordConverter) Convert(env Env, v goja.Value) (any, error) {
	obj, ok := isPlainObject(v)
	if !ok {
		return nil, conversionError(c.t, v)
	}
	out := make(map[string]any, len(c.fields))
	for _, f := range c.fields {
		key := f.field.ScriptKey()
		fv := obj.Get(key)
		if isNullish(fv) && !f.conv.CanConvert(env, fv) {
			if f.field.Required {
				return nil, errors.FieldMissing(errors.PhaseConvert, []string{key}, key)
			}
			continue
		}
		item, err := f.conv.Convert(env, fv)
		if err != nil {
			return nil, prependPath(err, key)
		}
		out[f.field.Name] = item
	}
	return out, nil
}

type nullableConverter struct {
	t    Type
	elem Converter
}

func (c *nullableConverter) Type() Type { return c.t }

func (c *nullableConverter) CanConvert(env Env, v goja.Value) bool {
	return isNullish(v) || c.elem.CanConvert(env, v)
}

func (c *nullableConverter) Convert(env Env, v goja.Value) (any, error) {
	if isNullish(v) {
		return nil, nil
	}
	return c.elem.Convert(env, v)
}

type polyConverter struct {
	t     Type
	inner []Converter
}

func (c *polyConverter) Type() Type { return c.t }

func (c *polyConverter) CanConvert(env Env, v goja.Value) bool {
	for _, in := range c.inner {
		if in.CanConvert(env, v) {
			return true
		}
	}
	return false
}

func (c *polyConverter) Convert(env Env, v goja.Value) (any, error) {
	for _, in := range c.inner {
		if in.CanConvert(env, v) {
			return in.Convert(env, v)
		}
	}
	return nil, conversionError(c.t, v)
}

// unknownConverter matches everything and converts nothing, so that a
// missing converter surfaces at call time rather than at registration.
type unknownConverter struct {
	t Type
}

func (c unknownConverter) Type() Type { return c.t }

func (unknownConverter) CanConvert(Env, goja.Value) bool { return true }

func (c unknownConverter) Convert(Env, goja.Value) (any, error) {
	return nil, errors.UnsupportedConversion(c.t.String())
}
