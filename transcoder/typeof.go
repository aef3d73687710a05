package transcoder

import (
	"reflect"
	"strings"

	"github.com/dop251/goja"
)

// SharedHost is implemented by host values that cross the boundary by identity.
type SharedHost interface {
	SharedObjectID() uint64
}

var (
	reflectTypeValue      = reflect.TypeOf((*goja.Value)(nil)).Elem()
	reflectTypeObject     = reflect.TypeOf((*goja.Object)(nil))
	reflectTypeFunction   = reflect.TypeOf(Function{})
	reflectTypeTypedArray = reflect.TypeOf(TypedArray{})
	reflectTypeViewTag    = reflect.TypeOf(ViewTag(0))
	reflectTypeShared     = reflect.TypeOf((*SharedHost)(nil)).Elem()
	reflectTypeAnySlice   = reflect.TypeOf([]any(nil))
)

// TypeOf derives the descriptor for a Go parameter type.
func TypeOf(t reflect.Type) Type {
	return typeOf(t, map[reflect.Type]bool{})
}

func typeOf(t reflect.Type, seen map[reflect.Type]bool) Type {
	if t == nil {
		return Unknown{}
	}

	switch t {
	case reflectTypeValue:
		return ValueType
	case reflectTypeObject:
		return ObjectType
	case reflectTypeFunction:
		return FunctionType
	case reflectTypeTypedArray:
		return TypedArrayType
	case reflectTypeBytes:
		return ArrayBufferType
	case reflectTypeViewTag:
		return ViewTagType
	case reflectTypeAnySlice:
		return RawArray
	case reflectTypeMap:
		return RawMap
	}

	if t.Implements(reflectTypeShared) && t.Kind() != reflect.Interface {
		return SharedObjectID
	}

	switch t.Kind() {
	case reflect.Bool:
		return Boolean
	case reflect.String:
		return String
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return Int
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return Long
	case reflect.Float32:
		return Float
	case reflect.Float64:
		return Double
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return Any
		}
	case reflect.Pointer:
		return Nullable{Elem: typeOf(t.Elem(), seen)}
	case reflect.Slice, reflect.Array:
		return Array{Elem: typeOf(t.Elem(), seen)}
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			return Map{Elem: typeOf(t.Elem(), seen)}
		}
	case reflect.Struct:
		if seen[t] {
			return Unknown{Name: t.String()}
		}
		seen[t] = true
		defer delete(seen, t)
		return recordOf(t, seen)
	}

	return Unknown{Name: t.String()}
}

func recordOf(t reflect.Type, seen map[reflect.Type]bool) Type {
	rec := Record{Name: t.Name()}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, skip := fieldName(f)
		if skip {
			continue
		}
		key := f.Tag.Get("key")
		if key == "" {
			key = name
		}
		// fields keep their zero value when absent unless tagged required:"true"
		required := strings.EqualFold(f.Tag.Get("required"), "true")
		rec.Fields = append(rec.Fields, Field{
			Name:     name,
			Key:      key,
			Type:     typeOf(f.Type, seen),
			Required: required,
		})
	}
	return rec
}
