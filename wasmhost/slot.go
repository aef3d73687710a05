package wasmhost

import (
	"fmt"
	"reflect"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

// slotKind is how one core value is read and written.
type slotKind uint8

const (
	slotNumber slotKind = iota
	slotBool
	slotChar
)

// slot maps one core value to a script descriptor and Go type.
type slot struct {
	goType reflect.Type
	desc   transcoder.Type
	vt     api.ValueType
	kind   slotKind
}

func coreSlot(vt api.ValueType) (slot, error) {
	switch vt {
	case api.ValueTypeI32:
		return slot{vt: vt, desc: transcoder.Int, goType: reflect.TypeFor[int32]()}, nil
	case api.ValueTypeI64:
		return slot{vt: vt, desc: transcoder.Long, goType: reflect.TypeFor[int64]()}, nil
	case api.ValueTypeF32:
		return slot{vt: vt, desc: transcoder.Float, goType: reflect.TypeFor[float32]()}, nil
	case api.ValueTypeF64:
		return slot{vt: vt, desc: transcoder.Double, goType: reflect.TypeFor[float64]()}, nil
	}
	return slot{}, errors.New(errors.PhaseLoad, errors.KindUnsupportedConversion).
		Detail("unsupported core value type %s", api.ValueTypeName(vt)).
		Build()
}

// witSlot maps a WIT type onto the core value type vt it lowers to.
func witSlot(t wit.Type, vt api.ValueType) (slot, error) {
	var s slot
	switch t.(type) {
	case wit.Bool:
		s = slot{vt: api.ValueTypeI32, desc: transcoder.Boolean, goType: reflect.TypeFor[bool](), kind: slotBool}
	case wit.Char:
		s = slot{vt: api.ValueTypeI32, desc: transcoder.String, goType: reflect.TypeFor[string](), kind: slotChar}
	case wit.S8:
		s = slot{vt: api.ValueTypeI32, desc: transcoder.Int, goType: reflect.TypeFor[int8]()}
	case wit.U8:
		s = slot{vt: api.ValueTypeI32, desc: transcoder.Int, goType: reflect.TypeFor[uint8]()}
	case wit.S16:
		s = slot{vt: api.ValueTypeI32, desc: transcoder.Int, goType: reflect.TypeFor[int16]()}
	case wit.U16:
		s = slot{vt: api.ValueTypeI32, desc: transcoder.Int, goType: reflect.TypeFor[uint16]()}
	case wit.S32:
		s = slot{vt: api.ValueTypeI32, desc: transcoder.Int, goType: reflect.TypeFor[int32]()}
	case wit.U32:
		s = slot{vt: api.ValueTypeI32, desc: transcoder.Long, goType: reflect.TypeFor[uint32]()}
	case wit.S64:
		s = slot{vt: api.ValueTypeI64, desc: transcoder.Long, goType: reflect.TypeFor[int64]()}
	case wit.U64:
		s = slot{vt: api.ValueTypeI64, desc: transcoder.Long, goType: reflect.TypeFor[uint64]()}
	case wit.F32:
		s = slot{vt: api.ValueTypeF32, desc: transcoder.Float, goType: reflect.TypeFor[float32]()}
	case wit.F64:
		s = slot{vt: api.ValueTypeF64, desc: transcoder.Double, goType: reflect.TypeFor[float64]()}
	default:
		return slot{}, errors.New(errors.PhaseLoad, errors.KindUnsupportedConversion).
			GoType(fmt.Sprintf("%T", t)).
			Detail("only scalar WIT types can cross a core module boundary").
			Build()
	}
	if s.vt != vt {
		return slot{}, errors.New(errors.PhaseLoad, errors.KindTypeMismatch).
			GoType(fmt.Sprintf("%T", t)).
			Detail("WIT type lowers to %s, export uses %s", api.ValueTypeName(s.vt), api.ValueTypeName(vt)).
			Build()
	}
	return s, nil
}

// encode converts a canonical argument into a core value.
func (s slot) encode(v any) (uint64, error) {
	switch s.kind {
	case slotBool:
		if b, _ := v.(bool); b {
			return 1, nil
		}
		return 0, nil
	case slotChar:
		str, _ := v.(string)
		runes := []rune(str)
		if len(runes) != 1 {
			return 0, errors.New(errors.PhaseCall, errors.KindConversion).
				Descriptor("char").
				Value(v, str).
				Build()
		}
		return api.EncodeI32(int32(runes[0])), nil
	}

	rv, err := transcoder.Coerce(v, s.goType)
	if err != nil {
		return 0, err
	}
	switch s.vt {
	case api.ValueTypeI32:
		if rv.CanUint() {
			return api.EncodeU32(uint32(rv.Uint())), nil
		}
		return api.EncodeI32(int32(rv.Int())), nil
	case api.ValueTypeI64:
		if rv.CanUint() {
			return rv.Uint(), nil
		}
		return api.EncodeI64(rv.Int()), nil
	case api.ValueTypeF32:
		return api.EncodeF32(float32(rv.Float())), nil
	default:
		return api.EncodeF64(rv.Float()), nil
	}
}

// decode converts a core result into a host value.
func (s slot) decode(raw uint64) any {
	switch s.kind {
	case slotBool:
		return api.DecodeI32(raw) != 0
	case slotChar:
		return string(rune(api.DecodeI32(raw)))
	}
	switch s.goType.Kind() {
	case reflect.Int8:
		return int8(api.DecodeI32(raw))
	case reflect.Uint8:
		return uint8(api.DecodeU32(raw))
	case reflect.Int16:
		return int16(api.DecodeI32(raw))
	case reflect.Uint16:
		return uint16(api.DecodeU32(raw))
	case reflect.Int32:
		return api.DecodeI32(raw)
	case reflect.Uint32:
		return api.DecodeU32(raw)
	case reflect.Int64:
		return int64(raw)
	case reflect.Uint64:
		return raw
	case reflect.Float32:
		return api.DecodeF32(raw)
	default:
		return api.DecodeF64(raw)
	}
}
