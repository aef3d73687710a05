package transcoder

import (
	"sync"
)

// Registry maps descriptors to converters.
// Scalar and opaque converters are precomputed; composite converters are
// built on first use around recursively obtained inner converters and cached.
type Registry struct {
	scalars map[TypeKind]Converter
	named   sync.Map // name -> Converter
	cache   sync.Map // descriptor string -> Converter
}

// NewRegistry creates a registry with all built-in converters.
func NewRegistry() *Registry {
	r := &Registry{
		scalars: map[TypeKind]Converter{
			KindInt:            numberConverter{t: Int},
			KindLong:           numberConverter{t: Long},
			KindFloat:          numberConverter{t: Float},
			KindDouble:         numberConverter{t: Double},
			KindBoolean:        booleanConverter{},
			KindString:         stringConverter{},
			KindAny:            anyConverter{},
			KindSharedObjectID: sharedObjectConverter{},
			KindViewTag:        viewTagConverter{},
			KindRawArray:       rawArrayConverter{},
			KindRawMap:         rawMapConverter{},
		},
	}
	for _, t := range []Type{ValueType, ObjectType, FunctionType, TypedArrayType, ArrayBufferType} {
		r.scalars[t.Kind()] = opaqueConverter{t: t}
	}
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// RegisterNamed installs a converter for Unknown{Name: name} descriptors.
func (r *Registry) RegisterNamed(name string, c Converter) {
	r.named.Store(name, c)
}

// Obtain returns the converter for t. It never fails: descriptors without a
// converter get one that fails at conversion time.
func (r *Registry) Obtain(t Type) Converter {
	if t == nil {
		return unknownConverter{t: Unknown{}}
	}
	switch v := t.(type) {
	case Scalar, Opaque:
		if c, ok := r.scalars[t.Kind()]; ok {
			return c
		}
		return unknownConverter{t: t}
	case Unknown:
		if c, ok := r.named.Load(v.Name); ok {
			return c.(Converter)
		}
		return unknownConverter{t: t}
	}

	key := t.String()
	if cached, ok := r.cache.Load(key); ok {
		return cached.(Converter)
	}

	c := r.build(t)
	actual, _ := r.cache.LoadOrStore(key, c)
	return actual.(Converter)
}

// ObtainAll returns converters for ts in order.
func (r *Registry) ObtainAll(ts []Type) []Converter {
	out := make([]Converter, len(ts))
	for i, t := range ts {
		out[i] = r.Obtain(t)
	}
	return out
}

func (r *Registry) build(t Type) Converter {
	switch v := t.(type) {
	case Array:
		return &arrayConverter{t: v, elem: r.Obtain(v.Elem)}
	case List:
		return &arrayConverter{t: v, elem: r.Obtain(v.Elem), list: true}
	case Map:
		return &mapConverter{t: v, elem: r.Obtain(v.Elem)}
	case Nullable:
		return &nullableConverter{t: v, elem: r.Obtain(v.Elem)}
	case Poly:
		return &polyConverter{t: v, inner: r.ObtainAll(v.Types)}
	case Record:
		fields := make([]recordField, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = recordField{field: f, conv: r.Obtain(f.Type)}
		}
		return &recordConverter{t: v, fields: fields}
	default:
		return unknownConverter{t: t}
	}
}
