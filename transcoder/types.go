package transcoder

import (
	"strings"

	"github.com/wippyai/jsbridge/transcoder/internal/types"
)

type TypeKind = types.Kind

const (
	KindInt            = types.KindInt
	KindLong           = types.KindLong
	KindFloat          = types.KindFloat
	KindDouble         = types.KindDouble
	KindBoolean        = types.KindBoolean
	KindString         = types.KindString
	KindAny            = types.KindAny
	KindSharedObjectID = types.KindSharedObjectID
	KindViewTag        = types.KindViewTag
	KindRawArray       = types.KindRawArray
	KindRawMap         = types.KindRawMap
	KindValue          = types.KindValue
	KindObject         = types.KindObject
	KindFunction       = types.KindFunction
	KindTypedArray     = types.KindTypedArray
	KindArrayBuffer    = types.KindArrayBuffer
	KindArray          = types.KindArray
	KindList           = types.KindList
	KindMap            = types.KindMap
	KindNullable       = types.KindNullable
	KindPoly           = types.KindPoly
	KindRecord         = types.KindRecord
	KindUnknown        = types.KindUnknown
)

// Type describes the host representation expected for a script value.
// The set of implementations is closed.
type Type interface {
	Kind() TypeKind
	String() string
	isType()
}

// Scalar is a descriptor converted by a singleton converter.
type Scalar struct {
	K TypeKind
}

func (s Scalar) Kind() TypeKind { return s.K }
func (s Scalar) String() string { return s.K.String() }
func (Scalar) isType() {}

// Opaque passes engine handles through unconverted.
type Opaque struct {
	K TypeKind
}

func (o Opaque) Kind() TypeKind { return o.K }
func (o Opaque) String() string { return o.K.String() }
func (Opaque) isType() {}

// Array requires a script array whose elements all convert to Elem.
type Array struct {
	Elem Type
}

func (Array) Kind() TypeKind { return KindArray }
func (a Array) String() string { return "array<" + typeString(a.Elem) + ">" }
func (Array) isType() {}

// List is Array that also accepts a single element and wraps it.
type List struct {
	Elem Type
}

func (List) Kind() TypeKind { return KindList }
func (l List) String() string { return "list<" + typeString(l.Elem) + ">" }
func (List) isType() {}

// Map requires a plain object whose values all convert to Elem.
type Map struct {
	Elem Type
}

func (Map) Kind() TypeKind { return KindMap }
func (m Map) String() string { return "map<" + typeString(m.Elem) + ">" }
func (Map) isType() {}

// Nullable accepts null and undefined as nil.
type Nullable struct {
	Elem Type
}

func (Nullable) Kind() TypeKind { return KindNullable }
func (n Nullable) String() string { return "nullable<" + typeString(n.Elem) + ">" }
func (Nullable) isType() {}

// Poly accepts the first of Types that can convert the value, in order.
type Poly struct {
	Types []Type
}

func (Poly) Kind() TypeKind { return KindPoly }
func (p Poly) String() string {
	parts := make([]string, len(p.Types))
	for i, t := range p.Types {
		parts[i] = typeString(t)
	}
	return "poly<" + strings.Join(parts, "|") + ">"
}
func (Poly) isType() {}

// Field is a single record field.
// Key is the script property name and defaults to Name.
type Field struct {
	Type     Type
	Name     string
	Key      string
	Required bool
}

// ScriptKey returns the property name read from the script object.
func (f Field) ScriptKey() string {
	if f.Key != "" {
		return f.Key
	}
	return f.Name
}

// Record converts a plain object field by field into map[string]any keyed by Name.
type Record struct {
	Name   string
	Fields []Field
}

func (Record) Kind() TypeKind { return KindRecord }
func (r Record) String() string {
	var b strings.Builder
	b.WriteString("record")
	if r.Name != "" {
		b.WriteByte(' ')
		b.WriteString(r.Name)
	}
	b.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.ScriptKey())
		if f.Name != "" && f.Name != f.ScriptKey() {
			b.WriteByte('=')
			b.WriteString(f.Name)
		}
		if !f.Required {
			b.WriteByte('?')
		}
		b.WriteByte(':')
		b.WriteString(typeString(f.Type))
	}
	b.WriteByte('}')
	return b.String()
}
func (Record) isType() {}

// Unknown names a host type that has no converter.
type Unknown struct {
	Name string
}

func (Unknown) Kind() TypeKind { return KindUnknown }
func (u Unknown) String() string {
	if u.Name == "" {
		return "unknown"
	}
	return "unknown<" + u.Name + ">"
}
func (Unknown) isType() {}

func typeString(t Type) string {
	if t == nil {
		return "unknown"
	}
	return t.String()
}

var (
	Int            Type = Scalar{KindInt}
	Long           Type = Scalar{KindLong}
	Float          Type = Scalar{KindFloat}
	Double         Type = Scalar{KindDouble}
	Boolean        Type = Scalar{KindBoolean}
	String         Type = Scalar{KindString}
	Any            Type = Scalar{KindAny}
	SharedObjectID Type = Scalar{KindSharedObjectID}
	ViewTagType    Type = Scalar{KindViewTag}
	RawArray       Type = Scalar{KindRawArray}
	RawMap         Type = Scalar{KindRawMap}

	ValueType       Type = Opaque{KindValue}
	ObjectType      Type = Opaque{KindObject}
	FunctionType    Type = Opaque{KindFunction}
	TypedArrayType  Type = Opaque{KindTypedArray}
	ArrayBufferType Type = Opaque{KindArrayBuffer}
)

func ArrayOf(elem Type) Type { return Array{Elem: elem} }
func ListOf(elem Type) Type { return List{Elem: elem} }
func MapOf(elem Type) Type { return Map{Elem: elem} }
func NullableOf(elem Type) Type { return Nullable{Elem: elem} }
func PolyOf(ts ...Type) Type { return Poly{Types: ts} }
