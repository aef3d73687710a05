package types

type Kind uint8

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindBoolean
	KindString
	KindAny
	KindSharedObjectID
	KindViewTag
	KindRawArray
	KindRawMap
	KindValue
	KindObject
	KindFunction
	KindTypedArray
	KindArrayBuffer
	KindArray
	KindList
	KindMap
	KindNullable
	KindPoly
	KindRecord
	KindUnknown
)

var kindNames = [...]string{
	KindInt:            "int",
	KindLong:           "long",
	KindFloat:          "float",
	KindDouble:         "double",
	KindBoolean:        "boolean",
	KindString:         "string",
	KindAny:            "any",
	KindSharedObjectID: "shared-object-id",
	KindViewTag:        "view-tag",
	KindRawArray:       "raw-array",
	KindRawMap:         "raw-map",
	KindValue:          "value",
	KindObject:         "object",
	KindFunction:       "function",
	KindTypedArray:     "typed-array",
	KindArrayBuffer:    "array-buffer",
	KindArray:          "array",
	KindList:           "list",
	KindMap:            "map",
	KindNullable:       "nullable",
	KindPoly:           "poly",
	KindRecord:         "record",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports kinds converted by a precomputed singleton.
func (k Kind) IsScalar() bool {
	return k <= KindRawMap
}

// IsOpaque reports kinds passed through as engine handles.
func (k Kind) IsOpaque() bool {
	return k >= KindValue && k <= KindArrayBuffer
}

// IsNumeric reports scalar kinds backed by a script number.
func (k Kind) IsNumeric() bool {
	return k <= KindDouble
}

// IsComposite reports kinds built around inner descriptors.
func (k Kind) IsComposite() bool {
	return k >= KindArray && k <= KindRecord
}
