// Package transcoder converts values between goja and Go.
//
// Script-to-host conversion is driven by type descriptors. Each callable
// parameter declares a descriptor; the Registry hands back a Converter for it:
//
//	┌──────────────────────────────────────────────────────────────┐
//	│ goja.Value → [Converter] → canonical Go value → [Coerce] → T │
//	│ Go value   → [Lower]     → goja.Value                        │
//	└──────────────────────────────────────────────────────────────┘
//
// # Descriptors
//
//	Descriptor          Canonical host value
//	─────────────────────────────────────────────
//	int                 int32 (integral, int32 range)
//	long                int64 (integral, |v| <= 2^53-1)
//	float / double      float32 / float64
//	boolean / string    bool / string
//	any                 exported value, nil for null
//	shared-object-id    host value paired with the wrapper
//	view-tag            ViewTag
//	raw-array/raw-map   []any / map[string]any
//	value/object        goja.Value / *goja.Object
//	function            Function
//	typed-array         TypedArray
//	array-buffer        []byte
//	array<T>/list<T>    []any
//	map<T>/record{...}  map[string]any
//	nullable<T>         nil or T
//	poly<A|B>           first of A, B that converts
//
// # Converter Rules
//
//   - CanConvert never throws and Convert never coerces: a value that does not
//     fit its descriptor fails with a conversion error naming the value.
//   - Composite CanConvert checks elements deeply, so poly selection is exact.
//   - Nullable passes null and undefined through without consulting its inner
//     converter.
//   - A descriptor without a converter gets one that accepts everything and
//     fails at conversion time with an unsupported-conversion error.
//
// # Registry
//
// Scalar and opaque converters are singletons. Composite converters are
// built once per descriptor string and cached:
//
//	conv := transcoder.DefaultRegistry().Obtain(transcoder.ArrayOf(transcoder.Int))
//
// # Thread Safety
//
// Registry and converters are safe for concurrent use. Conversion and
// lowering touch the runtime and must run on its owning goroutine.
package transcoder
