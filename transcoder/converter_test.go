package transcoder

import (
	stderrors "errors"
	"math"
	"reflect"
	"testing"

	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
)

func eval(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	if err != nil {
		t.Fatalf("eval %q: %v", src, err)
	}
	return v
}

func TestRegistry_Obtain(t *testing.T) {
	r := NewRegistry()

	if r.Obtain(Int) != r.Obtain(Scalar{K: KindInt}) {
		t.Error("scalar converters should be singletons")
	}
	if r.Obtain(ObjectType).Type() != ObjectType {
		t.Error("opaque converter serves wrong descriptor")
	}

	a := r.Obtain(ArrayOf(Int))
	b := r.Obtain(ArrayOf(Int))
	if a != b {
		t.Error("composite converters should be cached by descriptor")
	}
	if r.Obtain(ArrayOf(String)) == a {
		t.Error("different descriptors must not share a converter")
	}

	if _, ok := r.Obtain(nil).(unknownConverter); !ok {
		t.Error("nil descriptor should yield the unknown converter")
	}
	if _, ok := r.Obtain(Unknown{Name: "Camera"}).(unknownConverter); !ok {
		t.Error("unregistered named descriptor should yield the unknown converter")
	}

	r.RegisterNamed("Camera", stringConverter{})
	if _, ok := r.Obtain(Unknown{Name: "Camera"}).(stringConverter); !ok {
		t.Error("named converter not used")
	}
}

func TestScalarConverters(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)
	r := NewRegistry()

	tests := []struct {
		typ     Type
		src     string
		want    any
		convert bool
	}{
		{Int, "42", int32(42), true},
		{Int, "-7", int32(-7), true},
		{Int, "1.5", nil, false},
		{Int, "2147483648", nil, false},
		{Int, "'x'", nil, false},
		{Int, "NaN", nil, false},
		{Long, "9007199254740991", int64(9007199254740991), true},
		{Long, "9007199254740992", nil, false},
		{Float, "1.5", float32(1.5), true},
		{Float, "1e300", nil, false},
		{Float, "-1e39", nil, false},
		{Double, "1.5", 1.5, true},
		{Double, "3", 3.0, true},
		{Double, "'3'", nil, false},
		{Boolean, "true", true, true},
		{Boolean, "1", nil, false},
		{String, "'hi'", "hi", true},
		{String, "5", nil, false},
		{Any, "null", nil, true},
		{Any, "'s'", "s", true},
		{Any, "undefined", nil, false},
		{ViewTagType, "7", ViewTag(7), true},
		{ViewTagType, "({__nativeTag: 9})", ViewTag(9), true},
		{ViewTagType, "-1", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.src, func(t *testing.T) {
			conv := r.Obtain(tt.typ)
			v := eval(t, vm, tt.src)

			if got := conv.CanConvert(env, v); got != tt.convert {
				t.Fatalf("CanConvert = %v, want %v", got, tt.convert)
			}
			got, err := conv.Convert(env, v)
			if !tt.convert {
				if err == nil {
					t.Fatalf("Convert succeeded with %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Convert = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestConversionError_NamesValue(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)

	_, err := NewRegistry().Obtain(Int).Convert(env, vm.ToValue("x"))
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if e.Kind != errors.KindConversion {
		t.Errorf("kind = %s", e.Kind)
	}
	if e.Stringified != "x" {
		t.Errorf("stringified = %q, want %q", e.Stringified, "x")
	}
	if e.Descriptor != "int" {
		t.Errorf("descriptor = %q", e.Descriptor)
	}
}

func TestFloatConverter_Overflow(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)

	_, err := NewRegistry().Obtain(Float).Convert(env, vm.ToValue(1e300))
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindOverflow}) {
		t.Errorf("expected overflow, got %v", err)
	}
	got, err := NewRegistry().Obtain(Float).Convert(env, eval(t, vm, "Infinity"))
	if err != nil || !math.IsInf(float64(got.(float32)), 1) {
		t.Errorf("Convert(Infinity) = %v, %v", got, err)
	}
}

func TestCompositeConverters(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)
	r := NewRegistry()

	tests := []struct {
		typ     Type
		src     string
		want    any
		convert bool
	}{
		{ArrayOf(Int), "[1, 2]", []any{int32(1), int32(2)}, true},
		{ArrayOf(Int), "[]", []any{}, true},
		{ArrayOf(Int), "[1, 'a']", nil, false},
		{ArrayOf(Int), "1", nil, false},
		{ListOf(String), "'a'", []any{"a"}, true},
		{ListOf(String), "['a', 'b']", []any{"a", "b"}, true},
		{MapOf(Double), "({a: 1.5})", map[string]any{"a": 1.5}, true},
		{MapOf(Double), "({a: 'x'})", nil, false},
		{MapOf(Double), "[1]", nil, false},
		{NullableOf(Int), "null", nil, true},
		{NullableOf(Int), "undefined", nil, true},
		{NullableOf(Int), "4", int32(4), true},
		{NullableOf(Unknown{Name: "never"}), "null", nil, true},
		{ArrayOf(NullableOf(String)), "['a', null]", []any{"a", nil}, true},
		{RawArray, "[1, 'a']", []any{int64(1), "a"}, true},
		{RawArray, "({})", nil, false},
		{RawMap, "({k: true})", map[string]any{"k": true}, true},
		{RawMap, "[1]", nil, false},
		{RawMap, "(function() {})", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.src, func(t *testing.T) {
			conv := r.Obtain(tt.typ)
			v := eval(t, vm, tt.src)

			if got := conv.CanConvert(env, v); got != tt.convert {
				t.Fatalf("CanConvert = %v, want %v", got, tt.convert)
			}
			got, err := conv.Convert(env, v)
			if !tt.convert {
				if err == nil {
					t.Fatalf("Convert succeeded with %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Convert = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestArrayConverter_ErrorPath(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)

	_, err := NewRegistry().Obtain(ArrayOf(ArrayOf(Int))).Convert(env, eval(t, vm, "[[1], [2, 'z']]"))
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	if !reflect.DeepEqual(e.Path, []string{"1", "1"}) {
		t.Errorf("path = %v, want [1 1]", e.Path)
	}
	if e.Stringified != "z" {
		t.Errorf("stringified = %q", e.Stringified)
	}
}

func TestPolyConverter_DeclaredOrder(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)
	r := NewRegistry()

	tests := []struct {
		typ  Type
		src  string
		want any
	}{
		{PolyOf(String, Int), "5", int32(5)},
		{PolyOf(String, Int), "'5'", "5"},
		{PolyOf(Double, Int), "5", 5.0},
		{PolyOf(Int, Double), "5", int32(5)},
		{PolyOf(Int, Double), "5.5", 5.5},
		{PolyOf(ArrayOf(Int), ArrayOf(String)), "['a']", []any{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.src, func(t *testing.T) {
			got, err := r.Obtain(tt.typ).Convert(env, eval(t, vm, tt.src))
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Convert = %#v, want %#v", got, tt.want)
			}
		})
	}

	conv := r.Obtain(PolyOf(String, Int))
	v := eval(t, vm, "true")
	if conv.CanConvert(env, v) {
		t.Error("poly should reject a value no alternative accepts")
	}
	if _, err := conv.Convert(env, v); !stderrors.Is(err, &errors.Error{Kind: errors.KindConversion}) {
		t.Errorf("expected conversion error, got %v", err)
	}
}

func TestRecordConverter(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)

	rec := Record{
		Name: "Profile",
		Fields: []Field{
			{Name: "name", Key: "title", Type: String, Required: true},
			{Name: "age", Type: Int},
		},
	}
	conv := NewRegistry().Obtain(rec)

	got, err := conv.Convert(env, eval(t, vm, "({title: 'x', age: 3})"))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]any{"name": "x", "age": int32(3)}) {
		t.Errorf("Convert = %#v", got)
	}

	got, err = conv.Convert(env, eval(t, vm, "({title: 'y', age: null})"))
	if err != nil {
		t.Fatalf("Convert optional null: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]any{"name": "y"}) {
		t.Errorf("optional null field should be omitted, got %#v", got)
	}

	missing := eval(t, vm, "({age: 3})")
	if conv.CanConvert(env, missing) {
		t.Error("CanConvert should fail without required field")
	}
	_, err = conv.Convert(env, missing)
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindFieldMissing}) {
		t.Errorf("expected field_missing, got %v", err)
	}

	_, err = conv.Convert(env, eval(t, vm, "({title: 1})"))
	var e *errors.Error
	if !stderrors.As(err, &e) || len(e.Path) == 0 || e.Path[0] != "title" {
		t.Errorf("expected error at title, got %v", err)
	}
}

func TestRecordConverter_FieldNamesInCacheKey(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)
	r := NewRegistry()

	first := Record{Name: "Point", Fields: []Field{{Name: "x", Key: "k", Type: Double}}}
	second := Record{Name: "Point", Fields: []Field{{Name: "y", Key: "k", Type: Double}}}
	if first.String() == second.String() {
		t.Fatalf("descriptors collide: %s", first)
	}

	for _, tt := range []struct {
		rec  Record
		want map[string]any
	}{
		{first, map[string]any{"x": 1.0}},
		{second, map[string]any{"y": 1.0}},
	} {
		got, err := r.Obtain(tt.rec).Convert(env, eval(t, vm, "({k: 1})"))
		if err != nil {
			t.Fatalf("Convert: %v", err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: Convert = %#v, want %#v", tt.rec, got, tt.want)
		}
	}
}

func TestUnknownConverter(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)

	conv := NewRegistry().Obtain(Unknown{Name: "Camera"})
	if !conv.CanConvert(env, vm.ToValue(1)) {
		t.Error("unknown converter should accept everything")
	}
	_, err := conv.Convert(env, vm.ToValue(1))
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindUnsupportedConversion}) {
		t.Errorf("expected unsupported_conversion, got %v", err)
	}
	if code, _, _ := errors.Classify(err); code != errors.CodeUnsupportedConversion {
		t.Errorf("code = %s", code)
	}
}

func TestOpaqueConverters(t *testing.T) {
	vm := goja.New()
	env := NewEnv(vm)
	r := NewRegistry()

	fn, err := r.Obtain(FunctionType).Convert(env, eval(t, vm, "(function(a) { return a * 2 })"))
	if err != nil {
		t.Fatalf("function: %v", err)
	}
	res, err := fn.(Function).Invoke(vm.ToValue(21))
	if err != nil || res.ToInteger() != 42 {
		t.Errorf("Invoke = %v, %v", res, err)
	}
	if r.Obtain(FunctionType).CanConvert(env, eval(t, vm, "({})")) {
		t.Error("object is not a function")
	}

	obj := eval(t, vm, "({a: 1})")
	got, err := r.Obtain(ObjectType).Convert(env, obj)
	if err != nil || got.(*goja.Object) != obj.(*goja.Object) {
		t.Errorf("object passthrough = %v, %v", got, err)
	}
	if r.Obtain(ObjectType).CanConvert(env, vm.ToValue(1)) {
		t.Error("number is not an object")
	}

	val := vm.ToValue("s")
	got, err = r.Obtain(ValueType).Convert(env, val)
	if err != nil || got.(goja.Value) != val {
		t.Errorf("value passthrough = %v, %v", got, err)
	}

	ta, err := r.Obtain(TypedArrayType).Convert(env, eval(t, vm, "new Uint8Array([1, 2])"))
	if err != nil {
		t.Fatalf("typed array: %v", err)
	}
	if arr := ta.(TypedArray); arr.Type != "Uint8Array" || !reflect.DeepEqual(arr.Data, []uint8{1, 2}) {
		t.Errorf("typed array = %+v", arr)
	}
	if r.Obtain(TypedArrayType).CanConvert(env, eval(t, vm, "[1, 2]")) {
		t.Error("plain array is not a typed array")
	}

	buf, err := r.Obtain(ArrayBufferType).Convert(env, eval(t, vm, "new Uint8Array([3, 4]).buffer"))
	if err != nil || !reflect.DeepEqual(buf, []byte{3, 4}) {
		t.Errorf("array buffer = %v, %v", buf, err)
	}
	if r.Obtain(RawMap).CanConvert(env, eval(t, vm, "new Uint8Array(1)")) {
		t.Error("typed array is not a raw map")
	}
}
