package transcoder

import (
	"github.com/dop251/goja"
)

// Env is the conversion context a bridge provides to converters.
type Env interface {
	// Runtime returns the goja runtime values belong to.
	Runtime() *goja.Runtime

	// SharedObject resolves a wrapper object or numeric id to its host value.
	SharedObject(v goja.Value) (any, bool)

	// LowerShared returns the wrapper for a shared host value.
	// ok is false when v is not a shared object.
	LowerShared(v any) (val goja.Value, ok bool, err error)
}

// Lowerable values produce their own script representation.
type Lowerable interface {
	LowerJS(env Env) (goja.Value, error)
}

// Function is the canonical form of a script function argument.
type Function struct {
	Value *goja.Object
	Call  goja.Callable
}

// Invoke calls the function with an undefined receiver.
// It must run on the goroutine that owns the runtime.
func (f Function) Invoke(args ...goja.Value) (goja.Value, error) {
	return f.Call(goja.Undefined(), args...)
}

// LowerJS implements Lowerable.
func (f Function) LowerJS(Env) (goja.Value, error) {
	return f.Value, nil
}

// TypedArray is the canonical form of a typed array argument.
// Data is the exported Go slice and aliases the array's buffer.
type TypedArray struct {
	Object *goja.Object
	Data   any
	Type   string
}

// LowerJS implements Lowerable.
func (t TypedArray) LowerJS(Env) (goja.Value, error) {
	return t.Object, nil
}

// ViewTag identifies a host view by its numeric tag.
type ViewTag int32

type undefined struct{}

// Undefined lowers to the script undefined value instead of null.
var Undefined = undefined{}

type basicEnv struct {
	vm *goja.Runtime
}

// NewEnv returns an Env without shared object support.
func NewEnv(vm *goja.Runtime) Env {
	return basicEnv{vm: vm}
}

func (e basicEnv) Runtime() *goja.Runtime { return e.vm }

func (basicEnv) SharedObject(goja.Value) (any, bool) { return nil, false }

func (basicEnv) LowerShared(any) (goja.Value, bool, error) { return nil, false, nil }
