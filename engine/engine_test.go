package engine

import (
	"testing"

	"github.com/dop251/goja"
)

func newTestEngine(t *testing.T, mode WeakMode) (*Engine, *QueueInvoker) {
	t.Helper()
	vm := goja.New()
	q := NewQueueInvoker(vm)
	e, err := NewWithConfig(vm, q, &Config{WeakMode: mode})
	if err != nil {
		t.Fatal(err)
	}
	return e, q
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, NewQueueInvoker(goja.New())); err == nil {
		t.Error("nil runtime accepted")
	}
	if _, err := New(goja.New(), nil); err == nil {
		t.Error("nil invoker accepted")
	}
}

func TestEngine_NativeState(t *testing.T) {
	e, _ := newTestEngine(t, WeakAuto)
	vm := e.Runtime()
	obj := vm.NewObject()

	if _, ok := e.Native(obj); ok {
		t.Fatal("fresh object has native state")
	}

	type state struct{ n int }
	s := &state{n: 7}
	if err := e.SetNative(obj, s); err != nil {
		t.Fatal(err)
	}
	got, ok := e.Native(obj)
	if !ok || got.(*state) != s {
		t.Fatalf("Native = %v, %v", got, ok)
	}
	if err := e.SetNative(obj, &state{}); err == nil {
		t.Error("second SetNative should fail")
	}

	if err := vm.Set("o", obj); err != nil {
		t.Fatal(err)
	}
	v, err := vm.RunString("Object.keys(o).length === 0 && JSON.stringify(o) === '{}'")
	if err != nil {
		t.Fatal(err)
	}
	if !v.ToBoolean() {
		t.Error("native slot is visible to scripts")
	}

	e.ClearNative(obj)
	if _, ok := e.Native(obj); ok {
		t.Error("state survived ClearNative")
	}
	if err := e.SetNative(obj, s); err == nil {
		t.Error("cleared object must not be re-paired")
	}
}

func TestEngine_Close(t *testing.T) {
	e, _ := newTestEngine(t, WeakAuto)
	if e.Closed() {
		t.Fatal("new engine is closed")
	}
	e.Close()
	e.Close()
	if !e.Closed() {
		t.Error("engine not closed")
	}
}
