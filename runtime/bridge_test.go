package runtime

import (
	"testing"
	"time"

	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/engine"
)

func newTestBridge(t *testing.T) (*Bridge, *goja.Runtime, *engine.QueueInvoker) {
	t.Helper()
	vm := goja.New()
	q := engine.NewQueueInvoker(vm)
	b, err := New(vm, q)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, vm, q
}

func mustRegister(t *testing.T, b *Bridge, def *ModuleDefinition) {
	t.Helper()
	if err := b.RegisterModule(def); err != nil {
		t.Fatalf("RegisterModule(%s): %v", def.Name(), err)
	}
}

func run(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	if err != nil {
		t.Fatalf("%s: %v", src, err)
	}
	return v
}

// thrownCode runs src and returns the code property of the thrown value.
func thrownCode(t *testing.T, vm *goja.Runtime, src string) string {
	t.Helper()
	v := run(t, vm, `(function() { try { `+src+`; return "no throw"; } catch (e) { return String(e.code); } })()`)
	return v.String()
}

// settle drains q until the promise produced by src settles.
func settle(t *testing.T, vm *goja.Runtime, q *engine.QueueInvoker, src string) *goja.Promise {
	t.Helper()
	p, ok := run(t, vm, src).Export().(*goja.Promise)
	if !ok {
		t.Fatalf("%s did not return a promise", src)
	}
	deadline := time.Now().Add(2 * time.Second)
	for p.State() == goja.PromiseStatePending {
		if time.Now().After(deadline) {
			t.Fatalf("%s: promise still pending", src)
		}
		if q.Drain() == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	return p
}

func TestNew_InstallsRoot(t *testing.T) {
	_, vm, _ := newTestBridge(t)

	tests := []struct {
		src  string
		want string
	}{
		{`typeof host`, "object"},
		{`typeof host.modules`, "object"},
		{`typeof host.EventEmitter`, "function"},
		{`Object.getPrototypeOf(host.SharedObject.prototype) === host.EventEmitter.prototype`, "true"},
		{`Object.getPrototypeOf(host.SharedRef.prototype) === host.SharedObject.prototype`, "true"},
		{`Object.keys(host.modules).length`, "0"},
	}
	for _, tt := range tests {
		if got := run(t, vm, tt.src).String(); got != tt.want {
			t.Errorf("%s = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestNew_GlobalTaken(t *testing.T) {
	vm := goja.New()
	run(t, vm, `var host = 1`)
	if _, err := New(vm, engine.NewQueueInvoker(vm)); err == nil {
		t.Fatal("expected error for existing global")
	}
}

func TestNewWithConfig_Namespace(t *testing.T) {
	vm := goja.New()
	b, err := NewWithConfig(vm, engine.NewQueueInvoker(vm), &Config{Namespace: "app"})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if b.Namespace() != "app" {
		t.Errorf("Namespace = %q", b.Namespace())
	}
	if got := run(t, vm, `typeof app.modules + typeof host`).String(); got != "objectundefined" {
		t.Errorf("got %s", got)
	}
}

func TestNew_NilArgs(t *testing.T) {
	if _, err := New(nil, engine.NewQueueInvoker(goja.New())); err == nil {
		t.Error("nil runtime accepted")
	}
	if _, err := New(goja.New(), nil); err == nil {
		t.Error("nil invoker accepted")
	}
}

func TestClose_Idempotent(t *testing.T) {
	b, vm, _ := newTestBridge(t)
	mustRegister(t, b, NewModule("M").Function("f", func() int32 { return 1 }))
	run(t, vm, `var f = host.modules.M.f`)

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if !b.Closed() {
		t.Error("Closed = false")
	}
	if b.Context().Err() == nil {
		t.Error("context not cancelled")
	}
	if got := thrownCode(t, vm, `f()`); got != "ERR_INTERNAL" {
		t.Errorf("call after close: code %s", got)
	}
	if err := b.RegisterModule(NewModule("N")); err == nil {
		t.Error("RegisterModule after close succeeded")
	}
}
