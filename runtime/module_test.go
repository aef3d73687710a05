package runtime

import (
	"errors"
	"math"
	"testing"

	"github.com/dop251/goja"
)

func TestModule_Lifecycle(t *testing.T) {
	b, vm, _ := newTestBridge(t)

	created := 0
	mustRegister(t, b, NewModule("Life").
		Function("ping", func() string { return "pong" }).
		OnCreate(func(*Bridge, *goja.Object) error {
			created++
			return nil
		}))

	if s := b.ModuleState("Life"); s != ModuleUnregistered {
		t.Errorf("state before access = %s", s)
	}
	run(t, vm, `var a = host.modules.Life; var c = host.modules.Life`)
	if created != 1 {
		t.Errorf("created %d times", created)
	}
	if s := b.ModuleState("Life"); s != ModuleCached {
		t.Errorf("state after access = %s", s)
	}
	if got := run(t, vm, `a === c && a instanceof host.EventEmitter`).ToBoolean(); !got {
		t.Error("module object not cached or not an emitter")
	}
	if got := run(t, vm, `"Life" in host.modules && !("Nope" in host.modules)`).ToBoolean(); !got {
		t.Error("has check failed")
	}
	if got := run(t, vm, `typeof host.modules.Nope`).String(); got != "undefined" {
		t.Errorf("unknown module = %s", got)
	}
	if _, err := b.Module("Nope"); err == nil {
		t.Error("Module(unknown) succeeded")
	}
}

func TestModule_Duplicate(t *testing.T) {
	b, _, _ := newTestBridge(t)
	mustRegister(t, b, NewModule("Dup"))
	if err := b.RegisterModule(NewModule("Dup")); err == nil {
		t.Error("duplicate registration accepted")
	}
}

func TestModule_InvalidDefinition(t *testing.T) {
	b, _, _ := newTestBridge(t)

	tests := []struct {
		name string
		def  *ModuleDefinition
	}{
		{"duplicate member", NewModule("A").Function("f", func() {}).Constant("f", 1)},
		{"bad handler", NewModule("B").Function("f", 42)},
		{"empty member", NewModule("C").Constant("", 1)},
		{"nil getter", NewModule("D").Property("p", nil, nil)},
		{"empty name", NewModule("")},
		{"nested error", NewModule("E").Object("o", NewObject("o").Function("f", "x"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.RegisterModule(tt.def); err == nil {
				t.Error("expected registration error")
			}
		})
	}
}

func TestModule_ReentrantAccess(t *testing.T) {
	b, vm, _ := newTestBridge(t)

	var inner error
	mustRegister(t, b, NewModule("Loop").OnCreate(func(b *Bridge, _ *goja.Object) error {
		_, inner = b.Module("Loop")
		return nil
	}))

	run(t, vm, `host.modules.Loop`)
	if inner == nil {
		t.Fatal("re-entrant access succeeded")
	}
	if b.ModuleState("Loop") != ModuleCached {
		t.Error("outer build did not complete")
	}
}

func TestModule_BuildFailureRetries(t *testing.T) {
	b, vm, _ := newTestBridge(t)

	fail := true
	mustRegister(t, b, NewModule("Flaky").OnCreate(func(*Bridge, *goja.Object) error {
		if fail {
			return errors.New("not yet")
		}
		return nil
	}))

	if _, err := vm.RunString(`host.modules.Flaky`); err == nil {
		t.Fatal("failed build did not throw")
	}
	if b.ModuleState("Flaky") != ModuleUnregistered {
		t.Errorf("state = %s", b.ModuleState("Flaky"))
	}
	fail = false
	run(t, vm, `host.modules.Flaky`)
	if b.ModuleState("Flaky") != ModuleCached {
		t.Errorf("state = %s", b.ModuleState("Flaky"))
	}
}

func TestModule_Unregister(t *testing.T) {
	b, vm, q := newTestBridge(t)

	destroyed := 0
	mustRegister(t, b, NewModule("Gone").
		Function("f", func() int32 { return 7 }).
		OnDestroy(func(*Bridge) { destroyed++ }))
	run(t, vm, `var g = host.modules.Gone`)

	if !b.UnregisterModule("Gone") {
		t.Fatal("UnregisterModule = false")
	}
	if b.UnregisterModule("Gone") {
		t.Error("second UnregisterModule = true")
	}
	q.Drain()
	if destroyed != 1 {
		t.Errorf("destroyed = %d", destroyed)
	}
	if got := run(t, vm, `g.f()`).ToInteger(); got != 7 {
		t.Errorf("handed-out object broken: %d", got)
	}
	if got := run(t, vm, `typeof host.modules.Gone`).String(); got != "undefined" {
		t.Errorf("module still reachable: %s", got)
	}
}

func TestModule_Members(t *testing.T) {
	b, vm, _ := newTestBridge(t)

	computed := 0
	value := int32(3)
	mustRegister(t, b, NewModule("Members").
		Constant("PI", math.Pi).
		Constant("NAME", "members").
		LazyConstant("EXPENSIVE", func() (any, error) {
			computed++
			return []string{"a", "b"}, nil
		}).
		LazyConstant("BROKEN", func() (any, error) { return nil, errors.New("no value") }).
		Property("value", func() int32 { return value }, func(v int32) { value = v }).
		Property("readonly", func() string { return "ro" }, nil).
		Object("nested", NewObject("nested").Function("twice", func(n int32) int32 { return n * 2 })))

	tests := []struct {
		src  string
		want string
	}{
		{`host.modules.Members.PI > 3.14`, "true"},
		{`host.modules.Members.NAME`, "members"},
		{`host.modules.Members.EXPENSIVE.join(",")`, "a,b"},
		{`host.modules.Members.EXPENSIVE.length`, "2"},
		{`host.modules.Members.value`, "3"},
		{`host.modules.Members.value = 9; host.modules.Members.value`, "9"},
		{`host.modules.Members.readonly`, "ro"},
		{`host.modules.Members.nested.twice(4)`, "8"},
		{`Object.keys(host.modules.Members).indexOf("value")`, "-1"},
		{`Object.keys(host.modules.Members).indexOf("NAME") >= 0`, "true"},
		{`(function() { "use strict"; try { host.modules.Members.NAME = "x" } catch (e) { return "threw" } })()`, "threw"},
		{`(function() { try { host.modules.Members.BROKEN } catch (e) { return e.code } })()`, "ERR_UNEXPECTED"},
	}
	for _, tt := range tests {
		if got := run(t, vm, tt.src).String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.src, got, tt.want)
		}
	}
	if computed != 1 {
		t.Errorf("lazy constant computed %d times", computed)
	}
	if value != 9 {
		t.Errorf("setter not called: %d", value)
	}
}

func TestModule_Names(t *testing.T) {
	b, vm, _ := newTestBridge(t)
	mustRegister(t, b, NewModule("B"))
	mustRegister(t, b, NewModule("A"))

	names := b.ModuleNames()
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("names = %v", names)
	}
	if got := run(t, vm, `Object.keys(host.modules).join(",")`).String(); got != "A,B" {
		t.Errorf("keys = %s", got)
	}
}
