package runtime

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type classCounter struct {
	SharedObjectBase
	n int64
}

type point struct {
	X, Y float64
}

func counterClass(seen *[]*classCounter) *ClassDefinition {
	return NewClass("Counter").
		Constructor(func(ctx context.Context, start int64) (*classCounter, error) {
			if start < 0 {
				return nil, errors.New("negative start")
			}
			c := &classCounter{n: start}
			if seen != nil {
				*seen = append(*seen, c)
			}
			return c, nil
		}).
		Method("increment", func(c *classCounter) int64 {
			c.n++
			return c.n
		}).
		AsyncMethod("incrementLater", func(c *classCounter, p *Promise) {
			c.n++
			p.Resolve(c.n)
		}).
		Property("value", func(c *classCounter) int64 { return c.n }, func(c *classCounter, v int64) { c.n = v }).
		StaticFunction("zero", func() *classCounter { return &classCounter{} }).
		StaticConstant("MAX", int64(1)<<53)
}

func TestClass_Construct(t *testing.T) {
	b, vm, _ := newTestBridge(t)

	var seen []*classCounter
	mustRegister(t, b, NewModule("Demo").
		Class(counterClass(&seen)).
		Function("same", func(c *classCounter) *classCounter { return c }))

	tests := []struct {
		src  string
		want string
	}{
		{`var c = new host.modules.Demo.Counter(5); c.increment()`, "6"},
		{`c.value`, "6"},
		{`c.value = 10; c.increment()`, "11"},
		{`c instanceof host.modules.Demo.Counter`, "true"},
		{`c instanceof host.SharedObject`, "true"},
		{`host.modules.Demo.same(c) === c`, "true"},
		{`c.objectId > 0`, "true"},
		{`host.modules.Demo.Counter.name`, "Counter"},
		{`host.modules.Demo.Counter.MAX`, "9007199254740992"},
		{`host.modules.Demo.Counter.zero() instanceof host.modules.Demo.Counter`, "true"},
	}
	for _, tt := range tests {
		if got := run(t, vm, tt.src).String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.src, got, tt.want)
		}
	}
	if len(seen) != 1 || seen[0].n != 11 {
		t.Fatalf("constructed %d counters", len(seen))
	}
	if seen[0].SharedObjectID() == 0 {
		t.Error("instance not paired during construction")
	}
}

func TestClass_ConstructErrors(t *testing.T) {
	b, vm, _ := newTestBridge(t)
	mustRegister(t, b, NewModule("Demo").Class(counterClass(nil)))

	tests := []struct {
		src  string
		want string
	}{
		{`new host.modules.Demo.Counter(-1)`, "ERR_UNEXPECTED"},
		{`new host.modules.Demo.Counter("x")`, "ERR_ARGUMENT_CAST"},
		{`new host.modules.Demo.Counter(1, 2)`, "ERR_INVALID_ARGS_NUMBER"},
	}
	for _, tt := range tests {
		if got := thrownCode(t, vm, tt.src); got != tt.want {
			t.Errorf("%s: code %s, want %s", tt.src, got, tt.want)
		}
	}
	if got := run(t, vm, `(function() { try { host.modules.Demo.Counter(1) } catch (e) { return e instanceof TypeError } })()`).ToBoolean(); !got {
		t.Error("call without new did not throw TypeError")
	}
}

func TestClass_ScriptSubclass(t *testing.T) {
	b, vm, q := newTestBridge(t)
	mustRegister(t, b, NewModule("Demo").Class(counterClass(nil)))

	got := run(t, vm, `
		class Loud extends host.modules.Demo.Counter {
			constructor(start) { super(start); this.label = "loud"; }
			shout() { return this.label + ":" + this.increment(); }
		}
		var l = new Loud(2);
		l.shout() + "|" + (l instanceof host.SharedObject);
	`).String()
	if got != "loud:3|true" {
		t.Errorf("got %s", got)
	}

	p := settle(t, vm, q, `l.incrementLater()`)
	if p.Result().ToInteger() != 4 {
		t.Errorf("incrementLater = %v", p.Result())
	}
}

func TestClass_NonShared(t *testing.T) {
	b, vm, _ := newTestBridge(t)

	pointClass := NewClass("Point").
		Constructor(func(x, y float64) *point { return &point{X: x, Y: y} }).
		Method("norm1", func(p *point) float64 { return p.X + p.Y })
	mustRegister(t, b, NewModule("Geo").
		Class(pointClass).
		Function("origin", func() *point { return &point{} }))

	if pointClass.IsShared() {
		t.Error("point class marked shared")
	}
	tests := []struct {
		src  string
		want string
	}{
		{`new host.modules.Geo.Point(1, 2).norm1()`, "3"},
		{`new host.modules.Geo.Point(1, 2) instanceof host.SharedObject`, "false"},
		{`host.modules.Geo.origin() instanceof host.modules.Geo.Point`, "true"},
		{`host.modules.Geo.origin().norm1()`, "0"},
	}
	for _, tt := range tests {
		if got := run(t, vm, tt.src).String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestClass_Definition(t *testing.T) {
	c := NewClass("C").Constructor(func() *classCounter { return nil })
	if !c.IsShared() {
		t.Error("shared host type not detected")
	}
	if c.hostType != reflect.TypeFor[*classCounter]() {
		t.Errorf("host type = %v", c.hostType)
	}
	if c.Name() != "C" {
		t.Errorf("name = %s", c.Name())
	}

	bad := NewClass("Bad").
		Constructor("nope").
		Method("m", func() {})
	if bad.Err() == nil {
		t.Error("expected errors")
	}

	async := NewClass("Async").Constructor(func(p *Promise) {})
	if async.Err() == nil {
		t.Error("async constructor accepted")
	}

	plain := NewClass("Plain").HostType(reflect.TypeFor[*point]()).Shared()
	if !plain.IsShared() {
		t.Error("Shared not applied")
	}
}

func TestClass_BoundOncePerBridge(t *testing.T) {
	b, vm, _ := newTestBridge(t)
	class := counterClass(nil)
	mustRegister(t, b, NewModule("A").Class(class))
	mustRegister(t, b, NewModule("B").Class(class))

	if got := run(t, vm, `host.modules.A.Counter === host.modules.B.Counter`).ToBoolean(); !got {
		t.Error("class bound twice")
	}
}
