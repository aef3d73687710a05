package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dop251/goja"
)

func TestAsync_Resolves(t *testing.T) {
	b, vm, q := newTestBridge(t)
	mustRegister(t, b, NewModule("Async").
		AsyncFunction("delayedEcho", func(ctx context.Context, s string) (string, error) {
			select {
			case <-time.After(5 * time.Millisecond):
				return s, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}).
		AsyncFunction("fail", func() error { return errors.New("nope") }))

	p := settle(t, vm, q, `host.modules.Async.delayedEcho("hi")`)
	if p.State() != goja.PromiseStateFulfilled {
		t.Fatalf("state = %v, result %v", p.State(), p.Result())
	}
	if got := p.Result().String(); got != "hi" {
		t.Errorf("result = %q", got)
	}

	p = settle(t, vm, q, `host.modules.Async.fail()`)
	if p.State() != goja.PromiseStateRejected {
		t.Fatalf("state = %v", p.State())
	}
	if code := p.Result().ToObject(vm).Get("code").String(); code != "ERR_UNEXPECTED" {
		t.Errorf("code = %s", code)
	}
}

func TestAsync_ArgumentErrorRejects(t *testing.T) {
	b, vm, _ := newTestBridge(t)
	called := false
	mustRegister(t, b, NewModule("Async").AsyncFunction("f", func(n int32) int32 {
		called = true
		return n
	}))

	for _, src := range []string{`host.modules.Async.f("x")`, `host.modules.Async.f(1, 2)`} {
		p, ok := run(t, vm, src).Export().(*goja.Promise)
		if !ok {
			t.Fatalf("%s did not return a promise", src)
		}
		if p.State() != goja.PromiseStateRejected {
			t.Errorf("%s: state = %v", src, p.State())
		}
	}
	time.Sleep(5 * time.Millisecond)
	if called {
		t.Error("body ran after argument failure")
	}
}

func TestAsync_PromiseHandler(t *testing.T) {
	b, vm, q := newTestBridge(t)

	var held *Promise
	mustRegister(t, b, NewModule("Async").
		AsyncFunction("later", func(p *Promise) { held = p }).
		AsyncFunction("coded", func(p *Promise) { p.RejectCode("E_CODE", "coded") }))

	p, _ := run(t, vm, `var out; host.modules.Async.later().then(v => { out = v })`).Export().(*goja.Promise)
	if held == nil {
		t.Fatal("handler did not run inline")
	}
	if p.State() != goja.PromiseStatePending {
		t.Fatal("promise settled early")
	}

	if !held.Resolve(map[string]any{"n": 1}) {
		t.Fatal("first Resolve rejected")
	}
	if held.Resolve(2) {
		t.Error("second Resolve accepted")
	}
	if held.Reject(errors.New("late")) {
		t.Error("Reject after Resolve accepted")
	}
	if !held.Settled() {
		t.Error("Settled = false")
	}
	q.Drain()
	if got := run(t, vm, `out.n`).String(); got != "1" {
		t.Errorf("out.n = %s", got)
	}

	rp := settle(t, vm, q, `host.modules.Async.coded()`)
	if code := rp.Result().ToObject(vm).Get("code").String(); code != "E_CODE" {
		t.Errorf("code = %s", code)
	}
}

func TestAsync_CrossGoroutineResolve(t *testing.T) {
	b, vm, q := newTestBridge(t)
	mustRegister(t, b, NewModule("Async").AsyncFunction("spawn", func(n int32, p *Promise) {
		go func() {
			p.Resolve(n * 2)
		}()
	}))

	p := settle(t, vm, q, `host.modules.Async.spawn(21)`)
	if got := p.Result().ToInteger(); got != 42 {
		t.Errorf("result = %d", got)
	}
}

func TestAsync_PanicRejects(t *testing.T) {
	b, vm, q := newTestBridge(t)
	mustRegister(t, b, NewModule("Async").AsyncFunction("boom", func() int32 { panic("boom") }))

	p := settle(t, vm, q, `host.modules.Async.boom()`)
	if p.State() != goja.PromiseStateRejected {
		t.Fatalf("state = %v", p.State())
	}
	if code := p.Result().ToObject(vm).Get("code").String(); code != "ERR_INTERNAL" {
		t.Errorf("code = %s", code)
	}
}

func TestAsync_ResolveAfterClose(t *testing.T) {
	b, vm, q := newTestBridge(t)

	var held *Promise
	mustRegister(t, b, NewModule("Async").AsyncFunction("later", func(p *Promise) { held = p }))
	run(t, vm, `host.modules.Async.later()`)

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if held.Resolve("late") {
		t.Error("Resolve after close was scheduled")
	}
	if q.Pending() != 0 {
		t.Errorf("pending = %d", q.Pending())
	}
}

func TestAsync_AfterCloseRejects(t *testing.T) {
	b, vm, _ := newTestBridge(t)
	mustRegister(t, b, NewModule("Async").AsyncFunction("f", func() int32 { return 1 }))
	run(t, vm, `var f = host.modules.Async.f`)
	_ = b.Close()

	p, _ := run(t, vm, `f()`).Export().(*goja.Promise)
	if p == nil || p.State() != goja.PromiseStateRejected {
		t.Fatal("call after close did not reject")
	}
}
