package engine

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/wippyai/jsbridge"
)

func TestQueueInvoker_DrainOrder(t *testing.T) {
	q := NewQueueInvoker(goja.New())

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		if !q.InvokeAsync(func(*goja.Runtime) { order = append(order, i) }) {
			t.Fatal("InvokeAsync rejected")
		}
	}
	if q.Pending() != 3 {
		t.Fatalf("Pending = %d", q.Pending())
	}
	if n := q.Drain(); n != 3 {
		t.Errorf("Drain = %d, want 3", n)
	}
	if len(order) != 3 || order[0] != 0 || order[2] != 2 {
		t.Errorf("order = %v", order)
	}
}

func TestQueueInvoker_DrainsNestedTasks(t *testing.T) {
	q := NewQueueInvoker(goja.New())

	ran := false
	q.InvokeAsync(func(*goja.Runtime) {
		q.InvokeAsync(func(*goja.Runtime) { ran = true })
	})
	if n := q.Drain(); n != 2 {
		t.Errorf("Drain = %d, want 2", n)
	}
	if !ran {
		t.Error("task queued during drain did not run")
	}
}

func TestQueueInvoker_SyncInline(t *testing.T) {
	vm := goja.New()
	q := NewQueueInvoker(vm)

	var got *goja.Runtime
	if err := q.InvokeSync(context.Background(), func(r *goja.Runtime) { got = r }); err != nil {
		t.Fatal(err)
	}
	if got != vm {
		t.Error("InvokeSync should run with the owned runtime")
	}
}

func TestQueueInvoker_Closed(t *testing.T) {
	q := NewQueueInvoker(goja.New())
	q.InvokeAsync(func(*goja.Runtime) { t.Error("discarded task ran") })
	q.Close()

	if q.InvokeAsync(func(*goja.Runtime) {}) {
		t.Error("closed invoker accepted work")
	}
	if err := q.InvokeSync(context.Background(), func(*goja.Runtime) {}); !stderrors.Is(err, jsbridge.ErrInvokerClosed) {
		t.Errorf("InvokeSync err = %v", err)
	}
	if n := q.Drain(); n != 0 {
		t.Errorf("Drain after close = %d", n)
	}
}

func TestLoopInvoker(t *testing.T) {
	loop := eventloop.NewEventLoop()
	loop.Start()
	defer loop.Stop()

	inv := NewLoopInvoker(loop)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got int64
	err := inv.InvokeSync(ctx, func(vm *goja.Runtime) {
		v, err := vm.RunString("20 + 22")
		if err != nil {
			t.Error(err)
			return
		}
		got = v.ToInteger()
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	done := make(chan struct{})
	if !inv.InvokeAsync(func(*goja.Runtime) { close(done) }) {
		t.Fatal("InvokeAsync rejected")
	}
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("async task did not run")
	}

	inv.Close()
	if inv.InvokeAsync(func(*goja.Runtime) {}) {
		t.Error("closed invoker accepted work")
	}
	if err := inv.InvokeSync(ctx, func(*goja.Runtime) {}); !stderrors.Is(err, jsbridge.ErrInvokerClosed) {
		t.Errorf("InvokeSync err = %v", err)
	}
}

func TestLoopInvoker_ContextCancel(t *testing.T) {
	loop := eventloop.NewEventLoop()
	loop.Start()
	defer loop.Stop()

	inv := NewLoopInvoker(loop)
	release := make(chan struct{})
	inv.InvokeAsync(func(*goja.Runtime) { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := inv.InvokeSync(ctx, func(*goja.Runtime) {}); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestInvokerFunc(t *testing.T) {
	vm := goja.New()
	var queued []func(*goja.Runtime)
	inv := jsbridge.InvokerFunc(func(fn func(*goja.Runtime)) bool {
		queued = append(queued, fn)
		return true
	})

	ran := false
	inv.InvokeAsync(func(*goja.Runtime) { ran = true })
	for _, fn := range queued {
		fn(vm)
	}
	if !ran {
		t.Error("task did not run")
	}
}
