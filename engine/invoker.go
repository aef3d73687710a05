package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/wippyai/jsbridge"
)

// LoopInvoker schedules work on a goja_nodejs event loop.
// InvokeSync must not be called from a loop callback: it would wait on itself.
type LoopInvoker struct {
	loop   *eventloop.EventLoop
	closed atomic.Bool
}

// NewLoopInvoker wraps a started event loop.
func NewLoopInvoker(loop *eventloop.EventLoop) *LoopInvoker {
	return &LoopInvoker{loop: loop}
}

// Loop returns the wrapped event loop.
func (l *LoopInvoker) Loop() *eventloop.EventLoop {
	return l.loop
}

// InvokeAsync implements jsbridge.Invoker.
func (l *LoopInvoker) InvokeAsync(fn func(vm *goja.Runtime)) bool {
	if l.closed.Load() {
		return false
	}
	return l.loop.RunOnLoop(fn)
}

// InvokeSync implements jsbridge.Invoker.
func (l *LoopInvoker) InvokeSync(ctx context.Context, fn func(vm *goja.Runtime)) error {
	done := make(chan any, 1)
	ok := l.InvokeAsync(func(vm *goja.Runtime) {
		defer func() {
			done <- recover()
		}()
		fn(vm)
	})
	if !ok {
		return jsbridge.ErrInvokerClosed
	}
	select {
	case p := <-done:
		if p != nil {
			panic(p)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work. The loop itself is left running.
func (l *LoopInvoker) Close() {
	l.closed.Store(true)
}

// QueueInvoker queues work until the owner drains it.
// It is meant for embedders that run the runtime on their own goroutine
// and for tests. InvokeSync runs fn inline and so must only be called
// from the owning goroutine.
type QueueInvoker struct {
	vm     *goja.Runtime
	mu     sync.Mutex
	queue  []func(vm *goja.Runtime)
	closed bool
}

// NewQueueInvoker creates a queue invoker for vm.
func NewQueueInvoker(vm *goja.Runtime) *QueueInvoker {
	return &QueueInvoker{vm: vm}
}

// InvokeAsync implements jsbridge.Invoker.
func (q *QueueInvoker) InvokeAsync(fn func(vm *goja.Runtime)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.queue = append(q.queue, fn)
	return true
}

// InvokeSync implements jsbridge.Invoker by running fn inline.
func (q *QueueInvoker) InvokeSync(_ context.Context, fn func(vm *goja.Runtime)) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return jsbridge.ErrInvokerClosed
	}
	fn(q.vm)
	return nil
}

// Pending returns the number of queued tasks.
func (q *QueueInvoker) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Drain runs queued tasks, including tasks queued while draining, and
// returns how many ran. It must be called from the owning goroutine.
func (q *QueueInvoker) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		batch := q.queue
		q.queue = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			if n > 0 {
				debugf("queue invoker drained %d tasks", n)
			}
			return n
		}
		for _, fn := range batch {
			fn(q.vm)
			n++
		}
	}
}

// Close stops accepting work and discards queued tasks.
func (q *QueueInvoker) Close() {
	q.mu.Lock()
	q.closed = true
	q.queue = nil
	q.mu.Unlock()
}

var (
	_ jsbridge.Invoker = (*LoopInvoker)(nil)
	_ jsbridge.Invoker = (*QueueInvoker)(nil)
)
