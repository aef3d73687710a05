package jsbridge

import (
	"context"

	"github.com/dop251/goja"
)

// Invoker schedules work on the goroutine that owns a goja runtime.
// goja is not goroutine-safe, so every touch of a runtime from host code
// goes through the Invoker that owns it.
type Invoker interface {
	// InvokeAsync queues fn on the owning goroutine. It reports false when
	// the invoker no longer accepts work.
	InvokeAsync(fn func(vm *goja.Runtime)) bool

	// InvokeSync runs fn on the owning goroutine and waits for it to finish.
	// It must not be called from the owning goroutine unless the
	// implementation documents otherwise.
	InvokeSync(ctx context.Context, fn func(vm *goja.Runtime)) error
}

// InvokerFunc adapts a single scheduling function to Invoker.
// InvokeSync waits on a channel for the queued function to run.
type InvokerFunc func(fn func(vm *goja.Runtime)) bool

// InvokeAsync implements Invoker.
func (f InvokerFunc) InvokeAsync(fn func(vm *goja.Runtime)) bool {
	return f(fn)
}

// InvokeSync implements Invoker.
func (f InvokerFunc) InvokeSync(ctx context.Context, fn func(vm *goja.Runtime)) error {
	done := make(chan struct{})
	if !f(func(vm *goja.Runtime) {
		defer close(done)
		fn(vm)
	}) {
		return ErrInvokerClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
