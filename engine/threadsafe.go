package engine

import (
	"context"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge"
	"github.com/wippyai/jsbridge/errors"
)

// ThreadSafe is a handle to runtime-owned state that may be held by any
// goroutine. Its only use is to re-enter the owning goroutine; after
// Invalidate every attempt is a logged no-op.
type ThreadSafe[T any] struct {
	val     *T
	invoker jsbridge.Invoker
	log     *zap.Logger
	name    string
	mu      sync.RWMutex
}

// NewThreadSafe wraps val for cross-goroutine re-entry through inv.
func NewThreadSafe[T any](val *T, inv jsbridge.Invoker, name string, log *zap.Logger) *ThreadSafe[T] {
	if log == nil {
		log = Logger()
	}
	return &ThreadSafe[T]{val: val, invoker: inv, name: name, log: log}
}

func (r *ThreadSafe[T]) load() (*T, jsbridge.Invoker) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.val, r.invoker
}

// Valid reports whether the handle has not been invalidated.
func (r *ThreadSafe[T]) Valid() bool {
	v, _ := r.load()
	return v != nil
}

// Invoke queues fn on the owning goroutine. It reports false when the handle
// is invalid or the invoker rejected the task. A handle invalidated while fn
// is queued skips fn.
func (r *ThreadSafe[T]) Invoke(fn func(vm *goja.Runtime, v *T)) bool {
	v, inv := r.load()
	if v == nil {
		r.log.Warn("use of runtime handle after teardown", zap.String("handle", r.name))
		return false
	}
	ok := inv.InvokeAsync(func(vm *goja.Runtime) {
		if !r.Valid() {
			r.log.Debug("dropping task for torn down handle", zap.String("handle", r.name))
			return
		}
		fn(vm, v)
	})
	if !ok {
		r.log.Warn("invoker rejected task", zap.String("handle", r.name))
	}
	return ok
}

// InvokeSync runs fn on the owning goroutine and waits.
func (r *ThreadSafe[T]) InvokeSync(ctx context.Context, fn func(vm *goja.Runtime, v *T)) error {
	v, inv := r.load()
	if v == nil {
		r.log.Warn("use of runtime handle after teardown", zap.String("handle", r.name))
		return errors.Closed(errors.PhaseInvoke, r.name)
	}
	return inv.InvokeSync(ctx, func(vm *goja.Runtime) {
		if r.Valid() {
			fn(vm, v)
		}
	})
}

// Invalidate releases the wrapped state. It is idempotent.
func (r *ThreadSafe[T]) Invalidate() {
	r.mu.Lock()
	r.val = nil
	r.mu.Unlock()
}
