package runtime

import (
	"sync/atomic"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/engine"
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

// Promise is the host side of a promise returned by an async callable.
// Resolve, Reject and RejectCode may be called from any goroutine. Only the
// first of them settles the promise; later calls return false.
type Promise struct {
	ref     *engine.ThreadSafe[Bridge]
	vm      *goja.Runtime
	resolve func(any) error
	reject  func(any) error
	log     *zap.Logger
	module  string
	name    string
	settled atomic.Bool
}

func newPromise(b *Bridge, c *Callable, resolve, reject func(any) error) *Promise {
	return &Promise{
		ref:     b.ref,
		vm:      b.vm,
		resolve: resolve,
		reject:  reject,
		log:     b.log,
		module:  c.Module,
		name:    c.Name,
	}
}

// Settled reports whether the promise has been settled from the host side.
func (p *Promise) Settled() bool {
	return p.settled.Load()
}

func (p *Promise) claim(op string) bool {
	if p.settled.CompareAndSwap(false, true) {
		return true
	}
	p.log.Debug("promise already settled",
		zap.String("module", p.module),
		zap.String("method", p.name),
		zap.String("op", op))
	return false
}

// Resolve fulfills the promise with v, lowered on the owning goroutine.
func (p *Promise) Resolve(v any) bool {
	if !p.claim("resolve") {
		return false
	}
	return p.ref.Invoke(func(vm *goja.Runtime, b *Bridge) {
		val, err := transcoder.Lower(b, v)
		if err != nil {
			p.settle(p.reject, transcoder.ErrorValue(vm, err))
			return
		}
		p.settle(p.resolve, val)
	})
}

// Reject rejects the promise with an Error carrying err's code and message.
func (p *Promise) Reject(err error) bool {
	if !p.claim("reject") {
		return false
	}
	if err == nil {
		err = errors.UnexpectedInternal(errors.PhaseAsync, p.module, p.name, nil)
	}
	return p.ref.Invoke(func(vm *goja.Runtime, _ *Bridge) {
		p.settle(p.reject, transcoder.ErrorValue(vm, p.wrap(err)))
	})
}

// RejectCode rejects the promise with an Error carrying code and msg.
func (p *Promise) RejectCode(code, msg string) bool {
	if !p.claim("reject") {
		return false
	}
	return p.ref.Invoke(func(vm *goja.Runtime, _ *Bridge) {
		p.settle(p.reject, transcoder.NewError(vm, code, msg))
	})
}

// rejectNow rejects on the owning goroutine without a hop. It produces the
// already-rejected promise returned for argument and synchronous failures.
func (p *Promise) rejectNow(err error) {
	if !p.claim("reject") {
		return
	}
	p.settle(p.reject, transcoder.ErrorValue(p.vm, p.wrap(err)))
}

func (p *Promise) wrap(err error) error {
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return errors.HostCallable(errors.PhaseAsync, p.module, p.name, err)
}

func (p *Promise) settle(fn func(any) error, v goja.Value) {
	if err := fn(v); err != nil {
		p.log.Warn("promise settlement failed",
			zap.String("module", p.module),
			zap.String("method", p.name),
			zap.Error(err))
	}
}
