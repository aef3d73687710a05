package engine

import (
	"sync/atomic"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge"
	"github.com/wippyai/jsbridge/errors"
)

// Config configures an Engine.
type Config struct {
	// WeakMode selects how the engine holds objects weakly.
	// The zero value is WeakAuto.
	WeakMode WeakMode

	// Logger overrides the package logger for this engine.
	Logger *zap.Logger
}

// Engine owns a goja runtime on behalf of a bridge: its invoker, the hidden
// native-state slot, and the weak-handle strategy chosen at startup.
type Engine struct {
	vm      *goja.Runtime
	invoker jsbridge.Invoker
	log     *zap.Logger
	native  *goja.Symbol
	weakRef *goja.Object
	mode    WeakMode
	closed  atomic.Bool
}

// New creates an engine with default configuration.
// It must be called on the goroutine that owns vm.
func New(vm *goja.Runtime, inv jsbridge.Invoker) (*Engine, error) {
	return NewWithConfig(vm, inv, nil)
}

// NewWithConfig creates an engine.
// It must be called on the goroutine that owns vm.
func NewWithConfig(vm *goja.Runtime, inv jsbridge.Invoker, cfg *Config) (*Engine, error) {
	if vm == nil {
		return nil, errors.InvalidInput(errors.PhaseInvoke, "runtime cannot be nil")
	}
	if inv == nil {
		return nil, errors.InvalidInput(errors.PhaseInvoke, "invoker cannot be nil")
	}

	e := &Engine{
		vm:      vm,
		invoker: inv,
		log:     Logger(),
		native:  goja.NewSymbol("jsbridge.native"),
	}
	requested := WeakAuto
	if cfg != nil {
		requested = cfg.WeakMode
		if cfg.Logger != nil {
			e.log = cfg.Logger
		}
	}

	mode, err := e.selectWeakMode(requested)
	if err != nil {
		return nil, err
	}
	e.mode = mode
	e.log.Debug("engine created", zap.Stringer("weak_mode", mode))
	return e, nil
}

// Runtime returns the owned runtime.
func (e *Engine) Runtime() *goja.Runtime {
	return e.vm
}

// Invoker returns the invoker for the owning goroutine.
func (e *Engine) Invoker() jsbridge.Invoker {
	return e.invoker
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger {
	return e.log
}

// WeakMode returns the weak-handle strategy in use.
func (e *Engine) WeakMode() WeakMode {
	return e.mode
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	return e.closed.Load()
}

// Close marks the engine closed. It does not stop the invoker.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.weakRef = nil
	e.log.Debug("engine closed")
}

// SetNative attaches host state to obj through a hidden, non-enumerable,
// non-configurable symbol slot. An object holds at most one native state.
func (e *Engine) SetNative(obj *goja.Object, state any) error {
	if obj == nil {
		return errors.InvalidInput(errors.PhaseLifetime, "object cannot be nil")
	}
	if _, ok := e.Native(obj); ok {
		return errors.New(errors.PhaseLifetime, errors.KindInvalidInput).
			Detail("object already has native state").
			Build()
	}
	return obj.DefineDataPropertySymbol(e.native, e.vm.ToValue(&nativeSlot{state: state}),
		goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

// Native returns the host state attached to obj.
func (e *Engine) Native(obj *goja.Object) (any, bool) {
	if obj == nil {
		return nil, false
	}
	v := obj.GetSymbol(e.native)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	slot, ok := v.Export().(*nativeSlot)
	if !ok || slot.cleared {
		return nil, false
	}
	return slot.state, true
}

// ClearNative detaches host state from obj. The slot stays in place so the
// object cannot be re-paired.
func (e *Engine) ClearNative(obj *goja.Object) {
	if obj == nil {
		return
	}
	v := obj.GetSymbol(e.native)
	if v == nil || goja.IsUndefined(v) {
		return
	}
	if slot, ok := v.Export().(*nativeSlot); ok {
		slot.state = nil
		slot.cleared = true
	}
}

type nativeSlot struct {
	state   any
	cleared bool
}
