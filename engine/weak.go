package engine

import (
	"runtime"
	"strings"
	"weak"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
)

// WeakMode is the strategy used to hold script objects without keeping them alive.
type WeakMode uint8

const (
	// WeakAuto picks the best available mode at startup.
	WeakAuto WeakMode = iota
	// WeakNative uses Go weak pointers to the engine's object handles.
	WeakNative
	// WeakRef uses the script-level WeakRef constructor.
	WeakRef
	// WeakStrong holds objects strongly. Wrappers are never collected.
	WeakStrong
)

var weakModeNames = [...]string{
	WeakAuto:   "auto",
	WeakNative: "native",
	WeakRef:    "weakref",
	WeakStrong: "strong",
}

func (m WeakMode) String() string {
	if int(m) < len(weakModeNames) {
		return weakModeNames[m]
	}
	return "unknown"
}

// ParseWeakMode parses a mode name. The empty string is WeakAuto.
func ParseWeakMode(s string) (WeakMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return WeakAuto, nil
	case "native":
		return WeakNative, nil
	case "weakref":
		return WeakRef, nil
	case "strong":
		return WeakStrong, nil
	}
	return WeakAuto, errors.InvalidInput(errors.PhaseConfig, "unknown weak mode "+s)
}

// selectWeakMode walks the ladder native -> weakref -> strong starting at
// the requested mode, falling through when a tier is unavailable.
func (e *Engine) selectWeakMode(requested WeakMode) (WeakMode, error) {
	switch requested {
	case WeakAuto, WeakNative:
		return WeakNative, nil
	case WeakRef:
		if ctor, ok := e.vm.Get("WeakRef").(*goja.Object); ok {
			if _, isCtor := goja.AssertConstructor(ctor); isCtor {
				e.weakRef = ctor
				return WeakRef, nil
			}
		}
		e.log.Warn("WeakRef is not available, holding shared object wrappers strongly")
		return WeakStrong, nil
	case WeakStrong:
		e.log.Warn("weak references disabled, shared object wrappers will not be collected")
		return WeakStrong, nil
	}
	return WeakAuto, errors.InvalidInput(errors.PhaseConfig, "unknown weak mode "+requested.String())
}

// WeakObject is a handle to a script object that does not keep it alive,
// except in WeakStrong mode.
type WeakObject struct {
	native weak.Pointer[goja.Object]
	ref    *goja.Object
	strong *goja.Object
	mode   WeakMode
}

// NewWeak creates a weak handle to obj using the engine's mode.
// It must run on the owning goroutine.
func (e *Engine) NewWeak(obj *goja.Object) *WeakObject {
	w := &WeakObject{mode: e.mode}
	switch e.mode {
	case WeakNative:
		w.native = weak.Make(obj)
	case WeakRef:
		ref, err := e.vm.New(e.weakRef, obj)
		if err != nil {
			e.log.Warn("WeakRef construction failed, holding object strongly", zap.Error(err))
			w.mode = WeakStrong
			w.strong = obj
			break
		}
		w.ref = ref
	default:
		w.strong = obj
	}
	return w
}

// Lock returns the object, or nil when it has been collected.
// It must run on the owning goroutine.
func (w *WeakObject) Lock() *goja.Object {
	if w == nil {
		return nil
	}
	switch w.mode {
	case WeakNative:
		return w.native.Value()
	case WeakRef:
		deref, ok := goja.AssertFunction(w.ref.Get("deref"))
		if !ok {
			return nil
		}
		v, err := deref(w.ref)
		if err != nil {
			return nil
		}
		obj, _ := v.(*goja.Object)
		return obj
	default:
		return w.strong
	}
}

// Mode returns the strategy backing this handle.
func (w *WeakObject) Mode() WeakMode {
	return w.mode
}

// Cleanup cancels a collection callback registered with OnCollect.
type Cleanup struct {
	c      runtime.Cleanup
	active bool
}

// Stop cancels the callback if it has not run yet.
func (c *Cleanup) Stop() {
	if c != nil && c.active {
		c.c.Stop()
		c.active = false
	}
}

// OnCollect arranges for fn to run after obj becomes unreachable.
// fn runs on an arbitrary goroutine and must not reference obj; it should
// re-enter the runtime through a ThreadSafe handle.
func (e *Engine) OnCollect(obj *goja.Object, fn func()) *Cleanup {
	if e.mode == WeakStrong {
		return &Cleanup{}
	}
	return &Cleanup{
		c:      runtime.AddCleanup(obj, func(f func()) { f() }, fn),
		active: true,
	}
}
