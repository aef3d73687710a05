package runtime

import (
	stderrors "errors"
	"slices"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

// EventObserver is implemented by shared host values that want to know
// when scripts start or stop listening to an event.
type EventObserver interface {
	StartObserving(event string)
	StopObserving(event string)
}

// listenerMap holds listeners per event in insertion order. Slices are
// replaced, never edited in place, so an emission snapshot stays intact.
type listenerMap struct {
	m map[string][]goja.Value
}

func (l *listenerMap) count(event string) int {
	if l == nil {
		return 0
	}
	return len(l.m[event])
}

func (b *Bridge) throw(err error) {
	panic(transcoder.ErrorValue(b.vm, err))
}

func (b *Bridge) receiver(call goja.FunctionCall, method string) *goja.Object {
	obj, ok := call.This.(*goja.Object)
	if !ok {
		panic(b.vm.NewTypeError("EventEmitter.%s called on incompatible receiver", method))
	}
	return obj
}

func (b *Bridge) listenerArg(call goja.FunctionCall, method string) goja.Value {
	l := call.Argument(1)
	if _, ok := goja.AssertFunction(l); !ok {
		panic(b.vm.NewTypeError("EventEmitter.%s: listener must be a function", method))
	}
	return l
}

func (b *Bridge) jsAddListener(call goja.FunctionCall) goja.Value {
	obj := b.receiver(call, "addListener")
	event := call.Argument(0).String()
	listener := b.listenerArg(call, "addListener")

	if err := b.addListener(obj, event, listener); err != nil {
		b.throw(err)
	}
	return b.subscription(obj, event, listener)
}

func (b *Bridge) jsRemoveListener(call goja.FunctionCall) goja.Value {
	obj := b.receiver(call, "removeListener")
	b.removeListener(obj, call.Argument(0).String(), b.listenerArg(call, "removeListener"))
	return goja.Undefined()
}

func (b *Bridge) jsRemoveAllListeners(call goja.FunctionCall) goja.Value {
	obj := b.receiver(call, "removeAllListeners")
	ev := call.Argument(0)
	if goja.IsUndefined(ev) || goja.IsNull(ev) {
		b.removeAllListeners(obj, nil)
	} else {
		event := ev.String()
		b.removeAllListeners(obj, &event)
	}
	return goja.Undefined()
}

func (b *Bridge) jsEmit(call goja.FunctionCall) goja.Value {
	obj := b.receiver(call, "emit")
	var args []goja.Value
	if len(call.Arguments) > 1 {
		args = call.Arguments[1:]
	}
	return b.vm.ToValue(b.emit(obj, call.Argument(0).String(), args))
}

func (b *Bridge) jsListenerCount(call goja.FunctionCall) goja.Value {
	obj := b.receiver(call, "listenerCount")
	st := b.stateOf(obj, false)
	if st == nil {
		return b.vm.ToValue(0)
	}
	return b.vm.ToValue(st.events.count(call.Argument(0).String()))
}

func (b *Bridge) addListener(obj *goja.Object, event string, listener goja.Value) error {
	st := b.stateOf(obj, true)
	if st == nil {
		return errors.UnexpectedInternal(errors.PhaseCall, "EventEmitter", "addListener", stderrors.New("object cannot hold listeners"))
	}
	if st.module != nil && !st.module.def.acceptsEvent(event) {
		return errors.New(errors.PhaseCall, errors.KindInvalidInput).
			Call(st.module.def.Name(), "addListener").
			Detail("unsupported event %q", event).
			Build()
	}
	if st.events == nil {
		st.events = &listenerMap{m: make(map[string][]goja.Value)}
	}

	prev := st.events.m[event]
	st.events.m[event] = append(prev[:len(prev):len(prev)], listener)
	if len(prev) == 0 {
		b.startObserving(obj, st, event)
	}
	return nil
}

// removeListener removes every occurrence of listener.
func (b *Bridge) removeListener(obj *goja.Object, event string, listener goja.Value) {
	st := b.stateOf(obj, false)
	if st == nil || st.events == nil {
		return
	}
	prev := st.events.m[event]
	if len(prev) == 0 {
		return
	}
	next := make([]goja.Value, 0, len(prev))
	for _, l := range prev {
		if !l.SameAs(listener) {
			next = append(next, l)
		}
	}
	if len(next) == len(prev) {
		return
	}
	if len(next) == 0 {
		delete(st.events.m, event)
		b.stopObserving(obj, st, event)
		return
	}
	st.events.m[event] = next
}

func (b *Bridge) removeAllListeners(obj *goja.Object, event *string) {
	st := b.stateOf(obj, false)
	if st == nil || st.events == nil {
		return
	}
	var events []string
	if event != nil {
		if st.events.count(*event) > 0 {
			events = []string{*event}
		}
	} else {
		for ev := range st.events.m {
			events = append(events, ev)
		}
		slices.Sort(events)
	}
	for _, ev := range events {
		delete(st.events.m, ev)
		b.stopObserving(obj, st, ev)
	}
}

// emit calls the listeners registered when emission starts. A throwing
// listener stops the emission and the exception propagates.
func (b *Bridge) emit(obj *goja.Object, event string, args []goja.Value) bool {
	st := b.stateOf(obj, false)
	if st == nil || st.events == nil {
		return false
	}
	list := st.events.m[event]
	switch len(list) {
	case 0:
		return false
	case 1:
		b.callListener(obj, list[0], args)
		return true
	}
	snapshot := slices.Clone(list)
	for _, l := range snapshot {
		b.callListener(obj, l, args)
	}
	return true
}

func (b *Bridge) callListener(obj *goja.Object, l goja.Value, args []goja.Value) {
	fn, ok := goja.AssertFunction(l)
	if !ok {
		return
	}
	if _, err := fn(obj, args...); err != nil {
		panic(err)
	}
}

func (b *Bridge) subscription(obj *goja.Object, event string, listener goja.Value) *goja.Object {
	sub := b.vm.NewObject()
	_ = sub.Set("remove", func(goja.FunctionCall) goja.Value {
		b.removeListener(obj, event, listener)
		return goja.Undefined()
	})
	return sub
}

func (b *Bridge) startObserving(obj *goja.Object, st *objectState, event string) {
	switch {
	case st.module != nil && st.module.def.onStart != nil:
		st.module.def.onStart(event)
	case st.host != nil:
		if o, ok := st.host.(EventObserver); ok {
			o.StartObserving(event)
		}
	default:
		b.callHook(obj, "startObserving", event)
	}
}

func (b *Bridge) stopObserving(obj *goja.Object, st *objectState, event string) {
	switch {
	case st.module != nil && st.module.def.onStop != nil:
		st.module.def.onStop(event)
	case st.host != nil:
		if o, ok := st.host.(EventObserver); ok {
			o.StopObserving(event)
		}
	default:
		b.callHook(obj, "stopObserving", event)
	}
}

func (b *Bridge) callHook(obj *goja.Object, name, event string) {
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		return
	}
	if _, err := fn(obj, b.vm.ToValue(event)); err != nil {
		panic(err)
	}
}

// emitHost lowers host arguments and emits on the owning goroutine.
// Listener exceptions are logged, not propagated to the host.
func (b *Bridge) emitHost(obj *goja.Object, event string, args []any) bool {
	vals := make([]goja.Value, len(args))
	for i, a := range args {
		v, err := transcoder.Lower(b, a)
		if err != nil {
			b.log.Warn("emit argument could not be lowered", zap.String("event", event), zap.Error(err))
			return false
		}
		vals[i] = v
	}

	var emitted bool
	if ex := b.vm.Try(func() {
		emitted = b.emit(obj, event, vals)
	}); ex != nil {
		b.log.Warn("event listener threw", zap.String("event", event), zap.Error(ex))
		return false
	}
	return emitted
}

// EmitOn emits event on obj from any goroutine.
func (b *Bridge) EmitOn(obj *goja.Object, event string, args ...any) bool {
	return b.ref.Invoke(func(_ *goja.Runtime, b *Bridge) {
		b.emitHost(obj, event, args)
	})
}
