package runtime

import (
	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
)

// baseClasses are installed on the root object of every bridge:
//
//	EventEmitter
//	  SharedObject   release(), objectId
//	    SharedRef    refType
//
// Modules are EventEmitter instances, and shared classes extend
// SharedObject. Scripts may extend any of them.
type baseClasses struct {
	emitter   *classBinding
	shared    *classBinding
	sharedRef *classBinding
}

type method struct {
	fn   func(goja.FunctionCall) goja.Value
	name string
}

func (b *Bridge) installBaseClasses() error {
	emitter, err := b.baseClass("EventEmitter", nil, []method{
		{name: "addListener", fn: b.jsAddListener},
		{name: "removeListener", fn: b.jsRemoveListener},
		{name: "removeAllListeners", fn: b.jsRemoveAllListeners},
		{name: "emit", fn: b.jsEmit},
		{name: "listenerCount", fn: b.jsListenerCount},
	})
	if err != nil {
		return err
	}
	b.base.emitter = emitter

	shared, err := b.baseClass("SharedObject", emitter, []method{
		{name: "release", fn: b.jsRelease},
	})
	if err != nil {
		return err
	}
	if err := b.accessor(shared.proto, "objectId", b.jsObjectID); err != nil {
		return err
	}
	b.base.shared = shared

	sharedRef, err := b.baseClass("SharedRef", shared, nil)
	if err != nil {
		return err
	}
	if err := b.accessor(sharedRef.proto, "refType", b.jsRefType); err != nil {
		return err
	}
	b.base.sharedRef = sharedRef
	return nil
}

func (b *Bridge) baseClass(name string, parent *classBinding, methods []method) (*classBinding, error) {
	binding := &classBinding{def: NewClass(name)}
	ctor, proto, err := b.newClass(name, func(call goja.ConstructorCall) *goja.Object {
		if call.NewTarget == nil {
			panic(b.vm.NewTypeError("Class constructor %s cannot be invoked without 'new'", name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	binding.ctor, binding.proto = ctor, proto

	if parent != nil {
		binding.def.shared = parent.def.shared || parent == b.base.emitter
		if err := inherit(binding, parent); err != nil {
			return nil, errors.Registration(b.namespace, name, err)
		}
	}
	for _, m := range methods {
		fn := b.vm.ToValue(m.fn).(*goja.Object)
		_ = fn.DefineDataProperty("name", b.vm.ToValue(m.name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
		if err := proto.DefineDataProperty(m.name, fn, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return nil, errors.Registration(b.namespace, name+"."+m.name, err)
		}
	}
	if err := b.root.DefineDataProperty(name, ctor, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return nil, errors.Registration(b.namespace, name, err)
	}
	return binding, nil
}

func (b *Bridge) accessor(obj *goja.Object, name string, get func(goja.FunctionCall) goja.Value) error {
	if err := obj.DefineAccessorProperty(name, b.vm.ToValue(get), nil, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return errors.Registration(b.namespace, name, err)
	}
	return nil
}

func (b *Bridge) jsRelease(call goja.FunctionCall) goja.Value {
	obj, ok := call.This.(*goja.Object)
	if !ok {
		panic(b.vm.NewTypeError("SharedObject.release called on incompatible receiver"))
	}
	if st := b.stateOf(obj, false); st != nil && st.shared && st.id != 0 {
		b.shared.remove(st.id, nil)
	}
	return goja.Undefined()
}

func (b *Bridge) jsObjectID(call goja.FunctionCall) goja.Value {
	if obj, ok := call.This.(*goja.Object); ok {
		if st := b.stateOf(obj, false); st != nil && st.shared {
			return b.vm.ToValue(uint64(st.id))
		}
	}
	return b.vm.ToValue(0)
}

func (b *Bridge) jsRefType(call goja.FunctionCall) goja.Value {
	if r, ok := b.owner(call.This).(refTyped); ok {
		return b.vm.ToValue(r.RefType())
	}
	return goja.Undefined()
}
