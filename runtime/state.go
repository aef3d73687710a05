package runtime

import (
	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/resource"
)

// objectState is the native state attached to bridge-managed objects.
// Shared wrappers carry their id and host value; emitters carry listeners.
type objectState struct {
	host   any
	module *moduleEntry
	events *listenerMap
	id     resource.ID
	shared bool
}

// stateOf returns the native state of obj, creating it when create is set.
func (b *Bridge) stateOf(obj *goja.Object, create bool) *objectState {
	if v, ok := b.eng.Native(obj); ok {
		if st, ok := v.(*objectState); ok {
			return st
		}
		return nil
	}
	if !create {
		return nil
	}
	st := &objectState{}
	if err := b.eng.SetNative(obj, st); err != nil {
		return nil
	}
	return st
}

// owner resolves the receiver of a method call: the host value paired with
// this, or the object itself.
func (b *Bridge) owner(this goja.Value) any {
	obj, ok := this.(*goja.Object)
	if !ok {
		if this == nil || goja.IsUndefined(this) || goja.IsNull(this) {
			return nil
		}
		return this.Export()
	}
	if st := b.stateOf(obj, false); st != nil && st.host != nil {
		return st.host
	}
	return obj
}
