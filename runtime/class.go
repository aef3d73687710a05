package runtime

import (
	stderrors "errors"
	"reflect"

	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

var reflectTypeSharedHost = reflect.TypeFor[transcoder.SharedHost]()

// ClassDefinition declares a script class backed by a host type.
//
//	counter := runtime.NewClass("Counter").
//	    Constructor(func(start int64) *Counter { return &Counter{n: start} }).
//	    Method("increment", func(c *Counter) int64 { c.n++; return c.n })
//
// The constructor's result becomes the host value of the new instance. When
// the host type is shared (it embeds SharedObjectBase, or Shared was
// called) the instance is paired in the registry before the constructor
// returns, and the class extends the base SharedObject class.
type ClassDefinition struct {
	name      string
	ctor      *Callable
	hostType  reflect.Type
	prototype *ObjectDefinition
	static    *ObjectDefinition
	errs      []error
	shared    bool
}

// NewClass creates an empty class definition.
func NewClass(name string) *ClassDefinition {
	return &ClassDefinition{
		name:      name,
		prototype: NewObject(name),
		static:    NewObject(name),
	}
}

// Name returns the class name.
func (c *ClassDefinition) Name() string {
	return c.name
}

// Constructor sets the host constructor. Its first result type becomes the
// host type of the class.
func (c *ClassDefinition) Constructor(fn any) *ClassDefinition {
	callable, err := Func(c.name, fn)
	if err != nil {
		c.errs = append(c.errs, errors.Registration(c.name, "constructor", err))
		return c
	}
	if callable.Async {
		c.errs = append(c.errs, errors.Registration(c.name, "constructor", stderrors.New("constructors cannot be async")))
		return c
	}
	callable.Module = c.name
	c.ctor = callable

	ft := reflect.TypeOf(fn)
	if ft.NumOut() > 0 && ft.Out(0) != reflectTypeError {
		c.setHostType(ft.Out(0))
	}
	return c
}

// ConstructorWithTypes sets a host constructor with explicit descriptors.
func (c *ClassDefinition) ConstructorWithTypes(params []transcoder.Type, body HostFunc) *ClassDefinition {
	callable := NewFunction(c.name, params, body)
	callable.Module = c.name
	c.ctor = callable
	return c
}

// HostType sets the Go type whose values are lowered as instances of the
// class.
func (c *ClassDefinition) HostType(t reflect.Type) *ClassDefinition {
	c.setHostType(t)
	return c
}

func (c *ClassDefinition) setHostType(t reflect.Type) {
	c.hostType = t
	if t != nil && t.Implements(reflectTypeSharedHost) {
		c.shared = true
	}
}

// Shared marks instances as shared objects even when the host type does
// not embed SharedObjectBase.
func (c *ClassDefinition) Shared() *ClassDefinition {
	c.shared = true
	return c
}

// IsShared reports whether instances are shared objects.
func (c *ClassDefinition) IsShared() bool {
	return c.shared
}

// Method adds a prototype method receiving the host value of this.
func (c *ClassDefinition) Method(name string, fn any) *ClassDefinition {
	c.prototype.Method(name, fn)
	return c
}

// AsyncMethod adds a promise-returning prototype method.
func (c *ClassDefinition) AsyncMethod(name string, fn any) *ClassDefinition {
	c.prototype.AsyncMethod(name, fn)
	return c
}

// Property adds a prototype accessor.
func (c *ClassDefinition) Property(name string, getter, setter any) *ClassDefinition {
	c.prototype.Property(name, getter, setter)
	return c
}

// StaticFunction adds a function on the constructor.
func (c *ClassDefinition) StaticFunction(name string, fn any) *ClassDefinition {
	c.static.Function(name, fn)
	return c
}

// StaticConstant adds a constant on the constructor.
func (c *ClassDefinition) StaticConstant(name string, v any) *ClassDefinition {
	c.static.Constant(name, v)
	return c
}

// Prototype returns the prototype definition.
func (c *ClassDefinition) Prototype() *ObjectDefinition {
	return c.prototype
}

// Static returns the constructor definition.
func (c *ClassDefinition) Static() *ObjectDefinition {
	return c.static
}

// Err returns the problems recorded by builder methods.
func (c *ClassDefinition) Err() error {
	errs := append([]error(nil), c.errs...)
	if err := c.prototype.Err(); err != nil {
		errs = append(errs, err)
	}
	if err := c.static.Err(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

type classBinding struct {
	def   *ClassDefinition
	ctor  *goja.Object
	proto *goja.Object
}

// bindClass creates the constructor and prototype of def for this bridge.
// Members are decorated once; later calls return the cached binding.
func (b *Bridge) bindClass(def *ClassDefinition) (*classBinding, error) {
	if binding, ok := b.classes[def]; ok {
		return binding, nil
	}
	if err := def.Err(); err != nil {
		return nil, err
	}

	binding := &classBinding{def: def}
	ctor, proto, err := b.newClass(def.name, func(call goja.ConstructorCall) *goja.Object {
		b.construct(binding, call)
		return nil
	})
	if err != nil {
		return nil, err
	}
	binding.ctor, binding.proto = ctor, proto

	if def.shared {
		if err := inherit(binding, b.base.shared); err != nil {
			return nil, errors.Registration(def.name, "", err)
		}
	}

	b.classes[def] = binding
	if def.hostType != nil {
		b.byType[def.hostType] = binding
	}

	if err := def.prototype.Decorate(b, proto); err != nil {
		return nil, err
	}
	if err := def.static.Decorate(b, ctor); err != nil {
		return nil, err
	}
	return binding, nil
}

func (b *Bridge) newClass(name string, construct func(goja.ConstructorCall) *goja.Object) (*goja.Object, *goja.Object, error) {
	ctor, ok := b.vm.ToValue(construct).(*goja.Object)
	if !ok {
		return nil, nil, errors.UnexpectedInternal(errors.PhaseRegister, name, "", stderrors.New("constructor is not an object"))
	}
	_ = ctor.DefineDataProperty("name", b.vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	proto, ok := ctor.Get("prototype").(*goja.Object)
	if !ok {
		return nil, nil, errors.UnexpectedInternal(errors.PhaseRegister, name, "", stderrors.New("constructor has no prototype"))
	}
	return ctor, proto, nil
}

func inherit(child, parent *classBinding) error {
	if err := child.proto.SetPrototype(parent.proto); err != nil {
		return err
	}
	return child.ctor.SetPrototype(parent.ctor)
}

func (b *Bridge) construct(binding *classBinding, call goja.ConstructorCall) {
	def := binding.def
	if call.NewTarget == nil {
		panic(b.vm.NewTypeError("Class constructor %s cannot be invoked without 'new'", def.name))
	}
	if b.closed.Load() {
		b.throw(errors.Closed(errors.PhaseCall, "bridge"))
	}
	if def.ctor == nil {
		return
	}

	host, err := def.ctor.run(b, goja.FunctionCall{This: call.This, Arguments: call.Arguments})
	if err != nil {
		b.throw(err)
	}
	if host == nil || host == transcoder.Undefined {
		return
	}

	if def.shared || b.isShared(host) {
		if _, err := b.shared.Pair(host, call.This); err != nil {
			b.throw(err)
		}
		return
	}
	if st := b.stateOf(call.This, true); st != nil {
		st.host = host
	}
}

// instance lowers a non-shared host value of a class type as a fresh
// instance of the class.
func (b *Bridge) instance(v any) (*goja.Object, bool) {
	binding, ok := b.byType[reflect.TypeOf(v)]
	if !ok || binding.def.shared {
		return nil, false
	}
	obj := b.vm.CreateObject(binding.proto)
	if st := b.stateOf(obj, true); st != nil {
		st.host = v
	}
	return obj, true
}
