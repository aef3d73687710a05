package runtime

import (
	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

// Decorator defines members on a script object. A decorator may decorate
// any number of objects; each object is decorated once, at creation.
type Decorator interface {
	Decorate(b *Bridge, obj *goja.Object) error
}

// Decorators applies decorators in order and stops at the first error.
type Decorators []Decorator

// Decorate implements Decorator.
func (ds Decorators) Decorate(b *Bridge, obj *goja.Object) error {
	for _, d := range ds {
		if err := d.Decorate(b, obj); err != nil {
			return err
		}
	}
	return nil
}

// FunctionDecorator defines callables as enumerable, read-only data
// properties.
type FunctionDecorator []*Callable

// Decorate implements Decorator.
func (d FunctionDecorator) Decorate(b *Bridge, obj *goja.Object) error {
	for _, c := range d {
		fn, err := b.Function(c)
		if err != nil {
			return err
		}
		if err := obj.DefineDataProperty(c.Name, fn, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return errors.Registration(c.Module, c.Name, err)
		}
	}
	return nil
}

// Property is an accessor backed by a getter and an optional setter.
type Property struct {
	Name   string
	Getter *Callable
	Setter *Callable
}

// PropertyDecorator defines non-enumerable accessor properties.
type PropertyDecorator []*Property

// Decorate implements Decorator.
func (d PropertyDecorator) Decorate(b *Bridge, obj *goja.Object) error {
	for _, p := range d {
		var getter, setter goja.Value
		if p.Getter != nil {
			fn, err := b.Function(p.Getter)
			if err != nil {
				return err
			}
			getter = fn
		}
		if p.Setter != nil {
			fn, err := b.Function(p.Setter)
			if err != nil {
				return err
			}
			setter = fn
		}
		if err := obj.DefineAccessorProperty(p.Name, getter, setter, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
			return errors.Registration("", p.Name, err)
		}
	}
	return nil
}

// Constant is a value lowered once per decorated object.
type Constant struct {
	Name  string
	Value any
}

// ConstantDecorator defines enumerable read-only data properties.
type ConstantDecorator []Constant

// Decorate implements Decorator.
func (d ConstantDecorator) Decorate(b *Bridge, obj *goja.Object) error {
	for _, c := range d {
		val, err := transcoder.Lower(b, c.Value)
		if err != nil {
			return errors.Registration("", c.Name, err)
		}
		if err := obj.DefineDataProperty(c.Name, val, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return errors.Registration("", c.Name, err)
		}
	}
	return nil
}

// LazyConstant is computed on first access and then cached on the object.
type LazyConstant struct {
	Name    string
	Compute func() (any, error)
}

// LazyConstantDecorator defines accessors that replace themselves with a
// read-only data property on first read.
type LazyConstantDecorator []*LazyConstant

// Decorate implements Decorator.
func (d LazyConstantDecorator) Decorate(b *Bridge, obj *goja.Object) error {
	for _, lc := range d {
		getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value {
			v, err := lc.Compute()
			if err != nil {
				panic(transcoder.ErrorValue(b.vm, errors.HostCallable(errors.PhaseCall, "", lc.Name, err)))
			}
			val, err := transcoder.Lower(b, v)
			if err != nil {
				panic(transcoder.ErrorValue(b.vm, err))
			}
			if err := obj.DefineDataProperty(lc.Name, val, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
				b.log.Warn("lazy constant could not be cached")
			}
			return val
		})
		if err := obj.DefineAccessorProperty(lc.Name, getter, nil, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			return errors.Registration("", lc.Name, err)
		}
	}
	return nil
}

// NamedObject is a nested object built from a definition.
type NamedObject struct {
	Name       string
	Definition *ObjectDefinition
}

// ObjectDecorator defines nested objects as enumerable read-only properties.
type ObjectDecorator []NamedObject

// Decorate implements Decorator.
func (d ObjectDecorator) Decorate(b *Bridge, obj *goja.Object) error {
	for _, o := range d {
		child, err := o.Definition.instantiate(b)
		if err != nil {
			return err
		}
		if err := obj.DefineDataProperty(o.Name, child, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return errors.Registration("", o.Name, err)
		}
	}
	return nil
}

// ClassDecorator defines class constructors. Each class is bound once per
// bridge and shared by every object it decorates.
type ClassDecorator []*ClassDefinition

// Decorate implements Decorator.
func (d ClassDecorator) Decorate(b *Bridge, obj *goja.Object) error {
	for _, c := range d {
		binding, err := b.bindClass(c)
		if err != nil {
			return err
		}
		if err := obj.DefineDataProperty(c.name, binding.ctor, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return errors.Registration("", c.name, err)
		}
	}
	return nil
}
