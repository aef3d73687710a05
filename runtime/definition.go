package runtime

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

// ObjectDefinition declares the members of a script object. Builder
// methods record problems instead of failing; Err reports them and
// registration refuses a definition with errors.
//
//	def := runtime.NewObject("Math").
//	    Function("add", func(a, b int32) int32 { return a + b }).
//	    Constant("PI", math.Pi)
type ObjectDefinition struct {
	name       string
	functions  FunctionDecorator
	properties PropertyDecorator
	constants  ConstantDecorator
	lazy       LazyConstantDecorator
	objects    ObjectDecorator
	classes    ClassDecorator
	names      map[string]struct{}
	errs       []error
	decorators Decorators
	once       sync.Once
}

// NewObject creates an empty object definition.
func NewObject(name string) *ObjectDefinition {
	return &ObjectDefinition{name: name, names: make(map[string]struct{})}
}

// Name returns the definition name.
func (d *ObjectDefinition) Name() string {
	return d.name
}

func (d *ObjectDefinition) claim(name string) bool {
	if name == "" {
		d.errs = append(d.errs, errors.Registration(d.name, name, stderrors.New("member name cannot be empty")))
		return false
	}
	if _, dup := d.names[name]; dup {
		d.errs = append(d.errs, errors.Registration(d.name, name, stderrors.New("member already defined")))
		return false
	}
	d.names[name] = struct{}{}
	return true
}

func (d *ObjectDefinition) fail(name string, err error) *ObjectDefinition {
	d.errs = append(d.errs, errors.Registration(d.name, name, err))
	return d
}

// Callable adds a prebuilt callable as a function member.
func (d *ObjectDefinition) Callable(c *Callable) *ObjectDefinition {
	if c == nil {
		return d.fail("", stderrors.New("callable cannot be nil"))
	}
	if !d.claim(c.Name) {
		return d
	}
	if c.Module == "" {
		c.Module = d.name
	}
	d.functions = append(d.functions, c)
	return d
}

func (d *ObjectDefinition) add(name string, c *Callable, err error) *ObjectDefinition {
	if err != nil {
		return d.fail(name, err)
	}
	return d.Callable(c)
}

// Function adds a synchronous function bound by reflection.
func (d *ObjectDefinition) Function(name string, fn any) *ObjectDefinition {
	c, err := Func(name, fn)
	return d.add(name, c, err)
}

// Method adds a function that receives the owner of the call as its first
// parameter after an optional context.
func (d *ObjectDefinition) Method(name string, fn any) *ObjectDefinition {
	c, err := Method(name, fn)
	return d.add(name, c, err)
}

// FunctionWithTypes adds a synchronous function with explicit descriptors.
func (d *ObjectDefinition) FunctionWithTypes(name string, params []transcoder.Type, body HostFunc) *ObjectDefinition {
	return d.Callable(NewFunction(name, params, body))
}

// AsyncFunction adds a promise-returning function bound by reflection.
func (d *ObjectDefinition) AsyncFunction(name string, fn any) *ObjectDefinition {
	c, err := AsyncFunc(name, fn)
	return d.add(name, c, err)
}

// AsyncMethod adds a promise-returning function that receives the owner.
func (d *ObjectDefinition) AsyncMethod(name string, fn any) *ObjectDefinition {
	c, err := AsyncMethod(name, fn)
	return d.add(name, c, err)
}

// AsyncFunctionWithTypes adds a promise-returning function with explicit
// descriptors.
func (d *ObjectDefinition) AsyncFunctionWithTypes(name string, params []transcoder.Type, body AsyncHostFunc) *ObjectDefinition {
	return d.Callable(NewAsyncFunction(name, params, body))
}

// Property adds an accessor. getter is required; setter may be nil.
// A getter taking one parameter, or a setter taking two, receives the
// owner first.
func (d *ObjectDefinition) Property(name string, getter, setter any) *ObjectDefinition {
	if getter == nil {
		return d.fail(name, stderrors.New("property getter cannot be nil"))
	}
	if !d.claim(name) {
		return d
	}

	p := &Property{Name: name}
	g, err := reflectCallable(name, getter, nonContextParams(getter) == 1, false)
	if err != nil {
		return d.fail(name, err)
	}
	g.Module = d.name
	p.Getter = g

	if setter != nil {
		s, err := reflectCallable(name, setter, nonContextParams(setter) == 2, false)
		if err != nil {
			return d.fail(name, err)
		}
		s.Module = d.name
		p.Setter = s
	}
	d.properties = append(d.properties, p)
	return d
}

// Constant adds a read-only enumerable value.
func (d *ObjectDefinition) Constant(name string, v any) *ObjectDefinition {
	if d.claim(name) {
		d.constants = append(d.constants, Constant{Name: name, Value: v})
	}
	return d
}

// LazyConstant adds a value computed on first access.
func (d *ObjectDefinition) LazyConstant(name string, compute func() (any, error)) *ObjectDefinition {
	if compute == nil {
		return d.fail(name, stderrors.New("lazy constant needs a compute function"))
	}
	if d.claim(name) {
		d.lazy = append(d.lazy, &LazyConstant{Name: name, Compute: compute})
	}
	return d
}

// Object adds a nested object.
func (d *ObjectDefinition) Object(name string, child *ObjectDefinition) *ObjectDefinition {
	if child == nil {
		return d.fail(name, stderrors.New("object definition cannot be nil"))
	}
	if d.claim(name) {
		d.objects = append(d.objects, NamedObject{Name: name, Definition: child})
	}
	return d
}

// Class adds a class constructor.
func (d *ObjectDefinition) Class(c *ClassDefinition) *ObjectDefinition {
	if c == nil {
		return d.fail("", stderrors.New("class definition cannot be nil"))
	}
	if d.claim(c.name) {
		d.classes = append(d.classes, c)
	}
	return d
}

// Err returns the problems recorded by builder methods, including those of
// nested definitions.
func (d *ObjectDefinition) Err() error {
	errs := append([]error(nil), d.errs...)
	for _, o := range d.objects {
		if err := o.Definition.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range d.classes {
		if err := c.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Decorators returns the decorators compiled from the definition. They are
// built once and shared by every object the definition decorates.
func (d *ObjectDefinition) Decorators() Decorators {
	d.once.Do(func() {
		d.decorators = Decorators{
			d.functions,
			d.properties,
			d.constants,
			d.lazy,
			d.objects,
			d.classes,
		}
	})
	return d.decorators
}

// Decorate implements Decorator.
func (d *ObjectDefinition) Decorate(b *Bridge, obj *goja.Object) error {
	if err := d.Err(); err != nil {
		return err
	}
	return d.Decorators().Decorate(b, obj)
}

func (d *ObjectDefinition) instantiate(b *Bridge) (*goja.Object, error) {
	obj := b.vm.NewObject()
	if err := d.Decorate(b, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// LowerJS implements transcoder.Lowerable: a host function may return a
// definition to hand scripts a freshly decorated object.
func (d *ObjectDefinition) LowerJS(env transcoder.Env) (goja.Value, error) {
	b, ok := env.(*Bridge)
	if !ok {
		return nil, errors.UnexpectedInternal(errors.PhaseLower, d.name, "", fmt.Errorf("object definitions need a bridge, got %T", env))
	}
	return d.instantiate(b)
}
