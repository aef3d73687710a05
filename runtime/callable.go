package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

// HostFunc is the body of a synchronous callable. args holds one canonical
// value per declared parameter, nil for absent ones, preceded by the owner
// when the callable takes one.
type HostFunc func(ctx context.Context, args []any) (any, error)

// AsyncHostFunc is the body of a promise-returning callable. It must settle
// p exactly once, from any goroutine. A returned error rejects p at once.
type AsyncHostFunc func(ctx context.Context, args []any, p *Promise) error

// Callable describes one host function exposed to scripts.
type Callable struct {
	// Name is the script-visible name.
	Name string

	// Module names the owning module in errors and logs.
	Module string

	// Params are the descriptors of the explicit parameters.
	Params []transcoder.Type

	// Rest, when set, accepts any number of trailing arguments.
	Rest transcoder.Type

	// OwnerType is the Go type the owner is coerced to, if known.
	OwnerType reflect.Type

	Body      HostFunc
	AsyncBody AsyncHostFunc

	// TakesOwner prepends the receiver to args: the host value paired
	// with this, or this itself.
	TakesOwner bool

	// Async selects the promise path.
	Async bool
}

// NewFunction creates a synchronous callable.
func NewFunction(name string, params []transcoder.Type, body HostFunc) *Callable {
	return &Callable{Name: name, Params: params, Body: body}
}

// NewAsyncFunction creates a promise-returning callable.
func NewAsyncFunction(name string, params []transcoder.Type, body AsyncHostFunc) *Callable {
	return &Callable{Name: name, Params: params, AsyncBody: body, Async: true}
}

func (c *Callable) validate() error {
	if c.Name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "callable name cannot be empty")
	}
	if c.Async && c.AsyncBody == nil || !c.Async && c.Body == nil {
		return errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Call(c.Module, c.Name).
			Detail("callable has no body").
			Build()
	}
	return nil
}

func (c *Callable) build(b *Bridge) (*goja.Object, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	convs := b.registry.ObtainAll(c.Params)
	var rest transcoder.Converter
	if c.Rest != nil {
		rest = b.registry.Obtain(c.Rest)
	}

	var native func(goja.FunctionCall) goja.Value
	if c.Async {
		native = func(call goja.FunctionCall) goja.Value {
			return c.callAsync(b, convs, rest, call)
		}
	} else {
		native = func(call goja.FunctionCall) goja.Value {
			return c.callSync(b, convs, rest, call)
		}
	}

	fn, ok := b.vm.ToValue(native).(*goja.Object)
	if !ok {
		return nil, errors.UnexpectedInternal(errors.PhaseRegister, c.Module, c.Name, nil)
	}
	_ = fn.DefineDataProperty("name", b.vm.ToValue(c.Name), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = fn.DefineDataProperty("length", b.vm.ToValue(len(c.Params)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return fn, nil
}

// marshal converts script arguments to canonical host values. It never
// calls the host body.
func (c *Callable) marshal(b *Bridge, convs []transcoder.Converter, rest transcoder.Converter, call goja.FunctionCall) ([]any, error) {
	received := len(call.Arguments)
	if rest == nil && received > len(convs) {
		e := errors.InvalidArgumentCount(c.Name, received, len(convs))
		e.Module = c.Module
		return nil, e
	}

	n := len(convs)
	if received > n {
		n = received
	}
	args := make([]any, 0, n+1)
	if c.TakesOwner {
		args = append(args, b.owner(call.This))
	}

	for i := 0; i < n; i++ {
		conv := rest
		if i < len(convs) {
			conv = convs[i]
		}
		v, err := c.convertArg(b, conv, call.Argument(i), i)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func (c *Callable) convertArg(b *Bridge, conv transcoder.Converter, v goja.Value, i int) (any, error) {
	idx := strconv.Itoa(i)
	if conv.CanConvert(b, v) {
		out, err := conv.Convert(b, v)
		if err != nil {
			return nil, c.annotate(err, idx)
		}
		return out, nil
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return nil, c.annotate(errors.Conversion(nil, conv.Type().String(), v, transcoder.Stringify(v)), idx)
}

// annotate adds call context to a copy of a bridge error. Host bodies may
// return shared error values.
func (c *Callable) annotate(err error, idx string) error {
	var found *errors.Error
	if !stderrors.As(err, &found) {
		return err
	}
	cp := *found
	e := &cp
	if idx != "" {
		e.Path = append([]string{idx}, found.Path...)
	} else {
		e.Path = append([]string(nil), found.Path...)
	}
	if e.Module == "" && e.Method == "" {
		e.Module, e.Method = c.Module, c.Name
	}
	return e
}

// classify wraps errors returned by host bodies. Bridge errors keep their
// kind; anything else becomes a host callable error.
func (c *Callable) classify(phase errors.Phase, err error) error {
	if err == nil {
		return nil
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return c.annotate(e, "")
	}
	return errors.HostCallable(phase, c.Module, c.Name, err)
}

// recovered turns a host panic into an internal error. Script exceptions
// raised by nested runtime calls keep propagating.
func (c *Callable) recovered(phase errors.Phase, r any) error {
	switch r.(type) {
	case *goja.Exception, *goja.InterruptedError, goja.Value:
		panic(r)
	}
	return errors.UnexpectedInternal(phase, c.Module, c.Name, fmt.Errorf("panic: %v", r))
}

func (c *Callable) logFailure(b *Bridge, argc int, err error) {
	fields := []zap.Field{
		zap.String("module", c.Module),
		zap.String("method", c.Name),
		zap.Int("args", argc),
		zap.Error(err),
	}
	var e *errors.Error
	if stderrors.As(err, &e) && e.Kind == errors.KindUnexpectedInternal {
		b.log.Error("host call failed", fields...)
		return
	}
	b.log.Debug("host call failed", fields...)
}

func (c *Callable) context(b *Bridge, call goja.FunctionCall) context.Context {
	return withCall(b.ctx, &CallInfo{
		Bridge: b,
		This:   call.This,
		Module: c.Module,
		Name:   c.Name,
	})
}

func (c *Callable) callSync(b *Bridge, convs []transcoder.Converter, rest transcoder.Converter, call goja.FunctionCall) goja.Value {
	if b.closed.Load() {
		panic(transcoder.ErrorValue(b.vm, errors.Closed(errors.PhaseCall, "bridge")))
	}

	args, err := c.marshal(b, convs, rest, call)
	if err != nil {
		panic(transcoder.ErrorValue(b.vm, err))
	}

	res, err := c.invoke(c.context(b, call), args)
	if err != nil {
		c.logFailure(b, len(call.Arguments), err)
		panic(transcoder.ErrorValue(b.vm, err))
	}

	val, err := transcoder.Lower(b, res)
	if err != nil {
		panic(transcoder.ErrorValue(b.vm, c.annotate(err, "")))
	}
	return val
}

// run marshals call and invokes the synchronous body without lowering the
// result.
func (c *Callable) run(b *Bridge, call goja.FunctionCall) (any, error) {
	var rest transcoder.Converter
	if c.Rest != nil {
		rest = b.registry.Obtain(c.Rest)
	}
	args, err := c.marshal(b, b.registry.ObtainAll(c.Params), rest, call)
	if err != nil {
		return nil, err
	}
	res, err := c.invoke(c.context(b, call), args)
	if err != nil {
		c.logFailure(b, len(call.Arguments), err)
	}
	return res, err
}

func (c *Callable) invoke(ctx context.Context, args []any) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, c.recovered(errors.PhaseCall, r)
		}
	}()
	res, err = c.Body(ctx, args)
	return res, c.classify(errors.PhaseCall, err)
}

func (c *Callable) callAsync(b *Bridge, convs []transcoder.Converter, rest transcoder.Converter, call goja.FunctionCall) goja.Value {
	promise, resolve, reject := b.vm.NewPromise()
	p := newPromise(b, c, resolve, reject)

	if b.closed.Load() {
		p.rejectNow(errors.Closed(errors.PhaseAsync, "bridge"))
		return b.vm.ToValue(promise)
	}

	args, err := c.marshal(b, convs, rest, call)
	if err != nil {
		p.rejectNow(err)
		return b.vm.ToValue(promise)
	}

	if err := c.invokeAsync(c.context(b, call), args, p); err != nil {
		c.logFailure(b, len(call.Arguments), err)
		p.rejectNow(err)
	}
	return b.vm.ToValue(promise)
}

func (c *Callable) invokeAsync(ctx context.Context, args []any, p *Promise) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = c.recovered(errors.PhaseAsync, r)
		}
	}()
	return c.classify(errors.PhaseAsync, c.AsyncBody(ctx, args, p))
}
