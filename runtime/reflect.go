package runtime

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

var (
	reflectTypeContext = reflect.TypeFor[context.Context]()
	reflectTypeError   = reflect.TypeFor[error]()
	reflectTypePromise = reflect.TypeFor[*Promise]()
)

// funcShape is the analyzed signature of a Go function bound as a callable.
//
// Accepted forms, in parameter order:
//
//	[ctx context.Context] [owner T] params... [rest ...T] [p *Promise]
//
// with results (), (R), (error) or (R, error). A trailing *Promise makes the
// function settle the promise itself; it then returns at most an error.
type funcShape struct {
	fv        reflect.Value
	ft        reflect.Type
	ownerType reflect.Type
	params    []transcoder.Type
	rest      transcoder.Type
	first     int
	end       int
	withCtx   bool
	owner     bool
	promise   bool
	variadic  bool
	hasValue  bool
	hasErr    bool
}

func analyzeFunc(name string, fn any, owner bool) (*funcShape, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
			Call("", name).
			GoType(fmt.Sprintf("%T", fn)).
			Detail("handler must be a function").
			Build()
	}
	ft := fv.Type()
	s := &funcShape{fv: fv, ft: ft, end: ft.NumIn()}

	if s.first < s.end && ft.In(s.first) == reflectTypeContext {
		s.withCtx = true
		s.first++
	}
	if owner {
		if s.first >= s.end {
			return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
				Call("", name).
				Detail("method must take its owner as first parameter").
				Build()
		}
		s.owner = true
		s.ownerType = ft.In(s.first)
		s.first++
	}
	if s.end > s.first && ft.In(s.end-1) == reflectTypePromise {
		s.promise = true
		s.end--
	}
	s.variadic = ft.IsVariadic() && !s.promise

	for i := s.first; i < s.end; i++ {
		if s.variadic && i == s.end-1 {
			s.rest = transcoder.TypeOf(ft.In(i).Elem())
			break
		}
		s.params = append(s.params, transcoder.TypeOf(ft.In(i)))
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == reflectTypeError {
			s.hasErr = true
		} else {
			s.hasValue = true
		}
	case 2:
		if ft.Out(1) != reflectTypeError {
			return nil, badResults(name, ft)
		}
		s.hasValue, s.hasErr = true, true
	default:
		return nil, badResults(name, ft)
	}
	if s.promise && s.hasValue {
		return nil, badResults(name, ft)
	}
	return s, nil
}

func badResults(name string, ft reflect.Type) error {
	return errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
		Call("", name).
		GoType(ft.String()).
		Detail("results must be (), (R), (error) or (R, error); promise handlers return at most error").
		Build()
}

// prepare coerces canonical arguments into call values.
func (s *funcShape) prepare(ctx context.Context, args []any, p *Promise) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, s.ft.NumIn()+len(args))
	if s.withCtx {
		in = append(in, reflect.ValueOf(ctx))
	}

	idx := 0
	if s.owner {
		var owner any
		if len(args) > 0 {
			owner = args[0]
		}
		rv, err := transcoder.Coerce(owner, s.ownerType)
		if err != nil {
			return nil, withPath(err, "this")
		}
		in = append(in, rv)
		idx = 1
	}

	pos := 0
	for i := s.first; i < s.end; i++ {
		pt := s.ft.In(i)
		if s.variadic && i == s.end-1 {
			for ; idx < len(args); idx++ {
				rv, err := transcoder.Coerce(args[idx], pt.Elem())
				if err != nil {
					return nil, withPath(err, strconv.Itoa(pos))
				}
				in = append(in, rv)
				pos++
			}
			break
		}
		var v any
		if idx < len(args) {
			v = args[idx]
		}
		idx++
		rv, err := transcoder.Coerce(v, pt)
		if err != nil {
			return nil, withPath(err, strconv.Itoa(pos))
		}
		in = append(in, rv)
		pos++
	}

	if s.promise {
		in = append(in, reflect.ValueOf(p))
	}
	return in, nil
}

func (s *funcShape) invoke(in []reflect.Value) (any, error) {
	out := s.fv.Call(in)

	var err error
	if s.hasErr {
		if e := out[len(out)-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
	}
	if !s.hasValue {
		return transcoder.Undefined, err
	}
	if err != nil {
		return nil, err
	}
	return out[0].Interface(), nil
}

func withPath(err error, seg string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append([]string{seg}, e.Path...)
	}
	return err
}

func (s *funcShape) callable(name string) *Callable {
	return &Callable{
		Name:       name,
		Params:     s.params,
		Rest:       s.rest,
		OwnerType:  s.ownerType,
		TakesOwner: s.owner,
	}
}

func (s *funcShape) syncBody() HostFunc {
	return func(ctx context.Context, args []any) (any, error) {
		in, err := s.prepare(ctx, args, nil)
		if err != nil {
			return nil, err
		}
		return s.invoke(in)
	}
}

// asyncBody runs promise handlers inline on the owning goroutine and any
// other function on its own goroutine, settling with its results.
// Arguments are coerced before either, so bad input rejects immediately.
func (s *funcShape) asyncBody() AsyncHostFunc {
	return func(ctx context.Context, args []any, p *Promise) error {
		in, err := s.prepare(ctx, args, p)
		if err != nil {
			return err
		}
		if s.promise {
			_, err := s.invoke(in)
			return err
		}
		go func() {
			defer func() {
				if r := recover(); r != nil {
					p.Reject(errors.UnexpectedInternal(errors.PhaseAsync, p.module, p.name, fmt.Errorf("panic: %v", r)))
				}
			}()
			res, err := s.invoke(in)
			if err != nil {
				p.Reject(err)
				return
			}
			p.Resolve(res)
		}()
		return nil
	}
}

func reflectCallable(name string, fn any, owner, async bool) (*Callable, error) {
	s, err := analyzeFunc(name, fn, owner)
	if err != nil {
		return nil, err
	}
	c := s.callable(name)
	if async || s.promise {
		c.Async = true
		c.AsyncBody = s.asyncBody()
	} else {
		c.Body = s.syncBody()
	}
	return c, nil
}

// Func builds a synchronous callable from a Go function. Parameter
// descriptors are derived with transcoder.TypeOf. A function taking a
// trailing *Promise is bound as async.
func Func(name string, fn any) (*Callable, error) {
	return reflectCallable(name, fn, false, false)
}

// Method is like Func, but the first parameter after an optional context
// receives the owner of the call.
func Method(name string, fn any) (*Callable, error) {
	return reflectCallable(name, fn, true, false)
}

// AsyncFunc builds a promise-returning callable from a Go function.
// Unless fn takes a trailing *Promise, it runs on its own goroutine and
// its results settle the promise.
func AsyncFunc(name string, fn any) (*Callable, error) {
	return reflectCallable(name, fn, false, true)
}

// AsyncMethod is the owner-taking form of AsyncFunc.
func AsyncMethod(name string, fn any) (*Callable, error) {
	return reflectCallable(name, fn, true, true)
}

// nonContextParams counts the parameters of fn other than a leading context.
func nonContextParams(fn any) int {
	ft := reflect.TypeOf(fn)
	if ft == nil || ft.Kind() != reflect.Func {
		return -1
	}
	n := ft.NumIn()
	if n > 0 && ft.In(0) == reflectTypeContext {
		n--
	}
	return n
}
