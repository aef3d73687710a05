package runtime

import (
	stderrors "errors"
	"reflect"
	"slices"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

// Host is the interface for struct-based host modules.
// All exported methods (except those of the interfaces below) are
// registered as module functions named in lowerCamelCase.
type Host interface {
	// ModuleName returns the name under the root's modules object.
	ModuleName() string
}

// AsyncHost extends Host with async function declarations.
// Functions listed by AsyncFunctions return promises.
type AsyncHost interface {
	Host
	AsyncFunctions() []string
}

// EventHost extends Host with the events the module emits.
type EventHost interface {
	Host
	Events() []string
}

// ExplicitRegistrar allows hosts to provide exact function names
// when the automatic lowerCamelCase conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

var hostMethods = map[string]bool{
	"ModuleName":     true,
	"AsyncFunctions": true,
	"Events":         true,
	"Register":       true,
	"StartObserving": true,
	"StopObserving":  true,
}

// HostModule builds a module definition from h.
func HostModule(h Host) (*ModuleDefinition, error) {
	name := h.ModuleName()
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseRegister, "module name cannot be empty")
	}

	async := make(map[string]bool)
	if ah, ok := h.(AsyncHost); ok {
		for _, fn := range ah.AsyncFunctions() {
			async[fn] = true
		}
	}

	def := NewModule(name)
	add := func(fnName string, handler any) {
		if async[fnName] {
			def.AsyncFunction(fnName, handler)
			delete(async, fnName)
			return
		}
		def.Function(fnName, handler)
	}

	if er, ok := h.(ExplicitRegistrar); ok {
		funcs := er.Register()
		names := make([]string, 0, len(funcs))
		for fnName := range funcs {
			names = append(names, fnName)
		}
		slices.Sort(names)
		for _, fnName := range names {
			add(fnName, funcs[fnName])
		}
	} else {
		rv := reflect.ValueOf(h)
		rt := rv.Type()
		for i := 0; i < rt.NumMethod(); i++ {
			method := rt.Method(i)
			if !method.IsExported() || hostMethods[method.Name] {
				continue
			}
			add(transcoder.LowerCamel(method.Name), rv.Method(i).Interface())
		}
	}

	for fnName := range async {
		def.fail(fnName, stderrors.New("async function is not defined"))
	}

	if eh, ok := h.(EventHost); ok {
		def.Events(eh.Events()...)
	}
	if o, ok := h.(EventObserver); ok {
		def.OnStartObserving(o.StartObserving).OnStopObserving(o.StopObserving)
	}

	if err := def.Err(); err != nil {
		return nil, err
	}
	return def, nil
}

// RegisterHost builds a module from h and registers it.
func (b *Bridge) RegisterHost(h Host) error {
	def, err := HostModule(h)
	if err != nil {
		return err
	}
	return b.RegisterModule(def)
}
