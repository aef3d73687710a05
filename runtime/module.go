package runtime

import (
	stderrors "errors"
	"slices"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

// ModuleState tracks a registered module's script object.
type ModuleState uint8

const (
	// ModuleUnregistered means no script object exists yet.
	ModuleUnregistered ModuleState = iota
	// ModuleMaterializing means the object is being built.
	ModuleMaterializing
	// ModuleCached means the object exists and is reused.
	ModuleCached
)

var moduleStateNames = [...]string{
	ModuleUnregistered:  "unregistered",
	ModuleMaterializing: "materializing",
	ModuleCached:        "cached",
}

func (s ModuleState) String() string {
	if int(s) < len(moduleStateNames) {
		return moduleStateNames[s]
	}
	return "unknown"
}

// ModuleDefinition is an object definition exposed under the modules
// object of the root namespace. Module objects are event emitters.
type ModuleDefinition struct {
	*ObjectDefinition
	events    []string
	onStart   func(event string)
	onStop    func(event string)
	onCreate  func(b *Bridge, obj *goja.Object) error
	onDestroy func(b *Bridge)
}

// NewModule creates an empty module definition.
func NewModule(name string) *ModuleDefinition {
	return &ModuleDefinition{ObjectDefinition: NewObject(name)}
}

// Function adds a synchronous function bound by reflection.
func (m *ModuleDefinition) Function(name string, fn any) *ModuleDefinition {
	m.ObjectDefinition.Function(name, fn)
	return m
}

// Method adds an owner-taking function.
func (m *ModuleDefinition) Method(name string, fn any) *ModuleDefinition {
	m.ObjectDefinition.Method(name, fn)
	return m
}

// FunctionWithTypes adds a synchronous function with explicit descriptors.
func (m *ModuleDefinition) FunctionWithTypes(name string, params []transcoder.Type, body HostFunc) *ModuleDefinition {
	m.ObjectDefinition.FunctionWithTypes(name, params, body)
	return m
}

// AsyncFunction adds a promise-returning function bound by reflection.
func (m *ModuleDefinition) AsyncFunction(name string, fn any) *ModuleDefinition {
	m.ObjectDefinition.AsyncFunction(name, fn)
	return m
}

// AsyncFunctionWithTypes adds a promise-returning function with explicit
// descriptors.
func (m *ModuleDefinition) AsyncFunctionWithTypes(name string, params []transcoder.Type, body AsyncHostFunc) *ModuleDefinition {
	m.ObjectDefinition.AsyncFunctionWithTypes(name, params, body)
	return m
}

// Callable adds a prebuilt callable.
func (m *ModuleDefinition) Callable(c *Callable) *ModuleDefinition {
	m.ObjectDefinition.Callable(c)
	return m
}

// Property adds an accessor.
func (m *ModuleDefinition) Property(name string, getter, setter any) *ModuleDefinition {
	m.ObjectDefinition.Property(name, getter, setter)
	return m
}

// Constant adds a read-only value.
func (m *ModuleDefinition) Constant(name string, v any) *ModuleDefinition {
	m.ObjectDefinition.Constant(name, v)
	return m
}

// LazyConstant adds a value computed on first access.
func (m *ModuleDefinition) LazyConstant(name string, compute func() (any, error)) *ModuleDefinition {
	m.ObjectDefinition.LazyConstant(name, compute)
	return m
}

// Object adds a nested object.
func (m *ModuleDefinition) Object(name string, child *ObjectDefinition) *ModuleDefinition {
	m.ObjectDefinition.Object(name, child)
	return m
}

// Class adds a class constructor.
func (m *ModuleDefinition) Class(c *ClassDefinition) *ModuleDefinition {
	m.ObjectDefinition.Class(c)
	return m
}

// Events declares the events the module emits. Once declared, listeners
// for other events are rejected.
func (m *ModuleDefinition) Events(names ...string) *ModuleDefinition {
	m.events = append(m.events, names...)
	return m
}

// OnStartObserving sets the hook run when an event gets its first listener.
func (m *ModuleDefinition) OnStartObserving(fn func(event string)) *ModuleDefinition {
	m.onStart = fn
	return m
}

// OnStopObserving sets the hook run when an event loses its last listener.
func (m *ModuleDefinition) OnStopObserving(fn func(event string)) *ModuleDefinition {
	m.onStop = fn
	return m
}

// OnCreate sets the hook run after the module object is built.
func (m *ModuleDefinition) OnCreate(fn func(b *Bridge, obj *goja.Object) error) *ModuleDefinition {
	m.onCreate = fn
	return m
}

// OnDestroy sets the hook run when a built module is evicted.
func (m *ModuleDefinition) OnDestroy(fn func(b *Bridge)) *ModuleDefinition {
	m.onDestroy = fn
	return m
}

func (m *ModuleDefinition) acceptsEvent(event string) bool {
	return len(m.events) == 0 || slices.Contains(m.events, event)
}

type moduleEntry struct {
	def   *ModuleDefinition
	obj   *goja.Object
	state ModuleState
}

// RegisterModule makes def reachable as <namespace>.modules.<name>. The
// script object is built on first access. Safe for concurrent use.
func (b *Bridge) RegisterModule(def *ModuleDefinition) error {
	if def == nil || def.ObjectDefinition == nil {
		return errors.InvalidInput(errors.PhaseRegister, "module definition cannot be nil")
	}
	name := def.Name()
	if name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "module name cannot be empty")
	}
	if err := def.Err(); err != nil {
		return errors.Registration(name, "", err)
	}
	if b.closed.Load() {
		return errors.Closed(errors.PhaseRegister, "bridge")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.modules[name]; ok {
		return errors.Registration(name, "", stderrors.New("module already registered"))
	}
	b.modules[name] = &moduleEntry{def: def}
	b.log.Debug("module registered", zap.String("module", name))
	return nil
}

// UnregisterModule evicts a module. Objects already handed to scripts stay
// valid. A built module's OnDestroy hook runs on the owning goroutine.
// Safe for concurrent use.
func (b *Bridge) UnregisterModule(name string) bool {
	b.mu.Lock()
	e, ok := b.modules[name]
	var built bool
	if ok {
		built = e.state == ModuleCached
		delete(b.modules, name)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}

	if built && e.def.onDestroy != nil {
		b.ref.Invoke(func(_ *goja.Runtime, b *Bridge) {
			e.def.onDestroy(b)
		})
	}
	b.log.Debug("module unregistered", zap.String("module", name))
	return true
}

// ModuleState reports the state of a module's script object.
func (b *Bridge) ModuleState(name string) ModuleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.modules[name]; ok {
		return e.state
	}
	return ModuleUnregistered
}

// ModuleNames returns the registered module names in sorted order.
func (b *Bridge) ModuleNames() []string {
	b.mu.Lock()
	names := make([]string, 0, len(b.modules))
	for name := range b.modules {
		names = append(names, name)
	}
	b.mu.Unlock()
	slices.Sort(names)
	return names
}

func (b *Bridge) hasModule(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.modules[name]
	return ok
}

// Module returns the script object of a module, building it on first use.
// Access while the module is being built fails for that access only.
func (b *Bridge) Module(name string) (*goja.Object, error) {
	b.mu.Lock()
	e, ok := b.modules[name]
	if !ok {
		b.mu.Unlock()
		return nil, errors.NotFound(errors.PhaseRegister, "module", name)
	}
	switch e.state {
	case ModuleCached:
		b.mu.Unlock()
		return e.obj, nil
	case ModuleMaterializing:
		b.mu.Unlock()
		err := errors.UnexpectedInternal(errors.PhaseRegister, name, "", stderrors.New("module accessed while it is being built"))
		b.log.Error("re-entrant module access", zap.String("module", name))
		return nil, err
	}
	e.state = ModuleMaterializing
	b.mu.Unlock()

	obj, err := b.buildModule(e)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		e.state = ModuleUnregistered
		return nil, err
	}
	e.obj, e.state = obj, ModuleCached
	return obj, nil
}

func (b *Bridge) buildModule(e *moduleEntry) (*goja.Object, error) {
	obj := b.vm.CreateObject(b.base.emitter.proto)
	if st := b.stateOf(obj, true); st != nil {
		st.module = e
	}
	if err := e.def.Decorate(b, obj); err != nil {
		return nil, err
	}
	if e.def.onCreate != nil {
		if err := e.def.onCreate(b, obj); err != nil {
			return nil, errors.Registration(e.def.Name(), "", err)
		}
	}
	b.log.Debug("module materialized", zap.String("module", e.def.Name()))
	return obj, nil
}

// Emit emits event on a module's object from any goroutine. Modules that
// were never built have no listeners, so nothing happens.
func (b *Bridge) Emit(module, event string, args ...any) bool {
	return b.ref.Invoke(func(_ *goja.Runtime, b *Bridge) {
		b.mu.Lock()
		e, ok := b.modules[module]
		b.mu.Unlock()
		if !ok || e.state != ModuleCached {
			return
		}
		b.emitHost(e.obj, event, args)
	})
}

func (b *Bridge) evictModules() {
	b.mu.Lock()
	entries := make([]*moduleEntry, 0, len(b.modules))
	for _, e := range b.modules {
		entries = append(entries, e)
	}
	clear(b.modules)
	b.mu.Unlock()

	for _, e := range entries {
		if e.state == ModuleCached && e.def.onDestroy != nil {
			e.def.onDestroy(b)
		}
	}
}

// moduleHost backs the modules object, building modules on property access.
type moduleHost struct {
	b *Bridge
}

func (m *moduleHost) Get(key string) goja.Value {
	if !m.b.hasModule(key) {
		return nil
	}
	obj, err := m.b.Module(key)
	if err != nil {
		panic(transcoder.ErrorValue(m.b.vm, err))
	}
	return obj
}

func (m *moduleHost) Set(string, goja.Value) bool { return false }

func (m *moduleHost) Has(key string) bool { return m.b.hasModule(key) }

func (m *moduleHost) Delete(string) bool { return false }

func (m *moduleHost) Keys() []string { return m.b.ModuleNames() }
