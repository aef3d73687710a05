package runtime

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge"
	"github.com/wippyai/jsbridge/engine"
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/transcoder"
)

// Bridge exposes host modules to one goja runtime. It owns the root
// namespace object, the module cache, the shared object registry and the
// per-runtime function and class caches.
//
// Unless noted otherwise, methods must be called on the goroutine that owns
// the runtime. RegisterModule, UnregisterModule, Emit and the Promise and
// SharedObjectBase methods may be called from any goroutine.
type Bridge struct {
	ctx        context.Context
	cancel     context.CancelFunc
	eng        *engine.Engine
	vm         *goja.Runtime
	log        *zap.Logger
	registry   *transcoder.Registry
	ref        *engine.ThreadSafe[Bridge]
	root       *goja.Object
	modulesObj *goja.Object
	shared     *SharedObjects
	collector  *collector
	functions  map[*Callable]*goja.Object
	classes    map[*ClassDefinition]*classBinding
	byType     map[reflect.Type]*classBinding
	modules    map[string]*moduleEntry
	base       baseClasses
	namespace  string
	mu         sync.Mutex
	closed     atomic.Bool
}

// New creates a bridge with default configuration.
// It must be called on the goroutine that owns vm.
func New(vm *goja.Runtime, inv jsbridge.Invoker) (*Bridge, error) {
	return NewWithConfig(vm, inv, nil)
}

// NewWithConfig creates a bridge and installs its root namespace object as
// a global. It must be called on the goroutine that owns vm.
func NewWithConfig(vm *goja.Runtime, inv jsbridge.Invoker, cfg *Config) (*Bridge, error) {
	c := cfg.withDefaults()

	eng, err := engine.NewWithConfig(vm, inv, &engine.Config{
		WeakMode: c.WeakMode,
		Logger:   c.Logger,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		ctx:       ctx,
		cancel:    cancel,
		eng:       eng,
		vm:        vm,
		log:       c.Logger.With(zap.String("namespace", c.Namespace)),
		registry:  c.Registry,
		functions: make(map[*Callable]*goja.Object),
		classes:   make(map[*ClassDefinition]*classBinding),
		byType:    make(map[reflect.Type]*classBinding),
		modules:   make(map[string]*moduleEntry),
		namespace: c.Namespace,
	}
	b.ref = engine.NewThreadSafe(b, inv, "bridge "+c.Namespace, b.log)
	b.shared = newSharedObjects(b)
	b.collector = newCollector(b.ref, b.log)

	if err := b.install(); err != nil {
		cancel()
		eng.Close()
		return nil, err
	}

	b.log.Debug("bridge created", zap.Stringer("weak_mode", eng.WeakMode()))
	return b, nil
}

func (b *Bridge) install() error {
	global := b.vm.GlobalObject()
	if existing := global.Get(b.namespace); existing != nil && !goja.IsUndefined(existing) {
		return errors.Registration(b.namespace, "", errors.InvalidInput(errors.PhaseRegister, "global is already defined"))
	}

	b.root = b.vm.NewObject()
	if err := b.installBaseClasses(); err != nil {
		return err
	}

	b.modulesObj = b.vm.NewDynamicObject(&moduleHost{b: b})
	if err := b.root.DefineDataProperty("modules", b.modulesObj, goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return errors.Registration(b.namespace, "modules", err)
	}

	return global.DefineDataProperty(b.namespace, b.root, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// Runtime implements transcoder.Env.
func (b *Bridge) Runtime() *goja.Runtime {
	return b.vm
}

// SharedObject implements transcoder.Env.
func (b *Bridge) SharedObject(v goja.Value) (any, bool) {
	return b.shared.resolve(v)
}

// LowerShared implements transcoder.Env.
func (b *Bridge) LowerShared(v any) (goja.Value, bool, error) {
	return b.shared.lower(v)
}

// Lower converts a host value into a script value.
func (b *Bridge) Lower(v any) (goja.Value, error) {
	return transcoder.Lower(b, v)
}

// Engine returns the runtime owner.
func (b *Bridge) Engine() *engine.Engine {
	return b.eng
}

// Invoker returns the invoker of the owning goroutine.
func (b *Bridge) Invoker() jsbridge.Invoker {
	return b.eng.Invoker()
}

// Logger returns the bridge logger.
func (b *Bridge) Logger() *zap.Logger {
	return b.log
}

// Registry returns the converter registry.
func (b *Bridge) Registry() *transcoder.Registry {
	return b.registry
}

// Namespace returns the global name of the root object.
func (b *Bridge) Namespace() string {
	return b.namespace
}

// Root returns the root namespace object.
func (b *Bridge) Root() *goja.Object {
	return b.root
}

// Context is cancelled when the bridge closes. Host bodies receive
// contexts derived from it.
func (b *Bridge) Context() context.Context {
	return b.ctx
}

// SharedObjects returns the shared object registry.
func (b *Bridge) SharedObjects() *SharedObjects {
	return b.shared
}

// Closed reports whether Close has been called.
func (b *Bridge) Closed() bool {
	return b.closed.Load()
}

// Flush runs pending shared object releases and returns how many were
// released. The bridge schedules flushes itself; calling Flush forces one.
func (b *Bridge) Flush() int {
	return b.collector.flush(b)
}

// Close tears the bridge down. Runtime-dependent state goes first: modules
// are evicted, shared objects released and caches dropped. The cross-thread
// handle is invalidated last, after which late promise settlements,
// finalizers and emits are logged no-ops. Close is idempotent.
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.cancel()

	b.evictModules()
	b.shared.releaseAll()
	b.Flush()

	clear(b.functions)
	clear(b.classes)
	clear(b.byType)

	b.ref.Invalidate()
	b.eng.Close()
	b.log.Debug("bridge closed")
	return nil
}

// Function returns the script function for c, creating it on first use.
// Functions are cached per bridge until Close.
func (b *Bridge) Function(c *Callable) (*goja.Object, error) {
	if fn, ok := b.functions[c]; ok {
		return fn, nil
	}
	if b.closed.Load() {
		return nil, errors.Closed(errors.PhaseRegister, "bridge")
	}
	fn, err := c.build(b)
	if err != nil {
		return nil, err
	}
	b.functions[c] = fn
	return fn, nil
}
