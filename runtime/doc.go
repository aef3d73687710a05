// Package runtime exposes host modules, classes and shared objects to a
// goja runtime.
//
// # Quick Start
//
//	vm := goja.New()
//	inv := engine.NewQueueInvoker(vm)
//
//	b, err := runtime.New(vm, inv)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	err = b.RegisterModule(runtime.NewModule("Math").
//	    Function("add", func(a, b int32) int32 { return a + b }).
//	    AsyncFunction("slowAdd", func(ctx context.Context, a, b int32) (int32, error) {
//	        time.Sleep(10 * time.Millisecond)
//	        return a + b, nil
//	    }))
//
//	v, _ := vm.RunString(`host.modules.Math.add(2, 3)`) // 5
//
// # Modules
//
// A module is built on first access of host.modules.<name> and cached.
// Module objects are event emitters: the host emits with Bridge.Emit from
// any goroutine and scripts subscribe with addListener.
//
// Struct-based modules are registered with RegisterHost. Exported methods
// become functions named in lowerCamelCase:
//
//	type Clock struct{}
//
//	func (Clock) ModuleName() string { return "Clock" }
//	func (Clock) NowUnix() int64     { return time.Now().Unix() }
//
//	b.RegisterHost(Clock{}) // host.modules.Clock.nowUnix()
//
// # Callables
//
// Go functions are bound by reflection. The accepted signature is
//
//	func([ctx context.Context,] [owner T,] params... [, rest ...T] [, p *Promise]) ([R,] [error])
//
// Arguments are converted with the descriptors derived from the parameter
// types. Passing more arguments than declared parameters fails with
// ERR_INVALID_ARGS_NUMBER; missing ones arrive as zero values. Host errors
// are thrown as Error objects carrying a code property.
//
// Async callables return a promise. A function without a *Promise
// parameter runs on its own goroutine and settles with its results; one
// with a *Promise parameter runs inline and settles p itself, from any
// goroutine. Settlement hops back to the owning goroutine through the
// invoker.
//
// # Classes and Shared Objects
//
// A class pairs each script instance with a host value produced by its
// constructor. Host types that embed SharedObjectBase cross the boundary
// by identity: lowering the same value twice yields the same wrapper while
// the wrapper is alive, and the host can emit events on it.
//
//	type Counter struct {
//	    runtime.SharedObjectBase
//	    n int64
//	}
//
//	class := runtime.NewClass("Counter").
//	    Constructor(func(start int64) *Counter { return &Counter{n: start} }).
//	    Method("increment", func(c *Counter) int64 { c.n++; return c.n })
//
// Wrappers are held weakly. When one is collected, or when the host calls
// Release, the pairing is dropped on the owning goroutine.
//
// # Threading
//
// A Bridge belongs to the goroutine that owns its runtime. Promise,
// SharedObjectBase and the Emit, RegisterModule and UnregisterModule
// methods are safe from any goroutine.
package runtime
