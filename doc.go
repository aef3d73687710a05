// Package jsbridge exposes Go host modules to an embedded JavaScript engine.
//
// The bridge lets host code publish functions, properties, constants and
// classes into a goja runtime, converts values in both directions, and keeps
// objects that are shared between the two heaps alive exactly as long as
// either side needs them.
//
// # Architecture Overview
//
//	jsbridge/            Root package with the Invoker interface
//	├── runtime/         ObjectBridge, callables, decorators, shared objects, events
//	├── transcoder/      Type descriptors, converters, host-to-script lowering
//	├── engine/          Runtime ownership: invokers, native state, weak handles
//	├── resource/        Shared object id table
//	├── wasmhost/        WebAssembly exports as host modules
//	├── config/          YAML configuration
//	└── errors/          Structured error types
//
// # Quick Start
//
//	loop := eventloop.NewEventLoop()
//	loop.Start()
//	inv := engine.NewLoopInvoker(loop)
//
//	var b *runtime.Bridge
//	inv.InvokeSync(ctx, func(vm *goja.Runtime) {
//	    b, err = runtime.New(vm, inv)
//	})
//
//	mathMod := runtime.NewModule("Math").
//	    Function("add", func(a, b int32) int32 { return a + b })
//	b.RegisterModule(mathMod)
//
// Scripts then reach the module through the root namespace:
//
//	host.modules.Math.add(2, 3) // 5
//
// # Threading
//
// A goja runtime belongs to one goroutine. Host code running elsewhere
// (async bodies, finalizers, event sources) re-enters it only through an
// Invoker. Promise settlement, shared object deletion and event emission
// all hop through the Invoker; after the bridge closes these hops become
// logged no-ops.
package jsbridge
