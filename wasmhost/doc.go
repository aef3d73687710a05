// Package wasmhost exposes the exports of a core WebAssembly module as a
// bridge module.
//
//	mod, err := wasmhost.Load(ctx, "Calc", wasmBytes,
//	    wasmhost.WithWIT(`add: func(a: s32, b: s32) -> s32;`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mod.Close(ctx)
//
//	b.RegisterModule(mod.Definition())
//	// host.modules.Calc.add(2, 3)          -> 5
//	// host.modules.Calc.addAsync(2, 3)     -> Promise<5>
//
// Without a signature, parameter and result descriptors follow the core
// value types: i32 is int, i64 is long, f32 is float and f64 is double.
// A WIT signature narrows them: bool, the integer types, floats and char
// are supported.
//
// Every export also gets an async variant named <export>Async that runs on
// its own goroutine. Calls into one instance are serialized.
package wasmhost
