// Package engine owns a goja runtime on behalf of the bridge.
//
// goja is single-threaded: a runtime belongs to one goroutine and every
// touch of it from elsewhere has to be scheduled onto that goroutine. This
// package provides the pieces that make that rule hold.
//
// # Invokers
//
//	LoopInvoker   - schedules on a goja_nodejs event loop
//	QueueInvoker  - queues until the owner calls Drain; InvokeSync runs inline
//
// # Native State
//
// SetNative attaches a Go value to a script object through a hidden symbol
// slot (non-enumerable, non-writable, non-configurable). Native returns it.
//
// # Weak Handles
//
// Shared object wrappers must not be kept alive by the host. The engine picks
// one strategy at startup, walking the ladder:
//
//	native   Go weak.Pointer to the *goja.Object handle
//	weakref  script WeakRef constructor (when installed)
//	strong   plain reference; wrappers leak, a warning is logged
//
// OnCollect registers a cleanup that runs after a wrapper is collected.
// Cleanups run on a runtime-internal goroutine and must re-enter the
// runtime through a ThreadSafe handle.
//
// # Cross-Goroutine Handles
//
// ThreadSafe wraps runtime-owned state for holders on other goroutines. It
// can only schedule work on the owning goroutine. Invalidate turns every
// later use into a logged no-op, so late finalizers and promise settlements
// after teardown are harmless.
//
// # Thread Safety
//
// Invokers and ThreadSafe handles are safe for concurrent use. Engine
// methods other than Closed must run on the owning goroutine.
package engine
