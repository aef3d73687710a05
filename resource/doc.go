// Package resource tracks host objects shared with the script runtime.
//
// A shared object is a Go value paired with exactly one live script wrapper.
// The Table assigns every value a stable ID on first registration and keeps
// the wrapper payload next to it:
//
//	table := resource.NewTable()
//
//	id, created, err := table.Register(counter) // created == true
//	id2, created, _ := table.Register(counter)  // id2 == id, created == false
//
//	table.Attach(id, wrapperHandle)
//	value, payload, ok := table.Remove(id)
//
// # Identity
//
// Values are keyed by Go identity, so they must be comparable. Pointers are
// the usual choice. IDs start at 1, grow monotonically and are never reused,
// even after removal.
//
// # Observers
//
// Observers receive EventRegistered, EventAttached and EventReleased
// notifications synchronously on the goroutine that made the change:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    if e.Type == resource.EventReleased {
//	        log.Printf("shared object %d released", e.ID)
//	    }
//	}))
//
// # Memory Management
//
// Entries hold their values strongly. Callers remove entries when the
// script wrapper is collected or explicitly released. Close drops every
// remaining value that implements Dropper.
package resource
