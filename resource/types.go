package resource

// ID identifies a shared object within one bridge.
// ID 0 is reserved and always invalid. IDs are never reused.
type ID uint64

// EventType identifies a shared object lifecycle notification.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventAttached
	EventReleased
)

// Event represents a shared object lifecycle event.
type Event struct {
	Value any
	ID    ID
	Type  EventType
}

// Observer receives notifications about shared object lifecycle events.
type Observer interface {
	OnSharedObjectEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnSharedObjectEvent implements Observer.
func (f ObserverFunc) OnSharedObjectEvent(e Event) { f(e) }

// Backend provides the underlying storage for shared objects.
type Backend interface {
	// Register stores value, or returns the existing id when value is
	// already registered. created reports whether a new id was allocated.
	Register(value any) (id ID, created bool, err error)

	// Get retrieves a value by id.
	Get(id ID) (any, bool)

	// Lookup returns the id of a registered value.
	Lookup(value any) (ID, bool)

	// Attach stores the script-side payload for id.
	Attach(id ID, payload any) bool

	// Payload returns the script-side payload for id.
	Payload(id ID) (any, bool)

	// Drop removes an entry and returns its value and payload.
	Drop(id ID) (value any, payload any, ok bool)

	// Close releases all entries.
	Close() error
}

// Dropper is optionally implemented by shared values that need cleanup
// when the pairing is released.
type Dropper interface {
	Drop()
}
