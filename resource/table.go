package resource

import (
	"sync"
)

// Table maps shared host objects to stable ids and tracks the script-side
// payload paired with each one.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Register returns the id of value, allocating one on first sight.
// Registering the same value twice yields the same id.
func (t *Table) Register(value any) (ID, bool, error) {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0, false, ErrClosed
	}
	t.closeMu.RUnlock()

	id, created, err := t.backend.Register(value)
	if err != nil {
		return 0, false, err
	}
	if created {
		t.notify(Event{Type: EventRegistered, ID: id, Value: value})
	}
	return id, created, nil
}

// Get retrieves a value by id.
func (t *Table) Get(id ID) (any, bool) {
	return t.backend.Get(id)
}

// Lookup returns the id of a registered value.
func (t *Table) Lookup(value any) (ID, bool) {
	return t.backend.Lookup(value)
}

// Attach stores the script-side payload for id.
func (t *Table) Attach(id ID, payload any) bool {
	if !t.backend.Attach(id, payload) {
		return false
	}
	value, _ := t.backend.Get(id)
	t.notify(Event{Type: EventAttached, ID: id, Value: value})
	return true
}

// Payload returns the script-side payload for id.
func (t *Table) Payload(id ID) (any, bool) {
	return t.backend.Payload(id)
}

// Remove releases id and returns its value and payload. Values implementing
// Dropper are dropped. Removing an unknown id is a no-op.
func (t *Table) Remove(id ID) (any, any, bool) {
	value, payload, ok := t.backend.Drop(id)
	if !ok {
		return nil, nil, false
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{Type: EventReleased, ID: id, Value: value})
	return value, payload, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live shared objects.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Each iterates over live shared objects in id order.
func (t *Table) Each(fn func(ID, any) bool) {
	t.backend.Each(fn)
}

// Clear removes every entry.
func (t *Table) Clear() {
	var ids []ID
	t.backend.Each(func(id ID, _ any) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		t.Remove(id)
	}
}

// Close releases all entries and stops accepting registrations.
func (t *Table) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	observers := append([]Observer(nil), t.observers...)
	t.obsMu.RUnlock()
	for _, o := range observers {
		o.OnSharedObjectEvent(e)
	}
}
