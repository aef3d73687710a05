package resource

import (
	"errors"
	"reflect"
	"sync"
)

var (
	ErrClosed          = errors.New("shared object backend closed")
	ErrNotComparable   = errors.New("shared object value must be comparable")
	ErrNilSharedObject = errors.New("shared object value cannot be nil")
)

// LocalBackend is an in-memory shared object backend.
// IDs grow monotonically from 1 and are never reused.
type LocalBackend struct {
	entries map[ID]*entry
	byValue map[any]ID
	nextID  ID
	mu      sync.RWMutex
	closed  bool
}

type entry struct {
	value   any
	payload any
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries: make(map[ID]*entry, 64),
		byValue: make(map[any]ID, 64),
		nextID:  1,
	}
}

// Register stores value, or returns its existing id.
func (b *LocalBackend) Register(value any) (ID, bool, error) {
	if value == nil {
		return 0, false, ErrNilSharedObject
	}
	if !reflect.TypeOf(value).Comparable() {
		return 0, false, ErrNotComparable
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, false, ErrClosed
	}
	if id, ok := b.byValue[value]; ok {
		return id, false, nil
	}

	id := b.nextID
	b.nextID++
	b.entries[id] = &entry{value: value}
	b.byValue[value] = id
	return id, true, nil
}

// Get retrieves a value by id.
func (b *LocalBackend) Get(id ID) (any, bool) {
	if id == 0 {
		return nil, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[id]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Lookup returns the id of a registered value.
func (b *LocalBackend) Lookup(value any) (ID, bool) {
	if value == nil || !reflect.TypeOf(value).Comparable() {
		return 0, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	id, ok := b.byValue[value]
	return id, ok
}

// Attach stores the script-side payload for id.
func (b *LocalBackend) Attach(id ID, payload any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return false
	}
	e.payload = payload
	return true
}

// Payload returns the script-side payload for id.
func (b *LocalBackend) Payload(id ID) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[id]
	if !ok || e.payload == nil {
		return nil, false
	}
	return e.payload, true
}

// Drop removes an entry.
func (b *LocalBackend) Drop(id ID) (any, any, bool) {
	if id == 0 {
		return nil, nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return nil, nil, false
	}
	delete(b.entries, id)
	delete(b.byValue, e.value)
	return e.value, e.payload, true
}

// Close releases all entries, calling Drop on values that implement Dropper.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, id := range b.sortedIDs() {
		if d, ok := b.entries[id].value.(Dropper); ok {
			d.Drop()
		}
	}
	b.entries = nil
	b.byValue = nil
	return nil
}

// Len returns the number of live entries.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Each iterates over live entries in id order.
func (b *LocalBackend) Each(fn func(ID, any) bool) {
	b.mu.RLock()
	ids := b.sortedIDs()
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = b.entries[id].value
	}
	b.mu.RUnlock()

	for i, id := range ids {
		if !fn(id, values[i]) {
			return
		}
	}
}

// sortedIDs must be called with mu held.
func (b *LocalBackend) sortedIDs() []ID {
	ids := make([]ID, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

var _ Backend = (*LocalBackend)(nil)
