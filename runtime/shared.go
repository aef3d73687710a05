package runtime

import (
	"math"
	"reflect"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/engine"
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/resource"
	"github.com/wippyai/jsbridge/transcoder"
)

// sharedBinder is implemented through SharedObjectBase.
type sharedBinder interface {
	bindShared(b *Bridge, id uint64)
}

// SharedObjectBase gives a host type shared object identity. Embed it by
// value in a struct used through a pointer:
//
//	type Counter struct {
//	    runtime.SharedObjectBase
//	    n int64
//	}
type SharedObjectBase struct {
	bridge *Bridge
	id     uint64
	mu     sync.Mutex
}

func (s *SharedObjectBase) bindShared(b *Bridge, id uint64) {
	s.mu.Lock()
	s.bridge, s.id = b, id
	s.mu.Unlock()
}

func (s *SharedObjectBase) binding() (*Bridge, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge, s.id
}

// SharedObjectID returns the registry id, or 0 when not registered.
func (s *SharedObjectBase) SharedObjectID() uint64 {
	_, id := s.binding()
	return id
}

// Emit emits event on the script wrapper from any goroutine. It reports
// whether the emission was scheduled.
func (s *SharedObjectBase) Emit(event string, args ...any) bool {
	b, id := s.binding()
	if b == nil || id == 0 {
		return false
	}
	return b.ref.Invoke(func(_ *goja.Runtime, b *Bridge) {
		if obj := b.shared.Wrapper(id); obj != nil {
			b.emitHost(obj, event, args)
		}
	})
}

// Release deletes the pairing from any goroutine.
func (s *SharedObjectBase) Release() {
	b, id := s.binding()
	if b != nil && id != 0 {
		b.shared.Delete(id)
	}
}

// SharedRef is a shared object wrapping a plain host value. Values of
// types without a declared class are exposed as instances of the base
// SharedRef class.
type SharedRef[T any] struct {
	SharedObjectBase
	Ref T
}

// NewSharedRef wraps v.
func NewSharedRef[T any](v T) *SharedRef[T] {
	return &SharedRef[T]{Ref: v}
}

// RefType names the wrapped Go type.
func (r *SharedRef[T]) RefType() string {
	return reflect.TypeFor[T]().String()
}

type refTyped interface {
	RefType() string
}

// sharedEntry is the table payload of a paired object. It must not hold
// anything that reaches the wrapper strongly.
type sharedEntry struct {
	weak    *engine.WeakObject
	cleanup *engine.Cleanup
}

// SharedObjects pairs host values with script wrappers. Ids are stable for
// the lifetime of a pairing and never reused; each id has at most one live
// wrapper. Mutations run on the owning goroutine, except Delete, which may
// be called from anywhere and hops through the invoker.
type SharedObjects struct {
	b        *Bridge
	table    *resource.Table
	deleting map[resource.ID]struct{}
	mu       sync.Mutex
}

func newSharedObjects(b *Bridge) *SharedObjects {
	s := &SharedObjects{b: b, table: resource.NewTable(), deleting: make(map[resource.ID]struct{})}
	s.table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
		if e.Type == resource.EventReleased {
			if sb, ok := e.Value.(sharedBinder); ok {
				sb.bindShared(nil, 0)
			}
		}
	}))
	return s
}

// Register returns the id of host, allocating one on first registration.
// Repeated calls with the same host return the same id.
func (s *SharedObjects) Register(host any) (uint64, error) {
	if s.b.closed.Load() {
		return 0, errors.Closed(errors.PhaseLifetime, "bridge")
	}
	if id, ok := s.table.Lookup(host); ok && s.isDeleting(id) {
		s.remove(id, nil)
	}
	id, created, err := s.table.Register(host)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseLifetime, errors.KindInvalidInput, err, "register shared object")
	}
	if created {
		if sb, ok := host.(sharedBinder); ok {
			sb.bindShared(s.b, uint64(id))
		}
		s.b.log.Debug("shared object registered", zap.Uint64("id", uint64(id)))
	}
	return uint64(id), nil
}

// Get returns the host value registered under id.
func (s *SharedObjects) Get(id uint64) (any, bool) {
	return s.table.Get(resource.ID(id))
}

// ID returns the id of a registered host value.
func (s *SharedObjects) ID(host any) (uint64, bool) {
	id, ok := s.table.Lookup(host)
	return uint64(id), ok
}

// Wrapper returns the live wrapper for id, or nil.
func (s *SharedObjects) Wrapper(id uint64) *goja.Object {
	p, ok := s.table.Payload(resource.ID(id))
	if !ok {
		return nil
	}
	return p.(*sharedEntry).weak.Lock()
}

// Len returns the number of live pairings.
func (s *SharedObjects) Len() int {
	return s.table.Len()
}

// Wrap returns the wrapper of host, creating one when none is alive.
// The prototype comes from the class declared for host's type, or the base
// SharedRef or SharedObject class.
func (s *SharedObjects) Wrap(host any) (*goja.Object, error) {
	id, err := s.Register(host)
	if err != nil {
		return nil, err
	}
	if obj := s.Wrapper(id); obj != nil {
		return obj, nil
	}

	obj := s.b.vm.CreateObject(s.b.prototypeFor(host))
	if err := s.pair(resource.ID(id), host, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Pair registers host and pairs it with obj.
func (s *SharedObjects) Pair(host any, obj *goja.Object) (uint64, error) {
	if obj == nil {
		return 0, errors.InvalidInput(errors.PhaseLifetime, "wrapper cannot be nil")
	}
	id, err := s.Register(host)
	if err != nil {
		return 0, err
	}
	if live := s.Wrapper(id); live != nil {
		if live == obj {
			return id, nil
		}
		return 0, errors.New(errors.PhaseLifetime, errors.KindInvalidInput).
			Detail("shared object %d already has a live wrapper", id).
			Build()
	}
	return id, s.pair(resource.ID(id), host, obj)
}

func (s *SharedObjects) pair(id resource.ID, host any, obj *goja.Object) error {
	st := s.b.stateOf(obj, true)
	if st == nil {
		return errors.New(errors.PhaseLifetime, errors.KindInvalidInput).
			Detail("object cannot hold native state").
			Build()
	}
	if st.shared && st.id != 0 && st.id != id {
		return errors.New(errors.PhaseLifetime, errors.KindInvalidInput).
			Detail("object is already paired with shared object %d", st.id).
			Build()
	}
	st.host, st.id, st.shared = host, id, true

	collector := s.b.collector
	entry := &sharedEntry{weak: s.b.eng.NewWeak(obj)}
	entry.cleanup = s.b.eng.OnCollect(obj, func() {
		collector.enqueue(release{id: id, entry: entry})
	})
	if old, ok := s.table.Payload(id); ok {
		old.(*sharedEntry).cleanup.Stop()
	}
	s.table.Attach(id, entry)
	return nil
}

// Delete releases the pairing of id. It may be called from any goroutine
// and any number of times; the release runs on the owning goroutine. Until
// then the id is marked, and registering its host again releases it first.
func (s *SharedObjects) Delete(id uint64) {
	if id == 0 {
		return
	}
	s.mu.Lock()
	s.deleting[resource.ID(id)] = struct{}{}
	s.mu.Unlock()
	s.b.collector.enqueue(release{id: resource.ID(id)})
}

func (s *SharedObjects) isDeleting(id resource.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.deleting[id]
	return ok
}

// remove runs on the owning goroutine. When entry is set, the pairing is
// only released if entry is still its current wrapper. The stale wrapper
// keeps its listeners but loses its host value.
func (s *SharedObjects) remove(id resource.ID, entry *sharedEntry) bool {
	if entry != nil {
		if p, ok := s.table.Payload(id); !ok || p != entry {
			return false
		}
	}
	s.mu.Lock()
	delete(s.deleting, id)
	s.mu.Unlock()

	_, payload, ok := s.table.Remove(id)
	if !ok {
		return false
	}
	if cur, ok := payload.(*sharedEntry); ok {
		cur.cleanup.Stop()
		if obj := cur.weak.Lock(); obj != nil {
			if st := s.b.stateOf(obj, false); st != nil && st.id == id {
				st.host, st.id = nil, 0
			}
		}
	}
	s.b.log.Debug("shared object released", zap.Uint64("id", uint64(id)))
	return true
}

// releaseAll drops every pairing and detaches live wrappers.
func (s *SharedObjects) releaseAll() {
	var ids []resource.ID
	s.table.Each(func(id resource.ID, _ any) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		var obj *goja.Object
		if p, ok := s.table.Payload(id); ok {
			obj = p.(*sharedEntry).weak.Lock()
		}
		s.remove(id, nil)
		if obj != nil {
			s.b.eng.ClearNative(obj)
		}
	}
}

// resolve maps a wrapper or numeric id to its host value.
func (s *SharedObjects) resolve(v goja.Value) (any, bool) {
	if obj, ok := v.(*goja.Object); ok {
		st := s.b.stateOf(obj, false)
		if st == nil || !st.shared || st.host == nil {
			return nil, false
		}
		return st.host, true
	}
	if v == nil || !goja.IsNumber(v) {
		return nil, false
	}
	f := v.ToFloat()
	if f < 1 || f != math.Trunc(f) || f > 1<<53 {
		return nil, false
	}
	return s.Get(uint64(f))
}

// lower is the transcoder hook for shared host values.
func (s *SharedObjects) lower(v any) (goja.Value, bool, error) {
	if v == nil {
		return nil, false, nil
	}
	if _, ok := s.table.Lookup(v); !ok && !s.b.isShared(v) {
		if obj, ok := s.b.instance(v); ok {
			return obj, true, nil
		}
		return nil, false, nil
	}
	obj, err := s.Wrap(v)
	if err != nil {
		return nil, true, err
	}
	return obj, true, nil
}

func (b *Bridge) isShared(v any) bool {
	if _, ok := v.(transcoder.SharedHost); ok {
		return true
	}
	if binding, ok := b.byType[reflect.TypeOf(v)]; ok && binding.def.shared {
		return true
	}
	return false
}

func (b *Bridge) prototypeFor(host any) *goja.Object {
	if binding, ok := b.byType[reflect.TypeOf(host)]; ok {
		return binding.proto
	}
	if _, ok := host.(refTyped); ok {
		return b.base.sharedRef.proto
	}
	return b.base.shared.proto
}
