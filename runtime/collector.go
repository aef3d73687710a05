package runtime

import (
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/engine"
	"github.com/wippyai/jsbridge/resource"
)

// release is a pending shared object release. entry is set for
// finalizer-driven releases so that a newer wrapper for the same id
// survives a late finalizer.
type release struct {
	entry *sharedEntry
	id    resource.ID
}

// collector batches shared object releases requested from any goroutine
// and runs them on the owning goroutine. Host values implementing
// resource.Dropper are dropped as part of the release.
type collector struct {
	ref       *engine.ThreadSafe[Bridge]
	log       *zap.Logger
	pending   []release
	mu        sync.Mutex
	scheduled bool
}

func newCollector(ref *engine.ThreadSafe[Bridge], log *zap.Logger) *collector {
	return &collector{ref: ref, log: log}
}

// enqueue may be called from any goroutine, including finalizers.
func (c *collector) enqueue(r release) {
	c.mu.Lock()
	c.pending = append(c.pending, r)
	schedule := !c.scheduled
	c.scheduled = true
	c.mu.Unlock()

	if !schedule {
		return
	}
	if !c.ref.Invoke(func(_ *goja.Runtime, b *Bridge) { c.flush(b) }) {
		c.mu.Lock()
		c.scheduled = false
		c.mu.Unlock()
	}
}

// flush runs on the owning goroutine.
func (c *collector) flush(b *Bridge) int {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.scheduled = false
	c.mu.Unlock()

	n := 0
	for _, r := range batch {
		if b.shared.remove(r.id, r.entry) {
			n++
		}
	}
	if n > 0 {
		c.log.Debug("released shared objects", zap.Int("count", n))
	}
	return n
}
