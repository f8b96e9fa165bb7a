package watcher

import "sync"

// coalescer is the ordered, deduplicating set of pending updates. It is the
// only state shared between the pump and the consumer goroutine.
//
// A second event for an entity that is already pending is merged into the
// existing entry, wherever that entry sits: MODIFIED on MODIFIED is a no-op,
// any other pair promotes the entry to CREATED. Insertion order is kept.
type coalescer struct {
	mu    sync.Mutex
	order []*PendingUpdate
	index map[Entity]*PendingUpdate
}

func newCoalescer() *coalescer {
	return &coalescer{
		index: make(map[Entity]*PendingUpdate),
	}
}

// enqueue adds (kind, e) and reports whether it created a new entry
// rather than being merged into an existing one.
func (c *coalescer) enqueue(kind ChangeKind, e Entity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.index[e]; ok {
		if existing.Kind != ChangeModified || kind != ChangeModified {
			existing.Kind = ChangeCreated
		}
		return false
	}

	u := &PendingUpdate{Kind: kind, Entity: e}
	c.order = append(c.order, u)
	c.index[e] = u
	return true
}

// drain atomically takes every pending update, in insertion order.
func (c *coalescer) drain() []PendingUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.order) == 0 {
		return nil
	}

	out := make([]PendingUpdate, len(c.order))
	for i, u := range c.order {
		out[i] = *u
	}
	c.order = nil
	clear(c.index)
	return out
}

func (c *coalescer) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}
