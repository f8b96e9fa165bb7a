package watcher

import (
	"path/filepath"
	"sync"
)

// watchHandle is the registration of one folder entity with the backend.
// It is dead once it is no longer the value stored in the registry.
type watchHandle struct {
	entity Entity
	path   string
}

// registry maps folder entities to watch handles and watched paths back to
// handles. It is mutated by the consumer goroutine (register, unregister)
// and by the pump (dropping dead registrations).
type registry struct {
	mu       sync.Mutex
	byEntity map[Entity]*watchHandle
	byPath   map[string]*watchHandle
}

func newRegistry() *registry {
	return &registry{
		byEntity: make(map[Entity]*watchHandle),
		byPath:   make(map[string]*watchHandle),
	}
}

func (r *registry) lookupEntity(e Entity) (*watchHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byEntity[e]
	return h, ok
}

func (r *registry) lookupPath(path string) (*watchHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byPath[filepath.Clean(path)]
	return h, ok
}

// put stores h and returns any handles it displaced: the previous handle of
// the same entity and the previous owner of the same path.
func (r *registry) put(h *watchHandle) []*watchHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var displaced []*watchHandle
	if old, ok := r.byEntity[h.entity]; ok && old != h {
		delete(r.byPath, old.path)
		displaced = append(displaced, old)
	}
	if old, ok := r.byPath[h.path]; ok && old != h {
		delete(r.byEntity, old.entity)
		displaced = append(displaced, old)
	}
	r.byEntity[h.entity] = h
	r.byPath[h.path] = h
	return displaced
}

func (r *registry) remove(e Entity) (*watchHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byEntity[e]
	if !ok {
		return nil, false
	}
	delete(r.byEntity, e)
	delete(r.byPath, h.path)
	return h, true
}

// removeHandle drops h only if it is still the current registration of its
// entity, so a concurrent re-registration is never undone.
func (r *registry) removeHandle(h *watchHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byEntity[h.entity] != h {
		return false
	}
	delete(r.byEntity, h.entity)
	delete(r.byPath, h.path)
	return true
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byEntity)
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.byEntity)
	clear(r.byPath)
}
