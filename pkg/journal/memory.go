package journal

import (
	"sort"
	"sync"
	"time"
)

// memoryJournal implements Journal using in-memory maps.
type memoryJournal struct {
	mu      sync.RWMutex
	records map[string]Record
	roots   map[string]RootState
	closed  bool
	now     func() time.Time
}

// NewMemory creates an in-memory journal.
//
// Useful for testing or when persistence is not needed.
func NewMemory() Journal {
	return &memoryJournal{
		records: make(map[string]Record),
		roots:   make(map[string]RootState),
		now:     time.Now,
	}
}

// RecordSync implements Journal.RecordSync.
func (j *memoryJournal) RecordSync(path, kind string) error {
	if path == "" {
		return ErrEmptyPath
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	rec := j.records[path]
	rec.Path = path
	rec.Kind = kind
	rec.Count++
	rec.At = j.now()
	j.records[path] = rec
	return nil
}

// Get implements Journal.Get.
func (j *memoryJournal) Get(path string) (*Record, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}
	rec, ok := j.records[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Records implements Journal.Records.
func (j *memoryJournal) Records(limit int) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}
	records := make([]Record, 0, len(j.records))
	for _, r := range j.records {
		records = append(records, r)
	}
	return newestFirst(records, limit), nil
}

// MarkDirty implements Journal.MarkDirty.
func (j *memoryJournal) MarkDirty(root string) error {
	return j.updateRoot(root, func(s *RootState) {
		if !s.Dirty {
			s.DirtySince = j.now()
		}
		s.Dirty = true
		s.Overflows++
	})
}

// MarkClean implements Journal.MarkClean.
func (j *memoryJournal) MarkClean(root string) error {
	return j.updateRoot(root, func(s *RootState) {
		s.Dirty = false
		s.DirtySince = time.Time{}
		s.LastFullSync = j.now()
	})
}

func (j *memoryJournal) updateRoot(root string, mutate func(*RootState)) error {
	if root == "" {
		return ErrEmptyPath
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	state, ok := j.roots[root]
	if !ok {
		state = RootState{Root: root}
	}
	mutate(&state)
	j.roots[root] = state
	return nil
}

// Roots implements Journal.Roots.
func (j *memoryJournal) Roots() ([]RootState, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}
	states := make([]RootState, 0, len(j.roots))
	for _, s := range j.roots {
		states = append(states, s)
	}
	sort.Slice(states, func(a, b int) bool { return states[a].Root < states[b].Root })
	return states, nil
}

// Close implements Journal.Close.
func (j *memoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true
	return nil
}
