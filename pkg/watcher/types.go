// Package watcher keeps an in-memory folder tree informed about changes on
// disk.
//
// Folders of the tree are registered with the operating system's native
// change notification facility. A background pump translates raw
// notifications into pending updates, a coalescer collapses bursts of
// events for the same entity, and after a quiet period the pending set is
// drained on the single consumer goroutine that owns the tree, where the
// Handler re-synchronizes each entity exactly once.
//
// Example usage:
//
//	l := loop.New(64, log)
//	w, err := watcher.New(watcher.Config{
//	    DebounceInterval: 250 * time.Millisecond,
//	}, handler, l, log)
//	if err != nil {
//	    return err
//	}
//	defer w.Shutdown()
//
//	w.RegisterFolder(root)
//	if err := w.Start(); err != nil {
//	    return err
//	}
//	return l.Run(ctx)
//
// When the notification facility cannot be created the watcher is DEGRADED:
// every operation is a no-op and the application keeps working without live
// updates.
package watcher

import (
	"time"
)

// Entity is a node of the external tree model.
//
// Dynamic values must be comparable (in practice, pointers); two Entity
// values refer to the same node when they compare equal. ResolveChild is
// called from the pump goroutine and must be safe for concurrent use with
// the consumer goroutine.
type Entity interface {
	// IsContainer reports whether the entity is a folder that can hold children.
	IsContainer() bool

	// ResolveChild returns the live child with the given base name, if any.
	ResolveChild(name string) (Entity, bool)

	// BackingPath returns the on-disk path of the entity.
	BackingPath() string
}

// ChangeKind classifies a pending update.
type ChangeKind uint8

// Change kinds.
const (
	ChangeCreated  ChangeKind = iota + 1 // child appeared, or events were merged
	ChangeDeleted                        // child disappeared
	ChangeModified                       // contents or attributes changed
	ChangeExplicit                       // requested by the caller, not by the OS
)

// String returns a human-readable kind name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "CREATED"
	case ChangeDeleted:
		return "DELETED"
	case ChangeModified:
		return "MODIFIED"
	case ChangeExplicit:
		return "EXPLICIT"
	default:
		return "UNKNOWN"
	}
}

// Full reports whether the kind calls for a full resynchronization of the
// entity's child list rather than an attribute refresh.
func (k ChangeKind) Full() bool {
	return k != ChangeModified
}

// PendingUpdate is a coalesced change waiting to be dispatched.
type PendingUpdate struct {
	Kind   ChangeKind
	Entity Entity
}

// State is the watcher lifecycle state.
type State int32

// Lifecycle states.
const (
	StateUnstarted State = iota
	StateRunning
	StateStopping
	StateStopped
	StateDegraded
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "UNSTARTED"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateDegraded:
		return "DEGRADED"
	default:
		return "UNKNOWN"
	}
}

// Handler re-synchronizes entities. It is only ever invoked on the
// consumer goroutine.
type Handler interface {
	// OnEntityChanged is called once per drained update. An error (or a
	// panic) is logged and does not stop the rest of the drain.
	OnEntityChanged(entity Entity, kind ChangeKind) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(entity Entity, kind ChangeKind) error

// OnEntityChanged implements Handler.
func (f HandlerFunc) OnEntityChanged(entity Entity, kind ChangeKind) error {
	return f(entity, kind)
}

// Executor runs tasks on the consumer goroutine, one at a time.
type Executor interface {
	// Post schedules task and reports whether it was accepted.
	Post(task func()) bool
}

// Config contains watcher configuration.
type Config struct {
	// DebounceInterval is the quiet period after the last event before
	// pending updates are drained.
	// Default: 250ms.
	DebounceInterval time.Duration

	// MaxBatch bounds how many already-buffered raw events the pump
	// collects into one batch.
	// Default: 256.
	MaxBatch int

	// OverflowWarnInterval is the minimum time between two warnings of the
	// same kind (overflow, callback failure, refused drain). Suppressed
	// warnings are still logged at debug level.
	// Default: 10s.
	OverflowWarnInterval time.Duration

	// NewBackend acquires the notification facility.
	// Default: NewFSNotifyBackend.
	NewBackend func() (Backend, error)

	// OnOverflow, if set, is posted to the executor whenever the facility
	// reports that events were lost. The watcher itself does not recover.
	OnOverflow func()
}

// Default configuration values.
const (
	DefaultDebounceInterval     = 250 * time.Millisecond
	DefaultMaxBatch             = 256
	DefaultOverflowWarnInterval = 10 * time.Second
)

func (c *Config) setDefaults() {
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = DefaultDebounceInterval
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultMaxBatch
	}
	if c.OverflowWarnInterval <= 0 {
		c.OverflowWarnInterval = DefaultOverflowWarnInterval
	}
	if c.NewBackend == nil {
		c.NewBackend = NewFSNotifyBackend
	}
}

// Metrics is a snapshot of watcher counters.
type Metrics struct {
	State                State
	ActiveWatches        int
	Pending              int
	RawEvents            uint64
	Enqueued             uint64
	Coalesced            uint64
	Skipped              uint64
	Drains               uint64
	DrainRetries         uint64
	Dispatched           uint64
	CallbackFailures     uint64
	Overflows            uint64
	RegistrationFailures uint64
	LostRegistrations    uint64
}
