package watcher

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xmhha/foldersync/pkg/logger"
	"golang.org/x/time/rate"
)

// Watcher keeps registered folder entities under native change
// notification and feeds coalesced updates to a Handler on the consumer
// goroutine.
type Watcher struct {
	cfg     Config
	log     logger.Logger
	handler Handler
	exec    Executor

	// backend is nil when the watcher is degraded.
	backend  Backend
	registry *registry
	queue    *coalescer
	timer    *debounceTimer

	// One limiter per warning kind, so a burst of one never hides another.
	overflowWarn *rate.Limiter
	failureWarn  *rate.Limiter
	retryWarn    *rate.Limiter

	// drainAttempts counts consecutive refused drains; it drives the retry
	// backoff and resets once the executor accepts a drain.
	drainAttempts atomic.Uint32

	mu           sync.Mutex // serializes lifecycle transitions
	state        atomic.Int32
	done         chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once

	counters counters
}

type counters struct {
	rawEvents            atomic.Uint64
	enqueued             atomic.Uint64
	coalesced            atomic.Uint64
	skipped              atomic.Uint64
	drains               atomic.Uint64
	drainRetries         atomic.Uint64
	dispatched           atomic.Uint64
	callbackFailures     atomic.Uint64
	overflows            atomic.Uint64
	registrationFailures atomic.Uint64
	lostRegistrations    atomic.Uint64
}

// New creates a watcher that dispatches to handler through exec.
//
// If the notification facility cannot be acquired the returned watcher is
// DEGRADED and err is nil: the failure is logged once and every later
// operation is a no-op.
func New(cfg Config, handler Handler, exec Executor, log logger.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if exec == nil {
		return nil, ErrNilExecutor
	}
	cfg.setDefaults()

	w := &Watcher{
		cfg:          cfg,
		log:          log.With("component", "watcher"),
		handler:      handler,
		exec:         exec,
		registry:     newRegistry(),
		queue:        newCoalescer(),
		overflowWarn: newWarnLimiter(cfg.OverflowWarnInterval),
		failureWarn:  newWarnLimiter(cfg.OverflowWarnInterval),
		retryWarn:    newWarnLimiter(cfg.OverflowWarnInterval),
		done:         make(chan struct{}),
	}
	w.timer = newDebounceTimer(cfg.DebounceInterval, w.scheduleDrain)

	backend, err := cfg.NewBackend()
	if err != nil {
		w.state.Store(int32(StateDegraded))
		w.log.Warn("change notification unavailable, live folder tracking disabled",
			"error", err)
		return w, nil
	}
	w.backend = backend

	w.log.Info("folder watcher created",
		"debounce_interval", cfg.DebounceInterval,
		"max_batch", cfg.MaxBatch)

	return w, nil
}

// Start launches the event pump. It is a no-op on a degraded watcher.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.State() {
	case StateDegraded:
		return nil
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopping, StateStopped:
		return ErrWatcherClosed
	}

	w.state.Store(int32(StateRunning))
	w.wg.Add(1)
	go w.pump()

	w.log.Info("folder watcher started", "folders", w.registry.len())
	return nil
}

// Shutdown stops the pump and releases the notification facility. It
// blocks until the pump goroutine has exited, without a timeout, and is
// safe to call more than once and from several goroutines.
func (w *Watcher) Shutdown() {
	w.shutdownOnce.Do(func() {
		w.mu.Lock()
		if w.State() == StateDegraded {
			w.mu.Unlock()
			w.timer.stop()
			return
		}
		w.state.Store(int32(StateStopping))
		w.mu.Unlock()

		w.timer.stop()
		close(w.done)
		if err := w.backend.Close(); err != nil {
			w.log.Warn("failed to close notification backend", "error", err)
		}
		w.wg.Wait()

		w.registry.clear()
		w.state.Store(int32(StateStopped))
		w.log.Info("folder watcher stopped")
	})
	w.wg.Wait()
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Degraded reports whether live tracking is unavailable.
func (w *Watcher) Degraded() bool {
	return w.State() == StateDegraded
}

func (w *Watcher) accepting() bool {
	switch w.State() {
	case StateUnstarted, StateRunning:
		return true
	}
	return false
}

// RegisterFolder starts watching the direct children of a folder entity
// and reports whether the folder is now watched. Failures are logged; the
// folder then simply receives no live updates.
func (w *Watcher) RegisterFolder(e Entity) bool {
	if e == nil || !e.IsContainer() || !w.accepting() {
		return false
	}

	path := filepath.Clean(e.BackingPath())
	if h, ok := w.registry.lookupEntity(e); ok && h.path == path {
		return true
	}

	if err := w.backend.Add(path); err != nil {
		w.counters.registrationFailures.Add(1)
		w.log.Warn("failed to watch folder", "path", path, "error", err)
		return false
	}

	h := &watchHandle{entity: e, path: path}
	for _, old := range w.registry.put(h) {
		if old.path != path {
			w.cancel(old)
		}
	}

	w.log.Debug("folder registered", "path", path)
	return true
}

// UnregisterFolder cancels the folder's registration. Events the backend
// already queued for it are dropped by the pump, which routes events only
// through live registrations.
func (w *Watcher) UnregisterFolder(e Entity) {
	if e == nil || !e.IsContainer() || w.backend == nil {
		return
	}

	h, ok := w.registry.remove(e)
	if !ok {
		return
	}
	w.cancel(h)
	w.log.Debug("folder unregistered", "path", h.path)
}

// cancel releases the backend side of a handle that is no longer in the
// registry.
func (w *Watcher) cancel(h *watchHandle) {
	if !w.accepting() {
		return
	}
	if err := w.backend.Remove(h.path); err != nil {
		w.log.Debug("failed to remove folder watch", "path", h.path, "error", err)
	}
}

// IsRegistered reports whether e currently has a live registration.
func (w *Watcher) IsRegistered(e Entity) bool {
	if e == nil {
		return false
	}
	_, ok := w.registry.lookupEntity(e)
	return ok
}

// RegisteredCount returns the number of watched folders.
func (w *Watcher) RegisteredCount() int {
	return w.registry.len()
}

// EnqueueExplicit folds a caller-known change into the pending set and
// restarts the quiet period.
func (w *Watcher) EnqueueExplicit(e Entity) {
	if e == nil || !w.accepting() {
		return
	}
	w.enqueue(ChangeExplicit, e)
	w.timer.restart()
}

// EnqueueExplicitThenDrainImmediately enqueues e and drains the whole
// pending set synchronously. It must be called on the consumer goroutine.
func (w *Watcher) EnqueueExplicitThenDrainImmediately(e Entity) {
	if e == nil || !w.accepting() {
		return
	}
	w.enqueue(ChangeExplicit, e)
	w.drain()
}

func (w *Watcher) enqueue(kind ChangeKind, e Entity) {
	if w.queue.enqueue(kind, e) {
		w.counters.enqueued.Add(1)
		return
	}
	w.counters.coalesced.Add(1)
}

// Metrics returns a snapshot of the watcher counters.
func (w *Watcher) Metrics() Metrics {
	return Metrics{
		State:                w.State(),
		ActiveWatches:        w.registry.len(),
		Pending:              w.queue.len(),
		RawEvents:            w.counters.rawEvents.Load(),
		Enqueued:             w.counters.enqueued.Load(),
		Coalesced:            w.counters.coalesced.Load(),
		Skipped:              w.counters.skipped.Load(),
		Drains:               w.counters.drains.Load(),
		DrainRetries:         w.counters.drainRetries.Load(),
		Dispatched:           w.counters.dispatched.Load(),
		CallbackFailures:     w.counters.callbackFailures.Load(),
		Overflows:            w.counters.overflows.Load(),
		RegistrationFailures: w.counters.registrationFailures.Load(),
		LostRegistrations:    w.counters.lostRegistrations.Load(),
	}
}

func newWarnLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// warn logs msg at warn level when limiter allows it and at debug level
// otherwise.
func (w *Watcher) warn(limiter *rate.Limiter, msg string, args ...any) {
	if limiter.Allow() {
		w.log.Warn(msg, args...)
		return
	}
	w.log.Debug(msg, append(args, "throttled", true)...)
}
