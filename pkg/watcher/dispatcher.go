package watcher

import "time"

// maxDrainRetryDelay caps the backoff between refused drain attempts.
const maxDrainRetryDelay = 5 * time.Second

// scheduleDrain runs on the debounce timer goroutine and marshals the
// drain onto the consumer goroutine. A refused drain is retried with
// backoff for as long as the watcher accepts work, so pending updates
// never wait on an unrelated future event.
func (w *Watcher) scheduleDrain() {
	if w.exec.Post(w.drain) {
		w.drainAttempts.Store(0)
		return
	}
	if w.queue.len() == 0 {
		w.drainAttempts.Store(0)
		return
	}
	if !w.accepting() {
		w.log.Debug("watcher stopping, drain abandoned", "pending", w.queue.len())
		return
	}

	attempt := w.drainAttempts.Add(1)
	delay := drainRetryDelay(w.cfg.DebounceInterval, attempt)
	w.counters.drainRetries.Add(1)
	w.warn(w.retryWarn, "consumer refused drain, retry scheduled",
		"task", "drain",
		"pending", w.queue.len(),
		"attempt", attempt,
		"retry_in", delay)
	w.timer.restartAfter(delay)
}

// drainRetryDelay doubles interval per attempt, up to maxDrainRetryDelay.
// An interval already above the cap is used as is.
func drainRetryDelay(interval time.Duration, attempt uint32) time.Duration {
	if interval >= maxDrainRetryDelay {
		return interval
	}
	delay := interval
	for i := uint32(1); i < attempt && delay < maxDrainRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxDrainRetryDelay {
		delay = maxDrainRetryDelay
	}
	return delay
}

// drain empties the pending set and hands every update to the handler.
// It runs on the consumer goroutine only.
func (w *Watcher) drain() {
	updates := w.queue.drain()
	if len(updates) == 0 {
		return
	}

	w.counters.drains.Add(1)
	for _, u := range updates {
		w.dispatch(u)
	}

	w.log.Debug("pending updates drained", "count", len(updates))
}

// dispatch isolates one handler invocation: an error or a panic is counted
// and logged, and the drain moves on.
func (w *Watcher) dispatch(u PendingUpdate) {
	w.counters.dispatched.Add(1)

	defer func() {
		if r := recover(); r != nil {
			w.counters.callbackFailures.Add(1)
			w.log.Error("entity synchronization panicked",
				"path", u.Entity.BackingPath(),
				"kind", u.Kind,
				"panic", r)
		}
	}()

	if err := w.handler.OnEntityChanged(u.Entity, u.Kind); err != nil {
		w.counters.callbackFailures.Add(1)
		w.warn(w.failureWarn, "entity synchronization failed",
			"path", u.Entity.BackingPath(),
			"kind", u.Kind,
			"error", err)
	}
}
