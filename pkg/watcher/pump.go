package watcher

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// pump is the background goroutine that turns raw notifications into
// pending updates. It exits when the watcher is shut down or the backend
// channels are closed; no single failure stops it.
func (w *Watcher) pump() {
	defer w.wg.Done()

	events := w.backend.Events()
	errs := w.backend.Errors()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-events:
			if !ok {
				w.log.Debug("notification channel closed")
				return
			}
			w.processBatch(w.collectBatch(event, events))

		case err, ok := <-errs:
			if !ok {
				w.log.Debug("notification error channel closed")
				return
			}
			w.handleBackendError(err)
		}
	}
}

// collectBatch gathers events that are already buffered behind first,
// without blocking.
func (w *Watcher) collectBatch(first fsnotify.Event, events <-chan fsnotify.Event) []fsnotify.Event {
	batch := []fsnotify.Event{first}
	for len(batch) < w.cfg.MaxBatch {
		select {
		case event, ok := <-events:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
	return batch
}

func (w *Watcher) processBatch(batch []fsnotify.Event) {
	touched := make(map[*watchHandle]struct{})
	enqueued := 0

	for _, event := range batch {
		w.counters.rawEvents.Add(1)

		// The event may name a registered folder itself (removed or
		// renamed); that registration needs the liveness check too.
		if self, isSelf := w.registry.lookupPath(event.Name); isSelf {
			touched[self] = struct{}{}
		}

		h, update, ok := w.translate(event)
		if h != nil {
			touched[h] = struct{}{}
		}
		if !ok {
			continue
		}

		w.enqueue(update.Kind, update.Entity)
		enqueued++
	}

	if enqueued > 0 {
		w.timer.restart()
	}

	for h := range touched {
		w.rearm(h)
	}
}

// translate resolves a raw event into the handle that produced it and the
// update to enqueue. ok is false when nothing should be enqueued.
func (w *Watcher) translate(event fsnotify.Event) (*watchHandle, PendingUpdate, bool) {
	name := filepath.Clean(event.Name)

	h, found := w.registry.lookupPath(filepath.Dir(name))
	if !found {
		w.counters.skipped.Add(1)
		return nil, PendingUpdate{}, false
	}

	kind, known := changeKindOf(event.Op)
	if !known {
		w.counters.skipped.Add(1)
		return h, PendingUpdate{}, false
	}

	child, resolved := h.entity.ResolveChild(filepath.Base(name))

	switch kind {
	case ChangeModified:
		// Not in the tree yet; the CREATE for it will bring it in.
		if !resolved {
			w.counters.skipped.Add(1)
			return h, PendingUpdate{}, false
		}
		return h, PendingUpdate{Kind: kind, Entity: child}, true

	default:
		if resolved {
			return h, PendingUpdate{Kind: kind, Entity: child}, true
		}
		return h, PendingUpdate{Kind: kind, Entity: h.entity}, true
	}
}

func changeKindOf(op fsnotify.Op) (ChangeKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ChangeCreated, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ChangeDeleted, true
	case op.Has(fsnotify.Write), op.Has(fsnotify.Chmod):
		return ChangeModified, true
	default:
		return 0, false
	}
}

// rearm checks that the folder behind h is still watchable after a batch.
// A folder that vanished or stopped being a directory has a dead
// registration, which is dropped.
func (w *Watcher) rearm(h *watchHandle) {
	info, err := os.Stat(h.path)
	if err == nil && info.IsDir() {
		return
	}
	if !w.registry.removeHandle(h) {
		return
	}

	w.counters.lostRegistrations.Add(1)
	w.cancel(h)
	w.log.Info("folder registration lost", "path", h.path, "error", err)
}

func (w *Watcher) handleBackendError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		n := w.counters.overflows.Add(1)
		w.warn(w.overflowWarn, "change notifications overflowed, some changes may be missed",
			"overflows", n)
		if w.cfg.OnOverflow != nil && !w.exec.Post(w.cfg.OnOverflow) {
			w.log.Warn("consumer refused overflow recovery", "task", "overflow")
		}
		return
	}

	w.log.Warn("notification backend error", "error", err)
}
