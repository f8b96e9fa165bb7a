package watcher

import (
	"sync"
	"time"
)

// debounceTimer is a single-shot timer that fires once the interval has
// passed without a restart.
//
// Every restart bumps seq; a timer callback only fires if its seq is still
// current. A restart that races an in-flight firing therefore schedules
// exactly one more firing, and a stale callback never fires twice.
type debounceTimer struct {
	mu       sync.Mutex
	interval time.Duration
	fire     func()
	timer    *time.Timer
	seq      uint64
	stopped  bool
}

func newDebounceTimer(interval time.Duration, fire func()) *debounceTimer {
	return &debounceTimer{
		interval: interval,
		fire:     fire,
	}
}

func (d *debounceTimer) restart() {
	d.restartAfter(d.interval)
}

// restartAfter is restart with an explicit delay. The drain retry path uses
// it to back off while the consumer refuses work.
func (d *debounceTimer) restartAfter(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.stopped || seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.fire()
	})
}

// pending reports whether a firing is scheduled.
func (d *debounceTimer) pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.timer != nil
}

// stop cancels any scheduled firing and disables further restarts.
func (d *debounceTimer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
