// Package loop provides the single consumer goroutine that owns the folder
// tree. Tasks posted from any goroutine run one at a time, in order, on the
// goroutine that called Run.
package loop

import (
	"context"
	"errors"
	"sync"

	"github.com/0xmhha/foldersync/pkg/logger"
)

var (
	// ErrClosed is returned when the loop no longer accepts tasks.
	ErrClosed = errors.New("loop is closed")

	// ErrRunning is returned when Run is called while the loop is running.
	ErrRunning = errors.New("loop is already running")
)

// Loop is a task queue drained by one goroutine.
type Loop struct {
	log   logger.Logger
	tasks chan func()

	mu      sync.Mutex
	closed  bool
	running bool
	done    chan struct{}
}

// New creates a loop with room for size queued tasks.
func New(size int, log logger.Logger) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{
		log:   log.With("component", "loop"),
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post queues task and reports whether it was accepted. It never blocks: a
// full queue or a closed loop refuses the task. Callers own the response
// to a refusal, so the loop itself only records it at debug level.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || task == nil {
		return false
	}
	select {
	case l.tasks <- task:
		return true
	default:
		l.log.Debug("task queue full, task refused",
			"capacity", cap(l.tasks),
			"queued", len(l.tasks))
		return false
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !l.Post(func() { result <- fn() }) {
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-l.done:
		// The task may have run just before the loop stopped.
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes tasks on the calling goroutine until ctx is done or the loop
// is closed. Tasks still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.running {
		l.mu.Unlock()
		return ErrRunning
	}
	l.running = true
	l.mu.Unlock()

	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case task := <-l.tasks:
			l.run(task)
		}
	}
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("task panicked", "panic", r)
		}
	}()
	task()
}

// Close stops the loop. Posting afterwards fails. It is safe to call more
// than once.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
