package watcher

import "errors"

// Errors returned by the watcher. Runtime failures (registration, overflow,
// handler errors) are logged rather than returned.
var (
	// ErrWatcherClosed is returned when starting a watcher that was shut down.
	ErrWatcherClosed = errors.New("watcher is closed")

	// ErrAlreadyStarted is returned when Start is called on a running watcher.
	ErrAlreadyStarted = errors.New("watcher already started")

	// ErrNilHandler is returned by New when no Handler is given.
	ErrNilHandler = errors.New("watcher handler is nil")

	// ErrNilExecutor is returned by New when no Executor is given.
	ErrNilExecutor = errors.New("watcher executor is nil")
)
