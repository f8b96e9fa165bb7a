package watcher

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Backend is the native change notification facility. Each added path is
// watched for creation, deletion and modification of its direct children.
type Backend interface {
	Add(path string) error
	Remove(path string) error
	Events() <-chan fsnotify.Event
	Errors() <-chan error

	// Close releases the facility and closes both channels, which unblocks
	// the pump.
	Close() error
}

type fsnotifyBackend struct {
	fsw *fsnotify.Watcher
}

// NewFSNotifyBackend creates a Backend on top of fsnotify (inotify,
// kqueue, ReadDirectoryChangesW, ...).
func NewFSNotifyBackend() (Backend, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &fsnotifyBackend{fsw: fsw}, nil
}

func (b *fsnotifyBackend) Add(path string) error {
	return b.fsw.Add(path)
}

func (b *fsnotifyBackend) Remove(path string) error {
	return b.fsw.Remove(path)
}

func (b *fsnotifyBackend) Events() <-chan fsnotify.Event {
	return b.fsw.Events
}

func (b *fsnotifyBackend) Errors() <-chan error {
	return b.fsw.Errors
}

func (b *fsnotifyBackend) Close() error {
	return b.fsw.Close()
}
