// Package mirror keeps the in-memory folder tree consistent with disk.
//
// A Mirror owns the tree, the consumer loop that is the only goroutine
// allowed to mutate it, the folder watcher feeding that loop, and the sync
// journal. Every drained change re-synchronizes the affected node, keeps
// folder registrations in step with the tree, and is published as an
// Update.
//
// Example usage:
//
//	m, err := mirror.New(mirror.Config{Roots: []string{"~/Documents"}}, j, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	go func() {
//	    for u := range m.Updates() {
//	        fmt.Println(u.Kind, u.Path)
//	    }
//	}()
//	if err := m.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package mirror

import (
	"errors"
	"time"

	"github.com/0xmhha/foldersync/pkg/tree"
	"github.com/0xmhha/foldersync/pkg/watcher"
)

// Config holds the configuration for a mirror.
type Config struct {
	// Roots are the folders to mirror.
	Roots []string

	// Tree configures scanning and attribute caching.
	Tree tree.Options

	// Watcher configures change notification. OnOverflow is set by the
	// mirror.
	Watcher watcher.Config

	// QueueSize is the capacity of the consumer loop.
	// Default: 256.
	QueueSize int

	// UpdateBuffer is the capacity of the Updates channel.
	// Default: 64.
	UpdateBuffer int
}

// Default configuration values.
const (
	DefaultQueueSize    = 256
	DefaultUpdateBuffer = 64
)

func (c *Config) setDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.UpdateBuffer <= 0 {
		c.UpdateBuffer = DefaultUpdateBuffer
	}
}

// KindResync marks updates produced by a full resynchronization.
const KindResync = "RESYNC"

// Update describes one synchronization.
type Update struct {
	// Time is when the synchronization finished.
	Time time.Time `json:"time"`

	// Path is the synchronized node, or the root for a resync.
	Path string `json:"path"`

	// Kind is the change kind, or KindResync.
	Kind string `json:"kind"`

	// Added and Removed count the nodes that entered and left the tree.
	Added   int `json:"added"`
	Removed int `json:"removed"`

	// Error is set when the synchronization failed.
	Error string `json:"error,omitempty"`
}

// Stats is a snapshot of the mirror.
type Stats struct {
	Roots    int
	Nodes    int
	Watched  int
	Updates  uint64
	Failures uint64
	Resyncs  uint64
	Dropped  uint64
	Degraded bool
	Watcher  watcher.Metrics
}

var (
	// ErrNoRoots is returned when no root could be scanned.
	ErrNoRoots = errors.New("no usable roots")

	// ErrRunning is returned when Run is called twice.
	ErrRunning = errors.New("mirror is already running")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mirror is closed")

	// ErrOutsideRoots is returned for paths that no root contains.
	ErrOutsideRoots = errors.New("path is outside every root")

	// ErrForeignEntity is returned for entities that are not tree nodes.
	ErrForeignEntity = errors.New("entity does not belong to the tree")
)
