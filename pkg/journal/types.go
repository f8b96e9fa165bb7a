// Package journal records folder synchronizations persistently.
//
// For every synchronized path it keeps the last change kind and how often
// the path was synchronized. For every root it keeps whether change
// notifications were lost (the root is dirty) and when it was last fully
// synchronized, so a restart can tell that a full resynchronization is due.
//
// Example usage:
//
//	j, err := journal.Open(journal.Config{
//	    DBPath: "~/.local/share/foldersync/journal.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer j.Close()
//
//	if err := j.RecordSync("/data/docs", "CREATED"); err != nil {
//	    log.Fatal(err)
//	}
package journal

import (
	"errors"
	"time"
)

// Record is the last synchronization of one path.
type Record struct {
	// Path is the synchronized file or folder.
	Path string `json:"path"`

	// Kind is the change kind that triggered the last synchronization.
	Kind string `json:"kind"`

	// Count is how many times the path was synchronized.
	Count uint64 `json:"count"`

	// At is the time of the last synchronization.
	At time.Time `json:"at"`
}

// RootState is the health of one synchronized root.
type RootState struct {
	// Root is the root folder path.
	Root string `json:"root"`

	// Dirty is set when notifications were lost and cleared by a full
	// resynchronization.
	Dirty bool `json:"dirty"`

	// Overflows counts lost-notification reports.
	Overflows uint64 `json:"overflows"`

	// DirtySince is when the root last became dirty.
	DirtySince time.Time `json:"dirty_since,omitempty"`

	// LastFullSync is the time of the last full resynchronization.
	LastFullSync time.Time `json:"last_full_sync,omitempty"`
}

// Journal stores synchronization records and root states.
type Journal interface {
	// RecordSync notes a synchronization of path.
	RecordSync(path, kind string) error

	// Get returns the record of path, or ErrNotFound.
	Get(path string) (*Record, error)

	// Records returns up to limit records, most recent first. A limit of
	// zero or less returns all of them.
	Records(limit int) ([]Record, error)

	// MarkDirty flags root as possibly out of sync.
	MarkDirty(root string) error

	// MarkClean records a completed full resynchronization of root.
	MarkClean(root string) error

	// Roots returns every known root state, sorted by path.
	Roots() ([]RootState, error)

	// Close releases the journal.
	Close() error
}

// Config contains journal configuration.
type Config struct {
	// DBPath is the database file path.
	DBPath string

	// Timeout bounds waiting for the database file lock.
	// Default: 1s.
	Timeout time.Duration
}

var (
	// ErrNotFound is returned when no record exists for a path.
	ErrNotFound = errors.New("record not found")

	// ErrEmptyPath is returned for an empty path or root.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("journal is closed")
)
