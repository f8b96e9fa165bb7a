// Package display provides output formatting for mirror updates, journal
// records and folder trees.
//
// It supports multiple output formats (table, JSON, simple text) and picks
// a sensible default depending on whether output goes to a terminal.
package display

import (
	"io"

	"github.com/0xmhha/foldersync/pkg/journal"
	"github.com/0xmhha/foldersync/pkg/mirror"
	"github.com/0xmhha/foldersync/pkg/tree"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays data in aligned columns.
	FormatTable Format = "table"

	// FormatJSON displays data as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays data in simple text format.
	FormatSimple Format = "simple"
)

// Formatter formats and displays synchronization data.
type Formatter interface {
	// FormatUpdate formats one live update.
	FormatUpdate(w io.Writer, update mirror.Update) error

	// FormatRecords formats journal records.
	FormatRecords(w io.Writer, records []journal.Record) error

	// FormatRoots formats journal root states.
	FormatRoots(w io.Writer, roots []journal.RootState) error

	// FormatStats formats a mirror snapshot.
	FormatStats(w io.Writer, stats mirror.Stats) error

	// FormatTree formats a scanned folder tree.
	FormatTree(w io.Writer, root *tree.Node) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// ShowTimestamps enables timestamp display.
	// Default: false.
	ShowTimestamps bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
