package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/foldersync/pkg/journal"
	"github.com/0xmhha/foldersync/pkg/mirror"
	"github.com/0xmhha/foldersync/pkg/tree"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatUpdate implements Formatter.FormatUpdate.
func (f *simpleFormatter) FormatUpdate(w io.Writer, update mirror.Update) error {
	if f.config.ShowTimestamps {
		if _, err := fmt.Fprintf(w, "%s ", update.Time.Format(timeLayout)); err != nil {
			return err
		}
	}

	if update.Error != "" {
		_, err := fmt.Fprintf(w, "%s %s failed: %s\n", update.Kind, update.Path, update.Error)
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s (+%d -%d)\n", update.Kind, update.Path, update.Added, update.Removed)
	return err
}

// FormatRecords implements Formatter.FormatRecords.
func (f *simpleFormatter) FormatRecords(w io.Writer, records []journal.Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s %s x%d at %s\n",
			r.Kind,
			r.Path,
			r.Count,
			r.At.Format(timeLayout)); err != nil {
			return err
		}
	}
	return nil
}

// FormatRoots implements Formatter.FormatRoots.
func (f *simpleFormatter) FormatRoots(w io.Writer, roots []journal.RootState) error {
	for _, r := range roots {
		state := "clean"
		if r.Dirty {
			state = "dirty"
		}
		if _, err := fmt.Fprintf(w, "%s: %s, %d overflows\n", r.Root, state, r.Overflows); err != nil {
			return err
		}
	}
	return nil
}

// FormatStats implements Formatter.FormatStats.
func (f *simpleFormatter) FormatStats(w io.Writer, stats mirror.Stats) error {
	_, err := fmt.Fprintf(w, "Roots: %d | Nodes: %d | Watched: %d | Updates: %s | Failures: %s | Resyncs: %s | Watcher: %s\n",
		stats.Roots,
		stats.Nodes,
		stats.Watched,
		formatNumber(stats.Updates),
		formatNumber(stats.Failures),
		formatNumber(stats.Resyncs),
		stats.Watcher.State)
	return err
}

// FormatTree implements Formatter.FormatTree.
func (f *simpleFormatter) FormatTree(w io.Writer, root *tree.Node) error {
	if _, err := fmt.Fprintln(w, root.BackingPath()); err != nil {
		return err
	}
	for _, c := range root.Children() {
		if err := f.FormatTree(w, c); err != nil {
			return err
		}
	}
	return nil
}
