package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/foldersync/pkg/journal"
	"github.com/0xmhha/foldersync/pkg/mirror"
	"github.com/0xmhha/foldersync/pkg/tree"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

func (f *jsonFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// FormatUpdate implements Formatter.FormatUpdate. Updates are always
// written one per line so a stream of them stays line-delimited.
func (f *jsonFormatter) FormatUpdate(w io.Writer, update mirror.Update) error {
	return json.NewEncoder(w).Encode(update)
}

// FormatRecords implements Formatter.FormatRecords.
func (f *jsonFormatter) FormatRecords(w io.Writer, records []journal.Record) error {
	if records == nil {
		records = []journal.Record{}
	}
	return f.encode(w, records)
}

// FormatRoots implements Formatter.FormatRoots.
func (f *jsonFormatter) FormatRoots(w io.Writer, roots []journal.RootState) error {
	if roots == nil {
		roots = []journal.RootState{}
	}
	return f.encode(w, roots)
}

type statsJSON struct {
	Roots            int    `json:"roots"`
	Nodes            int    `json:"nodes"`
	Watched          int    `json:"watched_folders"`
	Updates          uint64 `json:"updates"`
	Failures         uint64 `json:"failures"`
	Resyncs          uint64 `json:"resyncs"`
	Dropped          uint64 `json:"dropped_updates"`
	State            string `json:"watcher_state"`
	RawEvents        uint64 `json:"raw_events"`
	Coalesced        uint64 `json:"coalesced"`
	Overflows        uint64 `json:"overflows"`
	CallbackFailures uint64 `json:"callback_failures"`
}

// FormatStats implements Formatter.FormatStats.
func (f *jsonFormatter) FormatStats(w io.Writer, stats mirror.Stats) error {
	return f.encode(w, statsJSON{
		Roots:            stats.Roots,
		Nodes:            stats.Nodes,
		Watched:          stats.Watched,
		Updates:          stats.Updates,
		Failures:         stats.Failures,
		Resyncs:          stats.Resyncs,
		Dropped:          stats.Dropped,
		State:            stats.Watcher.State.String(),
		RawEvents:        stats.Watcher.RawEvents,
		Coalesced:        stats.Watcher.Coalesced,
		Overflows:        stats.Watcher.Overflows,
		CallbackFailures: stats.Watcher.CallbackFailures,
	})
}

type nodeJSON struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Folder   bool       `json:"folder"`
	Children []nodeJSON `json:"children,omitempty"`
}

func toNodeJSON(n *tree.Node) nodeJSON {
	out := nodeJSON{Name: n.Name(), Path: n.BackingPath(), Folder: n.IsContainer()}
	for _, c := range n.Children() {
		out.Children = append(out.Children, toNodeJSON(c))
	}
	return out
}

// FormatTree implements Formatter.FormatTree.
func (f *jsonFormatter) FormatTree(w io.Writer, root *tree.Node) error {
	return f.encode(w, toNodeJSON(root))
}
