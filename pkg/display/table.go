package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/foldersync/pkg/journal"
	"github.com/0xmhha/foldersync/pkg/mirror"
	"github.com/0xmhha/foldersync/pkg/tree"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatUpdate implements Formatter.FormatUpdate. A single update is one
// fixed-width row so consecutive updates line up.
func (f *tableFormatter) FormatUpdate(w io.Writer, update mirror.Update) error {
	var b strings.Builder
	if f.config.ShowTimestamps {
		b.WriteString(update.Time.Format(timeLayout))
		b.WriteString("  ")
	}
	fmt.Fprintf(&b, "%-8s  %5s  %5s  %s",
		update.Kind,
		fmt.Sprintf("+%d", update.Added),
		fmt.Sprintf("-%d", update.Removed),
		update.Path)
	if update.Error != "" {
		fmt.Fprintf(&b, "  error: %s", update.Error)
	}

	_, err := fmt.Fprintln(w, b.String())
	return err
}

// FormatRecords implements Formatter.FormatRecords.
func (f *tableFormatter) FormatRecords(w io.Writer, records []journal.Record) error {
	if err := writeHeader(w, "Recent Synchronizations", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.Path,
			r.Kind,
			formatNumber(r.Count),
			r.At.Format(timeLayout),
		}
	}

	return f.writeTable(w, []string{"Path", "Kind", "Count", "Last Sync"}, rows)
}

// FormatRoots implements Formatter.FormatRoots.
func (f *tableFormatter) FormatRoots(w io.Writer, roots []journal.RootState) error {
	if err := writeHeader(w, "Roots", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, len(roots))
	for i, r := range roots {
		state, since := "clean", "-"
		if r.Dirty {
			state = "dirty"
			since = r.DirtySince.Format(timeLayout)
		}
		last := "-"
		if !r.LastFullSync.IsZero() {
			last = r.LastFullSync.Format(timeLayout)
		}
		rows[i] = []string{r.Root, state, formatNumber(r.Overflows), since, last}
	}

	return f.writeTable(w, []string{"Root", "State", "Overflows", "Dirty Since", "Last Full Sync"}, rows)
}

// FormatStats implements Formatter.FormatStats.
func (f *tableFormatter) FormatStats(w io.Writer, stats mirror.Stats) error {
	if err := writeHeader(w, "Mirror Statistics", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Roots", fmt.Sprintf("%d", stats.Roots)},
		{"Nodes", fmt.Sprintf("%d", stats.Nodes)},
		{"Watched Folders", fmt.Sprintf("%d", stats.Watched)},
		{"Watcher State", stats.Watcher.State.String()},
		{"Updates", formatNumber(stats.Updates)},
		{"Failures", formatNumber(stats.Failures)},
		{"Resyncs", formatNumber(stats.Resyncs)},
		{"Dropped Updates", formatNumber(stats.Dropped)},
		{"Raw Events", formatNumber(stats.Watcher.RawEvents)},
		{"Coalesced Events", formatNumber(stats.Watcher.Coalesced)},
		{"Overflows", formatNumber(stats.Watcher.Overflows)},
	}

	return f.writeTable(w, []string{"Metric", "Value"}, rows)
}

// FormatTree implements Formatter.FormatTree.
func (f *tableFormatter) FormatTree(w io.Writer, root *tree.Node) error {
	if err := writeHeader(w, root.BackingPath(), f.config.Compact); err != nil {
		return err
	}

	var rows [][]string
	var visit func(n *tree.Node, depth int)
	visit = func(n *tree.Node, depth int) {
		for _, c := range n.Children() {
			name, kind := c.Name(), "file"
			if c.IsContainer() {
				name += "/"
				kind = "folder"
			}
			rows = append(rows, []string{strings.Repeat("  ", depth) + name, kind})
			if c.IsContainer() {
				visit(c, depth+1)
			}
		}
	}
	visit(root, 0)

	return f.writeTable(w, []string{"Name", "Type"}, rows)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row. The last cell is not padded.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		if i == len(cells)-1 {
			b.WriteString(cell)
			continue
		}
		fmt.Fprintf(&b, "%-*s", widths[i], cell)
	}

	_, err := fmt.Fprintln(w, b.String())
	return err
}
