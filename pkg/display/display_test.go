package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0xmhha/foldersync/pkg/journal"
	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/0xmhha/foldersync/pkg/mirror"
	"github.com/0xmhha/foldersync/pkg/tree"
	"github.com/0xmhha/foldersync/pkg/watcher"
)

var testTime = time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
		want   string // Type name
	}{
		{
			name:   "default format (table)",
			config: Config{},
			want:   "*display.tableFormatter",
		},
		{
			name:   "json format",
			config: Config{Format: FormatJSON},
			want:   "*display.jsonFormatter",
		},
		{
			name:   "simple format",
			config: Config{Format: FormatSimple},
			want:   "*display.simpleFormatter",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := fmt.Sprintf("%T", New(tt.config))
			if got != tt.want {
				t.Errorf("New() type = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "table", "JSON", "simple"} {
		if _, err := ParseFormat(name); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", name, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestDefaultFormatWithoutTerminal(t *testing.T) {
	t.Parallel()

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got := DefaultFormat(int(f.Fd())); got != FormatJSON {
		t.Errorf("DefaultFormat(file) = %v, want %v", got, FormatJSON)
	}
}

func TestFormatUpdate(t *testing.T) {
	t.Parallel()

	update := mirror.Update{
		Time:    testTime,
		Path:    "/data/docs",
		Kind:    "CREATED",
		Added:   3,
		Removed: 1,
	}

	tests := []struct {
		format Format
		want   []string
	}{
		{FormatTable, []string{"CREATED", "+3", "-1", "/data/docs", "2024-03-01 12:30:45"}},
		{FormatSimple, []string{"CREATED /data/docs (+3 -1)", "2024-03-01 12:30:45"}},
		{FormatJSON, []string{`"kind":"CREATED"`, `"added":3`}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			f := New(Config{Format: tt.format, ShowTimestamps: true})
			if err := f.FormatUpdate(&buf, update); err != nil {
				t.Fatalf("FormatUpdate() error = %v", err)
			}

			out := buf.String()
			if strings.Count(out, "\n") != 1 {
				t.Errorf("FormatUpdate() should write exactly one line, got %q", out)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("FormatUpdate() output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestFormatUpdateError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := New(Config{Format: FormatSimple})
	err := f.FormatUpdate(&buf, mirror.Update{Path: "/x", Kind: "MODIFIED", Error: "permission denied"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "failed: permission denied") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFormatRecords(t *testing.T) {
	t.Parallel()

	records := []journal.Record{
		{Path: "/data/a", Kind: "MODIFIED", Count: 1500, At: testTime},
		{Path: "/data/b", Kind: "DELETED", Count: 2, At: testTime},
	}

	var buf bytes.Buffer
	if err := New(Config{Format: FormatTable}).FormatRecords(&buf, records); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Recent Synchronizations", "Path", "/data/a", "1,500", "DELETED"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := New(Config{Format: FormatJSON}).FormatRecords(&buf, records); err != nil {
		t.Fatal(err)
	}
	var decoded []journal.Record
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Count != 1500 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestFormatRecordsEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := New(Config{Format: FormatTable, Compact: true}).FormatRecords(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No data") {
		t.Errorf("expected 'No data', got %q", buf.String())
	}

	buf.Reset()
	if err := New(Config{Format: FormatJSON, Compact: true}).FormatRecords(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty array, got %q", buf.String())
	}
}

func TestFormatRoots(t *testing.T) {
	t.Parallel()

	roots := []journal.RootState{
		{Root: "/data", Dirty: true, Overflows: 3, DirtySince: testTime},
		{Root: "/srv", LastFullSync: testTime},
	}

	var buf bytes.Buffer
	if err := New(Config{Format: FormatSimple}).FormatRoots(&buf, roots); err != nil {
		t.Fatal(err)
	}
	want := "/data: dirty, 3 overflows\n/srv: clean, 0 overflows\n"
	if buf.String() != want {
		t.Errorf("FormatRoots() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := New(Config{Format: FormatTable}).FormatRoots(&buf, roots); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Last Full Sync") || !strings.Contains(buf.String(), "dirty") {
		t.Errorf("unexpected table output:\n%s", buf.String())
	}
}

func TestFormatStats(t *testing.T) {
	t.Parallel()

	stats := mirror.Stats{
		Roots:   2,
		Nodes:   120,
		Watched: 14,
		Updates: 12345,
		Watcher: watcher.Metrics{State: watcher.StateRunning, RawEvents: 99},
	}

	var buf bytes.Buffer
	if err := New(Config{Format: FormatTable}).FormatStats(&buf, stats); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Mirror Statistics", "Watched Folders", "12,345", "RUNNING"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("table output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := New(Config{Format: FormatJSON}).FormatStats(&buf, stats); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["watcher_state"] != "RUNNING" {
		t.Errorf("watcher_state = %v", decoded["watcher_state"])
	}
}

func TestFormatTree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "docs"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "docs", "a.md"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	tr, err := tree.New(tree.Options{}, logger.Noop())
	if err != nil {
		t.Fatal(err)
	}
	root, err := tr.AddRoot(dir)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := New(Config{Format: FormatTable}).FormatTree(&buf, root); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "docs/") || !strings.Contains(buf.String(), "  a.md") {
		t.Errorf("unexpected tree output:\n%s", buf.String())
	}

	buf.Reset()
	if err := New(Config{Format: FormatSimple}).FormatTree(&buf, root); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || lines[2] != filepath.Join(dir, "docs", "a.md") {
		t.Errorf("unexpected simple output: %q", lines)
	}

	buf.Reset()
	if err := New(Config{Format: FormatJSON}).FormatTree(&buf, root); err != nil {
		t.Fatal(err)
	}
	var decoded nodeJSON
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Children) != 1 || !decoded.Children[0].Folder {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := map[uint64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
	}
	for in, want := range tests {
		if got := formatNumber(in); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", in, got, want)
		}
	}
}
