package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out strictly increasing times.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func openBolt(t *testing.T) Journal {
	t.Helper()

	j, err := Open(Config{DBPath: filepath.Join(t.TempDir(), "nested", "journal.db")}, logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

// implementations runs fn against every Journal implementation with a
// deterministic clock.
func implementations(t *testing.T, fn func(t *testing.T, j Journal)) {
	factories := map[string]func(t *testing.T) Journal{
		"bolt":   openBolt,
		"memory": func(*testing.T) Journal { return NewMemory() },
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			j := factory(t)
			clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
			switch impl := j.(type) {
			case *boltJournal:
				impl.now = clock.now
			case *memoryJournal:
				impl.now = clock.now
			}
			fn(t, j)
		})
	}
}

func TestRecordSync(t *testing.T) {
	implementations(t, func(t *testing.T, j Journal) {
		require.NoError(t, j.RecordSync("/data/a", "CREATED"))
		require.NoError(t, j.RecordSync("/data/a", "MODIFIED"))

		rec, err := j.Get("/data/a")
		require.NoError(t, err)
		assert.Equal(t, "/data/a", rec.Path)
		assert.Equal(t, "MODIFIED", rec.Kind)
		assert.Equal(t, uint64(2), rec.Count)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC), rec.At.UTC())

		_, err = j.Get("/data/missing")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, j.RecordSync("", "CREATED"), ErrEmptyPath)
		_, err = j.Get("")
		assert.ErrorIs(t, err, ErrEmptyPath)
	})
}

func TestRecordsNewestFirst(t *testing.T) {
	implementations(t, func(t *testing.T, j Journal) {
		for _, p := range []string{"/a", "/b", "/c", "/d"} {
			require.NoError(t, j.RecordSync(p, "EXPLICIT"))
		}
		require.NoError(t, j.RecordSync("/a", "MODIFIED"))

		all, err := j.Records(0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "/a", all[0].Path)
		assert.Equal(t, "/d", all[1].Path)
		assert.Equal(t, "/b", all[3].Path)

		limited, err := j.Records(2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

func TestRootStates(t *testing.T) {
	implementations(t, func(t *testing.T, j Journal) {
		require.NoError(t, j.MarkDirty("/srv/b"))
		require.NoError(t, j.MarkDirty("/srv/b"))
		require.NoError(t, j.MarkClean("/srv/a"))

		roots, err := j.Roots()
		require.NoError(t, err)
		require.Len(t, roots, 2)

		assert.Equal(t, "/srv/a", roots[0].Root)
		assert.False(t, roots[0].Dirty)
		assert.False(t, roots[0].LastFullSync.IsZero())

		b := roots[1]
		assert.Equal(t, "/srv/b", b.Root)
		assert.True(t, b.Dirty)
		assert.Equal(t, uint64(2), b.Overflows)
		// Dirty since the first overflow, not the latest.
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC), b.DirtySince.UTC())

		require.NoError(t, j.MarkClean("/srv/b"))
		roots, err = j.Roots()
		require.NoError(t, err)
		assert.False(t, roots[1].Dirty)
		assert.True(t, roots[1].DirtySince.IsZero())
		assert.Equal(t, uint64(2), roots[1].Overflows)

		assert.ErrorIs(t, j.MarkDirty(""), ErrEmptyPath)
	})
}

func TestBoltJournalPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(Config{DBPath: path}, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, j.RecordSync("/data/x", "DELETED"))
	require.NoError(t, j.MarkDirty("/data"))
	require.NoError(t, j.Close())

	j, err = Open(Config{DBPath: path}, logger.Noop())
	require.NoError(t, err)
	defer j.Close()

	rec, err := j.Get("/data/x")
	require.NoError(t, err)
	assert.Equal(t, "DELETED", rec.Kind)

	roots, err := j.Roots()
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.True(t, roots[0].Dirty)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{}, logger.Noop())
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestMemoryJournalClosed(t *testing.T) {
	j := NewMemory()
	require.NoError(t, j.Close())

	assert.ErrorIs(t, j.RecordSync("/a", "CREATED"), ErrClosed)
	assert.ErrorIs(t, j.MarkDirty("/a"), ErrClosed)
	_, err := j.Records(0)
	assert.ErrorIs(t, err, ErrClosed)
}
