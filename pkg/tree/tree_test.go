package tree

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// layout creates files (and their parent folders) below dir. Names ending
// in "/" are folders.
func layout(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if name[len(name)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0700))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
		require.NoError(t, os.WriteFile(path, []byte(name), 0600))
	}
}

func newTree(t *testing.T, opts Options) *Tree {
	t.Helper()
	tr, err := New(opts, logger.Noop())
	require.NoError(t, err)
	return tr
}

func names(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	sort.Strings(out)
	return out
}

func TestAddRootScansRecursively(t *testing.T) {
	dir := t.TempDir()
	layout(t, dir, "a.txt", "docs/b.md", "docs/deep/c.md", "empty/")

	tr := newTree(t, Options{})
	root, err := tr.AddRoot(dir)
	require.NoError(t, err)

	assert.True(t, root.IsRoot())
	assert.True(t, root.IsContainer())
	assert.Equal(t, dir, root.BackingPath())
	assert.Equal(t, 7, tr.Len())
	assert.Equal(t, []string{"a.txt", "docs", "empty"}, names(root.Children()))

	folders := tr.Folders(root)
	require.Len(t, folders, 4)
	assert.Same(t, root, folders[0])

	deep, ok := tr.Find(filepath.Join(dir, "docs", "deep"))
	require.True(t, ok)
	assert.Equal(t, "docs", deep.Parent().Name())

	child, ok := deep.ResolveChild("c.md")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "docs", "deep", "c.md"), child.BackingPath())
	assert.False(t, child.IsContainer())

	_, ok = deep.ResolveChild("missing")
	assert.False(t, ok)
}

func TestAddRootErrors(t *testing.T) {
	dir := t.TempDir()
	layout(t, dir, "file.txt")
	tr := newTree(t, Options{})

	_, err := tr.AddRoot(filepath.Join(dir, "file.txt"))
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = tr.AddRoot(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = tr.AddRoot(dir)
	require.NoError(t, err)
	_, err = tr.AddRoot(dir)
	assert.ErrorIs(t, err, ErrRootExists)
}

func TestIgnoreRules(t *testing.T) {
	dir := t.TempDir()
	layout(t, dir, ".git/config", "main.go", "main.go.swp", "build/out.bin", "src/build/keep.txt")

	tr := newTree(t, Options{
		IgnoreHidden:   true,
		IgnorePatterns: []string{"*.swp", "build"},
	})
	root, err := tr.AddRoot(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"main.go", "src"}, names(root.Children()))

	// Base-name patterns apply at every depth.
	src, ok := tr.Find(filepath.Join(dir, "src"))
	require.True(t, ok)
	assert.Empty(t, src.Children())
}

func TestInvalidIgnorePattern(t *testing.T) {
	_, err := New(Options{IgnorePatterns: []string{"[unterminated"}}, logger.Noop())
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestSynchronizeFolder(t *testing.T) {
	dir := t.TempDir()
	layout(t, dir, "keep.txt", "gone.txt", "old/inner.txt")

	tr := newTree(t, Options{})
	root, err := tr.AddRoot(dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "gone.txt")))
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "old")))
	layout(t, dir, "new.txt", "fresh/nested/x.txt")

	delta, err := tr.Synchronize(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"fresh", "nested", "new.txt", "x.txt"}, names(delta.Added))
	assert.Equal(t, []string{"gone.txt", "inner.txt", "old"}, names(delta.Removed))
	assert.Equal(t, []string{"fresh", "nested"}, names(delta.AddedFolders()))
	assert.Equal(t, []string{"old"}, names(delta.RemovedFolders()))
	assert.Equal(t, []string{"fresh", "keep.txt", "new.txt"}, names(root.Children()))

	_, ok := tr.Find(filepath.Join(dir, "old", "inner.txt"))
	assert.False(t, ok)

	// Nothing changed since.
	delta, err = tr.Synchronize(root)
	require.NoError(t, err)
	assert.True(t, delta.Empty())
}

func TestSynchronizeKindChange(t *testing.T) {
	dir := t.TempDir()
	layout(t, dir, "thing")

	tr := newTree(t, Options{})
	root, err := tr.AddRoot(dir)
	require.NoError(t, err)
	file, ok := tr.Find(filepath.Join(dir, "thing"))
	require.True(t, ok)

	require.NoError(t, os.Remove(file.BackingPath()))
	layout(t, dir, "thing/")

	// Synchronizing the stale file node falls back to its parent.
	delta, err := tr.Synchronize(file)
	require.NoError(t, err)
	require.Len(t, delta.Removed, 1)
	require.Len(t, delta.Added, 1)
	assert.Same(t, file, delta.Removed[0])
	assert.True(t, delta.Added[0].IsContainer())

	_, err = tr.Synchronize(file)
	assert.ErrorIs(t, err, ErrNotInTree)

	current, ok := root.ResolveChild("thing")
	require.True(t, ok)
	assert.True(t, current.IsContainer())
}

func TestSynchronizeVanishedFolderReachesParent(t *testing.T) {
	dir := t.TempDir()
	layout(t, dir, "a/b/c.txt")

	tr := newTree(t, Options{})
	_, err := tr.AddRoot(dir)
	require.NoError(t, err)
	b, ok := tr.Find(filepath.Join(dir, "a", "b"))
	require.True(t, ok)

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "a")))

	delta, err := tr.Synchronize(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c.txt"}, names(delta.Removed))
	assert.Equal(t, 1, tr.Len())
}

func TestSynchronizeVanishedRoot(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "root")
	layout(t, dir, "a.txt", "sub/b.txt")

	tr := newTree(t, Options{})
	root, err := tr.AddRoot(dir)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	delta, err := tr.Synchronize(root)
	require.NoError(t, err)
	assert.Len(t, delta.Removed, 3)
	assert.Empty(t, root.Children())
	assert.Equal(t, 1, tr.Len())

	// The root comes back.
	layout(t, dir, "again.txt")
	delta, err = tr.Synchronize(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"again.txt"}, names(delta.Added))
}

func TestAttributesCache(t *testing.T) {
	dir := t.TempDir()
	layout(t, dir, "a.txt")

	tr := newTree(t, Options{AttrCacheTTL: time.Hour})
	_, err := tr.AddRoot(dir)
	require.NoError(t, err)
	a, ok := tr.Find(filepath.Join(dir, "a.txt"))
	require.True(t, ok)

	attrs, err := tr.Attributes(a)
	require.NoError(t, err)
	assert.Equal(t, int64(len("a.txt")), attrs.Size)
	assert.False(t, attrs.IsDir)

	require.NoError(t, os.WriteFile(a.BackingPath(), []byte("much longer content"), 0600))

	// Served from cache until refreshed.
	cached, err := tr.Attributes(a)
	require.NoError(t, err)
	assert.Equal(t, attrs.Size, cached.Size)

	fresh, err := tr.Refresh(a)
	require.NoError(t, err)
	assert.Equal(t, int64(len("much longer content")), fresh.Size)

	require.NoError(t, os.Remove(a.BackingPath()))
	_, err = tr.Refresh(a)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWalkAndRoots(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	layout(t, first, "x/y.txt")
	layout(t, second, "z.txt")

	tr := newTree(t, Options{})
	_, err := tr.AddRoot(first)
	require.NoError(t, err)
	_, err = tr.AddRoot(second)
	require.NoError(t, err)

	roots := tr.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, first, roots[0].BackingPath())

	var visited []string
	require.NoError(t, tr.Walk(func(n *Node) error {
		visited = append(visited, n.Name())
		return nil
	}))
	assert.Len(t, visited, 5)
	assert.Equal(t, filepath.Base(first), visited[0])
	assert.Equal(t, "x", visited[1])
	assert.Equal(t, "y.txt", visited[2])

	stop := assert.AnError
	count := 0
	err = tr.Walk(func(*Node) error {
		count++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, "docs"), ExpandHome("~/docs"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
}
