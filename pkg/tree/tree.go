// Package tree holds the in-memory model of the synchronized folders.
//
// Each root is scanned recursively into a tree of Nodes. Folder nodes are
// watcher entities: the watcher resolves their children concurrently while
// the owning goroutine synchronizes them against disk.
//
// Example usage:
//
//	t, err := tree.New(tree.Options{IgnoreHidden: true}, log)
//	if err != nil {
//	    return err
//	}
//	root, err := t.AddRoot("~/Documents")
//	if err != nil {
//	    return err
//	}
//	for _, folder := range t.Folders(root) {
//	    w.RegisterFolder(folder)
//	}
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/gobwas/glob"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Options configures scanning and the attribute cache.
type Options struct {
	// IgnorePatterns are glob patterns matched against base names and
	// root-relative slash paths.
	IgnorePatterns []string

	// IgnoreHidden skips dot files and dot folders.
	IgnoreHidden bool

	// AttrCacheSize bounds the attribute cache.
	// Default: 1024.
	AttrCacheSize int

	// AttrCacheTTL is how long cached attributes stay valid.
	// Default: 30s.
	AttrCacheTTL time.Duration
}

// Default option values.
const (
	DefaultAttrCacheSize = 1024
	DefaultAttrCacheTTL  = 30 * time.Second
)

func (o *Options) setDefaults() {
	if o.AttrCacheSize <= 0 {
		o.AttrCacheSize = DefaultAttrCacheSize
	}
	if o.AttrCacheTTL <= 0 {
		o.AttrCacheTTL = DefaultAttrCacheTTL
	}
}

// Attributes are the on-disk properties of a node.
type Attributes struct {
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	IsDir   bool
}

// Tree is the in-memory folder model.
//
// Mutations (AddRoot, Synchronize) must happen on one goroutine. Lookups
// are safe from any goroutine.
type Tree struct {
	opts   Options
	log    logger.Logger
	ignore []glob.Glob

	mu     sync.RWMutex
	roots  []*Node
	byPath map[string]*Node

	attrs *expirable.LRU[string, Attributes]
}

// New creates an empty tree.
func New(opts Options, log logger.Logger) (*Tree, error) {
	opts.setDefaults()

	ignore := make([]glob.Glob, 0, len(opts.IgnorePatterns))
	for _, p := range opts.IgnorePatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		ignore = append(ignore, g)
	}

	return &Tree{
		opts:   opts,
		log:    log.With("component", "tree"),
		ignore: ignore,
		byPath: make(map[string]*Node),
		attrs:  expirable.NewLRU[string, Attributes](opts.AttrCacheSize, nil, opts.AttrCacheTTL),
	}, nil
}

// AddRoot scans path recursively and adds it as a root.
func (t *Tree) AddRoot(path string) (*Node, error) {
	abs, err := filepath.Abs(ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	t.mu.Lock()
	if _, exists := t.byPath[abs]; exists {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRootExists, abs)
	}
	t.mu.Unlock()

	root := newNode(filepath.Base(abs), abs, true, nil)
	added := []*Node{root}
	t.scan(root, &added)

	t.mu.Lock()
	t.roots = append(t.roots, root)
	for _, n := range added {
		t.byPath[n.path] = n
	}
	t.mu.Unlock()

	t.log.Info("root scanned", "path", abs, "nodes", len(added))
	return root, nil
}

// scan fills the child list of dir recursively and appends every new node
// to added. Unreadable folders are logged and left empty.
func (t *Tree) scan(dir *Node, added *[]*Node) {
	entries, err := os.ReadDir(dir.path)
	if err != nil {
		t.log.Warn("failed to read folder", "path", dir.path, "error", err)
		return
	}

	for _, entry := range entries {
		if t.ignored(dir, entry.Name()) {
			continue
		}

		child := newNode(entry.Name(), filepath.Join(dir.path, entry.Name()), entry.IsDir(), dir)
		dir.children.Store(child.name, child)
		*added = append(*added, child)

		if child.dir {
			t.scan(child, added)
		}
	}
}

func (t *Tree) ignored(parent *Node, name string) bool {
	if t.opts.IgnoreHidden && strings.HasPrefix(name, ".") {
		return true
	}
	if len(t.ignore) == 0 {
		return false
	}

	rel := filepath.ToSlash(filepath.Join(relativePath(parent), name))
	for _, g := range t.ignore {
		if g.Match(name) || g.Match(rel) {
			return true
		}
	}
	return false
}

// relativePath returns the path of n below its root.
func relativePath(n *Node) string {
	var parts []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return filepath.Join(parts...)
}

// Synchronize brings n in line with disk.
//
// For a folder the child list is re-read: new entries are scanned in, gone
// entries are detached. For a file the attributes are refreshed. A node
// that no longer exists on disk synchronizes its parent instead, which
// detaches it.
func (t *Tree) Synchronize(n *Node) (Delta, error) {
	if !t.attached(n) {
		return Delta{}, fmt.Errorf("%w: %s", ErrNotInTree, n.path)
	}

	info, err := stat(n)
	switch {
	case errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir() != n.dir):
		if n.IsRoot() {
			return t.clear(n), nil
		}
		return t.Synchronize(n.parent)
	case err != nil:
		return Delta{}, fmt.Errorf("failed to stat %s: %w", n.path, err)
	}

	t.attrs.Add(n.path, attributesOf(info))
	if !n.dir {
		return Delta{}, nil
	}
	return t.syncChildren(n)
}

func (t *Tree) syncChildren(n *Node) (Delta, error) {
	entries, err := os.ReadDir(n.path)
	if err != nil {
		return Delta{}, fmt.Errorf("failed to read folder %s: %w", n.path, err)
	}

	var delta Delta
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if t.ignored(n, name) {
			continue
		}
		seen[name] = struct{}{}

		existing, ok := n.child(name)
		if ok && existing.dir == entry.IsDir() {
			continue
		}
		if ok {
			delta.merge(t.detach(existing))
		}

		child := newNode(name, filepath.Join(n.path, name), entry.IsDir(), n)
		n.children.Store(name, child)
		added := []*Node{child}
		if child.dir {
			t.scan(child, &added)
		}
		t.index(added)
		delta.Added = append(delta.Added, added...)
	}

	for _, c := range n.Children() {
		if _, ok := seen[c.name]; !ok {
			delta.merge(t.detach(c))
		}
	}

	if !delta.Empty() {
		t.log.Debug("folder synchronized",
			"path", n.path,
			"added", len(delta.Added),
			"removed", len(delta.Removed))
	}
	return delta, nil
}

// clear detaches every descendant of a root whose folder is gone.
func (t *Tree) clear(root *Node) Delta {
	var delta Delta
	for _, c := range root.Children() {
		delta.merge(t.detach(c))
	}
	t.log.Warn("root folder unavailable", "path", root.path)
	return delta
}

// detach removes n and its descendants from the tree.
func (t *Tree) detach(n *Node) Delta {
	var removed []*Node
	_ = n.walk(func(c *Node) error {
		removed = append(removed, c)
		return nil
	})

	if n.parent != nil {
		n.parent.children.Delete(n.name)
	}

	t.mu.Lock()
	for _, c := range removed {
		if t.byPath[c.path] == c {
			delete(t.byPath, c.path)
		}
		t.attrs.Remove(c.path)
	}
	t.mu.Unlock()

	return Delta{Removed: removed}
}

func (t *Tree) index(nodes []*Node) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, n := range nodes {
		t.byPath[n.path] = n
	}
}

func (t *Tree) attached(n *Node) bool {
	if n == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.byPath[n.path] == n
}

// Refresh re-reads the attributes of n from disk.
func (t *Tree) Refresh(n *Node) (Attributes, error) {
	info, err := stat(n)
	if err != nil {
		t.attrs.Remove(n.path)
		return Attributes{}, fmt.Errorf("failed to stat %s: %w", n.path, err)
	}

	attrs := attributesOf(info)
	t.attrs.Add(n.path, attrs)
	return attrs, nil
}

// Attributes returns the attributes of n, from cache when still fresh.
func (t *Tree) Attributes(n *Node) (Attributes, error) {
	if attrs, ok := t.attrs.Get(n.path); ok {
		return attrs, nil
	}
	return t.Refresh(n)
}

// stat follows a symlinked root but not links inside the tree, which are
// scanned as files.
func stat(n *Node) (fs.FileInfo, error) {
	if n.IsRoot() {
		return os.Stat(n.path)
	}
	return os.Lstat(n.path)
}

func attributesOf(info fs.FileInfo) Attributes {
	return Attributes{
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}

// Find returns the node at path.
func (t *Tree) Find(path string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.byPath[filepath.Clean(path)]
	return n, ok
}

// Folders returns root and every folder below it, parents first.
func (t *Tree) Folders(root *Node) []*Node {
	var out []*Node
	_ = root.walk(func(n *Node) error {
		if n.dir {
			out = append(out, n)
		}
		return nil
	})
	return out
}

// Walk visits every node of every root, parents first. A non-nil error
// from fn stops the walk and is returned.
func (t *Tree) Walk(fn func(*Node) error) error {
	for _, root := range t.Roots() {
		if err := root.walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Roots returns the roots in the order they were added.
func (t *Tree) Roots() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]*Node(nil), t.roots...)
}

// Len returns the number of nodes, roots included.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.byPath)
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
