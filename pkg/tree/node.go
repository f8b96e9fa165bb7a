package tree

import (
	"sort"

	"github.com/0xmhha/foldersync/pkg/watcher"
	"github.com/puzpuzpuz/xsync/v3"
)

// Node is a file or folder of the tree. Name, path, kind and parent never
// change after creation; a node whose on-disk kind changes is replaced.
type Node struct {
	name   string
	path   string
	dir    bool
	parent *Node

	// children is nil for files. It is written on the consumer goroutine
	// and read concurrently by the watcher pump.
	children *xsync.MapOf[string, *Node]
}

func newNode(name, path string, dir bool, parent *Node) *Node {
	n := &Node{name: name, path: path, dir: dir, parent: parent}
	if dir {
		n.children = xsync.NewMapOf[string, *Node]()
	}
	return n
}

// Name returns the base name of the node.
func (n *Node) Name() string { return n.name }

// Parent returns the parent folder, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// IsRoot reports whether n is a tree root.
func (n *Node) IsRoot() bool { return n.parent == nil }

// IsContainer implements watcher.Entity.
func (n *Node) IsContainer() bool { return n.dir }

// BackingPath implements watcher.Entity.
func (n *Node) BackingPath() string { return n.path }

// ResolveChild implements watcher.Entity.
func (n *Node) ResolveChild(name string) (watcher.Entity, bool) {
	child, ok := n.child(name)
	if !ok {
		return nil, false
	}
	return child, true
}

func (n *Node) child(name string) (*Node, bool) {
	if n.children == nil {
		return nil, false
	}
	return n.children.Load(name)
}

// Children returns the direct children sorted by name.
func (n *Node) Children() []*Node {
	if n.children == nil {
		return nil
	}

	out := make([]*Node, 0, n.children.Size())
	n.children.Range(func(_ string, c *Node) bool {
		out = append(out, c)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// walk visits n and its descendants depth-first, parents before children.
func (n *Node) walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.Children() {
		if err := c.walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Delta is the outcome of a synchronization: nodes that entered and left
// the tree, descendants included.
type Delta struct {
	Added   []*Node
	Removed []*Node
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// AddedFolders returns the folders among the added nodes.
func (d Delta) AddedFolders() []*Node {
	return folders(d.Added)
}

// RemovedFolders returns the folders among the removed nodes.
func (d Delta) RemovedFolders() []*Node {
	return folders(d.Removed)
}

func (d *Delta) merge(other Delta) {
	d.Added = append(d.Added, other.Added...)
	d.Removed = append(d.Removed, other.Removed...)
}

func folders(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.dir {
			out = append(out, n)
		}
	}
	return out
}
