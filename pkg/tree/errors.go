package tree

import "errors"

var (
	// ErrNotDirectory is returned when a root path is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrRootExists is returned when a root is added twice.
	ErrRootExists = errors.New("root already added")

	// ErrNotInTree is returned for nodes that were detached from the tree.
	ErrNotInTree = errors.New("node is not in the tree")

	// ErrInvalidPattern is returned when an ignore pattern does not compile.
	ErrInvalidPattern = errors.New("invalid ignore pattern")
)
