package walker

import (
	"time"
)

// NodeKind tells directories and files apart.
type NodeKind uint8

const (
	NodeDir NodeKind = iota
	NodeFile
)

// Node is one entry of a Tree. Parent and Children are indexes into the
// tree's arena; the root has Parent -1.
type Node struct {
	Name     string
	Path     string
	Kind     NodeKind
	Parent   int
	Children []int
	Size     int64
	ModTime  time.Time
}

// EntryError records an entry that could not be read. The walk skips it.
type EntryError struct {
	Path string
	Err  error
}

func (e EntryError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

// Tree is the snapshot of a library directory built by Walk. Nodes live in
// a flat slice so consumers iterate without recursion.
type Tree struct {
	Root   string
	Errors []EntryError

	nodes []Node
	files int
}

func newTree(root string, modTime time.Time) *Tree {
	return &Tree{
		Root:  root,
		nodes: []Node{{Name: root, Path: root, Kind: NodeDir, Parent: -1, ModTime: modTime}},
	}
}

func (t *Tree) add(parent int, n Node) int {
	n.Parent = parent
	idx := len(t.nodes)
	t.nodes = append(t.nodes, n)
	t.nodes[parent].Children = append(t.nodes[parent].Children, idx)
	if n.Kind == NodeFile {
		t.files++
	}
	return idx
}

// Len returns the number of nodes, the root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// FileCount returns the number of file nodes.
func (t *Tree) FileCount() int {
	return t.files
}

// Node returns the node at idx.
func (t *Tree) Node(idx int) *Node {
	return &t.nodes[idx]
}

// Children returns the direct children of the node at idx.
func (t *Tree) Children(idx int) []*Node {
	ids := t.nodes[idx].Children
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = &t.nodes[id]
	}
	return out
}

// Files returns every file node in discovery order.
func (t *Tree) Files() []*Node {
	out := make([]*Node, 0, t.files)
	for i := range t.nodes {
		if t.nodes[i].Kind == NodeFile {
			out = append(out, &t.nodes[i])
		}
	}
	return out
}

// Dirs returns every directory node, the root first.
func (t *Tree) Dirs() []*Node {
	out := make([]*Node, 0, len(t.nodes)-t.files)
	for i := range t.nodes {
		if t.nodes[i].Kind == NodeDir {
			out = append(out, &t.nodes[i])
		}
	}
	return out
}
