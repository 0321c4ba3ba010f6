// Package folder implements the virtual folder tree: nodes that reference
// real files without owning them, and the depth-indexed flattening used to
// persist a tree as an ordered sequence and rebuild it on load.
//
// Nothing in this package locks. A tree is mutated in place by a single
// owner; see the session package for the shared, locked owner.
package folder

import (
	"github.com/google/uuid"

	"vfolder/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("folder")
)

const (
	// DefaultName is given to folders created by AddChild
	DefaultName = "New Folder"

	// RootDepth is the depth of every root node
	RootDepth = -1
)

// ID identifies a node. It is unique across a forest.
type ID string

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// Node is a virtual folder. Path optionally associates the folder with a
// real file or directory; it is an association, not ownership.
type Node struct {
	ID       ID      `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Depth    int     `json:"depth" yaml:"depth"`
	Path     string  `json:"path,omitempty" yaml:"path,omitempty"`
	Children []*Node `json:"-" yaml:"-"`

	// back-reference only; the parent's Children is the owning link
	parent *Node
}

// NewNode creates a detached node. When parent is non-nil the depth is
// derived from it, but the node is not appended to parent.Children.
func NewNode(name string, parent *Node) *Node {
	n := &Node{
		ID:     NewID(),
		Name:   name,
		Depth:  RootDepth,
		parent: parent,
	}
	if parent != nil {
		n.Depth = parent.Depth + 1
	}
	return n
}

// Parent returns the parent node, or nil for a root or detached node.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsRoot reports whether n has no parent.
func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int {
	return len(n.Children)
}

// Child returns the i-th child, or nil when i is out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// IndexOf returns the position of child among n's children, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Find searches n's subtree depth-first, in pre-order, for id. The first
// match wins. Cost is linear in the subtree size.
func (n *Node) Find(id ID) (*Node, bool) {
	var found *Node
	n.Walk(func(current *Node) bool {
		if current.ID == id {
			found = current
			return false
		}
		return true
	})
	if found == nil {
		logger.Trace("Node %q not found under %q", id, n.ID)
		return nil, false
	}
	return found, true
}

// Walk visits n and its descendants in pre-order using an explicit stack.
// Returning false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) {
	stack := []*Node{n}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(current) {
			return
		}
		for i := len(current.Children) - 1; i >= 0; i-- {
			stack = append(stack, current.Children[i])
		}
	}
}

// AddChild appends a new folder named DefaultName and returns its id.
func (n *Node) AddChild() ID {
	child := NewNode(DefaultName, n)
	n.Children = append(n.Children, child)
	logger.Debug("Added child %q to %q (depth %d)", child.ID, n.ID, child.Depth)
	return child.ID
}

// AddSibling creates a folder next to n, or under n when n is a root, and
// returns the id of the new folder.
func (n *Node) AddSibling() ID {
	if n.parent != nil {
		return n.parent.AddChild()
	}
	return n.AddChild()
}

// RemoveChild detaches child from n and clears its parent link. It is a
// no-op when n has no children or child is not one of them.
func (n *Node) RemoveChild(child *Node) {
	if len(n.Children) == 0 || child == nil {
		return
	}
	idx := n.IndexOf(child)
	if idx < 0 {
		logger.Trace("Node %q is not a child of %q", child.ID, n.ID)
		return
	}
	n.Children = append(n.Children[:idx], n.Children[idx+1:]...)
	if len(n.Children) == 0 {
		n.Children = nil
	}
	child.parent = nil
	logger.Debug("Removed child %q from %q", child.ID, n.ID)
}

// SetParentLinksFromChildren points every descendant's parent link at the
// node whose child list holds it.
func (n *Node) SetParentLinksFromChildren() {
	n.Walk(func(current *Node) bool {
		for _, child := range current.Children {
			child.parent = current
		}
		return true
	})
}

// Ancestors returns the ids from the parent of the node identified by id up
// to the root of n's tree.
func (n *Node) Ancestors(id ID) ([]ID, error) {
	node, ok := n.Find(id)
	if !ok {
		return nil, ErrNotFound
	}
	var ancestors []ID
	for p := node.parent; p != nil; p = p.parent {
		ancestors = append(ancestors, p.ID)
	}
	return ancestors, nil
}

// DescendantsWithChildren returns the node identified by id and all of its
// descendants, the set a tree view expands for a recursive "expand all".
func (n *Node) DescendantsWithChildren(id ID) ([]ID, error) {
	start, ok := n.Find(id)
	if !ok {
		return nil, ErrNotFound
	}
	var ids []ID
	stack := []*Node{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, current.ID)
		stack = append(stack, current.Children...)
	}
	return ids, nil
}

// isDescendantOf reports whether n equals ancestor or lies below it.
func (n *Node) isDescendantOf(ancestor *Node) bool {
	for p := n; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
