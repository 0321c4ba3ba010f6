package folder

import "fmt"

// Forest is an ordered collection of independently named root trees.
type Forest struct {
	roots []*Node
}

// NewForest returns an empty forest.
func NewForest() *Forest {
	return &Forest{}
}

// RootCount returns the number of roots.
func (f *Forest) RootCount() int {
	return len(f.roots)
}

// Roots returns the roots in order. The slice is a copy; the nodes are not.
func (f *Forest) Roots() []*Node {
	roots := make([]*Node, len(f.roots))
	copy(roots, f.roots)
	return roots
}

// RootAt returns the i-th root, or nil when i is out of range.
func (f *Forest) RootAt(i int) *Node {
	if i < 0 || i >= len(f.roots) {
		return nil
	}
	return f.roots[i]
}

// ContainsRoot reports whether a root is named name.
func (f *Forest) ContainsRoot(name string) bool {
	_, ok := f.Root(name)
	return ok
}

// Root returns the root named name.
func (f *Forest) Root(name string) (*Node, bool) {
	for _, r := range f.roots {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// AddRoot appends a new empty tree named name.
func (f *Forest) AddRoot(name string) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("add root: empty name: %w", ErrInvalidArgument)
	}
	if f.ContainsRoot(name) {
		return nil, fmt.Errorf("add root %q: %w", name, ErrDuplicateRoot)
	}
	root := NewNode(name, nil)
	f.roots = append(f.roots, root)
	logger.Info("Created root %q (%s)", name, root.ID)
	return root, nil
}

// RemoveRoot deletes the tree named name.
func (f *Forest) RemoveRoot(name string) error {
	for i, r := range f.roots {
		if r.Name == name {
			f.roots = append(f.roots[:i], f.roots[i+1:]...)
			logger.Info("Removed root %q", name)
			return nil
		}
	}
	return fmt.Errorf("remove root %q: %w", name, ErrNotFound)
}

// RenameRoot renames a root, keeping names unique.
func (f *Forest) RenameRoot(oldName, newName string) error {
	if newName == "" {
		return fmt.Errorf("rename root: empty name: %w", ErrInvalidArgument)
	}
	root, ok := f.Root(oldName)
	if !ok {
		return fmt.Errorf("rename root %q: %w", oldName, ErrNotFound)
	}
	if oldName == newName {
		return nil
	}
	if f.ContainsRoot(newName) {
		return fmt.Errorf("rename root %q to %q: %w", oldName, newName, ErrDuplicateRoot)
	}
	root.Name = newName
	return nil
}

// Find looks id up in every tree, in root order.
func (f *Forest) Find(id ID) (*Node, bool) {
	for _, r := range f.roots {
		if n, ok := r.Find(id); ok {
			return n, true
		}
	}
	return nil, false
}

// Sequences repairs the depths of every tree and returns one flattened
// sequence per root, in root order.
func (f *Forest) Sequences() ([][]*Node, error) {
	seqs := make([][]*Node, 0, len(f.roots))
	for _, r := range f.roots {
		r.Depth = RootDepth
		if err := UpdateDepths(r); err != nil {
			return nil, err
		}
		seq, err := Flatten(r)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

// FromSequences rebuilds a forest from flattened sequences. Any invalid
// sequence, duplicate root name or identifier shared by two nodes aborts the
// whole load.
func FromSequences(seqs [][]*Node) (*Forest, error) {
	f := NewForest()
	seen := make(map[ID]bool)
	for i, seq := range seqs {
		for _, n := range seq {
			if n == nil {
				return nil, fmt.Errorf("sequence %d: nil node: %w", i, ErrInvalidArgument)
			}
			if seen[n.ID] {
				return nil, fmt.Errorf("sequence %d: id %q: %w", i, n.ID, ErrDuplicateID)
			}
			seen[n.ID] = true
		}

		root, err := Rebuild(seq)
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		if f.ContainsRoot(root.Name) {
			return nil, fmt.Errorf("sequence %d: root %q: %w", i, root.Name, ErrDuplicateRoot)
		}
		f.roots = append(f.roots, root)
	}
	logger.Debug("Loaded forest with %d roots", len(f.roots))
	return f, nil
}
