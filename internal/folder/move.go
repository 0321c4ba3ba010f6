package folder

import "fmt"

// Move re-parents nodes under newParent, inserted as a block at index in the
// given order. The index is clamped to [0, newParent.ChildCount()] after the
// nodes are detached from their old parents. Depths below newParent are
// repaired before returning.
//
// A root cannot be moved, and newParent may not be one of the nodes or lie
// inside one of their subtrees. Nothing is modified when the move is refused.
func Move(nodes []*Node, newParent *Node, index int) error {
	if newParent == nil || len(nodes) == 0 {
		return fmt.Errorf("move: %w", ErrInvalidArgument)
	}

	seen := make(map[*Node]bool, len(nodes))
	for _, n := range nodes {
		if n == nil {
			return fmt.Errorf("move: nil node: %w", ErrInvalidArgument)
		}
		if seen[n] {
			return fmt.Errorf("move %q: node listed twice: %w", n.ID, ErrInvalidArgument)
		}
		seen[n] = true
		if n.parent == nil {
			return fmt.Errorf("move %q: root cannot be moved: %w", n.ID, ErrInvalidMove)
		}
		if newParent.isDescendantOf(n) {
			return fmt.Errorf("move %q under %q: target is inside the moved subtree: %w",
				n.ID, newParent.ID, ErrInvalidMove)
		}
	}

	for _, n := range nodes {
		n.parent.RemoveChild(n)
		n.parent = newParent
	}

	if index < 0 {
		index = 0
	}
	if index > len(newParent.Children) {
		index = len(newParent.Children)
	}

	children := make([]*Node, 0, len(newParent.Children)+len(nodes))
	children = append(children, newParent.Children[:index]...)
	children = append(children, nodes...)
	children = append(children, newParent.Children[index:]...)
	newParent.Children = children

	logger.Debug("Moved %d nodes under %q at index %d", len(nodes), newParent.ID, index)
	return UpdateDepths(newParent)
}
