package folder

import "fmt"

// Flatten returns every node of root's subtree exactly once, in pre-order:
// a node is followed by its first child's subtree, then its second child's,
// and so on. The depth fields are emitted as stored; run UpdateDepths first
// if the tree was restructured.
func Flatten(root *Node) ([]*Node, error) {
	if root == nil {
		return nil, fmt.Errorf("flatten: nil root: %w", ErrInvalidArgument)
	}

	var result []*Node
	root.Walk(func(n *Node) bool {
		result = append(result, n)
		return true
	})

	logger.Trace("Flattened %q into %d nodes", root.ID, len(result))
	return result, nil
}

// UpdateDepths sets the depth of every descendant of node to its parent's
// depth plus one, taking node's own depth as correct.
func UpdateDepths(node *Node) error {
	if node == nil {
		return fmt.Errorf("update depths: nil node: %w", ErrInvalidArgument)
	}

	stack := []*Node{node}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range current.Children {
			child.Depth = current.Depth + 1
			stack = append(stack, child)
		}
	}
	return nil
}
