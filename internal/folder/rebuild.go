package folder

import "fmt"

// ValidateDepths checks that list is a well-formed flattened sequence. The
// checks run in a fixed order and the first violation is returned as a
// *FormatError.
func ValidateDepths(list []*Node) error {
	if len(list) == 0 {
		return newFormatError(-1, 0, "sequence is empty")
	}

	for i, n := range list {
		if n == nil {
			return fmt.Errorf("validate depths: index %d: nil node: %w", i, ErrInvalidArgument)
		}
	}

	if list[0].Depth != RootDepth {
		return newFormatError(0, list[0].Depth, "first element must be the root with depth -1")
	}

	for i := 0; i < len(list)-1; i++ {
		depth, next := list[i].Depth, list[i+1].Depth
		if next-depth > 1 {
			return &FormatError{
				Index:     i + 1,
				Depth:     next,
				PrevIndex: i,
				PrevDepth: depth,
				Reason:    "depth cannot increase by more than 1 per element",
			}
		}
	}

	for i := 1; i < len(list); i++ {
		if list[i].Depth < 0 {
			return newFormatError(i, list[i].Depth, "only the root may have a negative depth")
		}
	}

	if len(list) > 1 && list[1].Depth != 0 {
		return newFormatError(1, list[1].Depth, "first element after the root must have depth 0")
	}

	return nil
}

// Rebuild reconstructs parent and child links of a flattened sequence from
// depth and order alone and returns the first element as the root. Existing
// links on the elements are discarded. On a validation error the elements
// are left untouched.
func Rebuild(list []*Node) (*Node, error) {
	if err := ValidateDepths(list); err != nil {
		return nil, err
	}

	for _, n := range list {
		n.parent = nil
		n.Children = nil
	}

	for p, parent := range list {
		childDepth := parent.Depth + 1
		for i := p + 1; i < len(list); i++ {
			if list[i].Depth <= parent.Depth {
				break
			}
			if list[i].Depth == childDepth {
				list[i].parent = parent
				parent.Children = append(parent.Children, list[i])
			}
		}
	}

	logger.Trace("Rebuilt tree %q from %d nodes", list[0].ID, len(list))
	return list[0], nil
}
