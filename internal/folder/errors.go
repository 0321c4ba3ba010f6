package folder

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat indicates a flattened sequence violates the depth rules
	ErrFormat = errors.New("invalid depth sequence")

	// ErrNotFound indicates no node carries the requested identifier
	ErrNotFound = errors.New("node not found")

	// ErrInvalidArgument indicates a nil or empty input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateRoot indicates a root with the same name already exists
	ErrDuplicateRoot = errors.New("root already exists")

	// ErrDuplicateID indicates two nodes of a forest share an identifier
	ErrDuplicateID = errors.New("duplicate node identifier")

	// ErrInvalidMove indicates a node cannot be placed under the requested parent
	ErrInvalidMove = errors.New("invalid move")
)

// FormatError describes the element of a flattened sequence that failed
// validation. PrevIndex and PrevDepth are set only for depth jumps.
type FormatError struct {
	Index     int // Offending index, -1 for an empty sequence
	Depth     int // Depth found at Index
	PrevIndex int // Preceding index for jumps, otherwise -1
	PrevDepth int // Depth at PrevIndex
	Reason    string
}

// Error implements the error interface
func (e *FormatError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("%v: %s", ErrFormat, e.Reason)
	case e.PrevIndex >= 0:
		return fmt.Sprintf("%v: %s: index %d has depth %d while index %d has depth %d",
			ErrFormat, e.Reason, e.PrevIndex, e.PrevDepth, e.Index, e.Depth)
	default:
		return fmt.Sprintf("%v: %s: index %d has depth %d", ErrFormat, e.Reason, e.Index, e.Depth)
	}
}

// Unwrap lets errors.Is match ErrFormat
func (e *FormatError) Unwrap() error {
	return ErrFormat
}

func newFormatError(index, depth int, reason string) *FormatError {
	return &FormatError{
		Index:     index,
		Depth:     depth,
		PrevIndex: -1,
		Reason:    reason,
	}
}
