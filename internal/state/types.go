// Package state provides persistent state management for the virtual folder forest.
package state

import (
	"fmt"

	"vfolder/internal/folder"
)

// CurrentVersion is written into every saved document
const CurrentVersion = 1

// Document is the persisted form of a forest
type Document struct {
	// Version for future compatibility
	Version int `json:"version" yaml:"version"`

	// One pre-order flattened sequence per root, in forest order
	Roots []Sequence `json:"roots" yaml:"roots"`
}

// Sequence holds the flattened nodes of one root. Parent and child links are
// not stored; they are rebuilt from depth and order on load.
type Sequence struct {
	Nodes []*folder.Node `json:"nodes" yaml:"nodes"`
}

// NewDocument flattens f into a document.
func NewDocument(f *folder.Forest) (*Document, error) {
	seqs, err := f.Sequences()
	if err != nil {
		return nil, fmt.Errorf("failed to flatten forest: %w", err)
	}

	doc := &Document{
		Version: CurrentVersion,
		Roots:   make([]Sequence, 0, len(seqs)),
	}
	for _, seq := range seqs {
		doc.Roots = append(doc.Roots, Sequence{Nodes: seq})
	}
	return doc, nil
}

// Forest rebuilds the forest described by the document.
func (d *Document) Forest() (*folder.Forest, error) {
	seqs := make([][]*folder.Node, 0, len(d.Roots))
	for _, r := range d.Roots {
		seqs = append(seqs, r.Nodes)
	}
	return folder.FromSequences(seqs)
}
