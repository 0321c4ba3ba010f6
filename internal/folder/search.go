package folder

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

const globMeta = "*?[{"

// Search returns the descendants of root whose name matches query, in
// pre-order. The root itself is never matched. A query containing glob
// metacharacters is matched as a glob against the whole name; otherwise it
// matches any name containing it. Both forms ignore case.
func Search(root *Node, query string) ([]*Node, error) {
	if root == nil {
		return nil, fmt.Errorf("search: nil root: %w", ErrInvalidArgument)
	}
	if query == "" {
		return nil, fmt.Errorf("search: empty query: %w", ErrInvalidArgument)
	}

	match, err := compileQuery(query)
	if err != nil {
		return nil, err
	}

	var results []*Node
	root.Walk(func(n *Node) bool {
		if n != root && match(strings.ToLower(n.Name)) {
			results = append(results, n)
		}
		return true
	})

	logger.Debug("Search %q under %q matched %d nodes", query, root.ID, len(results))
	return results, nil
}

func compileQuery(query string) (func(string) bool, error) {
	lowered := strings.ToLower(query)
	if !strings.ContainsAny(lowered, globMeta) {
		return func(name string) bool {
			return strings.Contains(name, lowered)
		}, nil
	}

	g, err := glob.Compile(lowered)
	if err != nil {
		return nil, fmt.Errorf("search: bad pattern %q: %v: %w", query, err, ErrInvalidArgument)
	}
	return g.Match, nil
}
