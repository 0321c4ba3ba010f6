package folder

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

func sequence(depths ...int) []*Node {
	list := make([]*Node, len(depths))
	for i, d := range depths {
		list[i] = &Node{ID: ID(fmt.Sprintf("n%d", i)), Name: fmt.Sprintf("node-%d", i), Depth: d}
	}
	return list
}

func TestValidateDepths(t *testing.T) {
	tests := []struct {
		name      string
		depths    []int
		index     int
		prevIndex int
	}{
		{name: "empty", depths: nil, index: -1, prevIndex: -1},
		{name: "root depth not -1", depths: []int{0, 0}, index: 0, prevIndex: -1},
		{name: "depth jump of two", depths: []int{-1, 0, 2}, index: 2, prevIndex: 1},
		{name: "first child too deep", depths: []int{-1, 1}, index: 1, prevIndex: 0},
		{name: "negative after root", depths: []int{-1, 0, -1}, index: 2, prevIndex: -1},
		{name: "second root", depths: []int{-1, -1}, index: 1, prevIndex: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDepths(sequence(tt.depths...))
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("Expected ErrFormat, got %v", err)
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected *FormatError, got %T", err)
			}
			if fe.Index != tt.index {
				t.Errorf("Expected index %d, got %d (%v)", tt.index, fe.Index, err)
			}
			if fe.PrevIndex != tt.prevIndex {
				t.Errorf("Expected previous index %d, got %d", tt.prevIndex, fe.PrevIndex)
			}
			if tt.index >= 0 && fe.Depth != tt.depths[tt.index] {
				t.Errorf("Expected depth %d, got %d", tt.depths[tt.index], fe.Depth)
			}
		})
	}

	valid := [][]int{
		{-1},
		{-1, 0},
		{-1, 0, 1, 2, 0},
		{-1, 0, 1, 2, 3, 1, 0, 0},
	}
	for _, depths := range valid {
		if err := ValidateDepths(sequence(depths...)); err != nil {
			t.Errorf("Expected %v to be valid, got %v", depths, err)
		}
	}
}

func TestFormatErrorMessage(t *testing.T) {
	err := ValidateDepths(sequence(-1, 0, 2))
	want := "invalid depth sequence: depth cannot increase by more than 1 per element: index 1 has depth 0 while index 2 has depth 2"
	if err.Error() != want {
		t.Errorf("Unexpected message:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestNilElementRejected(t *testing.T) {
	root := &Node{ID: "r", Name: "root", Depth: -1}
	for _, list := range [][]*Node{{nil}, {root, nil}} {
		if err := ValidateDepths(list); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ValidateDepths: expected ErrInvalidArgument, got %v", err)
		}
		if _, err := Rebuild(list); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Rebuild: expected ErrInvalidArgument, got %v", err)
		}
	}
}

func TestRebuildSmallTree(t *testing.T) {
	list := []*Node{
		{ID: "r", Name: "root", Depth: -1},
		{ID: "a", Name: "A", Depth: 0},
		{ID: "a1", Name: "A1", Depth: 1},
		{ID: "b", Name: "B", Depth: 0},
	}

	root, err := Rebuild(list)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if root.Name != "root" {
		t.Fatalf("Expected root %q, got %q", "root", root.Name)
	}
	if root.ChildCount() != 2 || root.Child(0).Name != "A" || root.Child(1).Name != "B" {
		t.Fatalf("Unexpected root children: %v", names(root.Children))
	}
	a, b := root.Child(0), root.Child(1)
	if a.ChildCount() != 1 || a.Child(0).Name != "A1" {
		t.Errorf("Unexpected children of A: %v", names(a.Children))
	}
	if b.ChildCount() != 0 {
		t.Errorf("B should have no children, got %v", names(b.Children))
	}
	if a.Child(0).Parent() != a || a.Parent() != root || b.Parent() != root || root.Parent() != nil {
		t.Error("Parent links not set from depths")
	}
}

func TestRebuildDiscardsStaleLinks(t *testing.T) {
	list := sequence(-1, 0, 0)
	list[1].Children = []*Node{list[2]}
	list[2].parent = list[1]

	root, err := Rebuild(list)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if root.ChildCount() != 2 {
		t.Errorf("Expected 2 root children, got %d", root.ChildCount())
	}
	if list[1].ChildCount() != 0 {
		t.Error("Stale children should be discarded")
	}
	if list[2].Parent() != root {
		t.Error("Stale parent should be replaced")
	}
}

func TestRebuildInvalidLeavesInputUntouched(t *testing.T) {
	list := sequence(-1, 0, 2)
	list[1].Children = []*Node{list[2]}

	root, err := Rebuild(list)
	if err == nil || root != nil {
		t.Fatalf("Expected failure without a tree, got %v, %v", root, err)
	}
	if list[1].ChildCount() != 1 {
		t.Error("Failed rebuild must not mutate the input")
	}
}

func TestFlattenPreOrder(t *testing.T) {
	root, _ := buildTree(t)

	list, err := Flatten(root)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	got := names(list)
	want := []string{"root", "A", "A1", "A2", "B", "B1", "B1a", "C"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if _, err := Flatten(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil root, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 20; trial++ {
		root := NewNode(fmt.Sprintf("root-%d", trial), nil)
		all := []*Node{root}
		for i := 0; i < 1+rng.Intn(200); i++ {
			parent := all[rng.Intn(len(all))]
			id := parent.AddChild()
			child := parent.Children[len(parent.Children)-1]
			child.Name = fmt.Sprintf("n%d", i)
			if rng.Intn(3) == 0 {
				child.Path = "Assets/" + string(id)
			}
			all = append(all, child)
		}

		list, err := Flatten(root)
		if err != nil {
			t.Fatalf("Flatten failed: %v", err)
		}
		if len(list) != len(all) {
			t.Fatalf("Expected %d nodes, got %d", len(all), len(list))
		}

		// Copy only the persisted fields, as a load would.
		loaded := make([]*Node, len(list))
		for i, n := range list {
			loaded[i] = &Node{ID: n.ID, Name: n.Name, Depth: n.Depth, Path: n.Path}
		}

		rebuilt, err := Rebuild(loaded)
		if err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		assertSameTree(t, root, rebuilt)
	}
}

func TestChildDepthFollowsParentAfterRebuild(t *testing.T) {
	root, err := Rebuild(sequence(-1, 0, 1, 2, 1, 0, 1, 0))
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if root.Depth != RootDepth {
		t.Errorf("Root depth should be %d", RootDepth)
	}
	root.Walk(func(n *Node) bool {
		if p := n.Parent(); p != nil && n.Depth != p.Depth+1 {
			t.Errorf("Node %s depth %d, parent depth %d", n.Name, n.Depth, p.Depth)
		}
		return true
	})
}

func TestUpdateDepths(t *testing.T) {
	root, nodes := buildTree(t)

	// Hand-move B under A1 without fixing depths.
	b := nodes["B"]
	root.RemoveChild(b)
	nodes["A1"].Children = append(nodes["A1"].Children, b)
	root.SetParentLinksFromChildren()

	if err := UpdateDepths(root); err != nil {
		t.Fatalf("UpdateDepths failed: %v", err)
	}
	want := map[string]int{"A1": 1, "B": 2, "B1": 3, "B1a": 4, "C": 0}
	for name, depth := range want {
		if nodes[name].Depth != depth {
			t.Errorf("%s: expected depth %d, got %d", name, depth, nodes[name].Depth)
		}
	}

	list, _ := Flatten(root)
	if err := ValidateDepths(list); err != nil {
		t.Errorf("Repaired tree should flatten to a valid sequence: %v", err)
	}

	if err := UpdateDepths(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestFlattenDeepTree(t *testing.T) {
	root := NewNode("deep", nil)
	current := root
	for i := 0; i < 100000; i++ {
		current.AddChild()
		current = current.Children[0]
	}

	list, err := Flatten(root)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if len(list) != 100001 {
		t.Fatalf("Expected 100001 nodes, got %d", len(list))
	}
	if list[len(list)-1].Depth != 99999 {
		t.Errorf("Expected last depth 99999, got %d", list[len(list)-1].Depth)
	}
}

func names(list []*Node) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.Name
	}
	return out
}

func assertSameTree(t *testing.T, want, got *Node) {
	t.Helper()
	if want.ID != got.ID || want.Name != got.Name || want.Depth != got.Depth || want.Path != got.Path {
		t.Fatalf("Node mismatch: want %+v, got %+v", *want, *got)
	}
	if want.ChildCount() != got.ChildCount() {
		t.Fatalf("Node %s: want %d children, got %d", want.Name, want.ChildCount(), got.ChildCount())
	}
	for i := range want.Children {
		if got.Children[i].Parent() != got {
			t.Fatalf("Node %s: child %d has wrong parent", got.Name, i)
		}
		assertSameTree(t, want.Children[i], got.Children[i])
	}
}
