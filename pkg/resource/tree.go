package resource

import "fmt"

// Element is a (kind, ARN) pair discovered by a listing pass.
type Element struct {
	Kind Kind
	ARN  string
}

// Tree is the parent->children adjacency built by listing the remote
// service. It is built once per query and discarded; it is never
// mutated concurrently.
type Tree struct {
	children map[Element][]Element
	parents  map[Element]Element
}

// NewTree returns an empty ownership tree.
func NewTree() *Tree {
	return &Tree{
		children: make(map[Element][]Element),
		parents:  make(map[Element]Element),
	}
}

// Add records the parent of a child element. Each element has at most
// one parent; a second Add for the same child fails.
func (t *Tree) Add(parent, child Element) error {
	if _, exists := t.parents[child]; exists {
		return fmt.Errorf("element %s already exists in tree", child.ARN)
	}
	t.parents[child] = parent
	t.children[parent] = append(t.children[parent], child)
	return nil
}

// Children returns the children of an element matching the filter. A
// nil filter matches everything.
func (t *Tree) Children(of Element, where func(Element) bool) []Element {
	var out []Element
	for _, c := range t.children[of] {
		if where == nil || where(c) {
			out = append(out, c)
		}
	}
	return out
}

// Parent returns an element's recorded parent, if any.
func (t *Tree) Parent(of Element) (Element, bool) {
	p, ok := t.parents[of]
	return p, ok
}

// Elements returns every element known to the tree, parents included.
func (t *Tree) Elements() []Element {
	seen := make(map[Element]struct{})
	var out []Element
	add := func(e Element) {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	for child, parent := range t.parents {
		add(parent)
		add(child)
	}
	return out
}

// OwnedBy reports whether an ARN descends from the given dataset group
// element.
func (t *Tree) OwnedBy(arn string, datasetGroup Element) bool {
	for child, parent := range t.parents {
		if child.ARN != arn {
			continue
		}
		for {
			if parent == datasetGroup {
				return true
			}
			next, ok := t.parents[parent]
			if !ok {
				return false
			}
			parent = next
		}
	}
	return false
}

// Available reports whether an ARN is unused by any element in the
// tree.
func (t *Tree) Available(arn string) bool {
	for child, parent := range t.parents {
		if child.ARN == arn || parent.ARN == arn {
			return false
		}
	}
	return true
}
