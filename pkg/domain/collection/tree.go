package collection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bioarchive/api/pkg/domain/dataset"
)

// Node is one materialized element: a leaf instance, a child subtree, or
// a placeholder (neither set) for an element not yet produced.
type Node struct {
	Element *Element
	Leaf    DatasetInstance
	Child   *Tree
}

// IsPlaceholder reports whether the element has not been materialized.
func (n *Node) IsPlaceholder() bool {
	return n.Leaf == nil && n.Child == nil
}

// Tree is a fully-loaded collection with its elements, recursively. The
// collection tables are strictly hierarchical; the tree is assembled by
// id (an arena of rows joined by index), never by cyclic references.
type Tree struct {
	Collection *DatasetCollection
	Elements   []*Node
}

// NewTree assembles and validates a collection tree. It fails fast on a
// shape that contradicts the declared collection type: element indices
// must be contiguous from 0 with unique identifiers, a leaf-level
// collection may only hold dataset instances, and every child subtree
// must carry exactly the parent type with the outermost token stripped.
// Placeholder nodes are permitted only while the collection is not yet
// populated.
func NewTree(c *DatasetCollection, nodes []*Node) (*Tree, error) {
	if c == nil {
		return nil, &StructureError{Message: "collection is required"}
	}

	sorted := make([]*Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Element.Index() < sorted[j].Element.Index() })

	childType, hasChildren := c.CollectionType().Child()
	seen := make(map[string]struct{}, len(sorted))

	for i, n := range sorted {
		el := n.Element
		if el.Index() != i {
			return nil, &StructureError{
				Message: fmt.Sprintf("element indices must be contiguous from 0: position %d holds index %d", i, el.Index()),
			}
		}
		if _, dup := seen[el.Identifier()]; dup {
			return nil, &StructureError{Message: fmt.Sprintf("duplicate element identifier %q", el.Identifier())}
		}
		seen[el.Identifier()] = struct{}{}

		if n.Leaf != nil && n.Child != nil {
			return nil, &StructureError{Message: fmt.Sprintf("element %q references both a dataset and a collection", el.Identifier())}
		}
		if n.IsPlaceholder() {
			if c.Populated() {
				return nil, &StructureError{Message: fmt.Sprintf("populated collection has unmaterialized element %q", el.Identifier())}
			}
			continue
		}
		if hasChildren {
			if n.Child == nil {
				return nil, &StructureError{
					Message: fmt.Sprintf("collection of type %q requires element %q to be a %q collection", c.CollectionType(), el.Identifier(), childType),
				}
			}
			if n.Child.Collection.CollectionType() != childType {
				return nil, &StructureError{
					Message: fmt.Sprintf("element %q has collection type %q, want %q", el.Identifier(), n.Child.Collection.CollectionType(), childType),
				}
			}
		} else if n.Leaf == nil {
			return nil, &StructureError{
				Message: fmt.Sprintf("leaf-level collection of type %q requires element %q to be a dataset instance", c.CollectionType(), el.Identifier()),
			}
		}
	}

	if c.CollectionType().IsPaired() {
		if err := validatePairedIdentifiers(sorted); err != nil {
			return nil, err
		}
	}

	return &Tree{Collection: c, Elements: sorted}, nil
}

func validatePairedIdentifiers(nodes []*Node) error {
	if len(nodes) != 2 {
		return &StructureError{Message: fmt.Sprintf("paired collection requires exactly 2 elements, got %d", len(nodes))}
	}
	if nodes[0].Element.Identifier() != IdentifierForward || nodes[1].Element.Identifier() != IdentifierReverse {
		return &StructureError{Message: `paired collection elements must be identified "forward" and "reverse"`}
	}
	return nil
}

// DatasetInstances returns the leaf dataset instances of the whole
// nested structure, depth-first and left-to-right. Placeholders are
// skipped.
func (t *Tree) DatasetInstances() []DatasetInstance {
	var out []DatasetInstance
	t.walk(nil, func(_ []string, n *Node) {
		if n.Leaf != nil {
			out = append(out, n.Leaf)
		}
	})
	return out
}

// PathElement is a leaf element together with its identifier path, one
// identifier per nesting level.
type PathElement struct {
	Node *Node
	Path []string
}

// IdentifierPath returns the path joined for display.
func (p PathElement) IdentifierPath() string {
	return strings.Join(p.Path, "/")
}

// DatasetElements returns the leaf element wrappers in traversal order,
// each carrying its identifier path.
func (t *Tree) DatasetElements() []PathElement {
	var out []PathElement
	t.walk(nil, func(path []string, n *Node) {
		if n.Leaf != nil {
			p := make([]string, len(path))
			copy(p, path)
			out = append(out, PathElement{Node: n, Path: p})
		}
	})
	return out
}

// FailedElements returns the leaf elements whose underlying dataset is
// in the error state, with identifier paths. This backs the
// filter-failed-datasets collection operation.
func (t *Tree) FailedElements() []PathElement {
	var out []PathElement
	t.walk(nil, func(path []string, n *Node) {
		if n.Leaf != nil && n.Leaf.DatasetState() == dataset.StateError {
			p := make([]string, len(path))
			copy(p, path)
			out = append(out, PathElement{Node: n, Path: p})
		}
	})
	return out
}

func (t *Tree) walk(path []string, fn func(path []string, n *Node)) {
	for _, n := range t.Elements {
		p := append(path, n.Element.Identifier())
		fn(p, n)
		if n.Child != nil {
			n.Child.walk(p, fn)
		}
	}
}

// StateSummary aggregates the distinct dataset states and file
// extensions across all leaves. A single-extension summary marks a
// homogeneous-format collection.
type StateSummary struct {
	States     []dataset.State
	Extensions []string
}

// AllOK reports whether every leaf is in the ok state.
func (s StateSummary) AllOK() bool {
	return len(s.States) == 1 && s.States[0] == dataset.StateOK
}

// Homogeneous reports whether every leaf shares one extension.
func (s StateSummary) Homogeneous() bool {
	return len(s.Extensions) <= 1
}

// StatesAndExtensionsSummary computes the distinct leaf states and
// extensions without materializing the leaf list for callers.
func (t *Tree) StatesAndExtensionsSummary() StateSummary {
	states := map[dataset.State]struct{}{}
	exts := map[string]struct{}{}
	t.walk(nil, func(_ []string, n *Node) {
		if n.Leaf != nil {
			states[n.Leaf.DatasetState()] = struct{}{}
			exts[n.Leaf.Extension()] = struct{}{}
		}
	})

	summary := StateSummary{
		States:     make([]dataset.State, 0, len(states)),
		Extensions: make([]string, 0, len(exts)),
	}
	for s := range states {
		summary.States = append(summary.States, s)
	}
	for e := range exts {
		summary.Extensions = append(summary.Extensions, e)
	}
	sort.Slice(summary.States, func(i, j int) bool { return summary.States[i] < summary.States[j] })
	sort.Strings(summary.Extensions)
	return summary
}

// FindElement resolves a multi-level element path, one segment per
// nesting level. Each segment is matched against element identifiers
// first, then interpreted as a numeric index. This is the addressing
// mechanism behind extract-element collection operations.
func (t *Tree) FindElement(path ...string) (*Node, error) {
	if len(path) == 0 {
		return nil, &StructureError{Message: "element path must not be empty"}
	}

	node, err := t.findChild(path[0])
	if err != nil {
		return nil, err
	}
	if len(path) == 1 {
		return node, nil
	}
	if node.Child == nil {
		return nil, &StructureError{
			Message: fmt.Sprintf("element %q is not a collection; cannot descend into %q", path[0], path[1]),
		}
	}
	return node.Child.FindElement(path[1:]...)
}

func (t *Tree) findChild(segment string) (*Node, error) {
	for _, n := range t.Elements {
		if n.Element.Identifier() == segment {
			return n, nil
		}
	}
	if idx, err := strconv.Atoi(segment); err == nil {
		if idx >= 0 && idx < len(t.Elements) {
			return t.Elements[idx], nil
		}
	}
	return nil, &StructureError{Message: fmt.Sprintf("no element with identifier or index %q", segment)}
}

// AggregatePopulatedState recomputes the population state of this tree
// from the current states of its descendants, bottom-up. It never reads
// stored counters, so it is idempotent and safe to invoke redundantly
// from concurrent completion callbacks:
//
//   - FAILED if any descendant collection has failed
//   - NEW while any element is a placeholder or any leaf's dataset state
//     is not yet terminal (error is terminal-but-determinate and does
//     not prevent OK)
//   - OK otherwise
func (t *Tree) AggregatePopulatedState() PopulatedState {
	state := PopulatedStateOK
	for _, n := range t.Elements {
		switch {
		case n.Child != nil:
			switch n.Child.AggregatePopulatedState() {
			case PopulatedStateFailed:
				return PopulatedStateFailed
			case PopulatedStateNew:
				state = PopulatedStateNew
			}
		case n.Leaf != nil:
			if !n.Leaf.DatasetState().IsTerminal() {
				state = PopulatedStateNew
			}
		default:
			state = PopulatedStateNew
		}
	}
	if t.Collection.PopulatedState() == PopulatedStateFailed {
		return PopulatedStateFailed
	}
	return state
}

// LeafCount returns the number of leaves across the nested structure.
func (t *Tree) LeafCount() int {
	count := 0
	t.walk(nil, func(_ []string, n *Node) {
		if n.Leaf != nil {
			count++
		}
	})
	return count
}

// NewPairedTree builds a "paired" collection from forward and reverse
// instances, referencing them as HDAs. This backs the zip/pair
// collection operation.
func NewPairedTree(forward, reverse DatasetInstance) (*Tree, error) {
	if forward == nil || reverse == nil {
		return nil, &StructureError{Message: "paired collection requires forward and reverse instances"}
	}
	c, err := New(Type(tokenPaired))
	if err != nil {
		return nil, err
	}
	fwd, err := NewHDAElement(c.ID(), 0, IdentifierForward, forward.InstanceID())
	if err != nil {
		return nil, err
	}
	rev, err := NewHDAElement(c.ID(), 1, IdentifierReverse, reverse.InstanceID())
	if err != nil {
		return nil, err
	}
	return NewTree(c, []*Node{
		{Element: fwd, Leaf: forward},
		{Element: rev, Leaf: reverse},
	})
}
