package collection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/api/pkg/domain/collection"
	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/shared"
)

// fakeInstance is a minimal leaf for tree assembly tests.
type fakeInstance struct {
	id        shared.ID
	state     dataset.State
	extension string
}

func (f fakeInstance) InstanceID() shared.ID       { return f.id }
func (f fakeInstance) DatasetState() dataset.State { return f.state }
func (f fakeInstance) Extension() string           { return f.extension }

func okInstance(ext string) fakeInstance {
	return fakeInstance{id: shared.NewID(), state: dataset.StateOK, extension: ext}
}

func newCollection(t *testing.T, ct string) *collection.DatasetCollection {
	t.Helper()
	parsed, err := collection.ParseType(ct)
	require.NoError(t, err)
	c, err := collection.New(parsed)
	require.NoError(t, err)
	return c
}

func leafNode(t *testing.T, c *collection.DatasetCollection, index int, identifier string, inst fakeInstance) *collection.Node {
	t.Helper()
	el, err := collection.NewHDAElement(c.ID(), index, identifier, inst.InstanceID())
	require.NoError(t, err)
	return &collection.Node{Element: el, Leaf: inst}
}

func childNode(t *testing.T, c *collection.DatasetCollection, index int, identifier string, child *collection.Tree) *collection.Node {
	t.Helper()
	el, err := collection.NewChildElement(c.ID(), index, identifier, child.Collection.ID())
	require.NoError(t, err)
	return &collection.Node{Element: el, Child: child}
}

// listTree builds a flat "list" with the given leaves.
func listTree(t *testing.T, leaves ...fakeInstance) *collection.Tree {
	t.Helper()
	c := newCollection(t, "list")
	nodes := make([]*collection.Node, len(leaves))
	for i, inst := range leaves {
		nodes[i] = leafNode(t, c, i, identifierFor(i), inst)
	}
	tree, err := collection.NewTree(c, nodes)
	require.NoError(t, err)
	return tree
}

func identifierFor(i int) string {
	return "sample-" + string(rune('a'+i))
}

// =============================================================================
// Type descriptors
// =============================================================================

func TestParseType(t *testing.T) {
	t.Run("valid descriptors", func(t *testing.T) {
		for _, s := range []string{"list", "paired", "list:paired", "list:list:paired", "list:list"} {
			_, err := collection.ParseType(s)
			assert.NoError(t, err, s)
		}
	})

	t.Run("invalid descriptors", func(t *testing.T) {
		for _, s := range []string{"", "bag", "list:", "list:tuple", ":paired"} {
			_, err := collection.ParseType(s)
			var structural *collection.StructureError
			assert.ErrorAs(t, err, &structural, s)
		}
	})
}

func TestType_Shape(t *testing.T) {
	ct, err := collection.ParseType("list:list:paired")
	require.NoError(t, err)

	assert.Equal(t, 3, ct.Rank())
	assert.Equal(t, "list", ct.Outer())
	assert.False(t, ct.IsLeafLevel())
	assert.False(t, ct.IsPaired())

	child, ok := ct.Child()
	require.True(t, ok)
	assert.Equal(t, "list:paired", child.String())

	grandchild, ok := child.Child()
	require.True(t, ok)
	assert.Equal(t, "paired", grandchild.String())
	assert.True(t, grandchild.IsPaired())
	assert.True(t, grandchild.IsLeafLevel())

	_, ok = grandchild.Child()
	assert.False(t, ok)
}

// =============================================================================
// Tree assembly
// =============================================================================

func TestNewTree_Validation(t *testing.T) {
	t.Run("indices must be contiguous from zero", func(t *testing.T) {
		c := newCollection(t, "list")
		nodes := []*collection.Node{
			leafNode(t, c, 0, "first", okInstance("fastq")),
			leafNode(t, c, 2, "third", okInstance("fastq")),
		}
		_, err := collection.NewTree(c, nodes)
		var structural *collection.StructureError
		require.ErrorAs(t, err, &structural)
		assert.Contains(t, structural.Message, "contiguous")
	})

	t.Run("identifiers must be unique", func(t *testing.T) {
		c := newCollection(t, "list")
		nodes := []*collection.Node{
			leafNode(t, c, 0, "sample", okInstance("fastq")),
			leafNode(t, c, 1, "sample", okInstance("fastq")),
		}
		_, err := collection.NewTree(c, nodes)
		var structural *collection.StructureError
		require.ErrorAs(t, err, &structural)
		assert.Contains(t, structural.Message, "duplicate")
	})

	t.Run("nodes arrive unsorted and come out ordered", func(t *testing.T) {
		c := newCollection(t, "list")
		nodes := []*collection.Node{
			leafNode(t, c, 1, "second", okInstance("fastq")),
			leafNode(t, c, 0, "first", okInstance("fastq")),
		}
		tree, err := collection.NewTree(c, nodes)
		require.NoError(t, err)
		assert.Equal(t, "first", tree.Elements[0].Element.Identifier())
		assert.Equal(t, "second", tree.Elements[1].Element.Identifier())
	})

	t.Run("nested collection requires matching child type", func(t *testing.T) {
		inner := listTree(t, okInstance("bam"))
		c := newCollection(t, "list:paired")
		_, err := collection.NewTree(c, []*collection.Node{childNode(t, c, 0, "run-1", inner)})
		var structural *collection.StructureError
		require.ErrorAs(t, err, &structural)
		assert.Contains(t, structural.Message, `want "paired"`)
	})

	t.Run("leaf-level collection rejects child elements", func(t *testing.T) {
		inner := listTree(t, okInstance("bam"))
		c := newCollection(t, "list")
		_, err := collection.NewTree(c, []*collection.Node{childNode(t, c, 0, "run-1", inner)})
		var structural *collection.StructureError
		require.ErrorAs(t, err, &structural)
	})

	t.Run("placeholders allowed only while unpopulated", func(t *testing.T) {
		c := newCollection(t, "list")
		el, err := collection.NewHDAElement(c.ID(), 0, "pending", shared.NewID())
		require.NoError(t, err)

		_, err = collection.NewTree(c, []*collection.Node{{Element: el}})
		assert.NoError(t, err)

		require.NoError(t, c.MarkPopulated(1))
		_, err = collection.NewTree(c, []*collection.Node{{Element: el}})
		var structural *collection.StructureError
		require.ErrorAs(t, err, &structural)
		assert.Contains(t, structural.Message, "unmaterialized")
	})
}

func TestNewTree_PairedRules(t *testing.T) {
	t.Run("exactly forward then reverse", func(t *testing.T) {
		c := newCollection(t, "paired")
		nodes := []*collection.Node{
			leafNode(t, c, 0, collection.IdentifierForward, okInstance("fastq")),
			leafNode(t, c, 1, collection.IdentifierReverse, okInstance("fastq")),
		}
		_, err := collection.NewTree(c, nodes)
		assert.NoError(t, err)
	})

	t.Run("wrong identifiers rejected", func(t *testing.T) {
		c := newCollection(t, "paired")
		nodes := []*collection.Node{
			leafNode(t, c, 0, "left", okInstance("fastq")),
			leafNode(t, c, 1, "right", okInstance("fastq")),
		}
		_, err := collection.NewTree(c, nodes)
		var structural *collection.StructureError
		require.ErrorAs(t, err, &structural)
	})

	t.Run("wrong cardinality rejected", func(t *testing.T) {
		c := newCollection(t, "paired")
		nodes := []*collection.Node{
			leafNode(t, c, 0, collection.IdentifierForward, okInstance("fastq")),
		}
		_, err := collection.NewTree(c, nodes)
		var structural *collection.StructureError
		require.ErrorAs(t, err, &structural)
		assert.Contains(t, structural.Message, "exactly 2")
	})
}

func TestNewPairedTree(t *testing.T) {
	fwd := okInstance("fastq")
	rev := okInstance("fastq")

	tree, err := collection.NewPairedTree(fwd, rev)
	require.NoError(t, err)

	assert.True(t, tree.Collection.CollectionType().IsPaired())
	require.Len(t, tree.Elements, 2)
	assert.Equal(t, collection.IdentifierForward, tree.Elements[0].Element.Identifier())
	assert.Equal(t, collection.IdentifierReverse, tree.Elements[1].Element.Identifier())
	assert.Equal(t, 2, tree.LeafCount())

	_, err = collection.NewPairedTree(fwd, nil)
	assert.Error(t, err)
}

// =============================================================================
// Traversal
// =============================================================================

// nestedTree builds list:paired with two runs of two reads each.
func nestedTree(t *testing.T, states ...dataset.State) *collection.Tree {
	t.Helper()
	require.Len(t, states, 4)

	outer := newCollection(t, "list:paired")
	var nodes []*collection.Node
	for i, run := range []string{"run-1", "run-2"} {
		pair := newCollection(t, "paired")
		fwd := fakeInstance{id: shared.NewID(), state: states[i*2], extension: "fastq"}
		rev := fakeInstance{id: shared.NewID(), state: states[i*2+1], extension: "fastq"}
		pairTree, err := collection.NewTree(pair, []*collection.Node{
			leafNode(t, pair, 0, collection.IdentifierForward, fwd),
			leafNode(t, pair, 1, collection.IdentifierReverse, rev),
		})
		require.NoError(t, err)
		nodes = append(nodes, childNode(t, outer, i, run, pairTree))
	}

	tree, err := collection.NewTree(outer, nodes)
	require.NoError(t, err)
	return tree
}

func TestTree_FindElement(t *testing.T) {
	tree := nestedTree(t, dataset.StateOK, dataset.StateOK, dataset.StateOK, dataset.StateOK)

	t.Run("by identifier path", func(t *testing.T) {
		n, err := tree.FindElement("run-2", "reverse")
		require.NoError(t, err)
		assert.Equal(t, collection.IdentifierReverse, n.Element.Identifier())
	})

	t.Run("by numeric index", func(t *testing.T) {
		n, err := tree.FindElement("0", "1")
		require.NoError(t, err)
		assert.Equal(t, collection.IdentifierReverse, n.Element.Identifier())
	})

	t.Run("identifier wins over index", func(t *testing.T) {
		n, err := tree.FindElement("run-1")
		require.NoError(t, err)
		assert.Equal(t, "run-1", n.Element.Identifier())
		assert.NotNil(t, n.Child)
	})

	t.Run("missing element", func(t *testing.T) {
		_, err := tree.FindElement("run-9")
		var structural *collection.StructureError
		require.ErrorAs(t, err, &structural)
	})

	t.Run("cannot descend into a leaf", func(t *testing.T) {
		_, err := tree.FindElement("run-1", "forward", "deeper")
		var structural *collection.StructureError
		require.ErrorAs(t, err, &structural)
		assert.Contains(t, structural.Message, "cannot descend")
	})
}

func TestTree_DatasetInstancesOrdering(t *testing.T) {
	outer := newCollection(t, "list:paired")
	var nodes []*collection.Node
	var want []shared.ID
	for i := 0; i < 3; i++ {
		pair := newCollection(t, "paired")
		fwd := okInstance("fastq")
		rev := okInstance("fastq")
		want = append(want, fwd.InstanceID(), rev.InstanceID())
		pairTree, err := collection.NewTree(pair, []*collection.Node{
			leafNode(t, pair, 0, collection.IdentifierForward, fwd),
			leafNode(t, pair, 1, collection.IdentifierReverse, rev),
		})
		require.NoError(t, err)
		nodes = append(nodes, childNode(t, outer, i, identifierFor(i), pairTree))
	}
	tree, err := collection.NewTree(outer, nodes)
	require.NoError(t, err)

	// The flattened sequence runs outer index first, then inner index.
	instances := tree.DatasetInstances()
	require.Len(t, instances, 6)
	for i, inst := range instances {
		assert.True(t, inst.InstanceID().Equals(want[i]), "position %d", i)
	}

	elements := tree.DatasetElements()
	require.Len(t, elements, 6)
	wantPaths := []string{
		"sample-a/forward", "sample-a/reverse",
		"sample-b/forward", "sample-b/reverse",
		"sample-c/forward", "sample-c/reverse",
	}
	for i, el := range elements {
		assert.Equal(t, wantPaths[i], el.IdentifierPath())
		require.NotNil(t, el.Node.Leaf)
		assert.True(t, el.Node.Leaf.InstanceID().Equals(want[i]))
	}
}

// rebuildTree reconstructs a tree from nothing but each element's
// (index, identifier, leaf or child) representation.
func rebuildTree(t *testing.T, src *collection.Tree) *collection.Tree {
	t.Helper()
	c, err := collection.New(src.Collection.CollectionType())
	require.NoError(t, err)

	nodes := make([]*collection.Node, len(src.Elements))
	for i, n := range src.Elements {
		if n.Child != nil {
			child := rebuildTree(t, n.Child)
			el, err := collection.NewChildElement(c.ID(), n.Element.Index(), n.Element.Identifier(), child.Collection.ID())
			require.NoError(t, err)
			nodes[i] = &collection.Node{Element: el, Child: child}
			continue
		}
		el, err := collection.NewHDAElement(c.ID(), n.Element.Index(), n.Element.Identifier(), n.Leaf.InstanceID())
		require.NoError(t, err)
		nodes[i] = &collection.Node{Element: el, Leaf: n.Leaf}
	}

	tree, err := collection.NewTree(c, nodes)
	require.NoError(t, err)
	return tree
}

func assertSameShape(t *testing.T, want, got *collection.Tree) {
	t.Helper()
	assert.Equal(t, want.Collection.CollectionType().String(), got.Collection.CollectionType().String())
	require.Len(t, got.Elements, len(want.Elements))
	for i := range want.Elements {
		w, g := want.Elements[i], got.Elements[i]
		assert.Equal(t, w.Element.Index(), g.Element.Index())
		assert.Equal(t, w.Element.Identifier(), g.Element.Identifier())
		assert.Equal(t, w.Element.IsChild(), g.Element.IsChild())
		if w.Child != nil {
			require.NotNil(t, g.Child)
			assertSameShape(t, w.Child, g.Child)
			continue
		}
		require.NotNil(t, g.Leaf)
		assert.True(t, g.Leaf.InstanceID().Equals(w.Leaf.InstanceID()))
	}
}

func TestTree_RebuildFromElements(t *testing.T) {
	original := nestedTree(t, dataset.StateOK, dataset.StateOK, dataset.StateOK, dataset.StateOK)

	rebuilt := rebuildTree(t, original)

	assertSameShape(t, original, rebuilt)
	assert.Equal(t, original.LeafCount(), rebuilt.LeafCount())
	assert.Equal(t, original.AggregatePopulatedState(), rebuilt.AggregatePopulatedState())
}

func TestTree_FailedElements(t *testing.T) {
	tree := nestedTree(t, dataset.StateOK, dataset.StateError, dataset.StateError, dataset.StateOK)

	failed := tree.FailedElements()
	require.Len(t, failed, 2)
	assert.Equal(t, "run-1/reverse", failed[0].IdentifierPath())
	assert.Equal(t, "run-2/forward", failed[1].IdentifierPath())
}

func TestTree_StatesAndExtensionsSummary(t *testing.T) {
	t.Run("homogeneous and all ok", func(t *testing.T) {
		tree := listTree(t, okInstance("fastq"), okInstance("fastq"))
		s := tree.StatesAndExtensionsSummary()
		assert.True(t, s.AllOK())
		assert.True(t, s.Homogeneous())
	})

	t.Run("mixed extensions and states", func(t *testing.T) {
		tree := listTree(t,
			okInstance("fastq"),
			fakeInstance{id: shared.NewID(), state: dataset.StateError, extension: "bam"},
		)
		s := tree.StatesAndExtensionsSummary()
		assert.False(t, s.AllOK())
		assert.False(t, s.Homogeneous())
		assert.Equal(t, []string{"bam", "fastq"}, s.Extensions)
	})
}

// =============================================================================
// Population state
// =============================================================================

func TestTree_AggregatePopulatedState(t *testing.T) {
	t.Run("all leaves terminal aggregates to ok", func(t *testing.T) {
		tree := nestedTree(t, dataset.StateOK, dataset.StateOK, dataset.StateOK, dataset.StateOK)
		assert.Equal(t, collection.PopulatedStateOK, tree.AggregatePopulatedState())
	})

	t.Run("error leaves are determinate, still ok", func(t *testing.T) {
		tree := nestedTree(t, dataset.StateOK, dataset.StateError, dataset.StateOK, dataset.StateOK)
		assert.Equal(t, collection.PopulatedStateOK, tree.AggregatePopulatedState())
	})

	t.Run("running leaf keeps the tree new", func(t *testing.T) {
		tree := nestedTree(t, dataset.StateOK, dataset.StateRunning, dataset.StateOK, dataset.StateOK)
		assert.Equal(t, collection.PopulatedStateNew, tree.AggregatePopulatedState())
	})

	t.Run("placeholder keeps the tree new", func(t *testing.T) {
		c := newCollection(t, "list")
		el, err := collection.NewHDAElement(c.ID(), 0, "pending", shared.NewID())
		require.NoError(t, err)
		tree, err := collection.NewTree(c, []*collection.Node{{Element: el}})
		require.NoError(t, err)
		assert.Equal(t, collection.PopulatedStateNew, tree.AggregatePopulatedState())
	})

	t.Run("failed child collection dominates", func(t *testing.T) {
		inner := listTree(t, okInstance("fastq"))
		require.NoError(t, inner.Collection.MarkFailed("upstream job crashed"))

		outer := newCollection(t, "list:list")
		tree, err := collection.NewTree(outer, []*collection.Node{childNode(t, outer, 0, "batch-1", inner)})
		require.NoError(t, err)
		assert.Equal(t, collection.PopulatedStateFailed, tree.AggregatePopulatedState())
	})

	t.Run("idempotent across repeated aggregation", func(t *testing.T) {
		tree := nestedTree(t, dataset.StateOK, dataset.StateOK, dataset.StateOK, dataset.StateOK)
		first := tree.AggregatePopulatedState()
		second := tree.AggregatePopulatedState()
		assert.Equal(t, first, second)
	})
}

func TestDatasetCollection_StateTransitions(t *testing.T) {
	t.Run("mark populated is idempotent", func(t *testing.T) {
		c := newCollection(t, "list")
		require.NoError(t, c.MarkPopulated(3))
		require.NoError(t, c.MarkPopulated(3))
		assert.True(t, c.Populated())
		require.NotNil(t, c.ElementCount())
		assert.Equal(t, 3, *c.ElementCount())
	})

	t.Run("terminal states are mutually exclusive", func(t *testing.T) {
		c := newCollection(t, "list")
		require.NoError(t, c.MarkPopulated(1))
		assert.ErrorIs(t, c.MarkFailed("too late"), shared.ErrConflict)

		c2 := newCollection(t, "list")
		require.NoError(t, c2.MarkFailed("no elements produced"))
		assert.ErrorIs(t, c2.MarkPopulated(1), shared.ErrConflict)
		assert.Equal(t, "no elements produced", c2.PopulatedMessage())
	})
}

// =============================================================================
// Metadata comparison
// =============================================================================

func TestCompareMetadata(t *testing.T) {
	base := map[string]any{
		"sequences": 1200,
		"quality":   map[string]any{"mean": 33.5},
	}

	t.Run("equal", func(t *testing.T) {
		other := map[string]any{
			"sequences": 1200,
			"quality":   map[string]any{"mean": 33.5},
		}
		assert.Equal(t, collection.Equal, collection.CompareMetadata(base, other))
	})

	t.Run("subset", func(t *testing.T) {
		newer := map[string]any{
			"sequences": 1200,
			"quality":   map[string]any{"mean": 33.5},
			"gc":        0.42,
		}
		assert.Equal(t, collection.Subset, collection.CompareMetadata(base, newer))
	})

	t.Run("incomparable on contradiction", func(t *testing.T) {
		newer := map[string]any{
			"sequences": 900,
			"quality":   map[string]any{"mean": 33.5},
		}
		assert.Equal(t, collection.Incomparable, collection.CompareMetadata(base, newer))
	})

	t.Run("incomparable on missing key", func(t *testing.T) {
		newer := map[string]any{"sequences": 1200}
		assert.Equal(t, collection.Incomparable, collection.CompareMetadata(base, newer))
	})
}
