package library_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/shared"
)

func TestNewLibrary(t *testing.T) {
	lib, root, err := library.NewLibrary("RNA-seq 2026", "sequencing runs", "Q1 batch")
	require.NoError(t, err)

	assert.True(t, lib.RootFolderID().Equals(root.ID()))
	assert.True(t, root.LibraryID().Equals(lib.ID()))
	assert.True(t, root.IsRoot())
	assert.Equal(t, "RNA-seq 2026", root.Name())

	_, _, err = library.NewLibrary("", "", "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestLibrary_DeleteLifecycle(t *testing.T) {
	lib, _, err := library.NewLibrary("archive", "", "")
	require.NoError(t, err)

	assert.ErrorIs(t, lib.Purge(), shared.ErrValidation)

	lib.Delete()
	assert.True(t, lib.IsDeleted())
	require.NoError(t, lib.Purge())
	assert.True(t, lib.IsPurged())

	assert.ErrorIs(t, lib.Undelete(), shared.ErrValidation)
}

func TestNewFolder(t *testing.T) {
	_, root, err := library.NewLibrary("lib", "", "")
	require.NoError(t, err)
	root.SetGenomeBuild("hg38")

	child, err := library.NewFolder(root, "reads", "raw reads")
	require.NoError(t, err)

	assert.False(t, child.IsRoot())
	require.NotNil(t, child.ParentID())
	assert.True(t, child.ParentID().Equals(root.ID()))
	assert.True(t, child.LibraryID().Equals(root.LibraryID()))
	assert.Equal(t, "hg38", child.GenomeBuild(), "genome build is copied from the parent at creation")

	// A later change on the parent does not flow to existing children.
	root.SetGenomeBuild("mm39")
	assert.Equal(t, "hg38", child.GenomeBuild())

	_, err = library.NewFolder(nil, "orphan", "")
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = library.NewFolder(root, "", "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestBranchDeleted(t *testing.T) {
	_, root, err := library.NewLibrary("lib", "", "")
	require.NoError(t, err)
	mid, err := library.NewFolder(root, "mid", "")
	require.NoError(t, err)
	leaf, err := library.NewFolder(mid, "leaf", "")
	require.NoError(t, err)

	chain := []*library.Folder{leaf, mid, root}
	assert.False(t, library.BranchDeleted(chain))

	mid.Delete()
	assert.True(t, library.BranchDeleted(chain), "a deleted ancestor hides the whole branch")
	assert.False(t, leaf.IsDeleted(), "the leaf's own flag stays untouched")

	mid.Undelete()
	assert.False(t, library.BranchDeleted(chain))
}

func newSlotWithVersion(t *testing.T) (*library.LibraryDataset, *library.LibraryDatasetDatasetAssociation) {
	t.Helper()
	_, root, err := library.NewLibrary("lib", "", "")
	require.NoError(t, err)
	slot, err := library.NewLibraryDataset(root)
	require.NoError(t, err)
	ldda, err := library.NewLDDA(library.NewLDDAParams{
		LibraryDatasetID: slot.ID(),
		DatasetID:        shared.NewID(),
		UserID:           shared.NewID(),
		Name:             "reads.fastq",
		Info:             "uploaded reads",
		Extension:        "fastq",
	})
	require.NoError(t, err)
	require.NoError(t, slot.SetCurrentVersion(ldda.ID()))
	return slot, ldda
}

func TestLibraryDataset_CurrentVersion(t *testing.T) {
	slot, ldda := newSlotWithVersion(t)

	assert.True(t, slot.HasCurrentVersion())
	assert.True(t, slot.CurrentVersionID().Equals(ldda.ID()))

	slot.ClearCurrentVersion()
	assert.False(t, slot.HasCurrentVersion())

	assert.ErrorIs(t, slot.SetCurrentVersion(shared.ID{}), shared.ErrValidation)
}

func TestLibraryDataset_DisplayOverrides(t *testing.T) {
	slot, ldda := newSlotWithVersion(t)

	assert.Equal(t, "reads.fastq", slot.DisplayName(ldda))
	assert.Equal(t, "uploaded reads", slot.DisplayInfo(ldda))

	slot.SetOverrides("sample A reads", "trimmed")
	assert.Equal(t, "sample A reads", slot.DisplayName(ldda))
	assert.Equal(t, "trimmed", slot.DisplayInfo(ldda))

	slot.SetOverrides("", "")
	assert.Equal(t, "reads.fastq", slot.DisplayName(ldda))
	assert.Equal(t, "", slot.DisplayName(nil), "no version and no override renders empty")
}

func TestNewLDDA(t *testing.T) {
	t.Run("state defaults to new", func(t *testing.T) {
		ldda, err := library.NewLDDA(library.NewLDDAParams{
			LibraryDatasetID: shared.NewID(),
			DatasetID:        shared.NewID(),
			UserID:           shared.NewID(),
			Name:             "x",
		})
		require.NoError(t, err)
		assert.Equal(t, dataset.StateNew, ldda.State())
		assert.Nil(t, ldda.ParentID())
	})

	t.Run("required fields", func(t *testing.T) {
		base := library.NewLDDAParams{
			LibraryDatasetID: shared.NewID(),
			DatasetID:        shared.NewID(),
			UserID:           shared.NewID(),
			Name:             "x",
		}

		p := base
		p.LibraryDatasetID = shared.ID{}
		_, err := library.NewLDDA(p)
		assert.ErrorIs(t, err, shared.ErrValidation)

		p = base
		p.Name = ""
		_, err = library.NewLDDA(p)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("lineage links", func(t *testing.T) {
		parentID := shared.NewID()
		ldda, err := library.NewLDDA(library.NewLDDAParams{
			LibraryDatasetID: shared.NewID(),
			DatasetID:        shared.NewID(),
			UserID:           shared.NewID(),
			ParentID:         &parentID,
			Name:             "v2",
			State:            dataset.StateUpload,
		})
		require.NoError(t, err)
		require.NotNil(t, ldda.ParentID())
		assert.True(t, ldda.ParentID().Equals(parentID))
		assert.Equal(t, dataset.StateUpload, ldda.State())
	})
}

func TestResolveInfoAssociation(t *testing.T) {
	template, err := library.NewTemplate("sample sheet", "", []library.TemplateField{
		{Name: "organism", Label: "Organism", Type: "text"},
	})
	require.NoError(t, err)

	own, err := library.NewInfoAssociation(library.ItemKindFolder, shared.NewID(), template.ID(), false)
	require.NoError(t, err)
	inheritable, err := library.NewInfoAssociation(library.ItemKindLibrary, shared.NewID(), template.ID(), true)
	require.NoError(t, err)
	private, err := library.NewInfoAssociation(library.ItemKindLibrary, shared.NewID(), template.ID(), false)
	require.NoError(t, err)

	t.Run("own association wins", func(t *testing.T) {
		got, inherited := library.ResolveInfoAssociation([]*library.InfoAssociation{own, inheritable}, false)
		require.NotNil(t, got)
		assert.False(t, inherited)
		assert.True(t, got.ID().Equals(own.ID()))
	})

	t.Run("inheritable ancestor fills the gap", func(t *testing.T) {
		got, inherited := library.ResolveInfoAssociation([]*library.InfoAssociation{nil, inheritable}, false)
		require.NotNil(t, got)
		assert.True(t, inherited)
	})

	t.Run("non-inheritable ancestor is skipped", func(t *testing.T) {
		got, inherited := library.ResolveInfoAssociation([]*library.InfoAssociation{nil, private, inheritable}, false)
		require.NotNil(t, got)
		assert.True(t, inherited)
		assert.True(t, got.ID().Equals(inheritable.ID()))
	})

	t.Run("restrict considers only the item itself", func(t *testing.T) {
		got, _ := library.ResolveInfoAssociation([]*library.InfoAssociation{nil, inheritable}, true)
		assert.Nil(t, got)

		got, inherited := library.ResolveInfoAssociation([]*library.InfoAssociation{own, inheritable}, true)
		require.NotNil(t, got)
		assert.False(t, inherited)
	})

	t.Run("deleted associations are invisible", func(t *testing.T) {
		ghost, err := library.NewInfoAssociation(library.ItemKindFolder, shared.NewID(), template.ID(), true)
		require.NoError(t, err)
		ghost.Delete()

		got, _ := library.ResolveInfoAssociation([]*library.InfoAssociation{ghost, inheritable}, false)
		require.NotNil(t, got)
		assert.True(t, got.ID().Equals(inheritable.ID()))
	})

	t.Run("empty chain resolves to nothing", func(t *testing.T) {
		got, inherited := library.ResolveInfoAssociation(nil, false)
		assert.Nil(t, got)
		assert.False(t, inherited)
	})
}
