package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/logger"
)

type libraryFixture struct {
	svc   *app.LibraryService
	libs  *fakeLibraryRepo
	store *stubStore
	roles *stubRoles
}

func newLibraryFixture() *libraryFixture {
	store := newStubStore()
	roles := &stubRoles{private: map[shared.ID]*role.Role{}}
	agent := security.NewAgent(store, roles, stubHierarchy{})

	m := metrics.New("test")
	log := logger.NewNop()
	resolver := app.NewRoleResolver(agent, nil, m, log)

	libs := newFakeLibraryRepo()
	perms := app.NewPermissionService(agent, resolver, libs, m, log)

	return &libraryFixture{
		svc:   app.NewLibraryService(libs, nil, agent, perms, log),
		libs:  libs,
		store: store,
		roles: roles,
	}
}

// addSlotWithVersion registers a slot whose current version carries the
// given metadata.
func (f *libraryFixture) addSlotWithVersion(t *testing.T, metadata map[string]any) (*library.LibraryDataset, *library.LibraryDatasetDatasetAssociation) {
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
		State:            dataset.StateOK,
	})
	require.NoError(t, err)
	ldda.SetMetadata(metadata)
	require.NoError(t, slot.SetCurrentVersion(ldda.ID()))

	f.libs.slots[slot.ID()] = slot
	f.libs.lddas[ldda.ID()] = ldda
	return slot, ldda
}

func TestLibraryService_UpdateMetadata(t *testing.T) {
	ctx := context.Background()
	u, err := user.New("dana@example.org", "dana", "x")
	require.NoError(t, err)

	t.Run("equal revision is a no-op", func(t *testing.T) {
		f := newLibraryFixture()
		slot, current := f.addSlotWithVersion(t, map[string]any{"organism": "human", "depth": 30})

		got, err := f.svc.UpdateMetadata(ctx, u, slot.ID(), map[string]any{"organism": "human", "depth": 30}, true)
		require.NoError(t, err)

		assert.True(t, got.ID().Equals(current.ID()))
		assert.Len(t, f.libs.lddas, 1)
	})

	t.Run("additive revision updates in place", func(t *testing.T) {
		f := newLibraryFixture()
		slot, current := f.addSlotWithVersion(t, map[string]any{"organism": "human"})

		got, err := f.svc.UpdateMetadata(ctx, u, slot.ID(), map[string]any{"organism": "human", "depth": 30}, true)
		require.NoError(t, err)

		assert.True(t, got.ID().Equals(current.ID()), "same version carries the richer revision")
		assert.Len(t, f.libs.lddas, 1)
		assert.Equal(t, 30, got.Metadata()["depth"])
	})

	t.Run("contradicting revision becomes a new version", func(t *testing.T) {
		f := newLibraryFixture()
		slot, current := f.addSlotWithVersion(t, map[string]any{"organism": "human", "depth": 30})

		got, err := f.svc.UpdateMetadata(ctx, u, slot.ID(), map[string]any{"organism": "mouse", "depth": 30}, true)
		require.NoError(t, err)

		assert.False(t, got.ID().Equals(current.ID()))
		require.NotNil(t, got.ParentID())
		assert.True(t, got.ParentID().Equals(current.ID()), "lineage points at the superseded version")
		assert.Equal(t, "mouse", got.Metadata()["organism"])
		assert.Equal(t, "human", current.Metadata()["organism"], "the old revision stays reachable")
		assert.True(t, slot.CurrentVersionID().Equals(got.ID()))
		assert.Len(t, f.libs.lddas, 2)
	})

	t.Run("new version inherits the slot's permission rows", func(t *testing.T) {
		f := newLibraryFixture()
		slot, _ := f.addSlotWithVersion(t, map[string]any{"organism": "human"})

		holder := shared.NewID()
		f.store.items[security.LibraryDatasetRef(slot.ID())] = security.Grants{
			security.LibraryModify: security.NewRoleSet(holder),
		}

		got, err := f.svc.UpdateMetadata(ctx, u, slot.ID(), map[string]any{"organism": "mouse"}, true)
		require.NoError(t, err)

		mirrored := f.store.items[security.LDDARef(got.ID())]
		require.NotNil(t, mirrored)
		assert.True(t, mirrored[security.LibraryModify].Contains(holder))
	})

	t.Run("requires modify rights", func(t *testing.T) {
		f := newLibraryFixture()
		slot, _ := f.addSlotWithVersion(t, map[string]any{"organism": "human"})

		_, err := f.svc.UpdateMetadata(ctx, u, slot.ID(), map[string]any{"organism": "mouse"}, false)
		assert.ErrorIs(t, err, shared.ErrForbidden)

		private, err := role.NewPrivate(u.Email())
		require.NoError(t, err)
		f.roles.private[u.ID()] = private
		f.store.items[security.LibraryDatasetRef(slot.ID())] = security.Grants{
			security.LibraryModify: security.NewRoleSet(private.ID()),
		}

		_, err = f.svc.UpdateMetadata(ctx, u, slot.ID(), map[string]any{"organism": "mouse"}, false)
		assert.NoError(t, err)
	})

	t.Run("slot without a current version rejected", func(t *testing.T) {
		f := newLibraryFixture()
		slot, _ := f.addSlotWithVersion(t, nil)
		slot.ClearCurrentVersion()

		_, err := f.svc.UpdateMetadata(ctx, u, slot.ID(), map[string]any{"organism": "human"}, true)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
