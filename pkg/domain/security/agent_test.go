package security_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
)

// =============================================================================
// In-memory fakes
// =============================================================================

type memStore struct {
	datasets        map[shared.ID]security.Grants
	items           map[security.ItemRef]security.Grants
	userDefaults    map[shared.ID]security.Grants
	historyDefaults map[shared.ID]security.Grants
	pairCalls       int
}

func newMemStore() *memStore {
	return &memStore{
		datasets:        make(map[shared.ID]security.Grants),
		items:           make(map[security.ItemRef]security.Grants),
		userDefaults:    make(map[shared.ID]security.Grants),
		historyDefaults: make(map[shared.ID]security.Grants),
	}
}

func cloneGrants(g security.Grants) security.Grants {
	if g == nil {
		return security.Grants{}
	}
	return g.Clone()
}

func (s *memStore) DatasetGrants(_ context.Context, id shared.ID) (security.Grants, error) {
	return cloneGrants(s.datasets[id]), nil
}

func (s *memStore) ReplaceDatasetGrants(_ context.Context, id shared.ID, grants security.Grants) error {
	existing := s.datasets[id]
	if existing == nil {
		existing = security.Grants{}
		s.datasets[id] = existing
	}
	for action, rs := range grants {
		if len(rs) == 0 {
			delete(existing, action)
			continue
		}
		existing[action] = rs.Clone()
	}
	return nil
}

func (s *memStore) LibraryItemGrants(_ context.Context, item security.ItemRef) (security.Grants, error) {
	return cloneGrants(s.items[item]), nil
}

func (s *memStore) ReplaceLibraryItemGrants(_ context.Context, item security.ItemRef, grants security.Grants) error {
	existing := s.items[item]
	if existing == nil {
		existing = security.Grants{}
		s.items[item] = existing
	}
	for action, rs := range grants {
		if len(rs) == 0 {
			delete(existing, action)
			continue
		}
		existing[action] = rs.Clone()
	}
	return nil
}

func (s *memStore) AddLibraryItemGrants(_ context.Context, item security.ItemRef, grants security.Grants) error {
	existing := s.items[item]
	if existing == nil {
		existing = security.Grants{}
		s.items[item] = existing
	}
	for action, rs := range grants {
		merged := existing[action]
		if merged == nil {
			merged = security.NewRoleSet()
			existing[action] = merged
		}
		for _, id := range rs.IDs() {
			merged.Add(id)
		}
	}
	return nil
}

func (s *memStore) ReplaceLibraryDatasetPairGrants(ctx context.Context, libraryDatasetID, lddaID shared.ID, grants security.Grants) error {
	s.pairCalls++
	if err := s.ReplaceLibraryItemGrants(ctx, security.LibraryDatasetRef(libraryDatasetID), grants); err != nil {
		return err
	}
	return s.ReplaceLibraryItemGrants(ctx, security.LDDARef(lddaID), grants)
}

func (s *memStore) UserDefaultGrants(_ context.Context, userID shared.ID) (security.Grants, error) {
	return cloneGrants(s.userDefaults[userID]), nil
}

func (s *memStore) ReplaceUserDefaultGrants(_ context.Context, userID shared.ID, grants security.Grants) error {
	s.userDefaults[userID] = grants.Clone()
	return nil
}

func (s *memStore) HistoryDefaultGrants(_ context.Context, historyID shared.ID) (security.Grants, error) {
	return cloneGrants(s.historyDefaults[historyID]), nil
}

func (s *memStore) ReplaceHistoryDefaultGrants(_ context.Context, historyID shared.ID, grants security.Grants) error {
	s.historyDefaults[historyID] = grants.Clone()
	return nil
}

type memRoles struct {
	all      []*role.Role
	direct   map[shared.ID][]*role.Role
	viaGroup map[shared.ID][]*role.Role
	private  map[shared.ID]*role.Role
}

func newMemRoles() *memRoles {
	return &memRoles{
		direct:   make(map[shared.ID][]*role.Role),
		viaGroup: make(map[shared.ID][]*role.Role),
		private:  make(map[shared.ID]*role.Role),
	}
}

func (m *memRoles) ListByUser(_ context.Context, userID shared.ID) ([]*role.Role, error) {
	return m.direct[userID], nil
}

func (m *memRoles) ListByUserGroups(_ context.Context, userID shared.ID) ([]*role.Role, error) {
	return m.viaGroup[userID], nil
}

func (m *memRoles) GetPrivateByUser(_ context.Context, userID shared.ID) (*role.Role, error) {
	r, ok := m.private[userID]
	if !ok {
		return nil, role.ErrPrivateRoleMissing
	}
	return r, nil
}

func (m *memRoles) CreatePrivate(_ context.Context, r *role.Role, userID shared.ID) error {
	m.private[userID] = r
	m.all = append(m.all, r)
	return nil
}

func (m *memRoles) List(_ context.Context, _ role.ListFilter) ([]*role.Role, error) {
	return m.all, nil
}

func (m *memRoles) ListByIDs(_ context.Context, ids []shared.ID) ([]*role.Role, error) {
	want := security.NewRoleSet(ids...)
	var out []*role.Role
	for _, r := range m.all {
		if want.Contains(r.ID()) {
			out = append(out, r)
		}
	}
	return out, nil
}

type memHierarchy struct {
	parents map[security.ItemRef]security.ItemRef
}

func (h *memHierarchy) Parent(_ context.Context, item security.ItemRef) (security.ItemRef, bool, error) {
	parent, ok := h.parents[item]
	return parent, ok, nil
}

// =============================================================================
// Fixture helpers
// =============================================================================

type fixture struct {
	store     *memStore
	roles     *memRoles
	hierarchy *memHierarchy
	agent     *security.Agent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	roles := newMemRoles()
	hierarchy := &memHierarchy{parents: make(map[security.ItemRef]security.ItemRef)}
	return &fixture{
		store:     store,
		roles:     roles,
		hierarchy: hierarchy,
		agent:     security.NewAgent(store, roles, hierarchy),
	}
}

func (f *fixture) addRole(t *testing.T, name string) *role.Role {
	t.Helper()
	r, err := role.New(name, "", role.TypeAdmin)
	require.NoError(t, err)
	f.roles.all = append(f.roles.all, r)
	return r
}

func newTestUser(t *testing.T, email string) *user.User {
	t.Helper()
	u, err := user.New(email, "tester", "x")
	require.NoError(t, err)
	return u
}

// =============================================================================
// Dataset checks
// =============================================================================

func TestAgent_CanAccessDataset(t *testing.T) {
	ctx := context.Background()

	t.Run("no rows means public", func(t *testing.T) {
		f := newFixture(t)
		ok, err := f.agent.CanAccessDataset(ctx, security.NewRoleSet(), shared.NewID())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("restricted dataset requires an intersecting role", func(t *testing.T) {
		f := newFixture(t)
		allowed := f.addRole(t, "lab-a")
		other := f.addRole(t, "lab-b")
		datasetID := shared.NewID()
		f.store.datasets[datasetID] = security.Grants{
			security.DatasetAccess: security.NewRoleSet(allowed.ID()),
		}

		ok, err := f.agent.CanAccessDataset(ctx, security.NewRoleSet(allowed.ID()), datasetID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.agent.CanAccessDataset(ctx, security.NewRoleSet(other.ID()), datasetID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAgent_CanManageDataset_DenyByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	manager := f.addRole(t, "manager")
	datasetID := shared.NewID()

	ok, err := f.agent.CanManageDataset(ctx, security.NewRoleSet(manager.ID()), datasetID)
	require.NoError(t, err)
	assert.False(t, ok, "dataset without manage rows has no managers")

	f.store.datasets[datasetID] = security.Grants{
		security.DatasetManagePermissions: security.NewRoleSet(manager.ID()),
	}
	ok, err = f.agent.CanManageDataset(ctx, security.NewRoleSet(manager.ID()), datasetID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAgent_MakeDatasetPublic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.addRole(t, "lab-a")
	datasetID := shared.NewID()
	f.store.datasets[datasetID] = security.Grants{
		security.DatasetAccess:            security.NewRoleSet(r.ID()),
		security.DatasetManagePermissions: security.NewRoleSet(r.ID()),
	}

	require.NoError(t, f.agent.MakeDatasetPublic(ctx, datasetID))

	public, err := f.agent.DatasetIsPublic(ctx, datasetID)
	require.NoError(t, err)
	assert.True(t, public)

	// Manage rows survive the access reset.
	ok, err := f.agent.CanManageDataset(ctx, security.NewRoleSet(r.ID()), datasetID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAgent_SetAllDatasetPermissions_RejectsLibraryActions(t *testing.T) {
	f := newFixture(t)
	r := f.addRole(t, "lab-a")

	err := f.agent.SetAllDatasetPermissions(context.Background(), shared.NewID(), security.Grants{
		security.LibraryModify: security.NewRoleSet(r.ID()),
	})
	var inconsistent *security.InconsistentRequestError
	require.ErrorAs(t, err, &inconsistent)
}

// =============================================================================
// Library inheritance
// =============================================================================

func TestAgent_LibraryItemInheritance(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, security.ItemRef, security.ItemRef, security.ItemRef) {
		f := newFixture(t)
		libRef := security.LibraryRef(shared.NewID())
		folderRef := security.FolderRef(shared.NewID())
		subRef := security.FolderRef(shared.NewID())
		f.hierarchy.parents[folderRef] = libRef
		f.hierarchy.parents[subRef] = folderRef
		return f, libRef, folderRef, subRef
	}

	t.Run("absent rows defer to the nearest ancestor", func(t *testing.T) {
		f, libRef, _, subRef := setup(t)
		adder := f.addRole(t, "adder")
		f.store.items[libRef] = security.Grants{
			security.LibraryAdd: security.NewRoleSet(adder.ID()),
		}

		ok, err := f.agent.CanAddLibraryItem(ctx, security.NewRoleSet(adder.ID()), subRef)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("explicit rows on a folder shadow the library", func(t *testing.T) {
		f, libRef, folderRef, _ := setup(t)
		libRole := f.addRole(t, "lib-modifier")
		folderRole := f.addRole(t, "folder-modifier")
		f.store.items[libRef] = security.Grants{
			security.LibraryModify: security.NewRoleSet(libRole.ID()),
		}
		f.store.items[folderRef] = security.Grants{
			security.LibraryModify: security.NewRoleSet(folderRole.ID()),
		}

		ok, err := f.agent.CanModifyLibraryItem(ctx, security.NewRoleSet(libRole.ID()), folderRef)
		require.NoError(t, err)
		assert.False(t, ok, "the folder's own rows decide, not the library's")

		ok, err = f.agent.CanModifyLibraryItem(ctx, security.NewRoleSet(folderRole.ID()), folderRef)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no rows anywhere denies", func(t *testing.T) {
		f, _, _, subRef := setup(t)
		r := f.addRole(t, "anyone")

		ok, err := f.agent.CanManageLibraryItem(ctx, security.NewRoleSet(r.ID()), subRef)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAgent_CanAccessLibrary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := f.addRole(t, "member")
	outsider := f.addRole(t, "outsider")
	libraryID := shared.NewID()

	ok, err := f.agent.CanAccessLibrary(ctx, security.NewRoleSet(outsider.ID()), libraryID)
	require.NoError(t, err)
	assert.True(t, ok, "unrestricted library is visible to everyone")

	f.store.items[security.LibraryRef(libraryID)] = security.Grants{
		security.LibraryAccess: security.NewRoleSet(member.ID()),
	}

	ok, err = f.agent.CanAccessLibrary(ctx, security.NewRoleSet(member.ID()), libraryID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.agent.CanAccessLibrary(ctx, security.NewRoleSet(outsider.ID()), libraryID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAgent_SetAllLibraryPermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("access action is dropped below the library level", func(t *testing.T) {
		f := newFixture(t)
		r := f.addRole(t, "lab-a")
		folderRef := security.FolderRef(shared.NewID())

		err := f.agent.SetAllLibraryPermissions(ctx, folderRef, security.Grants{
			security.LibraryAccess: security.NewRoleSet(r.ID()),
			security.LibraryModify: security.NewRoleSet(r.ID()),
		})
		require.NoError(t, err)

		grants, err := f.agent.GetLibraryItemPermissions(ctx, folderRef)
		require.NoError(t, err)
		assert.NotContains(t, grants, security.LibraryAccess)
		assert.Contains(t, grants, security.LibraryModify)
	})

	t.Run("dataset actions are rejected", func(t *testing.T) {
		f := newFixture(t)
		r := f.addRole(t, "lab-a")

		err := f.agent.SetAllLibraryPermissions(ctx, security.LibraryRef(shared.NewID()), security.Grants{
			security.DatasetAccess: security.NewRoleSet(r.ID()),
		})
		var inconsistent *security.InconsistentRequestError
		require.ErrorAs(t, err, &inconsistent)
	})
}

func TestAgent_SetLibraryItemPermissions_UpdatesPairTogether(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.addRole(t, "lab-a")
	slotID := shared.NewID()
	lddaID := shared.NewID()

	err := f.agent.SetLibraryItemPermissions(ctx, slotID, lddaID, security.Grants{
		security.LibraryModify: security.NewRoleSet(r.ID()),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.pairCalls)

	slotGrants, err := f.agent.GetLibraryItemPermissions(ctx, security.LibraryDatasetRef(slotID))
	require.NoError(t, err)
	lddaGrants, err := f.agent.GetLibraryItemPermissions(ctx, security.LDDARef(lddaID))
	require.NoError(t, err)
	assert.Equal(t, slotGrants, lddaGrants)
}

func TestAgent_CopyLibraryPermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.addRole(t, "lab-a")
	libraryID := shared.NewID()
	libRef := security.LibraryRef(libraryID)
	folderRef := security.FolderRef(shared.NewID())

	f.store.items[libRef] = security.Grants{
		security.LibraryAccess: security.NewRoleSet(r.ID()),
		security.LibraryAdd:    security.NewRoleSet(r.ID()),
	}

	require.NoError(t, f.agent.CopyLibraryPermissions(ctx, libRef, folderRef))
	// Copying twice must not change the outcome.
	require.NoError(t, f.agent.CopyLibraryPermissions(ctx, libRef, folderRef))

	grants, err := f.agent.GetLibraryItemPermissions(ctx, folderRef)
	require.NoError(t, err)
	assert.NotContains(t, grants, security.LibraryAccess, "library access never propagates downward")
	assert.Contains(t, grants, security.LibraryAdd)
	assert.Equal(t, 1, grants[security.LibraryAdd].Len())
}

// =============================================================================
// Roles
// =============================================================================

func TestAgent_EffectiveRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := newTestUser(t, "alice@example.org")

	direct := f.addRole(t, "direct")
	viaGroup := f.addRole(t, "via-group")
	deleted := f.addRole(t, "deleted")
	require.NoError(t, deleted.Delete())

	f.roles.direct[u.ID()] = []*role.Role{direct, deleted}
	f.roles.viaGroup[u.ID()] = []*role.Role{viaGroup}

	set, err := f.agent.EffectiveRoles(ctx, u)
	require.NoError(t, err)

	assert.True(t, set.Contains(direct.ID()))
	assert.True(t, set.Contains(viaGroup.ID()))
	assert.False(t, set.Contains(deleted.ID()))

	// The lazily-created private role is part of the set.
	private, err := f.agent.PrivateRole(ctx, u)
	require.NoError(t, err)
	assert.True(t, set.Contains(private.ID()))
	assert.Equal(t, role.TypePrivate, private.RoleType())
}

func TestAgent_PrivateRole_CreatedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := newTestUser(t, "bob@example.org")

	first, err := f.agent.PrivateRole(ctx, u)
	require.NoError(t, err)
	second, err := f.agent.PrivateRole(ctx, u)
	require.NoError(t, err)
	assert.True(t, first.ID().Equals(second.ID()))
}

func TestAgent_LegitimateRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := f.addRole(t, "member")
	f.addRole(t, "outsider")
	libraryID := shared.NewID()

	t.Run("unrestricted library offers every role", func(t *testing.T) {
		roles, err := f.agent.LegitimateRoles(ctx, libraryID, false)
		require.NoError(t, err)
		assert.Len(t, roles, 2)
	})

	f.store.items[security.LibraryRef(libraryID)] = security.Grants{
		security.LibraryAccess: security.NewRoleSet(member.ID()),
	}

	t.Run("restricted library offers only roles holding access", func(t *testing.T) {
		roles, err := f.agent.LegitimateRoles(ctx, libraryID, false)
		require.NoError(t, err)
		require.Len(t, roles, 1)
		assert.True(t, roles[0].ID().Equals(member.ID()))
	})

	t.Run("admins always see the full list", func(t *testing.T) {
		roles, err := f.agent.LegitimateRoles(ctx, libraryID, true)
		require.NoError(t, err)
		assert.Len(t, roles, 2)
	})
}

func TestAgent_DeriveRolesFromAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("selection outside the library's reach is inconsistent", func(t *testing.T) {
		f := newFixture(t)
		u := newTestUser(t, "carol@example.org")
		member := f.addRole(t, "member")
		outsider := f.addRole(t, "outsider")
		libraryID := shared.NewID()
		f.store.items[security.LibraryRef(libraryID)] = security.Grants{
			security.LibraryAccess: security.NewRoleSet(member.ID()),
		}

		_, _, err := f.agent.DeriveRolesFromAccess(ctx, u, libraryID, []shared.ID{outsider.ID()})
		var inconsistent *security.InconsistentRequestError
		require.ErrorAs(t, err, &inconsistent)
	})

	t.Run("valid selection yields access plus manage for the private role", func(t *testing.T) {
		f := newFixture(t)
		u := newTestUser(t, "dave@example.org")
		member := f.addRole(t, "member")
		libraryID := shared.NewID()

		grants, accessRoles, err := f.agent.DeriveRolesFromAccess(ctx, u, libraryID, []shared.ID{member.ID()})
		require.NoError(t, err)

		assert.True(t, accessRoles.Contains(member.ID()))
		assert.True(t, grants[security.DatasetAccess].Contains(member.ID()))

		private, err := f.agent.PrivateRole(ctx, u)
		require.NoError(t, err)
		assert.True(t, grants[security.DatasetManagePermissions].Contains(private.ID()))
	})

	t.Run("empty selection leaves the dataset public", func(t *testing.T) {
		f := newFixture(t)
		u := newTestUser(t, "erin@example.org")

		grants, accessRoles, err := f.agent.DeriveRolesFromAccess(ctx, u, shared.NewID(), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, accessRoles.Len())
		assert.NotContains(t, grants, security.DatasetAccess)
		assert.Contains(t, grants, security.DatasetManagePermissions)
	})
}

// =============================================================================
// Defaults
// =============================================================================

func TestAgent_ApplyHistoryDefaults(t *testing.T) {
	ctx := context.Background()

	t.Run("history defaults win", func(t *testing.T) {
		f := newFixture(t)
		r := f.addRole(t, "history-default")
		ownerID := shared.NewID()
		historyID := shared.NewID()
		datasetID := shared.NewID()
		f.store.historyDefaults[historyID] = security.Grants{
			security.DatasetAccess: security.NewRoleSet(r.ID()),
		}

		require.NoError(t, f.agent.ApplyHistoryDefaults(ctx, ownerID, historyID, datasetID))

		grants, err := f.agent.GetDatasetPermissions(ctx, datasetID)
		require.NoError(t, err)
		assert.True(t, grants[security.DatasetAccess].Contains(r.ID()))
	})

	t.Run("falls back to the owner's user defaults", func(t *testing.T) {
		f := newFixture(t)
		r := f.addRole(t, "user-default")
		ownerID := shared.NewID()
		datasetID := shared.NewID()
		f.store.userDefaults[ownerID] = security.Grants{
			security.DatasetManagePermissions: security.NewRoleSet(r.ID()),
		}

		require.NoError(t, f.agent.ApplyHistoryDefaults(ctx, ownerID, shared.NewID(), datasetID))

		grants, err := f.agent.GetDatasetPermissions(ctx, datasetID)
		require.NoError(t, err)
		assert.True(t, grants[security.DatasetManagePermissions].Contains(r.ID()))
	})

	t.Run("no defaults leaves the dataset untouched", func(t *testing.T) {
		f := newFixture(t)
		datasetID := shared.NewID()

		require.NoError(t, f.agent.ApplyHistoryDefaults(ctx, shared.NewID(), shared.NewID(), datasetID))

		grants, err := f.agent.GetDatasetPermissions(ctx, datasetID)
		require.NoError(t, err)
		assert.Empty(t, grants)
	})
}

func TestAgent_SeedUserDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := newTestUser(t, "frank@example.org")

	require.NoError(t, f.agent.SeedUserDefaults(ctx, u))

	private, err := f.agent.PrivateRole(ctx, u)
	require.NoError(t, err)

	defaults, err := f.store.UserDefaultGrants(ctx, u.ID())
	require.NoError(t, err)
	assert.True(t, defaults[security.DatasetManagePermissions].Contains(private.ID()))
}
