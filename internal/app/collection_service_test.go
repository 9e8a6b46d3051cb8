package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/domain/collection"
	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/logger"
)

// =============================================================================
// In-memory fakes
// =============================================================================

type stubStore struct {
	datasets map[shared.ID]security.Grants
	items    map[security.ItemRef]security.Grants
}

func newStubStore() *stubStore {
	return &stubStore{
		datasets: map[shared.ID]security.Grants{},
		items:    map[security.ItemRef]security.Grants{},
	}
}

func (s *stubStore) DatasetGrants(_ context.Context, datasetID shared.ID) (security.Grants, error) {
	return s.datasets[datasetID], nil
}

func (s *stubStore) ReplaceDatasetGrants(_ context.Context, datasetID shared.ID, grants security.Grants) error {
	s.datasets[datasetID] = grants
	return nil
}

func (s *stubStore) LibraryItemGrants(_ context.Context, item security.ItemRef) (security.Grants, error) {
	return s.items[item], nil
}

func (s *stubStore) ReplaceLibraryItemGrants(_ context.Context, item security.ItemRef, grants security.Grants) error {
	s.items[item] = grants
	return nil
}

func (s *stubStore) AddLibraryItemGrants(_ context.Context, item security.ItemRef, grants security.Grants) error {
	merged := security.Grants{}
	for action, set := range s.items[item] {
		merged[action] = set
	}
	for action, set := range grants {
		merged[action] = set
	}
	s.items[item] = merged
	return nil
}

func (s *stubStore) ReplaceLibraryDatasetPairGrants(_ context.Context, libraryDatasetID, lddaID shared.ID, grants security.Grants) error {
	s.items[security.LibraryDatasetRef(libraryDatasetID)] = grants
	s.items[security.LDDARef(lddaID)] = grants
	return nil
}

func (s *stubStore) UserDefaultGrants(context.Context, shared.ID) (security.Grants, error) {
	return nil, nil
}

func (s *stubStore) ReplaceUserDefaultGrants(context.Context, shared.ID, security.Grants) error {
	return nil
}

func (s *stubStore) HistoryDefaultGrants(context.Context, shared.ID) (security.Grants, error) {
	return nil, nil
}

func (s *stubStore) ReplaceHistoryDefaultGrants(context.Context, shared.ID, security.Grants) error {
	return nil
}

type stubRoles struct {
	private map[shared.ID]*role.Role
}

func (s *stubRoles) ListByUser(context.Context, shared.ID) ([]*role.Role, error)       { return nil, nil }
func (s *stubRoles) ListByUserGroups(context.Context, shared.ID) ([]*role.Role, error) { return nil, nil }

func (s *stubRoles) GetPrivateByUser(_ context.Context, userID shared.ID) (*role.Role, error) {
	r, ok := s.private[userID]
	if !ok {
		return nil, role.ErrPrivateRoleMissing
	}
	return r, nil
}

func (s *stubRoles) CreatePrivate(_ context.Context, r *role.Role, userID shared.ID) error {
	s.private[userID] = r
	return nil
}

func (s *stubRoles) List(context.Context, role.ListFilter) ([]*role.Role, error) { return nil, nil }
func (s *stubRoles) ListByIDs(context.Context, []shared.ID) ([]*role.Role, error) {
	return nil, nil
}

type stubHierarchy struct{}

func (stubHierarchy) Parent(context.Context, security.ItemRef) (security.ItemRef, bool, error) {
	return security.ItemRef{}, false, nil
}

type fakeCollectionRepo struct {
	trees     map[shared.ID]*collection.Tree
	created   []*collection.Tree
	refreshed []shared.ID
}

func newFakeCollectionRepo() *fakeCollectionRepo {
	return &fakeCollectionRepo{trees: map[shared.ID]*collection.Tree{}}
}

func (r *fakeCollectionRepo) CreateTree(_ context.Context, t *collection.Tree) error {
	r.created = append(r.created, t)
	r.store(t)
	return nil
}

func (r *fakeCollectionRepo) store(t *collection.Tree) {
	r.trees[t.Collection.ID()] = t
	for _, n := range t.Elements {
		if n.Child != nil {
			r.store(n.Child)
		}
	}
}

func (r *fakeCollectionRepo) Get(_ context.Context, id shared.ID) (*collection.DatasetCollection, error) {
	t, ok := r.trees[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return t.Collection, nil
}

func (r *fakeCollectionRepo) GetTree(_ context.Context, id shared.ID) (*collection.Tree, error) {
	t, ok := r.trees[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return t, nil
}

func (r *fakeCollectionRepo) Update(context.Context, *collection.DatasetCollection) error {
	return nil
}

func (r *fakeCollectionRepo) ListParentCollectionIDs(context.Context, shared.ID) ([]shared.ID, error) {
	return nil, nil
}

func (r *fakeCollectionRepo) RefreshPopulatedState(_ context.Context, id shared.ID) (collection.PopulatedState, error) {
	t, ok := r.trees[id]
	if !ok {
		return "", shared.ErrNotFound
	}
	r.refreshed = append(r.refreshed, id)
	return t.AggregatePopulatedState(), nil
}

type fakeHistoryRepo struct {
	dataset.HistoryRepository
	hdas map[shared.ID]*dataset.HistoryDatasetAssociation
}

func (r *fakeHistoryRepo) GetHDA(_ context.Context, id shared.ID) (*dataset.HistoryDatasetAssociation, error) {
	hda, ok := r.hdas[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return hda, nil
}

type fakeLibraryRepo struct {
	library.Repository
	slots map[shared.ID]*library.LibraryDataset
	lddas map[shared.ID]*library.LibraryDatasetDatasetAssociation
}

func newFakeLibraryRepo() *fakeLibraryRepo {
	return &fakeLibraryRepo{
		slots: map[shared.ID]*library.LibraryDataset{},
		lddas: map[shared.ID]*library.LibraryDatasetDatasetAssociation{},
	}
}

func (r *fakeLibraryRepo) GetLibraryDataset(_ context.Context, id shared.ID) (*library.LibraryDataset, error) {
	ld, ok := r.slots[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return ld, nil
}

func (r *fakeLibraryRepo) UpdateLibraryDataset(_ context.Context, ld *library.LibraryDataset) error {
	r.slots[ld.ID()] = ld
	return nil
}

func (r *fakeLibraryRepo) CreateLDDA(_ context.Context, l *library.LibraryDatasetDatasetAssociation) error {
	r.lddas[l.ID()] = l
	return nil
}

func (r *fakeLibraryRepo) UpdateLDDA(_ context.Context, l *library.LibraryDatasetDatasetAssociation) error {
	r.lddas[l.ID()] = l
	return nil
}

func (r *fakeLibraryRepo) GetLDDA(_ context.Context, id shared.ID) (*library.LibraryDatasetDatasetAssociation, error) {
	l, ok := r.lddas[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return l, nil
}

type fakeEnqueuer struct {
	refreshes []shared.ID
}

func (e *fakeEnqueuer) EnqueueCollectionRefresh(_ context.Context, collectionID shared.ID) error {
	e.refreshes = append(e.refreshes, collectionID)
	return nil
}

func (e *fakeEnqueuer) EnqueueDatasetStateChanged(context.Context, shared.ID, string) error {
	return nil
}

// =============================================================================
// Fixture
// =============================================================================

type collectionFixture struct {
	svc   *app.CollectionService
	colls *fakeCollectionRepo
	hists *fakeHistoryRepo
	libs  *fakeLibraryRepo
	store *stubStore

	nextHID int
}

func newCollectionFixture(enqueuer app.TaskEnqueuer) *collectionFixture {
	store := newStubStore()
	roles := &stubRoles{private: map[shared.ID]*role.Role{}}
	agent := security.NewAgent(store, roles, stubHierarchy{})

	m := metrics.New("test")
	log := logger.NewNop()
	resolver := app.NewRoleResolver(agent, nil, m, log)

	colls := newFakeCollectionRepo()
	hists := &fakeHistoryRepo{hdas: map[shared.ID]*dataset.HistoryDatasetAssociation{}}
	libs := newFakeLibraryRepo()
	perms := app.NewPermissionService(agent, resolver, libs, m, log)

	return &collectionFixture{
		svc:   app.NewCollectionService(colls, hists, libs, perms, enqueuer, m, log),
		colls: colls,
		hists: hists,
		libs:  libs,
		store: store,
	}
}

func (f *collectionFixture) addHDA(t *testing.T, state dataset.State, extension string) *dataset.HistoryDatasetAssociation {
	t.Helper()
	ds := dataset.New()
	require.NoError(t, ds.SetState(state))
	f.nextHID++
	hda, err := dataset.NewHDA(shared.NewID(), ds, "reads", extension, f.nextHID)
	require.NoError(t, err)
	f.hists.hdas[hda.ID()] = hda
	return hda
}

func (f *collectionFixture) addLDDA(t *testing.T, state dataset.State) *library.LibraryDatasetDatasetAssociation {
	t.Helper()
	ldda, err := library.NewLDDA(library.NewLDDAParams{
		LibraryDatasetID: shared.NewID(),
		DatasetID:        shared.NewID(),
		UserID:           shared.NewID(),
		Name:             "archived.bam",
		Extension:        "bam",
		State:            state,
	})
	require.NoError(t, err)
	f.libs.lddas[ldda.ID()] = ldda
	return ldda
}

// restrict puts an access row on the dataset held by some other role, so
// an unrelated caller can no longer read it.
func (f *collectionFixture) restrict(datasetID shared.ID) {
	f.store.datasets[datasetID] = security.Grants{
		security.DatasetAccess: security.NewRoleSet(shared.NewID()),
	}
}

func newCaller(t *testing.T) *user.User {
	t.Helper()
	u, err := user.New("carol@example.org", "carol", "x")
	require.NoError(t, err)
	return u
}

func idRef(id shared.ID) *shared.ID { return &id }

func pairInput(forward, reverse *dataset.HistoryDatasetAssociation) []app.ElementInput {
	return []app.ElementInput{
		{Identifier: "forward", HDAID: idRef(forward.ID())},
		{Identifier: "reverse", HDAID: idRef(reverse.ID())},
	}
}

// =============================================================================
// Create
// =============================================================================

func TestCollectionService_Create(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	tree, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
		Type: "list:paired",
		Elements: []app.ElementInput{
			{Identifier: "run-1", Elements: pairInput(f.addHDA(t, dataset.StateOK, "fastq"), f.addHDA(t, dataset.StateOK, "fastq"))},
			{Identifier: "run-2", Elements: pairInput(f.addHDA(t, dataset.StateOK, "fastq"), f.addHDA(t, dataset.StateOK, "fastq"))},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "list:paired", tree.Collection.CollectionType().String())
	assert.Equal(t, 4, tree.LeafCount())
	require.Len(t, tree.Elements, 2)
	assert.Equal(t, "run-1", tree.Elements[0].Element.Identifier())
	assert.Equal(t, "run-2", tree.Elements[1].Element.Identifier())

	// Every leaf was already terminal, so each level is populated on
	// creation rather than waiting for the completion fan-out.
	assert.True(t, tree.Collection.Populated())
	for _, n := range tree.Elements {
		require.NotNil(t, n.Child)
		assert.True(t, n.Child.Collection.Populated())
	}

	require.Len(t, f.colls.created, 1)
	assert.Same(t, tree, f.colls.created[0])
}

func TestCollectionService_Create_LibraryLeaf(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	ldda := f.addLDDA(t, dataset.StateOK)
	tree, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
		Type: "list",
		Elements: []app.ElementInput{
			{Identifier: "archived", LDDAID: idRef(ldda.ID())},
		},
	})
	require.NoError(t, err)

	require.Len(t, tree.Elements, 1)
	require.NotNil(t, tree.Elements[0].Leaf)
	assert.True(t, tree.Elements[0].Leaf.InstanceID().Equals(ldda.ID()))
	assert.True(t, tree.Collection.Populated())
}

func TestCollectionService_Create_NonTerminalLeavesStayNew(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	tree, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
		Type: "list",
		Elements: []app.ElementInput{
			{Identifier: "done", HDAID: idRef(f.addHDA(t, dataset.StateOK, "bam").ID())},
			{Identifier: "pending", HDAID: idRef(f.addHDA(t, dataset.StateRunning, "bam").ID())},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, collection.PopulatedStateNew, tree.Collection.PopulatedState())
	assert.Nil(t, tree.Collection.ElementCount())
}

func TestCollectionService_Create_StructureErrors(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	t.Run("unknown type", func(t *testing.T) {
		_, err := f.svc.Create(ctx, u, app.CreateCollectionParams{Type: "bag"})
		var serr *collection.StructureError
		assert.ErrorAs(t, err, &serr)
	})

	t.Run("flat type cannot nest", func(t *testing.T) {
		fwd := f.addHDA(t, dataset.StateOK, "fastq")
		rev := f.addHDA(t, dataset.StateOK, "fastq")
		_, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
			Type: "list",
			Elements: []app.ElementInput{
				{Identifier: "run-1", Elements: pairInput(fwd, rev)},
			},
		})
		var serr *collection.StructureError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, serr.Message, "cannot hold nested collections")
	})

	t.Run("element without a reference", func(t *testing.T) {
		_, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
			Type:     "list",
			Elements: []app.ElementInput{{Identifier: "empty"}},
		})
		var serr *collection.StructureError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, serr.Message, "references no dataset instance")
	})

	t.Run("missing instance", func(t *testing.T) {
		_, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
			Type:     "list",
			Elements: []app.ElementInput{{Identifier: "ghost", HDAID: idRef(shared.NewID())}},
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	assert.Empty(t, f.colls.created, "nothing persisted on failure")
}

func TestCollectionService_Create_AccessDenied(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	open := f.addHDA(t, dataset.StateOK, "fastq")
	restricted := f.addHDA(t, dataset.StateOK, "fastq")
	f.restrict(restricted.DatasetID())

	_, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
		Type: "list",
		Elements: []app.ElementInput{
			{Identifier: "open", HDAID: idRef(open.ID())},
			{Identifier: "restricted", HDAID: idRef(restricted.ID())},
		},
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, f.colls.created)
}

// =============================================================================
// CreatePair
// =============================================================================

func TestCollectionService_CreatePair(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	fwd := f.addHDA(t, dataset.StateOK, "fastq")
	rev := f.addHDA(t, dataset.StateOK, "fastq")

	tree, err := f.svc.CreatePair(ctx, u, fwd.ID(), rev.ID())
	require.NoError(t, err)

	assert.Equal(t, "paired", tree.Collection.CollectionType().String())
	require.Len(t, tree.Elements, 2)
	assert.Equal(t, "forward", tree.Elements[0].Element.Identifier())
	assert.Equal(t, "reverse", tree.Elements[1].Element.Identifier())
	assert.True(t, tree.Collection.Populated())
	require.Len(t, f.colls.created, 1)
}

func TestCollectionService_CreatePair_AccessDenied(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	fwd := f.addHDA(t, dataset.StateOK, "fastq")
	rev := f.addHDA(t, dataset.StateOK, "fastq")
	f.restrict(rev.DatasetID())

	_, err := f.svc.CreatePair(ctx, u, fwd.ID(), rev.ID())
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, f.colls.created)
}

// =============================================================================
// Reads
// =============================================================================

func TestCollectionService_GetTree(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	hda := f.addHDA(t, dataset.StateOK, "bam")
	created, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
		Type:     "list",
		Elements: []app.ElementInput{{Identifier: "sample", HDAID: idRef(hda.ID())}},
	})
	require.NoError(t, err)

	got, err := f.svc.GetTree(ctx, u, created.Collection.ID())
	require.NoError(t, err)
	assert.True(t, got.Collection.ID().Equals(created.Collection.ID()))

	// A restriction added after creation hides the whole tree.
	f.restrict(hda.DatasetID())
	_, err = f.svc.GetTree(ctx, u, created.Collection.ID())
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.svc.GetTree(ctx, u, shared.NewID())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCollectionService_ExtractElement(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	fwd := f.addHDA(t, dataset.StateOK, "fastq")
	rev := f.addHDA(t, dataset.StateOK, "fastq")
	created, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
		Type: "list:paired",
		Elements: []app.ElementInput{
			{Identifier: "run-1", Elements: pairInput(fwd, rev)},
		},
	})
	require.NoError(t, err)
	id := created.Collection.ID()

	node, err := f.svc.ExtractElement(ctx, u, id, "run-1", "reverse")
	require.NoError(t, err)
	require.NotNil(t, node.Leaf)
	assert.True(t, node.Leaf.InstanceID().Equals(rev.ID()))

	_, err = f.svc.ExtractElement(ctx, u, id, "run-1", "sideways")
	var serr *collection.StructureError
	assert.ErrorAs(t, err, &serr)
}

func TestCollectionService_ListFailedElements(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(nil)
	u := newCaller(t)

	created, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
		Type: "list",
		Elements: []app.ElementInput{
			{Identifier: "good", HDAID: idRef(f.addHDA(t, dataset.StateOK, "bam").ID())},
			{Identifier: "bad", HDAID: idRef(f.addHDA(t, dataset.StateError, "bam").ID())},
		},
	})
	require.NoError(t, err)

	failed, err := f.svc.ListFailedElements(ctx, u, created.Collection.ID())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, []string{"bad"}, failed[0].Path)
}

// =============================================================================
// Refresh
// =============================================================================

func TestCollectionService_RequestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueues when a worker is wired", func(t *testing.T) {
		enq := &fakeEnqueuer{}
		f := newCollectionFixture(enq)
		u := newCaller(t)

		created, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
			Type:     "list",
			Elements: []app.ElementInput{{Identifier: "s", HDAID: idRef(f.addHDA(t, dataset.StateOK, "bam").ID())}},
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.RequestRefresh(ctx, created.Collection.ID()))
		require.Len(t, enq.refreshes, 1)
		assert.True(t, enq.refreshes[0].Equals(created.Collection.ID()))
		assert.Empty(t, f.colls.refreshed, "no synchronous refresh when enqueued")
	})

	t.Run("falls back to a synchronous refresh", func(t *testing.T) {
		f := newCollectionFixture(nil)
		u := newCaller(t)

		created, err := f.svc.Create(ctx, u, app.CreateCollectionParams{
			Type:     "list",
			Elements: []app.ElementInput{{Identifier: "s", HDAID: idRef(f.addHDA(t, dataset.StateOK, "bam").ID())}},
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.RequestRefresh(ctx, created.Collection.ID()))
		require.Len(t, f.colls.refreshed, 1)
		assert.True(t, f.colls.refreshed[0].Equals(created.Collection.ID()))
	})
}
