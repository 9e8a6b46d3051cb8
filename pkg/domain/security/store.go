package security

import (
	"context"

	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/shared"
)

// ItemKind identifies the kind of protected library container.
type ItemKind string

const (
	KindLibrary        ItemKind = "library"
	KindFolder         ItemKind = "library_folder"
	KindLibraryDataset ItemKind = "library_dataset"
	KindLDDA           ItemKind = "library_dataset_dataset_association"
)

// ItemRef identifies one protected library container.
type ItemRef struct {
	Kind ItemKind
	ID   shared.ID
}

// LibraryRef builds a reference to a library.
func LibraryRef(id shared.ID) ItemRef { return ItemRef{Kind: KindLibrary, ID: id} }

// FolderRef builds a reference to a library folder.
func FolderRef(id shared.ID) ItemRef { return ItemRef{Kind: KindFolder, ID: id} }

// LibraryDatasetRef builds a reference to a library dataset slot.
func LibraryDatasetRef(id shared.ID) ItemRef { return ItemRef{Kind: KindLibraryDataset, ID: id} }

// LDDARef builds a reference to a library dataset version.
func LDDARef(id shared.ID) ItemRef { return ItemRef{Kind: KindLDDA, ID: id} }

// Store persists permission rows: one row per (container, action, role)
// grant. Reads return only the actions that have rows; replace operations
// affect only the actions present in the grants map and must be atomic
// per container.
type Store interface {
	DatasetGrants(ctx context.Context, datasetID shared.ID) (Grants, error)
	ReplaceDatasetGrants(ctx context.Context, datasetID shared.ID, grants Grants) error

	LibraryItemGrants(ctx context.Context, item ItemRef) (Grants, error)
	ReplaceLibraryItemGrants(ctx context.Context, item ItemRef, grants Grants) error
	// AddLibraryItemGrants inserts rows additively and idempotently,
	// leaving existing rows in place.
	AddLibraryItemGrants(ctx context.Context, item ItemRef, grants Grants) error
	// ReplaceLibraryDatasetPairGrants updates a LibraryDataset and its
	// current LDDA in a single transaction so their rows never diverge.
	ReplaceLibraryDatasetPairGrants(ctx context.Context, libraryDatasetID, lddaID shared.ID, grants Grants) error

	UserDefaultGrants(ctx context.Context, userID shared.ID) (Grants, error)
	ReplaceUserDefaultGrants(ctx context.Context, userID shared.ID, grants Grants) error
	HistoryDefaultGrants(ctx context.Context, historyID shared.ID) (Grants, error)
	ReplaceHistoryDefaultGrants(ctx context.Context, historyID shared.ID, grants Grants) error
}

// RoleDirectory resolves the role side of permission checks.
type RoleDirectory interface {
	ListByUser(ctx context.Context, userID shared.ID) ([]*role.Role, error)
	ListByUserGroups(ctx context.Context, userID shared.ID) ([]*role.Role, error)
	GetPrivateByUser(ctx context.Context, userID shared.ID) (*role.Role, error)
	CreatePrivate(ctx context.Context, r *role.Role, userID shared.ID) error
	List(ctx context.Context, filter role.ListFilter) ([]*role.Role, error)
	ListByIDs(ctx context.Context, ids []shared.ID) ([]*role.Role, error)
}

// Hierarchy resolves a library container's parent for the
// inheritance-by-absence walk. The second return value is false at the
// top of the tree (the library itself).
type Hierarchy interface {
	Parent(ctx context.Context, item ItemRef) (ItemRef, bool, error)
}
