package library

import (
	"context"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Repository defines the interface for library hierarchy persistence.
type Repository interface {
	// Libraries.
	CreateLibrary(ctx context.Context, l *Library, root *Folder) error
	GetLibrary(ctx context.Context, id shared.ID) (*Library, error)
	GetLibraryByFolder(ctx context.Context, folderID shared.ID) (*Library, error)
	UpdateLibrary(ctx context.Context, l *Library) error
	ListLibraries(ctx context.Context, filter ListFilter) ([]*Library, error)

	// Folders.
	CreateFolder(ctx context.Context, f *Folder) error
	GetFolder(ctx context.Context, id shared.ID) (*Folder, error)
	UpdateFolder(ctx context.Context, f *Folder) error
	ListChildFolders(ctx context.Context, parentID shared.ID) ([]*Folder, error)
	// FolderChain returns the folder and its ancestors ordered from the
	// folder itself up to the root, resolved in a single recursive query.
	FolderChain(ctx context.Context, folderID shared.ID) ([]*Folder, error)

	// Library datasets and versions.
	CreateLibraryDataset(ctx context.Context, ld *LibraryDataset) error
	GetLibraryDataset(ctx context.Context, id shared.ID) (*LibraryDataset, error)
	UpdateLibraryDataset(ctx context.Context, ld *LibraryDataset) error
	ListLibraryDatasets(ctx context.Context, folderID shared.ID) ([]*LibraryDataset, error)
	CreateLDDA(ctx context.Context, l *LibraryDatasetDatasetAssociation) error
	GetLDDA(ctx context.Context, id shared.ID) (*LibraryDatasetDatasetAssociation, error)
	UpdateLDDA(ctx context.Context, l *LibraryDatasetDatasetAssociation) error
	ListVersions(ctx context.Context, libraryDatasetID shared.ID) ([]*LibraryDatasetDatasetAssociation, error)

	// Metadata templates and their item associations. GetInfoAssociation
	// returns (nil, nil) when the item has no association of its own.
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, id shared.ID) (*Template, error)
	ListTemplates(ctx context.Context) ([]*Template, error)
	SaveInfoAssociation(ctx context.Context, ia *InfoAssociation) error
	GetInfoAssociation(ctx context.Context, itemKind ItemKind, itemID shared.ID) (*InfoAssociation, error)
}

// ListFilter contains filter options for listing libraries.
type ListFilter struct {
	IncludeDeleted bool
	Search         string

	Limit  int
	Offset int
}

// DefaultListFilter returns a default filter.
func DefaultListFilter() ListFilter {
	return ListFilter{Limit: 50}
}
