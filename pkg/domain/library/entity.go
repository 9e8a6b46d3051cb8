// Package library provides the library hierarchy domain model: Library,
// LibraryFolder (a self-referential tree), LibraryDataset (a stable named
// slot) and LibraryDatasetDatasetAssociation (a specific version of that
// slot wrapping an underlying dataset).
package library

import (
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Library is a named top-level container owning exactly one root folder.
// The root folder has no parent and is hidden from normal listings.
type Library struct {
	id           shared.ID
	name         string
	description  string
	synopsis     string
	rootFolderID shared.ID
	deleted      bool
	purged       bool
	createdAt    time.Time
	updatedAt    time.Time
}

// NewLibrary creates a library together with its root folder.
func NewLibrary(name, description, synopsis string) (*Library, *Folder, error) {
	if name == "" {
		return nil, nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	root := &Folder{
		id:          shared.NewID(),
		name:        name,
		description: description,
		createdAt:   now,
		updatedAt:   now,
	}
	lib := &Library{
		id:           shared.NewID(),
		name:         name,
		description:  description,
		synopsis:     synopsis,
		rootFolderID: root.id,
		createdAt:    now,
		updatedAt:    now,
	}
	root.libraryID = lib.id
	return lib, root, nil
}

// ReconstituteLibrary recreates a Library from persistence.
func ReconstituteLibrary(
	id shared.ID,
	name, description, synopsis string,
	rootFolderID shared.ID,
	deleted, purged bool,
	createdAt, updatedAt time.Time,
) *Library {
	return &Library{
		id:           id,
		name:         name,
		description:  description,
		synopsis:     synopsis,
		rootFolderID: rootFolderID,
		deleted:      deleted,
		purged:       purged,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the library ID.
func (l *Library) ID() shared.ID { return l.id }

// Name returns the library name.
func (l *Library) Name() string { return l.name }

// Description returns the library description.
func (l *Library) Description() string { return l.description }

// Synopsis returns the library synopsis.
func (l *Library) Synopsis() string { return l.synopsis }

// RootFolderID returns the root folder ID.
func (l *Library) RootFolderID() shared.ID { return l.rootFolderID }

// IsDeleted returns the soft-deletion flag.
func (l *Library) IsDeleted() bool { return l.deleted }

// IsPurged returns the purge flag.
func (l *Library) IsPurged() bool { return l.purged }

// CreatedAt returns the creation timestamp.
func (l *Library) CreatedAt() time.Time { return l.createdAt }

// UpdatedAt returns the last update timestamp.
func (l *Library) UpdatedAt() time.Time { return l.updatedAt }

// Update changes the display fields.
func (l *Library) Update(name, description, synopsis string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	l.name = name
	l.description = description
	l.synopsis = synopsis
	l.updatedAt = time.Now().UTC()
	return nil
}

// Delete soft-deletes the library.
func (l *Library) Delete() {
	l.deleted = true
	l.updatedAt = time.Now().UTC()
}

// Undelete restores a soft-deleted library.
func (l *Library) Undelete() error {
	if l.purged {
		return fmt.Errorf("%w: purged libraries cannot be undeleted", shared.ErrValidation)
	}
	l.deleted = false
	l.updatedAt = time.Now().UTC()
	return nil
}

// Purge marks a deleted library as purged.
func (l *Library) Purge() error {
	if !l.deleted {
		return fmt.Errorf("%w: library must be deleted before purging", shared.ErrValidation)
	}
	l.purged = true
	l.updatedAt = time.Now().UTC()
	return nil
}

// Folder is a node in the self-referential library folder tree. A nil
// parent marks the hidden root folder of a library.
type Folder struct {
	id          shared.ID
	libraryID   shared.ID
	parentID    *shared.ID
	name        string
	description string
	genomeBuild string
	itemCount   int
	orderID     int
	deleted     bool
	purged      bool
	createdAt   time.Time
	updatedAt   time.Time
}

// NewFolder creates a child folder under parent. The genome build
// defaults to the parent's: a one-time copy at creation, not a live link.
func NewFolder(parent *Folder, name, description string) (*Folder, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: parent folder is required", shared.ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	parentID := parent.id
	return &Folder{
		id:          shared.NewID(),
		libraryID:   parent.libraryID,
		parentID:    &parentID,
		name:        name,
		description: description,
		genomeBuild: parent.genomeBuild,
		orderID:     parent.itemCount,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstituteFolder recreates a Folder from persistence.
func ReconstituteFolder(
	id, libraryID shared.ID,
	parentID *shared.ID,
	name, description, genomeBuild string,
	itemCount, orderID int,
	deleted, purged bool,
	createdAt, updatedAt time.Time,
) *Folder {
	return &Folder{
		id:          id,
		libraryID:   libraryID,
		parentID:    parentID,
		name:        name,
		description: description,
		genomeBuild: genomeBuild,
		itemCount:   itemCount,
		orderID:     orderID,
		deleted:     deleted,
		purged:      purged,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the folder ID.
func (f *Folder) ID() shared.ID { return f.id }

// LibraryID returns the owning library ID.
func (f *Folder) LibraryID() shared.ID { return f.libraryID }

// ParentID returns the parent folder ID (nil for the root folder).
func (f *Folder) ParentID() *shared.ID { return f.parentID }

// IsRoot returns true for the library's hidden root folder.
func (f *Folder) IsRoot() bool { return f.parentID == nil }

// Name returns the folder name.
func (f *Folder) Name() string { return f.name }

// Description returns the folder description.
func (f *Folder) Description() string { return f.description }

// GenomeBuild returns the default dbkey propagated to children.
func (f *Folder) GenomeBuild() string { return f.genomeBuild }

// ItemCount returns the denormalized child count.
func (f *Folder) ItemCount() int { return f.itemCount }

// OrderID returns the explicit ordering position.
func (f *Folder) OrderID() int { return f.orderID }

// IsDeleted returns the folder's own deletion flag. Use BranchDeleted for
// the recursive check including ancestors.
func (f *Folder) IsDeleted() bool { return f.deleted }

// CreatedAt returns the creation timestamp.
func (f *Folder) CreatedAt() time.Time { return f.createdAt }

// UpdatedAt returns the last update timestamp.
func (f *Folder) UpdatedAt() time.Time { return f.updatedAt }

// Update changes the display fields.
func (f *Folder) Update(name, description string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	f.name = name
	f.description = description
	f.updatedAt = time.Now().UTC()
	return nil
}

// SetGenomeBuild changes the default dbkey for future children.
func (f *Folder) SetGenomeBuild(build string) {
	f.genomeBuild = build
	f.updatedAt = time.Now().UTC()
}

// IncrementItemCount bumps the denormalized child count.
func (f *Folder) IncrementItemCount() {
	f.itemCount++
	f.updatedAt = time.Now().UTC()
}

// Delete soft-deletes the folder.
func (f *Folder) Delete() {
	f.deleted = true
	f.updatedAt = time.Now().UTC()
}

// Undelete restores a soft-deleted folder.
func (f *Folder) Undelete() {
	f.deleted = false
	f.updatedAt = time.Now().UTC()
}

// BranchDeleted reports whether a folder or any of its ancestors is
// deleted. The chain must be ordered from the folder itself up to the
// root; the result is computed, never stored.
func BranchDeleted(chain []*Folder) bool {
	for _, f := range chain {
		if f.deleted {
			return true
		}
	}
	return false
}
