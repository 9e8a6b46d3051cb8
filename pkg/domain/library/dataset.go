package library

import (
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/shared"
)

// LibraryDataset is a stable, named slot within a folder. It points at a
// current LibraryDatasetDatasetAssociation; a nil current version means
// no version is selected and the slot renders as unavailable.
type LibraryDataset struct {
	id               shared.ID
	folderID         shared.ID
	currentVersionID *shared.ID
	nameOverride     string
	infoOverride     string
	orderID          int
	deleted          bool
	purged           bool
	createdAt        time.Time
	updatedAt        time.Time
}

// NewLibraryDataset creates an empty slot in a folder.
func NewLibraryDataset(folder *Folder) (*LibraryDataset, error) {
	if folder == nil {
		return nil, fmt.Errorf("%w: folder is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &LibraryDataset{
		id:        shared.NewID(),
		folderID:  folder.ID(),
		orderID:   folder.ItemCount(),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstituteLibraryDataset recreates a LibraryDataset from persistence.
func ReconstituteLibraryDataset(
	id, folderID shared.ID,
	currentVersionID *shared.ID,
	nameOverride, infoOverride string,
	orderID int,
	deleted, purged bool,
	createdAt, updatedAt time.Time,
) *LibraryDataset {
	return &LibraryDataset{
		id:               id,
		folderID:         folderID,
		currentVersionID: currentVersionID,
		nameOverride:     nameOverride,
		infoOverride:     infoOverride,
		orderID:          orderID,
		deleted:          deleted,
		purged:           purged,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// ID returns the library dataset ID.
func (ld *LibraryDataset) ID() shared.ID { return ld.id }

// FolderID returns the containing folder ID.
func (ld *LibraryDataset) FolderID() shared.ID { return ld.folderID }

// CurrentVersionID returns the current LDDA ID (nil when no version is
// selected).
func (ld *LibraryDataset) CurrentVersionID() *shared.ID { return ld.currentVersionID }

// HasCurrentVersion reports whether a version is selected.
func (ld *LibraryDataset) HasCurrentVersion() bool { return ld.currentVersionID != nil }

// OrderID returns the explicit ordering position.
func (ld *LibraryDataset) OrderID() int { return ld.orderID }

// IsDeleted returns the soft-deletion flag.
func (ld *LibraryDataset) IsDeleted() bool { return ld.deleted }

// CreatedAt returns the creation timestamp.
func (ld *LibraryDataset) CreatedAt() time.Time { return ld.createdAt }

// UpdatedAt returns the last update timestamp.
func (ld *LibraryDataset) UpdatedAt() time.Time { return ld.updatedAt }

// SetCurrentVersion points the slot at a new LDDA. A single FK update,
// never a structural copy.
func (ld *LibraryDataset) SetCurrentVersion(lddaID shared.ID) error {
	if lddaID.IsZero() {
		return fmt.Errorf("%w: lddaID is required", shared.ErrValidation)
	}
	ld.currentVersionID = &lddaID
	ld.updatedAt = time.Now().UTC()
	return nil
}

// ClearCurrentVersion unselects the current version.
func (ld *LibraryDataset) ClearCurrentVersion() {
	ld.currentVersionID = nil
	ld.updatedAt = time.Now().UTC()
}

// SetOverrides sets the optional name/info overrides that supersede the
// current LDDA's display values when non-empty.
func (ld *LibraryDataset) SetOverrides(name, info string) {
	ld.nameOverride = name
	ld.infoOverride = info
	ld.updatedAt = time.Now().UTC()
}

// DisplayName returns the override name if set, else the current LDDA's.
func (ld *LibraryDataset) DisplayName(current *LibraryDatasetDatasetAssociation) string {
	if ld.nameOverride != "" {
		return ld.nameOverride
	}
	if current != nil {
		return current.Name()
	}
	return ""
}

// DisplayInfo returns the override info if set, else the current LDDA's.
func (ld *LibraryDataset) DisplayInfo(current *LibraryDatasetDatasetAssociation) string {
	if ld.infoOverride != "" {
		return ld.infoOverride
	}
	if current != nil {
		return current.Info()
	}
	return ""
}

// Delete soft-deletes the slot.
func (ld *LibraryDataset) Delete() {
	ld.deleted = true
	ld.updatedAt = time.Now().UTC()
}

// Undelete restores a soft-deleted slot.
func (ld *LibraryDataset) Undelete() {
	ld.deleted = false
	ld.updatedAt = time.Now().UTC()
}

// LibraryDatasetDatasetAssociation (LDDA) is a specific version of a
// library dataset: display metadata over an underlying dataset plus
// lineage and provenance links.
type LibraryDatasetDatasetAssociation struct {
	id               shared.ID
	libraryDatasetID shared.ID
	datasetID        shared.ID
	userID           shared.ID
	parentID         *shared.ID
	copiedFromHDAID  *shared.ID
	copiedFromLDDAID *shared.ID
	name             string
	info             string
	blurb            string
	peek             string
	extension        string
	designation      string
	message          string
	metadata         map[string]any
	state            dataset.State
	deleted          bool
	createdAt        time.Time
	updatedAt        time.Time
}

// NewLDDAParams collects the constructor inputs for an LDDA.
type NewLDDAParams struct {
	LibraryDatasetID shared.ID
	DatasetID        shared.ID
	UserID           shared.ID
	ParentID         *shared.ID // lineage: the version this supersedes
	CopiedFromHDAID  *shared.ID
	CopiedFromLDDAID *shared.ID
	Name             string
	Info             string
	Extension        string
	Designation      string
	Message          string
	State            dataset.State
}

// NewLDDA creates a new library dataset version.
func NewLDDA(p NewLDDAParams) (*LibraryDatasetDatasetAssociation, error) {
	if p.LibraryDatasetID.IsZero() {
		return nil, fmt.Errorf("%w: libraryDatasetID is required", shared.ErrValidation)
	}
	if p.DatasetID.IsZero() {
		return nil, fmt.Errorf("%w: datasetID is required", shared.ErrValidation)
	}
	if p.UserID.IsZero() {
		return nil, fmt.Errorf("%w: userID is required", shared.ErrValidation)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	state := p.State
	if state == "" {
		state = dataset.StateNew
	}

	now := time.Now().UTC()
	return &LibraryDatasetDatasetAssociation{
		id:               shared.NewID(),
		libraryDatasetID: p.LibraryDatasetID,
		datasetID:        p.DatasetID,
		userID:           p.UserID,
		parentID:         p.ParentID,
		copiedFromHDAID:  p.CopiedFromHDAID,
		copiedFromLDDAID: p.CopiedFromLDDAID,
		name:             p.Name,
		info:             p.Info,
		extension:        p.Extension,
		designation:      p.Designation,
		message:          p.Message,
		metadata:         map[string]any{},
		state:            state,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// ReconstituteLDDA recreates an LDDA from persistence. The state argument
// is the underlying dataset's state, denormalized at load time.
func ReconstituteLDDA(
	id, libraryDatasetID, datasetID, userID shared.ID,
	parentID, copiedFromHDAID, copiedFromLDDAID *shared.ID,
	name, info, blurb, peek, extension, designation, message string,
	metadata map[string]any,
	state dataset.State,
	deleted bool,
	createdAt, updatedAt time.Time,
) *LibraryDatasetDatasetAssociation {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &LibraryDatasetDatasetAssociation{
		id:               id,
		libraryDatasetID: libraryDatasetID,
		datasetID:        datasetID,
		userID:           userID,
		parentID:         parentID,
		copiedFromHDAID:  copiedFromHDAID,
		copiedFromLDDAID: copiedFromLDDAID,
		name:             name,
		info:             info,
		blurb:            blurb,
		peek:             peek,
		extension:        extension,
		designation:      designation,
		message:          message,
		metadata:         metadata,
		state:            state,
		deleted:          deleted,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// ID returns the LDDA ID.
func (l *LibraryDatasetDatasetAssociation) ID() shared.ID { return l.id }

// LibraryDatasetID returns the owning slot ID.
func (l *LibraryDatasetDatasetAssociation) LibraryDatasetID() shared.ID { return l.libraryDatasetID }

// DatasetID returns the underlying dataset ID.
func (l *LibraryDatasetDatasetAssociation) DatasetID() shared.ID { return l.datasetID }

// UserID returns the uploader's user ID.
func (l *LibraryDatasetDatasetAssociation) UserID() shared.ID { return l.userID }

// ParentID returns the superseded version's ID (nil for the first
// version).
func (l *LibraryDatasetDatasetAssociation) ParentID() *shared.ID { return l.parentID }

// CopiedFromHDAID records provenance from a history dataset.
func (l *LibraryDatasetDatasetAssociation) CopiedFromHDAID() *shared.ID { return l.copiedFromHDAID }

// CopiedFromLDDAID records provenance from another LDDA.
func (l *LibraryDatasetDatasetAssociation) CopiedFromLDDAID() *shared.ID { return l.copiedFromLDDAID }

// Name returns the display name.
func (l *LibraryDatasetDatasetAssociation) Name() string { return l.name }

// Info returns the info line.
func (l *LibraryDatasetDatasetAssociation) Info() string { return l.info }

// Blurb returns the short summary line.
func (l *LibraryDatasetDatasetAssociation) Blurb() string { return l.blurb }

// Peek returns the content preview.
func (l *LibraryDatasetDatasetAssociation) Peek() string { return l.peek }

// Extension returns the file format extension.
func (l *LibraryDatasetDatasetAssociation) Extension() string { return l.extension }

// Designation returns the version designation.
func (l *LibraryDatasetDatasetAssociation) Designation() string { return l.designation }

// Message returns the version message.
func (l *LibraryDatasetDatasetAssociation) Message() string { return l.message }

// Metadata returns the metadata blob.
func (l *LibraryDatasetDatasetAssociation) Metadata() map[string]any { return l.metadata }

// State returns the underlying dataset state as of load time.
func (l *LibraryDatasetDatasetAssociation) State() dataset.State { return l.state }

// IsDeleted returns the soft-deletion flag.
func (l *LibraryDatasetDatasetAssociation) IsDeleted() bool { return l.deleted }

// CreatedAt returns the creation timestamp.
func (l *LibraryDatasetDatasetAssociation) CreatedAt() time.Time { return l.createdAt }

// UpdatedAt returns the last update timestamp.
func (l *LibraryDatasetDatasetAssociation) UpdatedAt() time.Time { return l.updatedAt }

// UpdateDisplay changes the display metadata.
func (l *LibraryDatasetDatasetAssociation) UpdateDisplay(name, info, message string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	l.name = name
	l.info = info
	l.message = message
	l.updatedAt = time.Now().UTC()
	return nil
}

// SetPeek records the content preview and blurb once computed.
func (l *LibraryDatasetDatasetAssociation) SetPeek(peek, blurb string) {
	l.peek = peek
	l.blurb = blurb
	l.updatedAt = time.Now().UTC()
}

// SetMetadata replaces the metadata blob.
func (l *LibraryDatasetDatasetAssociation) SetMetadata(metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	l.metadata = metadata
	l.updatedAt = time.Now().UTC()
}

// Delete soft-deletes the version.
func (l *LibraryDatasetDatasetAssociation) Delete() {
	l.deleted = true
	l.updatedAt = time.Now().UTC()
}

// InstanceID implements collection.DatasetInstance.
func (l *LibraryDatasetDatasetAssociation) InstanceID() shared.ID { return l.id }

// DatasetState implements collection.DatasetInstance.
func (l *LibraryDatasetDatasetAssociation) DatasetState() dataset.State { return l.state }
