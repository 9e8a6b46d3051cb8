package dataset

import (
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// History represents a user's ordered workspace of dataset instances.
type History struct {
	id        shared.ID
	userID    shared.ID
	name      string
	deleted   bool
	purged    bool
	createdAt time.Time
	updatedAt time.Time
}

// NewHistory creates a new history owned by a user.
func NewHistory(userID shared.ID, name string) (*History, error) {
	if userID.IsZero() {
		return nil, fmt.Errorf("%w: userID is required", shared.ErrValidation)
	}
	if name == "" {
		name = "Unnamed history"
	}

	now := time.Now().UTC()
	return &History{
		id:        shared.NewID(),
		userID:    userID,
		name:      name,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstituteHistory recreates a History from persistence.
func ReconstituteHistory(
	id, userID shared.ID,
	name string,
	deleted, purged bool,
	createdAt, updatedAt time.Time,
) *History {
	return &History{
		id:        id,
		userID:    userID,
		name:      name,
		deleted:   deleted,
		purged:    purged,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the history ID.
func (h *History) ID() shared.ID { return h.id }

// UserID returns the owning user ID.
func (h *History) UserID() shared.ID { return h.userID }

// Name returns the history name.
func (h *History) Name() string { return h.name }

// IsDeleted returns the soft-deletion flag.
func (h *History) IsDeleted() bool { return h.deleted }

// CreatedAt returns the creation timestamp.
func (h *History) CreatedAt() time.Time { return h.createdAt }

// UpdatedAt returns the last update timestamp.
func (h *History) UpdatedAt() time.Time { return h.updatedAt }

// Rename updates the history name.
func (h *History) Rename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	h.name = name
	h.updatedAt = time.Now().UTC()
	return nil
}

// Delete soft-deletes the history.
func (h *History) Delete() {
	h.deleted = true
	h.updatedAt = time.Now().UTC()
}

// HistoryDatasetAssociation (HDA) is a dataset instance inside a history.
type HistoryDatasetAssociation struct {
	id        shared.ID
	historyID shared.ID
	datasetID shared.ID
	name      string
	info      string
	blurb     string
	extension string
	hid       int
	visible   bool
	deleted   bool
	state     State
	createdAt time.Time
	updatedAt time.Time
}

// NewHDA creates a new history dataset association.
func NewHDA(historyID shared.ID, ds *Dataset, name, extension string, hid int) (*HistoryDatasetAssociation, error) {
	if historyID.IsZero() {
		return nil, fmt.Errorf("%w: historyID is required", shared.ErrValidation)
	}
	if ds == nil {
		return nil, fmt.Errorf("%w: dataset is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &HistoryDatasetAssociation{
		id:        shared.NewID(),
		historyID: historyID,
		datasetID: ds.ID(),
		name:      name,
		extension: extension,
		hid:       hid,
		visible:   true,
		state:     ds.State(),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstituteHDA recreates an HDA from persistence. The state argument is
// the underlying dataset's state, denormalized at load time.
func ReconstituteHDA(
	id, historyID, datasetID shared.ID,
	name, info, blurb, extension string,
	hid int,
	visible, deleted bool,
	state State,
	createdAt, updatedAt time.Time,
) *HistoryDatasetAssociation {
	return &HistoryDatasetAssociation{
		id:        id,
		historyID: historyID,
		datasetID: datasetID,
		name:      name,
		info:      info,
		blurb:     blurb,
		extension: extension,
		hid:       hid,
		visible:   visible,
		deleted:   deleted,
		state:     state,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the HDA ID.
func (a *HistoryDatasetAssociation) ID() shared.ID { return a.id }

// HistoryID returns the owning history ID.
func (a *HistoryDatasetAssociation) HistoryID() shared.ID { return a.historyID }

// DatasetID returns the underlying dataset ID.
func (a *HistoryDatasetAssociation) DatasetID() shared.ID { return a.datasetID }

// Name returns the display name.
func (a *HistoryDatasetAssociation) Name() string { return a.name }

// Info returns the info line.
func (a *HistoryDatasetAssociation) Info() string { return a.info }

// Blurb returns the short summary line.
func (a *HistoryDatasetAssociation) Blurb() string { return a.blurb }

// Extension returns the file format extension.
func (a *HistoryDatasetAssociation) Extension() string { return a.extension }

// HID returns the per-history ordinal.
func (a *HistoryDatasetAssociation) HID() int { return a.hid }

// IsVisible returns the visibility flag.
func (a *HistoryDatasetAssociation) IsVisible() bool { return a.visible }

// IsDeleted returns the soft-deletion flag.
func (a *HistoryDatasetAssociation) IsDeleted() bool { return a.deleted }

// State returns the underlying dataset state as of load time.
func (a *HistoryDatasetAssociation) State() State { return a.state }

// CreatedAt returns the creation timestamp.
func (a *HistoryDatasetAssociation) CreatedAt() time.Time { return a.createdAt }

// InstanceID implements collection.DatasetInstance.
func (a *HistoryDatasetAssociation) InstanceID() shared.ID { return a.id }

// DatasetState implements collection.DatasetInstance.
func (a *HistoryDatasetAssociation) DatasetState() State { return a.state }
