// Package dataset provides the dataset and history domain models.
//
// A Dataset is the underlying physical artifact (file content plus a
// lifecycle state) shared by possibly many instances. A
// HistoryDatasetAssociation (HDA) is the dataset as it appears inside a
// user's history and is the leaf instance type dataset collections
// reference.
package dataset

import (
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// State represents the lifecycle state of a dataset.
type State string

const (
	StateNew       State = "new"
	StateUpload    State = "upload"
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateOK        State = "ok"
	StateError     State = "error"
	StateEmpty     State = "empty"
	StateDiscarded State = "discarded"
	StateDeferred  State = "deferred"
)

// IsValid checks if the state is valid.
func (s State) IsValid() bool {
	switch s {
	case StateNew, StateUpload, StateQueued, StateRunning,
		StateOK, StateError, StateEmpty, StateDiscarded, StateDeferred:
		return true
	}
	return false
}

// IsTerminal returns true for determinate states. A collection element
// backed by a dataset in a terminal state (even "error") counts as
// resolved for population purposes.
func (s State) IsTerminal() bool {
	switch s {
	case StateOK, StateError, StateEmpty, StateDiscarded:
		return true
	}
	return false
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Dataset represents the underlying data artifact.
type Dataset struct {
	id        shared.ID
	state     State
	fileSize  *int64
	deleted   bool
	purged    bool
	createdAt time.Time
	updatedAt time.Time
}

// New creates a new dataset in the "new" state.
func New() *Dataset {
	now := time.Now().UTC()
	return &Dataset{
		id:        shared.NewID(),
		state:     StateNew,
		createdAt: now,
		updatedAt: now,
	}
}

// Reconstitute recreates a Dataset from persistence.
func Reconstitute(
	id shared.ID,
	state State,
	fileSize *int64,
	deleted, purged bool,
	createdAt, updatedAt time.Time,
) *Dataset {
	return &Dataset{
		id:        id,
		state:     state,
		fileSize:  fileSize,
		deleted:   deleted,
		purged:    purged,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the dataset ID.
func (d *Dataset) ID() shared.ID {
	return d.id
}

// State returns the dataset state.
func (d *Dataset) State() State {
	return d.state
}

// FileSize returns the file size in bytes (nil while unknown).
func (d *Dataset) FileSize() *int64 {
	return d.fileSize
}

// IsDeleted returns the soft-deletion flag.
func (d *Dataset) IsDeleted() bool {
	return d.deleted
}

// IsPurged returns the purge flag.
func (d *Dataset) IsPurged() bool {
	return d.purged
}

// CreatedAt returns the creation timestamp.
func (d *Dataset) CreatedAt() time.Time {
	return d.createdAt
}

// UpdatedAt returns the last update timestamp.
func (d *Dataset) UpdatedAt() time.Time {
	return d.updatedAt
}

// SetState transitions the dataset to a new state.
func (d *Dataset) SetState(state State) error {
	if !state.IsValid() {
		return fmt.Errorf("%w: invalid dataset state %q", shared.ErrValidation, state)
	}
	d.state = state
	d.updatedAt = time.Now().UTC()
	return nil
}

// SetFileSize records the file size once known.
func (d *Dataset) SetFileSize(size int64) {
	d.fileSize = &size
	d.updatedAt = time.Now().UTC()
}

// Delete soft-deletes the dataset.
func (d *Dataset) Delete() {
	d.deleted = true
	d.updatedAt = time.Now().UTC()
}

// Purge marks a deleted dataset as purged.
func (d *Dataset) Purge() error {
	if !d.deleted {
		return fmt.Errorf("%w: dataset must be deleted before purging", shared.ErrValidation)
	}
	d.purged = true
	d.updatedAt = time.Now().UTC()
	return nil
}
