// Package group provides the group domain model.
package group

import (
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Group represents a named collection of users. Roles associated with a
// group are inherited by every member.
type Group struct {
	id        shared.ID
	name      string
	deleted   bool
	createdAt time.Time
	updatedAt time.Time
}

// New creates a new group.
func New(name string) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Group{
		id:        shared.NewID(),
		name:      name,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute recreates a Group from persistence.
func Reconstitute(id shared.ID, name string, deleted bool, createdAt, updatedAt time.Time) *Group {
	return &Group{
		id:        id,
		name:      name,
		deleted:   deleted,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the group ID.
func (g *Group) ID() shared.ID {
	return g.id
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// IsDeleted returns the soft-deletion flag.
func (g *Group) IsDeleted() bool {
	return g.deleted
}

// CreatedAt returns the creation timestamp.
func (g *Group) CreatedAt() time.Time {
	return g.createdAt
}

// UpdatedAt returns the last update timestamp.
func (g *Group) UpdatedAt() time.Time {
	return g.updatedAt
}

// Rename updates the group name.
func (g *Group) Rename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	g.name = name
	g.updatedAt = time.Now().UTC()
	return nil
}

// Delete soft-deletes the group.
func (g *Group) Delete() {
	g.deleted = true
	g.updatedAt = time.Now().UTC()
}

// Undelete restores a soft-deleted group.
func (g *Group) Undelete() {
	g.deleted = false
	g.updatedAt = time.Now().UTC()
}
