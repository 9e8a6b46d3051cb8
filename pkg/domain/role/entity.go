// Package role provides the role domain model.
//
// A role is the unit of permission grant: permission rows on datasets and
// library items reference roles, never users directly. Users pick up roles
// either through direct association, through group membership, or through
// their private role.
package role

import (
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Type classifies how a role came to exist and how it may be used.
type Type string

const (
	// TypePrivate is the per-user role; exactly one exists per user and it
	// is named after the user's email address.
	TypePrivate Type = "private"
	// TypeSystem roles are created at bootstrap and cannot be deleted.
	TypeSystem Type = "system"
	// TypeUser roles are ordinary roles created through the admin surface.
	TypeUser Type = "user"
	// TypeAdmin marks administrator roles.
	TypeAdmin Type = "admin"
	// TypeSharing roles are created implicitly when a user shares an item
	// with specific other users.
	TypeSharing Type = "sharing"
)

// IsValid checks if the role type is valid.
func (t Type) IsValid() bool {
	switch t {
	case TypePrivate, TypeSystem, TypeUser, TypeAdmin, TypeSharing:
		return true
	}
	return false
}

// String returns the string representation of the role type.
func (t Type) String() string {
	return string(t)
}

// Role represents a role entity in the domain.
type Role struct {
	id          shared.ID
	name        string
	description string
	roleType    Type
	deleted     bool
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates a new role.
func New(name, description string, roleType Type) (*Role, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if !roleType.IsValid() {
		return nil, fmt.Errorf("%w: invalid role type %q", shared.ErrValidation, roleType)
	}
	if roleType == TypePrivate {
		return nil, fmt.Errorf("%w: private roles must be created with NewPrivate", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Role{
		id:          shared.NewID(),
		name:        name,
		description: description,
		roleType:    roleType,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// NewPrivate creates the private role for a user. The role is named after
// the user's email so the permission-editing UI can display it meaningfully.
func NewPrivate(email string) (*Role, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Role{
		id:          shared.NewID(),
		name:        email,
		description: "Private role for " + email,
		roleType:    TypePrivate,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstitute recreates a Role from persistence.
func Reconstitute(
	id shared.ID,
	name, description string,
	roleType Type,
	deleted bool,
	createdAt, updatedAt time.Time,
) *Role {
	return &Role{
		id:          id,
		name:        name,
		description: description,
		roleType:    roleType,
		deleted:     deleted,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the role ID.
func (r *Role) ID() shared.ID {
	return r.id
}

// Name returns the role name.
func (r *Role) Name() string {
	return r.name
}

// Description returns the role description.
func (r *Role) Description() string {
	return r.description
}

// RoleType returns the role type.
func (r *Role) RoleType() Type {
	return r.roleType
}

// IsPrivate returns true for per-user private roles.
func (r *Role) IsPrivate() bool {
	return r.roleType == TypePrivate
}

// IsDeleted returns the soft-deletion flag.
func (r *Role) IsDeleted() bool {
	return r.deleted
}

// CreatedAt returns the creation timestamp.
func (r *Role) CreatedAt() time.Time {
	return r.createdAt
}

// UpdatedAt returns the last update timestamp.
func (r *Role) UpdatedAt() time.Time {
	return r.updatedAt
}

// Rename updates the role name.
func (r *Role) Rename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if r.roleType == TypePrivate {
		return fmt.Errorf("%w: private roles cannot be renamed", shared.ErrValidation)
	}
	r.name = name
	r.updatedAt = time.Now().UTC()
	return nil
}

// UpdateDescription updates the role description.
func (r *Role) UpdateDescription(description string) {
	r.description = description
	r.updatedAt = time.Now().UTC()
}

// Delete soft-deletes the role.
func (r *Role) Delete() error {
	if r.roleType == TypePrivate {
		return fmt.Errorf("%w: private roles cannot be deleted", shared.ErrValidation)
	}
	if r.roleType == TypeSystem {
		return fmt.Errorf("%w: system roles cannot be deleted", shared.ErrValidation)
	}
	r.deleted = true
	r.updatedAt = time.Now().UTC()
	return nil
}

// Undelete restores a soft-deleted role.
func (r *Role) Undelete() {
	r.deleted = false
	r.updatedAt = time.Now().UTC()
}
