// Package user provides the user domain model.
package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// User represents an account identity. Users are never hard-deleted while
// referenced; the deleted and purged flags implement the soft-delete
// lifecycle.
type User struct {
	id           shared.ID
	email        string
	username     string
	passwordHash string
	active       bool
	deleted      bool
	purged       bool
	lastLoginAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// New creates a new user with a pre-hashed password.
func New(email, username, passwordHash string) (*User, error) {
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", shared.ErrValidation)
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("%w: password hash is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &User{
		id:           shared.NewID(),
		email:        email,
		username:     username,
		passwordHash: passwordHash,
		active:       true,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstitute recreates a User from persistence.
func Reconstitute(
	id shared.ID,
	email, username, passwordHash string,
	active, deleted, purged bool,
	lastLoginAt *time.Time,
	createdAt, updatedAt time.Time,
) *User {
	return &User{
		id:           id,
		email:        email,
		username:     username,
		passwordHash: passwordHash,
		active:       active,
		deleted:      deleted,
		purged:       purged,
		lastLoginAt:  lastLoginAt,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the user ID.
func (u *User) ID() shared.ID {
	return u.id
}

// Email returns the user email.
func (u *User) Email() string {
	return u.email
}

// Username returns the public username.
func (u *User) Username() string {
	return u.username
}

// PasswordHash returns the stored password hash.
func (u *User) PasswordHash() string {
	return u.passwordHash
}

// IsActive returns true if the account is active.
func (u *User) IsActive() bool {
	return u.active && !u.deleted
}

// IsDeleted returns the soft-deletion flag.
func (u *User) IsDeleted() bool {
	return u.deleted
}

// IsPurged returns the purge flag.
func (u *User) IsPurged() bool {
	return u.purged
}

// LastLoginAt returns the last login timestamp.
func (u *User) LastLoginAt() *time.Time {
	return u.lastLoginAt
}

// CreatedAt returns the creation timestamp.
func (u *User) CreatedAt() time.Time {
	return u.createdAt
}

// UpdatedAt returns the last update timestamp.
func (u *User) UpdatedAt() time.Time {
	return u.updatedAt
}

// UpdateEmail updates the user email.
func (u *User) UpdateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: a valid email is required", shared.ErrValidation)
	}
	u.email = email
	u.updatedAt = time.Now().UTC()
	return nil
}

// SetPasswordHash replaces the stored password hash.
func (u *User) SetPasswordHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("%w: password hash is required", shared.ErrValidation)
	}
	u.passwordHash = hash
	u.updatedAt = time.Now().UTC()
	return nil
}

// RecordLogin updates the last login timestamp to now.
func (u *User) RecordLogin() {
	now := time.Now().UTC()
	u.lastLoginAt = &now
	u.updatedAt = now
}

// Deactivate marks the account inactive without deleting it.
func (u *User) Deactivate() {
	u.active = false
	u.updatedAt = time.Now().UTC()
}

// Delete soft-deletes the account.
func (u *User) Delete() {
	u.deleted = true
	u.active = false
	u.updatedAt = time.Now().UTC()
}

// Purge marks a deleted account as purged. Purging requires a prior delete.
func (u *User) Purge() error {
	if !u.deleted {
		return fmt.Errorf("%w: user must be deleted before purging", shared.ErrValidation)
	}
	u.purged = true
	u.updatedAt = time.Now().UTC()
	return nil
}
