package user

import (
	"context"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Repository defines the interface for user persistence.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id shared.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, filter ListFilter) ([]*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// ListFilter contains filter options for listing users.
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
