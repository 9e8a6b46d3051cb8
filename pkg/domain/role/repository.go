package role

import (
	"context"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Repository defines the interface for role persistence, including the
// user/role and group/role association rows.
type Repository interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, id shared.ID) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Update(ctx context.Context, r *Role) error
	List(ctx context.Context, filter ListFilter) ([]*Role, error)
	ListByIDs(ctx context.Context, ids []shared.ID) ([]*Role, error)

	// User/role associations.
	AssociateUser(ctx context.Context, userID, roleID shared.ID) error
	DissociateUser(ctx context.Context, userID, roleID shared.ID) error
	ListByUser(ctx context.Context, userID shared.ID) ([]*Role, error)

	// Group/role associations. ListByUserGroups resolves roles a user
	// inherits through group membership in a single query.
	AssociateGroup(ctx context.Context, groupID, roleID shared.ID) error
	DissociateGroup(ctx context.Context, groupID, roleID shared.ID) error
	ListByGroup(ctx context.Context, groupID shared.ID) ([]*Role, error)
	ListByUserGroups(ctx context.Context, userID shared.ID) ([]*Role, error)

	// Private role handling. GetPrivateByUser returns ErrPrivateRoleMissing
	// when no private role exists. CreatePrivate persists the role and its
	// user association atomically.
	GetPrivateByUser(ctx context.Context, userID shared.ID) (*Role, error)
	CreatePrivate(ctx context.Context, r *Role, userID shared.ID) error
}

// ListFilter contains filter options for listing roles.
type ListFilter struct {
	Types          []Type
	IncludeDeleted bool
	Search         string

	Limit  int
	Offset int
}

// DefaultListFilter returns a default filter.
func DefaultListFilter() ListFilter {
	return ListFilter{Limit: 50}
}
