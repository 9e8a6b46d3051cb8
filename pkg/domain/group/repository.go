package group

import (
	"context"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Repository defines the interface for group persistence, including the
// user/group association rows.
type Repository interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id shared.ID) (*Group, error)
	GetByName(ctx context.Context, name string) (*Group, error)
	Update(ctx context.Context, g *Group) error
	List(ctx context.Context, filter ListFilter) ([]*Group, error)

	// Membership.
	AddMember(ctx context.Context, groupID, userID shared.ID) error
	RemoveMember(ctx context.Context, groupID, userID shared.ID) error
	IsMember(ctx context.Context, groupID, userID shared.ID) (bool, error)
	ListMemberIDs(ctx context.Context, groupID shared.ID) ([]shared.ID, error)
	ListGroupsByUser(ctx context.Context, userID shared.ID) ([]*Group, error)
}

// ListFilter contains filter options for listing groups.
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
