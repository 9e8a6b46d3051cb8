package app

import (
	"context"

	"github.com/bioarchive/api/pkg/domain/group"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/logger"
)

// GroupService manages groups and their memberships.
type GroupService struct {
	groups   group.Repository
	resolver *RoleResolver
	log      *logger.Logger
}

// NewGroupService creates a GroupService.
func NewGroupService(groups group.Repository, resolver *RoleResolver, log *logger.Logger) *GroupService {
	return &GroupService{groups: groups, resolver: resolver, log: log}
}

// Create creates a new group.
func (s *GroupService) Create(ctx context.Context, name string) (*group.Group, error) {
	g, err := group.New(name)
	if err != nil {
		return nil, err
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, err
	}
	s.log.Info("group created", "group_id", g.ID().String(), "name", g.Name())
	return g, nil
}

// Get retrieves a group by ID.
func (s *GroupService) Get(ctx context.Context, id shared.ID) (*group.Group, error) {
	return s.groups.GetByID(ctx, id)
}

// List retrieves groups matching the filter.
func (s *GroupService) List(ctx context.Context, filter group.ListFilter) ([]*group.Group, error) {
	return s.groups.List(ctx, filter)
}

// Rename updates a group's name.
func (s *GroupService) Rename(ctx context.Context, id shared.ID, name string) (*group.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := g.Rename(name); err != nil {
		return nil, err
	}
	if err := s.groups.Update(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Delete soft-deletes a group. Roles granted through it stop applying,
// so every member's cached role set is dropped.
func (s *GroupService) Delete(ctx context.Context, id shared.ID) error {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return err
	}

	members, err := s.groups.ListMemberIDs(ctx, id)
	if err != nil {
		return err
	}

	g.Delete()
	if err := s.groups.Update(ctx, g); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx, members...)
	s.log.Info("group deleted", "group_id", id.String())
	return nil
}

// AddMember adds a user to a group.
func (s *GroupService) AddMember(ctx context.Context, groupID, userID shared.ID) error {
	if err := s.groups.AddMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx, userID)
	return nil
}

// RemoveMember removes a user from a group.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID shared.ID) error {
	if err := s.groups.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx, userID)
	return nil
}

// ListMemberIDs retrieves the user IDs of a group's members.
func (s *GroupService) ListMemberIDs(ctx context.Context, groupID shared.ID) ([]shared.ID, error) {
	return s.groups.ListMemberIDs(ctx, groupID)
}

// ListGroupsByUser retrieves the groups a user belongs to.
func (s *GroupService) ListGroupsByUser(ctx context.Context, userID shared.ID) ([]*group.Group, error) {
	return s.groups.ListGroupsByUser(ctx, userID)
}
