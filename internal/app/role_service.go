package app

import (
	"context"

	"github.com/bioarchive/api/pkg/domain/group"
	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/logger"
)

// RoleService manages roles and their user/group associations.
type RoleService struct {
	roles    role.Repository
	groups   group.Repository
	resolver *RoleResolver
	log      *logger.Logger
}

// NewRoleService creates a RoleService.
func NewRoleService(roles role.Repository, groups group.Repository, resolver *RoleResolver, log *logger.Logger) *RoleService {
	return &RoleService{roles: roles, groups: groups, resolver: resolver, log: log}
}

// Create creates a new non-private role.
func (s *RoleService) Create(ctx context.Context, name, description string, roleType role.Type) (*role.Role, error) {
	r, err := role.New(name, description, roleType)
	if err != nil {
		return nil, err
	}
	if err := s.roles.Create(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("role created", "role_id", r.ID().String(), "name", r.Name(), "type", r.RoleType().String())
	return r, nil
}

// Get retrieves a role by ID.
func (s *RoleService) Get(ctx context.Context, id shared.ID) (*role.Role, error) {
	return s.roles.GetByID(ctx, id)
}

// List retrieves roles matching the filter.
func (s *RoleService) List(ctx context.Context, filter role.ListFilter) ([]*role.Role, error) {
	return s.roles.List(ctx, filter)
}

// Update renames a role and updates its description.
func (s *RoleService) Update(ctx context.Context, id shared.ID, name, description string) (*role.Role, error) {
	r, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.Rename(name); err != nil {
		return nil, err
	}
	r.UpdateDescription(description)
	if err := s.roles.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete soft-deletes a role. Cached role sets still naming it age out
// with the cache TTL; permission checks tolerate the window because a
// deleted role matches no new grants.
func (s *RoleService) Delete(ctx context.Context, id shared.ID) error {
	r, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Delete(); err != nil {
		return err
	}
	if err := s.roles.Update(ctx, r); err != nil {
		return err
	}
	s.log.Info("role deleted", "role_id", id.String())
	return nil
}

// AssociateUser grants a role to a user directly.
func (s *RoleService) AssociateUser(ctx context.Context, userID, roleID shared.ID) error {
	if err := s.roles.AssociateUser(ctx, userID, roleID); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx, userID)
	return nil
}

// DissociateUser removes a direct role grant from a user.
func (s *RoleService) DissociateUser(ctx context.Context, userID, roleID shared.ID) error {
	if err := s.roles.DissociateUser(ctx, userID, roleID); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx, userID)
	return nil
}

// ListByUser retrieves a user's directly-assigned roles.
func (s *RoleService) ListByUser(ctx context.Context, userID shared.ID) ([]*role.Role, error) {
	return s.roles.ListByUser(ctx, userID)
}

// AssociateGroup grants a role to every member of a group.
func (s *RoleService) AssociateGroup(ctx context.Context, groupID, roleID shared.ID) error {
	if err := s.roles.AssociateGroup(ctx, groupID, roleID); err != nil {
		return err
	}
	s.invalidateGroupMembers(ctx, groupID)
	return nil
}

// DissociateGroup removes a role grant from a group.
func (s *RoleService) DissociateGroup(ctx context.Context, groupID, roleID shared.ID) error {
	if err := s.roles.DissociateGroup(ctx, groupID, roleID); err != nil {
		return err
	}
	s.invalidateGroupMembers(ctx, groupID)
	return nil
}

// ListByGroup retrieves the roles granted to a group.
func (s *RoleService) ListByGroup(ctx context.Context, groupID shared.ID) ([]*role.Role, error) {
	return s.roles.ListByGroup(ctx, groupID)
}

func (s *RoleService) invalidateGroupMembers(ctx context.Context, groupID shared.ID) {
	members, err := s.groups.ListMemberIDs(ctx, groupID)
	if err != nil {
		s.log.Warn("failed to list group members for cache invalidation",
			"group_id", groupID.String(), "error", err)
		return
	}
	s.resolver.Invalidate(ctx, members...)
}
