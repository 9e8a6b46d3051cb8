package app

import (
	"context"

	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/logger"
)

// PermissionService fronts the permission agent for the API: it resolves
// effective roles through the cache, enforces that callers may manage
// the rows they edit, and counts checks.
type PermissionService struct {
	agent     *security.Agent
	resolver  *RoleResolver
	libraries library.Repository
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// NewPermissionService creates a PermissionService.
func NewPermissionService(
	agent *security.Agent,
	resolver *RoleResolver,
	libraries library.Repository,
	m *metrics.Metrics,
	log *logger.Logger,
) *PermissionService {
	return &PermissionService{agent: agent, resolver: resolver, libraries: libraries, metrics: m, log: log}
}

func (s *PermissionService) count(action security.Action, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	s.metrics.PermissionChecks.WithLabelValues(action.String(), outcome).Inc()
}

// CanAccessDataset reports whether the user may read the dataset.
func (s *PermissionService) CanAccessDataset(ctx context.Context, u *user.User, datasetID shared.ID) (bool, error) {
	roles, err := s.resolver.EffectiveRoles(ctx, u)
	if err != nil {
		return false, err
	}
	ok, err := s.agent.CanAccessDataset(ctx, roles, datasetID)
	if err != nil {
		return false, err
	}
	s.count(security.DatasetAccess, ok)
	return ok, nil
}

// CanManageDataset reports whether the user may edit the dataset's
// permission rows.
func (s *PermissionService) CanManageDataset(ctx context.Context, u *user.User, datasetID shared.ID) (bool, error) {
	roles, err := s.resolver.EffectiveRoles(ctx, u)
	if err != nil {
		return false, err
	}
	ok, err := s.agent.CanManageDataset(ctx, roles, datasetID)
	if err != nil {
		return false, err
	}
	s.count(security.DatasetManagePermissions, ok)
	return ok, nil
}

// GetDatasetPermissions returns the dataset's explicit permission rows.
// Requires manage rights unless the caller is an admin.
func (s *PermissionService) GetDatasetPermissions(ctx context.Context, u *user.User, datasetID shared.ID, admin bool) (security.Grants, error) {
	if !admin {
		ok, err := s.CanManageDataset(ctx, u, datasetID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}
	return s.agent.GetDatasetPermissions(ctx, datasetID)
}

// SetDatasetPermissions replaces the dataset's rows for the actions
// present in grants. Requires manage rights unless the caller is an
// admin.
func (s *PermissionService) SetDatasetPermissions(ctx context.Context, u *user.User, datasetID shared.ID, grants security.Grants, admin bool) error {
	if !admin {
		ok, err := s.CanManageDataset(ctx, u, datasetID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrForbidden
		}
	}
	if err := s.agent.SetAllDatasetPermissions(ctx, datasetID, grants); err != nil {
		return err
	}
	s.log.Info("dataset permissions updated", "dataset_id", datasetID.String(), "actions", len(grants))
	return nil
}

// MakeDatasetPublic removes the dataset's access restriction.
func (s *PermissionService) MakeDatasetPublic(ctx context.Context, u *user.User, datasetID shared.ID, admin bool) error {
	if !admin {
		ok, err := s.CanManageDataset(ctx, u, datasetID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrForbidden
		}
	}
	return s.agent.MakeDatasetPublic(ctx, datasetID)
}

// DatasetIsPublic reports whether the dataset has no access rows.
func (s *PermissionService) DatasetIsPublic(ctx context.Context, datasetID shared.ID) (bool, error) {
	return s.agent.DatasetIsPublic(ctx, datasetID)
}

// CanAccessLibrary reports whether the user may see the library.
func (s *PermissionService) CanAccessLibrary(ctx context.Context, u *user.User, libraryID shared.ID) (bool, error) {
	roles, err := s.resolver.EffectiveRoles(ctx, u)
	if err != nil {
		return false, err
	}
	ok, err := s.agent.CanAccessLibrary(ctx, roles, libraryID)
	if err != nil {
		return false, err
	}
	s.count(security.LibraryAccess, ok)
	return ok, nil
}

// CanAddLibraryItem reports whether the user may add items under the
// container.
func (s *PermissionService) CanAddLibraryItem(ctx context.Context, u *user.User, item security.ItemRef) (bool, error) {
	roles, err := s.resolver.EffectiveRoles(ctx, u)
	if err != nil {
		return false, err
	}
	ok, err := s.agent.CanAddLibraryItem(ctx, roles, item)
	if err != nil {
		return false, err
	}
	s.count(security.LibraryAdd, ok)
	return ok, nil
}

// CanModifyLibraryItem reports whether the user may modify the container.
func (s *PermissionService) CanModifyLibraryItem(ctx context.Context, u *user.User, item security.ItemRef) (bool, error) {
	roles, err := s.resolver.EffectiveRoles(ctx, u)
	if err != nil {
		return false, err
	}
	ok, err := s.agent.CanModifyLibraryItem(ctx, roles, item)
	if err != nil {
		return false, err
	}
	s.count(security.LibraryModify, ok)
	return ok, nil
}

// CanManageLibraryItem reports whether the user may edit the container's
// permission rows.
func (s *PermissionService) CanManageLibraryItem(ctx context.Context, u *user.User, item security.ItemRef) (bool, error) {
	roles, err := s.resolver.EffectiveRoles(ctx, u)
	if err != nil {
		return false, err
	}
	ok, err := s.agent.CanManageLibraryItem(ctx, roles, item)
	if err != nil {
		return false, err
	}
	s.count(security.LibraryManage, ok)
	return ok, nil
}

// GetLibraryItemPermissions returns the container's explicit rows,
// without inheritance applied.
func (s *PermissionService) GetLibraryItemPermissions(ctx context.Context, u *user.User, item security.ItemRef, admin bool) (security.Grants, error) {
	if !admin {
		ok, err := s.CanManageLibraryItem(ctx, u, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
	}
	return s.agent.GetLibraryItemPermissions(ctx, item)
}

// SetLibraryItemPermissions replaces a container's rows for the library
// actions present in grants.
func (s *PermissionService) SetLibraryItemPermissions(ctx context.Context, u *user.User, item security.ItemRef, grants security.Grants, admin bool) error {
	if !admin {
		ok, err := s.CanManageLibraryItem(ctx, u, item)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrForbidden
		}
	}
	if err := s.agent.SetAllLibraryPermissions(ctx, item, grants); err != nil {
		return err
	}
	s.log.Info("library item permissions updated",
		"item_kind", string(item.Kind), "item_id", item.ID.String(), "actions", len(grants))
	return nil
}

// SetLibraryDatasetPermissions updates a library dataset slot and its
// current version together so the pair never diverges.
func (s *PermissionService) SetLibraryDatasetPermissions(ctx context.Context, u *user.User, libraryDatasetID shared.ID, grants security.Grants, admin bool) error {
	ld, err := s.libraries.GetLibraryDataset(ctx, libraryDatasetID)
	if err != nil {
		return err
	}
	if !ld.HasCurrentVersion() {
		return &security.InconsistentRequestError{Message: "library dataset has no current version"}
	}
	if !admin {
		ok, err := s.CanManageLibraryItem(ctx, u, security.LibraryDatasetRef(libraryDatasetID))
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrForbidden
		}
	}
	return s.agent.SetLibraryItemPermissions(ctx, libraryDatasetID, *ld.CurrentVersionID(), grants)
}

// LegitimateRoles lists the roles that may be offered on the library's
// permission-editing surface.
func (s *PermissionService) LegitimateRoles(ctx context.Context, libraryID shared.ID, admin bool) ([]*role.Role, error) {
	return s.agent.LegitimateRoles(ctx, libraryID, admin)
}

// SetUserDefaultPermissions replaces the caller's default grants.
func (s *PermissionService) SetUserDefaultPermissions(ctx context.Context, userID shared.ID, grants security.Grants) error {
	return s.agent.SetUserDefaultPermissions(ctx, userID, grants)
}

// SetHistoryDefaultPermissions replaces a history's default grants.
func (s *PermissionService) SetHistoryDefaultPermissions(ctx context.Context, historyID shared.ID, grants security.Grants) error {
	return s.agent.SetHistoryDefaultPermissions(ctx, historyID, grants)
}
