package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
)

// Agent is the stateless permission policy engine. Given a principal's
// effective roles and a container it decides whether an action is
// permitted, and it owns every mutation of permission rows.
//
// All can-checks are set-intersection tests over role IDs; the expensive
// part is resolving effective roles, which callers should do once per
// request and reuse.
type Agent struct {
	store     Store
	roles     RoleDirectory
	hierarchy Hierarchy
}

// NewAgent creates a new permission agent.
func NewAgent(store Store, roles RoleDirectory, hierarchy Hierarchy) *Agent {
	return &Agent{store: store, roles: roles, hierarchy: hierarchy}
}

// EffectiveRoles resolves the union of a user's directly-assigned roles,
// the roles inherited through group membership, and the user's private
// role (created lazily if it does not exist yet).
func (a *Agent) EffectiveRoles(ctx context.Context, u *user.User) (RoleSet, error) {
	direct, err := a.roles.ListByUser(ctx, u.ID())
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	viaGroups, err := a.roles.ListByUserGroups(ctx, u.ID())
	if err != nil {
		return nil, fmt.Errorf("list group roles: %w", err)
	}
	private, err := a.PrivateRole(ctx, u)
	if err != nil {
		return nil, err
	}

	set := NewRoleSet(private.ID())
	for _, r := range direct {
		if !r.IsDeleted() {
			set.Add(r.ID())
		}
	}
	for _, r := range viaGroups {
		if !r.IsDeleted() {
			set.Add(r.ID())
		}
	}
	return set, nil
}

// PrivateRole returns the user's private role, creating it on first use.
// Every active user has exactly one private role at all times after this
// returns.
func (a *Agent) PrivateRole(ctx context.Context, u *user.User) (*role.Role, error) {
	r, err := a.roles.GetPrivateByUser(ctx, u.ID())
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, role.ErrPrivateRoleMissing) {
		return nil, fmt.Errorf("get private role: %w", err)
	}

	r, err = role.NewPrivate(u.Email())
	if err != nil {
		return nil, err
	}
	if err := a.roles.CreatePrivate(ctx, r, u.ID()); err != nil {
		return nil, fmt.Errorf("create private role: %w", err)
	}
	return r, nil
}

// =============================================================================
// Dataset checks
// =============================================================================

// CanAccessDataset reports whether the roles permit reading the dataset.
// A dataset with no access rows is public. Ownership is never consulted
// directly; it is expressed through the private-role mechanism.
func (a *Agent) CanAccessDataset(ctx context.Context, roles RoleSet, datasetID shared.ID) (bool, error) {
	grants, err := a.store.DatasetGrants(ctx, datasetID)
	if err != nil {
		return false, err
	}
	return grants.Rule(DatasetAccess).Allows(roles), nil
}

// CanManageDataset reports whether the roles permit altering the
// dataset's permission rows.
func (a *Agent) CanManageDataset(ctx context.Context, roles RoleSet, datasetID shared.ID) (bool, error) {
	grants, err := a.store.DatasetGrants(ctx, datasetID)
	if err != nil {
		return false, err
	}
	rule := grants.Rule(DatasetManagePermissions)
	// Unlike access, manage is deny-by-default: an unmanaged dataset has
	// no managers rather than everyone.
	if rule.IsOpen() {
		return false, nil
	}
	return rule.Allows(roles), nil
}

// DatasetIsPublic reports whether the dataset has no access restriction.
func (a *Agent) DatasetIsPublic(ctx context.Context, datasetID shared.ID) (bool, error) {
	grants, err := a.store.DatasetGrants(ctx, datasetID)
	if err != nil {
		return false, err
	}
	return grants.Rule(DatasetAccess).IsOpen(), nil
}

// MakeDatasetPublic removes every access row from the dataset, leaving
// other actions untouched.
func (a *Agent) MakeDatasetPublic(ctx context.Context, datasetID shared.ID) error {
	return a.store.ReplaceDatasetGrants(ctx, datasetID, Grants{DatasetAccess: NewRoleSet()})
}

// SetAllDatasetPermissions replaces the permission rows for every action
// present in grants; actions omitted from the map are left untouched.
func (a *Agent) SetAllDatasetPermissions(ctx context.Context, datasetID shared.ID, grants Grants) error {
	if err := grants.Validate(); err != nil {
		return err
	}
	for action := range grants {
		if !action.IsDatasetAction() {
			return &InconsistentRequestError{Message: fmt.Sprintf("action %q does not apply to datasets", action)}
		}
	}
	return a.store.ReplaceDatasetGrants(ctx, datasetID, grants)
}

// =============================================================================
// Library checks
// =============================================================================

// CanAccessLibrary reports whether the roles may see the library at all.
// Library access is settable only at the library level and never
// inherited, so this checks a single container.
func (a *Agent) CanAccessLibrary(ctx context.Context, roles RoleSet, libraryID shared.ID) (bool, error) {
	grants, err := a.store.LibraryItemGrants(ctx, LibraryRef(libraryID))
	if err != nil {
		return false, err
	}
	return grants.Rule(LibraryAccess).Allows(roles), nil
}

// CanAddLibraryItem reports whether the roles permit adding items under
// the given container.
func (a *Agent) CanAddLibraryItem(ctx context.Context, roles RoleSet, item ItemRef) (bool, error) {
	return a.checkInherited(ctx, roles, item, LibraryAdd)
}

// CanModifyLibraryItem reports whether the roles permit modifying the
// given container.
func (a *Agent) CanModifyLibraryItem(ctx context.Context, roles RoleSet, item ItemRef) (bool, error) {
	return a.checkInherited(ctx, roles, item, LibraryModify)
}

// CanManageLibraryItem reports whether the roles permit changing the
// given container's permission rows.
func (a *Agent) CanManageLibraryItem(ctx context.Context, roles RoleSet, item ItemRef) (bool, error) {
	return a.checkInherited(ctx, roles, item, LibraryManage)
}

// checkInherited walks up from item toward the library looking for the
// nearest ancestor with explicit rows for the action. A container with
// zero rows for an action defers to its parent; if nothing up to and
// including the library carries rows the answer is deny.
func (a *Agent) checkInherited(ctx context.Context, roles RoleSet, item ItemRef, action Action) (bool, error) {
	current := item
	for {
		grants, err := a.store.LibraryItemGrants(ctx, current)
		if err != nil {
			return false, err
		}
		if rs, ok := grants[action]; ok && len(rs) > 0 {
			return rs.Intersects(roles), nil
		}
		parent, ok, err := a.hierarchy.Parent(ctx, current)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		current = parent
	}
}

// GetLibraryItemPermissions returns the explicit permission rows on the
// container, without inheritance applied.
func (a *Agent) GetLibraryItemPermissions(ctx context.Context, item ItemRef) (Grants, error) {
	return a.store.LibraryItemGrants(ctx, item)
}

// GetDatasetPermissions returns the explicit permission rows on the
// dataset.
func (a *Agent) GetDatasetPermissions(ctx context.Context, datasetID shared.ID) (Grants, error) {
	return a.store.DatasetGrants(ctx, datasetID)
}

// SetAllLibraryPermissions replaces the permission rows for every library
// action present in grants. The library-access action is settable only on
// libraries; when the target is any other container kind that key is
// skipped rather than rejected, matching the permission-editing surface
// which submits a uniform action set for all item kinds.
func (a *Agent) SetAllLibraryPermissions(ctx context.Context, item ItemRef, grants Grants) error {
	if err := grants.Validate(); err != nil {
		return err
	}
	effective := make(Grants, len(grants))
	for action, rs := range grants {
		if !action.IsLibraryAction() {
			return &InconsistentRequestError{Message: fmt.Sprintf("action %q does not apply to library items", action)}
		}
		if action == LibraryAccess && item.Kind != KindLibrary {
			continue
		}
		effective[action] = rs
	}
	return a.store.ReplaceLibraryItemGrants(ctx, item, effective)
}

// SetLibraryItemPermissions updates a LibraryDataset and its current LDDA
// together. Permissions on the two must always be identical; this is the
// single transactional helper that enforces the parity invariant.
func (a *Agent) SetLibraryItemPermissions(ctx context.Context, libraryDatasetID, lddaID shared.ID, grants Grants) error {
	if err := grants.Validate(); err != nil {
		return err
	}
	effective := make(Grants, len(grants))
	for action, rs := range grants {
		if action == LibraryAccess {
			continue
		}
		effective[action] = rs
	}
	return a.store.ReplaceLibraryDatasetPairGrants(ctx, libraryDatasetID, lddaID, effective)
}

// CopyLibraryPermissions copies every permission row from source to
// target additively, action by action. It does not clear target's
// existing rows, and calling it twice leaves target identical to calling
// it once. Used when a newly-created folder or LDDA should start with its
// parent's permission set.
func (a *Agent) CopyLibraryPermissions(ctx context.Context, source, target ItemRef) error {
	grants, err := a.store.LibraryItemGrants(ctx, source)
	if err != nil {
		return err
	}
	copied := make(Grants, len(grants))
	for action, rs := range grants {
		// Library access never propagates below the library.
		if action == LibraryAccess && target.Kind != KindLibrary {
			continue
		}
		copied[action] = rs
	}
	if len(copied) == 0 {
		return nil
	}
	return a.store.AddLibraryItemGrants(ctx, target, copied)
}

// LegitimateRoles returns the roles that may legitimately be granted
// permissions within the library. If the library is unrestricted every
// active role qualifies; if restricted, only roles already holding
// library access qualify, so the permission-editing surface can never
// offer a role that cannot see the library. Admins always get the full
// role list.
func (a *Agent) LegitimateRoles(ctx context.Context, libraryID shared.ID, admin bool) ([]*role.Role, error) {
	grants, err := a.store.LibraryItemGrants(ctx, LibraryRef(libraryID))
	if err != nil {
		return nil, err
	}
	rule := grants.Rule(LibraryAccess)
	if admin || rule.IsOpen() {
		return a.roles.List(ctx, role.ListFilter{Limit: 0})
	}
	return a.roles.ListByIDs(ctx, rule.Roles().IDs())
}

// DeriveRolesFromAccess computes the permission grants implied by a
// request to restrict dataset access to the selected roles. Every
// selected role must be able to see the containing library; otherwise the
// grant would create data visible to a role that cannot reach it and an
// InconsistentRequestError is returned. The resulting grants always
// include a manage-permissions grant for the uploading user's private
// role.
func (a *Agent) DeriveRolesFromAccess(
	ctx context.Context,
	u *user.User,
	libraryID shared.ID,
	selected []shared.ID,
) (Grants, RoleSet, error) {
	legitimate, err := a.LegitimateRoles(ctx, libraryID, false)
	if err != nil {
		return nil, nil, err
	}
	legitSet := NewRoleSet()
	for _, r := range legitimate {
		legitSet.Add(r.ID())
	}

	inRoles := NewRoleSet()
	for _, id := range selected {
		if !legitSet.Contains(id) {
			return nil, nil, &InconsistentRequestError{
				Message: "at least one selected role does not have access to the containing library",
			}
		}
		inRoles.Add(id)
	}

	private, err := a.PrivateRole(ctx, u)
	if err != nil {
		return nil, nil, err
	}

	grants := Grants{
		DatasetManagePermissions: NewRoleSet(private.ID()),
	}
	if inRoles.Len() > 0 {
		grants[DatasetAccess] = inRoles.Clone()
	}
	return grants, inRoles, nil
}

// =============================================================================
// Default permissions
// =============================================================================

// SetUserDefaultPermissions replaces the default grants applied to every
// dataset the user creates.
func (a *Agent) SetUserDefaultPermissions(ctx context.Context, userID shared.ID, grants Grants) error {
	if err := grants.Validate(); err != nil {
		return err
	}
	return a.store.ReplaceUserDefaultGrants(ctx, userID, grants)
}

// SetHistoryDefaultPermissions replaces the default grants applied to
// every dataset created in the history.
func (a *Agent) SetHistoryDefaultPermissions(ctx context.Context, historyID shared.ID, grants Grants) error {
	if err := grants.Validate(); err != nil {
		return err
	}
	return a.store.ReplaceHistoryDefaultGrants(ctx, historyID, grants)
}

// SeedUserDefaults installs the initial default-permission rows for a new
// account: the user's private role receives manage-permissions on
// everything the user creates.
func (a *Agent) SeedUserDefaults(ctx context.Context, u *user.User) error {
	private, err := a.PrivateRole(ctx, u)
	if err != nil {
		return err
	}
	return a.store.ReplaceUserDefaultGrants(ctx, u.ID(), Grants{
		DatasetManagePermissions: NewRoleSet(private.ID()),
	})
}

// SeedHistoryDefaults installs the initial default-permission rows for a
// new history from the owner's user defaults.
func (a *Agent) SeedHistoryDefaults(ctx context.Context, userID, historyID shared.ID) error {
	defaults, err := a.store.UserDefaultGrants(ctx, userID)
	if err != nil {
		return err
	}
	if len(defaults) == 0 {
		return nil
	}
	return a.store.ReplaceHistoryDefaultGrants(ctx, historyID, defaults)
}

// ApplyHistoryDefaults seeds a newly-created dataset's permission rows
// from the containing history's defaults, falling back to the owner's
// user defaults when the history has none.
func (a *Agent) ApplyHistoryDefaults(ctx context.Context, ownerID, historyID, datasetID shared.ID) error {
	defaults, err := a.store.HistoryDefaultGrants(ctx, historyID)
	if err != nil {
		return err
	}
	if len(defaults) == 0 {
		defaults, err = a.store.UserDefaultGrants(ctx, ownerID)
		if err != nil {
			return err
		}
	}
	if len(defaults) == 0 {
		return nil
	}
	return a.store.ReplaceDatasetGrants(ctx, datasetID, defaults)
}
