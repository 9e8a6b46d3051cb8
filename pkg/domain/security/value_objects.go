package security

import (
	"sort"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// RoleSet is a set of role IDs. All permission checks reduce to
// intersection tests over role sets.
type RoleSet map[shared.ID]struct{}

// NewRoleSet creates a role set from the given IDs.
func NewRoleSet(ids ...shared.ID) RoleSet {
	s := make(RoleSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts a role ID into the set.
func (s RoleSet) Add(id shared.ID) {
	s[id] = struct{}{}
}

// Contains reports whether the set contains the given role ID.
func (s RoleSet) Contains(id shared.ID) bool {
	_, ok := s[id]
	return ok
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for id := range small {
		if _, ok := large[id]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of roles in the set.
func (s RoleSet) Len() int {
	return len(s)
}

// IDs returns the role IDs in a stable order.
func (s RoleSet) IDs() []shared.ID {
	ids := make([]shared.ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Clone returns a copy of the set.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// AccessRule is the permission state of one (container, action) pair.
// It distinguishes "no rows, open to everyone" from "restricted to a
// role set", so a caching layer can never confuse "not loaded" with
// "intentionally public".
type AccessRule struct {
	open  bool
	roles RoleSet
}

// OpenRule returns the rule for a container with no rows for an action.
func OpenRule() AccessRule {
	return AccessRule{open: true}
}

// RestrictedTo returns a rule limiting the action to the given roles.
func RestrictedTo(roles RoleSet) AccessRule {
	return AccessRule{roles: roles.Clone()}
}

// IsOpen reports whether the action is unrestricted.
func (r AccessRule) IsOpen() bool {
	return r.open
}

// Roles returns the restricting role set (empty when open).
func (r AccessRule) Roles() RoleSet {
	return r.roles
}

// Allows reports whether a principal holding the given roles satisfies
// the rule.
func (r AccessRule) Allows(roles RoleSet) bool {
	if r.open {
		return true
	}
	return r.roles.Intersects(roles)
}

// Grants maps actions to the role sets being granted. It is the typed
// replacement for the loosely-typed permission maps that flow through
// permission-editing surfaces; actions absent from the map are left
// untouched by replace operations.
type Grants map[Action]RoleSet

// Validate rejects unknown action keys at the boundary.
func (g Grants) Validate() error {
	for a := range g {
		if !a.IsValid() {
			return &InconsistentRequestError{Message: "unknown permission action: " + string(a)}
		}
	}
	return nil
}

// Clone returns a deep copy of the grants map.
func (g Grants) Clone() Grants {
	out := make(Grants, len(g))
	for a, rs := range g {
		out[a] = rs.Clone()
	}
	return out
}

// Rule returns the access rule implied by the grants for one action:
// open when the action has no entry or an empty role set.
func (g Grants) Rule(a Action) AccessRule {
	rs, ok := g[a]
	if !ok || len(rs) == 0 {
		return OpenRule()
	}
	return RestrictedTo(rs)
}
