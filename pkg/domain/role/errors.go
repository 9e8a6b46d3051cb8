package role

import "errors"

// Role domain errors.
var (
	ErrRoleNotFound        = errors.New("role not found")
	ErrRoleNameExists      = errors.New("role name already exists")
	ErrPrivateRoleMissing  = errors.New("user has no private role")
	ErrAssociationExists   = errors.New("role association already exists")
	ErrAssociationNotFound = errors.New("role association not found")
)
