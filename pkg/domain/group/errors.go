package group

import "errors"

// Group domain errors.
var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrGroupNameExists = errors.New("group name already exists")
	ErrMemberExists    = errors.New("user is already a member of the group")
	ErrMemberNotFound  = errors.New("user is not a member of the group")
)
