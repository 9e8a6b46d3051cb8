// Package security provides the permission agent: the policy engine that
// decides whether a principal's effective roles permit an action on a
// protected container, and that mutates the permission rows governing it.
//
// Permission rows are stored one per (container, action, role) grant,
// and the absence of any row for an action is meaningful: "public" for
// access actions, "inherit from the parent container" for library
// actions.
package security

import "fmt"

// Action names a permission right checked against a container's
// permission rows.
type Action string

const (
	// DatasetManagePermissions gates who may alter a dataset's
	// permission rows.
	DatasetManagePermissions Action = "manage permissions"
	// DatasetAccess gates who may read a dataset's contents. No rows
	// means the dataset is public.
	DatasetAccess Action = "access"
	// LibraryAccess gates visibility of a library. Settable only at the
	// Library level and explicitly non-inheriting.
	LibraryAccess Action = "access library"
	// LibraryAdd gates adding items to a library or folder.
	LibraryAdd Action = "add library item"
	// LibraryModify gates modifying library items.
	LibraryModify Action = "modify library item"
	// LibraryManage gates altering library item permission rows.
	LibraryManage Action = "manage library permissions"
)

// actionRegistry is the immutable process-wide table of permitted actions.
var actionRegistry = map[Action]string{
	DatasetManagePermissions: "Users having associated role can manage the roles associated with permissions on this dataset",
	DatasetAccess:            "Users having associated role can import this dataset into their history for analysis",
	LibraryAccess:            "Restrict access to this library to only users having associated role",
	LibraryAdd:               "Users having associated role can add library datasets to this library item",
	LibraryModify:            "Users having associated role can modify this library item",
	LibraryManage:            "Users having associated role can manage roles associated with permissions on this library item",
}

// IsValid checks if the action is registered.
func (a Action) IsValid() bool {
	_, ok := actionRegistry[a]
	return ok
}

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Description returns the human-readable description of the action.
func (a Action) Description() string {
	return actionRegistry[a]
}

// IsDatasetAction returns true for actions that apply to datasets.
func (a Action) IsDatasetAction() bool {
	return a == DatasetAccess || a == DatasetManagePermissions
}

// IsLibraryAction returns true for actions that apply to library items.
func (a Action) IsLibraryAction() bool {
	switch a {
	case LibraryAccess, LibraryAdd, LibraryModify, LibraryManage:
		return true
	}
	return false
}

// ParseAction validates an action name coming from an external boundary.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", fmt.Errorf("unknown permission action %q", s)
	}
	return a, nil
}

// DatasetActions returns the actions applicable to datasets.
func DatasetActions() []Action {
	return []Action{DatasetAccess, DatasetManagePermissions}
}

// LibraryActions returns the actions applicable to library items.
func LibraryActions() []Action {
	return []Action{LibraryAccess, LibraryAdd, LibraryModify, LibraryManage}
}
