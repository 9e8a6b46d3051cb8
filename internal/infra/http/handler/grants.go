package handler

import (
	"net/http"

	"github.com/bioarchive/api/pkg/apierror"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
)

// GrantsRequest is the wire form of permission grants: action name to
// role IDs. Actions absent from the map are left untouched.
type GrantsRequest map[string][]string

func (req GrantsRequest) toGrants(w http.ResponseWriter) (security.Grants, bool) {
	grants := make(security.Grants, len(req))
	for name, roleIDs := range req {
		action, err := security.ParseAction(name)
		if err != nil {
			apierror.BadRequest(err.Error()).WriteJSON(w)
			return nil, false
		}
		set := security.NewRoleSet()
		for _, raw := range roleIDs {
			id, err := shared.IDFromString(raw)
			if err != nil {
				apierror.BadRequest("Invalid role id in grants: " + raw).WriteJSON(w)
				return nil, false
			}
			set.Add(id)
		}
		grants[action] = set
	}
	return grants, true
}

// GrantsResponse mirrors GrantsRequest on the way out.
type GrantsResponse map[string][]string

func toGrantsResponse(grants security.Grants) GrantsResponse {
	resp := make(GrantsResponse, len(grants))
	for action, set := range grants {
		ids := make([]string, 0, set.Len())
		for _, id := range set.IDs() {
			ids = append(ids, id.String())
		}
		resp[action.String()] = ids
	}
	return resp
}
