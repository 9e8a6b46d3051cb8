package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/pkg/apierror"
	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/logger"
)

// RoleHandler handles role management and associations.
type RoleHandler struct {
	roles *app.RoleService
	log   *logger.Logger
}

// NewRoleHandler creates a role handler.
func NewRoleHandler(roles *app.RoleService, log *logger.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, log: log}
}

// RoleResponse represents a role in API responses.
type RoleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Deleted     bool      `json:"deleted,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRoleRequest represents the request to create a role.
type CreateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// UpdateRoleRequest represents the request to update a role.
type UpdateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func toRoleResponse(r *role.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID().String(),
		Name:        r.Name(),
		Description: r.Description(),
		Type:        r.RoleType().String(),
		Deleted:     r.IsDeleted(),
		CreatedAt:   r.CreatedAt(),
		UpdatedAt:   r.UpdatedAt(),
	}
}

func toRoleResponses(roles []*role.Role) []RoleResponse {
	resp := make([]RoleResponse, len(roles))
	for i, r := range roles {
		resp[i] = toRoleResponse(r)
	}
	return resp
}

// CreateRole handles POST /api/v1/admin/roles
func (h *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	roleType := role.Type(req.Type)
	if req.Type == "" {
		roleType = role.TypeAdmin
	}

	created, err := h.roles.Create(r.Context(), req.Name, req.Description, roleType)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoleResponse(created))
}

// GetRole handles GET /api/v1/roles/{roleId}
func (h *RoleHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "roleId"), "role id")
	if !ok {
		return
	}

	got, err := h.roles.Get(r.Context(), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(got))
}

// ListRoles handles GET /api/v1/roles
func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	filter := role.DefaultListFilter()
	filter.Search = r.URL.Query().Get("search")
	if t := r.URL.Query().Get("type"); t != "" {
		rt := role.Type(t)
		if !rt.IsValid() {
			apierror.BadRequest("Unknown role type: " + t).WriteJSON(w)
			return
		}
		filter.Types = []role.Type{rt}
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		filter.Offset = o
	}

	roles, err := h.roles.List(r.Context(), filter)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponses(roles))
}

// UpdateRole handles PUT /api/v1/admin/roles/{roleId}
func (h *RoleHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "roleId"), "role id")
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.roles.Update(r.Context(), id, req.Name, req.Description)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponse(updated))
}

// DeleteRole handles DELETE /api/v1/admin/roles/{roleId}
func (h *RoleHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "roleId"), "role id")
	if !ok {
		return
	}

	if err := h.roles.Delete(r.Context(), id); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssociateUser handles PUT /api/v1/admin/roles/{roleId}/users/{userId}
func (h *RoleHandler) AssociateUser(w http.ResponseWriter, r *http.Request) {
	roleID, ok := parseID(w, chi.URLParam(r, "roleId"), "role id")
	if !ok {
		return
	}
	userID, ok := parseID(w, chi.URLParam(r, "userId"), "user id")
	if !ok {
		return
	}

	if err := h.roles.AssociateUser(r.Context(), userID, roleID); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DissociateUser handles DELETE /api/v1/admin/roles/{roleId}/users/{userId}
func (h *RoleHandler) DissociateUser(w http.ResponseWriter, r *http.Request) {
	roleID, ok := parseID(w, chi.URLParam(r, "roleId"), "role id")
	if !ok {
		return
	}
	userID, ok := parseID(w, chi.URLParam(r, "userId"), "user id")
	if !ok {
		return
	}

	if err := h.roles.DissociateUser(r.Context(), userID, roleID); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserRoles handles GET /api/v1/admin/users/{userId}/roles
func (h *RoleHandler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(w, chi.URLParam(r, "userId"), "user id")
	if !ok {
		return
	}

	roles, err := h.roles.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponses(roles))
}

// AssociateGroup handles PUT /api/v1/admin/roles/{roleId}/groups/{groupId}
func (h *RoleHandler) AssociateGroup(w http.ResponseWriter, r *http.Request) {
	roleID, ok := parseID(w, chi.URLParam(r, "roleId"), "role id")
	if !ok {
		return
	}
	groupID, ok := parseID(w, chi.URLParam(r, "groupId"), "group id")
	if !ok {
		return
	}

	if err := h.roles.AssociateGroup(r.Context(), groupID, roleID); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DissociateGroup handles DELETE /api/v1/admin/roles/{roleId}/groups/{groupId}
func (h *RoleHandler) DissociateGroup(w http.ResponseWriter, r *http.Request) {
	roleID, ok := parseID(w, chi.URLParam(r, "roleId"), "role id")
	if !ok {
		return
	}
	groupID, ok := parseID(w, chi.URLParam(r, "groupId"), "group id")
	if !ok {
		return
	}

	if err := h.roles.DissociateGroup(r.Context(), groupID, roleID); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGroupRoles handles GET /api/v1/admin/groups/{groupId}/roles
func (h *RoleHandler) ListGroupRoles(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseID(w, chi.URLParam(r, "groupId"), "group id")
	if !ok {
		return
	}

	roles, err := h.roles.ListByGroup(r.Context(), groupID)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponses(roles))
}
