package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/infra/http/middleware"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/logger"
)

// UserHandler handles account administration and default permissions.
type UserHandler struct {
	users *app.UserService
	perms *app.PermissionService
	log   *logger.Logger
}

// NewUserHandler creates a user handler.
func NewUserHandler(users *app.UserService, perms *app.PermissionService, log *logger.Logger) *UserHandler {
	return &UserHandler{users: users, perms: perms, log: log}
}

// ListUsers handles GET /api/v1/admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := user.DefaultListFilter()
	filter.Search = r.URL.Query().Get("search")
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		filter.Offset = o
	}
	if deleted, err := strconv.ParseBool(r.URL.Query().Get("include_deleted")); err == nil {
		filter.IncludeDeleted = deleted
	}

	users, err := h.users.List(r.Context(), filter)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUser handles GET /api/v1/admin/users/{userId}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "userId"), "user id")
	if !ok {
		return
	}

	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// DeactivateUser handles POST /api/v1/admin/users/{userId}/deactivate
func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "userId"), "user id")
	if !ok {
		return
	}

	if err := h.users.Deactivate(r.Context(), id); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser handles DELETE /api/v1/admin/users/{userId}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "userId"), "user id")
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefaultPermissions handles PUT /api/v1/me/permissions/defaults
func (h *UserHandler) SetDefaultPermissions(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUser(r.Context())

	var req GrantsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	grants, ok := req.toGrants(w)
	if !ok {
		return
	}

	if err := h.perms.SetUserDefaultPermissions(r.Context(), u.ID(), grants); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
