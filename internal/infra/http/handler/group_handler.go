package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/pkg/domain/group"
	"github.com/bioarchive/api/pkg/logger"
)

// GroupHandler handles group management and memberships.
type GroupHandler struct {
	groups *app.GroupService
	log    *logger.Logger
}

// NewGroupHandler creates a group handler.
func NewGroupHandler(groups *app.GroupService, log *logger.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, log: log}
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Deleted   bool      `json:"deleted,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateGroupRequest represents the request to create a group.
type CreateGroupRequest struct {
	Name string `json:"name"`
}

func toGroupResponse(g *group.Group) GroupResponse {
	return GroupResponse{
		ID:        g.ID().String(),
		Name:      g.Name(),
		Deleted:   g.IsDeleted(),
		CreatedAt: g.CreatedAt(),
		UpdatedAt: g.UpdatedAt(),
	}
}

// CreateGroup handles POST /api/v1/admin/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.groups.Create(r.Context(), req.Name)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupResponse(g))
}

// GetGroup handles GET /api/v1/groups/{groupId}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "groupId"), "group id")
	if !ok {
		return
	}

	g, err := h.groups.Get(r.Context(), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(g))
}

// ListGroups handles GET /api/v1/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	filter := group.DefaultListFilter()
	filter.Search = r.URL.Query().Get("search")
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		filter.Offset = o
	}

	groups, err := h.groups.List(r.Context(), filter)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := make([]GroupResponse, len(groups))
	for i, g := range groups {
		resp[i] = toGroupResponse(g)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RenameGroup handles PUT /api/v1/admin/groups/{groupId}
func (h *GroupHandler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "groupId"), "group id")
	if !ok {
		return
	}

	var req CreateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.groups.Rename(r.Context(), id, req.Name)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(g))
}

// DeleteGroup handles DELETE /api/v1/admin/groups/{groupId}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "groupId"), "group id")
	if !ok {
		return
	}

	if err := h.groups.Delete(r.Context(), id); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMember handles PUT /api/v1/admin/groups/{groupId}/users/{userId}
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseID(w, chi.URLParam(r, "groupId"), "group id")
	if !ok {
		return
	}
	userID, ok := parseID(w, chi.URLParam(r, "userId"), "user id")
	if !ok {
		return
	}

	if err := h.groups.AddMember(r.Context(), groupID, userID); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/v1/admin/groups/{groupId}/users/{userId}
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseID(w, chi.URLParam(r, "groupId"), "group id")
	if !ok {
		return
	}
	userID, ok := parseID(w, chi.URLParam(r, "userId"), "user id")
	if !ok {
		return
	}

	if err := h.groups.RemoveMember(r.Context(), groupID, userID); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers handles GET /api/v1/groups/{groupId}/users
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseID(w, chi.URLParam(r, "groupId"), "group id")
	if !ok {
		return
	}

	ids, err := h.groups.ListMemberIDs(r.Context(), groupID)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := make([]string, len(ids))
	for i, id := range ids {
		resp[i] = id.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_ids": resp, "count": len(resp)})
}
