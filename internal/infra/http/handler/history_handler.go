package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/infra/http/middleware"
	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/logger"
)

// HistoryHandler handles histories, their dataset instances and dataset
// lifecycle transitions.
type HistoryHandler struct {
	histories *app.HistoryService
	perms     *app.PermissionService
	log       *logger.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(histories *app.HistoryService, perms *app.PermissionService, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{histories: histories, perms: perms, log: log}
}

// HistoryResponse represents a history in API responses.
type HistoryResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Deleted   bool      `json:"deleted,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HDAResponse represents a history dataset instance.
type HDAResponse struct {
	ID        string    `json:"id"`
	HistoryID string    `json:"history_id"`
	DatasetID string    `json:"dataset_id"`
	HID       int       `json:"hid"`
	Name      string    `json:"name"`
	Extension string    `json:"extension,omitempty"`
	State     string    `json:"state"`
	Visible   bool      `json:"visible"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateHistoryRequest represents the request to create or rename a
// history.
type CreateHistoryRequest struct {
	Name string `json:"name"`
}

// UploadDatasetRequest represents the request to upload a dataset into a
// history.
type UploadDatasetRequest struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
}

// UpdateDatasetStateRequest represents a dataset state transition.
type UpdateDatasetStateRequest struct {
	State string `json:"state"`
}

func toHistoryResponse(h *dataset.History) HistoryResponse {
	return HistoryResponse{
		ID:        h.ID().String(),
		UserID:    h.UserID().String(),
		Name:      h.Name(),
		Deleted:   h.IsDeleted(),
		CreatedAt: h.CreatedAt(),
		UpdatedAt: h.UpdatedAt(),
	}
}

func toHDAResponse(a *dataset.HistoryDatasetAssociation) HDAResponse {
	return HDAResponse{
		ID:        a.ID().String(),
		HistoryID: a.HistoryID().String(),
		DatasetID: a.DatasetID().String(),
		HID:       a.HID(),
		Name:      a.Name(),
		Extension: a.Extension(),
		State:     a.State().String(),
		Visible:   a.IsVisible(),
		CreatedAt: a.CreatedAt(),
	}
}

// CreateHistory handles POST /api/v1/histories
func (h *HistoryHandler) CreateHistory(w http.ResponseWriter, r *http.Request) {
	var req CreateHistoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.histories.CreateHistory(r.Context(), middleware.GetUser(r.Context()), req.Name)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHistoryResponse(created))
}

// GetHistory handles GET /api/v1/histories/{historyId}
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "historyId"), "history id")
	if !ok {
		return
	}

	got, err := h.histories.GetHistory(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(got))
}

// ListHistories handles GET /api/v1/histories
func (h *HistoryHandler) ListHistories(w http.ResponseWriter, r *http.Request) {
	histories, err := h.histories.ListHistories(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := make([]HistoryResponse, len(histories))
	for i, hist := range histories {
		resp[i] = toHistoryResponse(hist)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RenameHistory handles PUT /api/v1/histories/{historyId}
func (h *HistoryHandler) RenameHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "historyId"), "history id")
	if !ok {
		return
	}

	var req CreateHistoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	renamed, err := h.histories.RenameHistory(r.Context(), middleware.GetUser(r.Context()), id, req.Name)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(renamed))
}

// DeleteHistory handles DELETE /api/v1/histories/{historyId}
func (h *HistoryHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "historyId"), "history id")
	if !ok {
		return
	}

	if err := h.histories.DeleteHistory(r.Context(), middleware.GetUser(r.Context()), id); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetHistoryDefaultPermissions handles PUT /api/v1/histories/{historyId}/permissions/defaults
func (h *HistoryHandler) SetHistoryDefaultPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "historyId"), "history id")
	if !ok {
		return
	}

	// Ownership gate; only the owner may change a history's defaults.
	if _, err := h.histories.GetHistory(r.Context(), middleware.GetUser(r.Context()), id); err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	var req GrantsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	grants, ok := req.toGrants(w)
	if !ok {
		return
	}

	if err := h.perms.SetHistoryDefaultPermissions(r.Context(), id, grants); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDataset handles POST /api/v1/histories/{historyId}/datasets
func (h *HistoryHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "historyId"), "history id")
	if !ok {
		return
	}

	var req UploadDatasetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hda, err := h.histories.UploadDataset(r.Context(), middleware.GetUser(r.Context()), id, req.Name, req.Extension)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHDAResponse(hda))
}

// ListHDAs handles GET /api/v1/histories/{historyId}/datasets
func (h *HistoryHandler) ListHDAs(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "historyId"), "history id")
	if !ok {
		return
	}

	hdas, err := h.histories.ListHDAs(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := make([]HDAResponse, len(hdas))
	for i, hda := range hdas {
		resp[i] = toHDAResponse(hda)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetHDA handles GET /api/v1/hdas/{hdaId}
func (h *HistoryHandler) GetHDA(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "hdaId"), "hda id")
	if !ok {
		return
	}

	hda, err := h.histories.GetHDA(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHDAResponse(hda))
}

// UpdateDatasetState handles PUT /api/v1/admin/datasets/{datasetId}/state.
// Tooling surface for ingest pipelines reporting dataset outcomes.
func (h *HistoryHandler) UpdateDatasetState(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "dataset id")
	if !ok {
		return
	}

	var req UpdateDatasetStateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.histories.UpdateDatasetState(r.Context(), id, dataset.State(req.State)); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDatasetPermissions handles GET /api/v1/datasets/{datasetId}/permissions
func (h *HistoryHandler) GetDatasetPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "dataset id")
	if !ok {
		return
	}

	grants, err := h.perms.GetDatasetPermissions(r.Context(), middleware.GetUser(r.Context()), id, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantsResponse(grants))
}

// SetDatasetPermissions handles PUT /api/v1/datasets/{datasetId}/permissions
func (h *HistoryHandler) SetDatasetPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "dataset id")
	if !ok {
		return
	}

	var req GrantsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	grants, ok := req.toGrants(w)
	if !ok {
		return
	}

	if err := h.perms.SetDatasetPermissions(r.Context(), middleware.GetUser(r.Context()), id, grants, middleware.IsAdmin(r.Context())); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MakeDatasetPublic handles DELETE /api/v1/datasets/{datasetId}/permissions/access
func (h *HistoryHandler) MakeDatasetPublic(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "dataset id")
	if !ok {
		return
	}

	if err := h.perms.MakeDatasetPublic(r.Context(), middleware.GetUser(r.Context()), id, middleware.IsAdmin(r.Context())); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
