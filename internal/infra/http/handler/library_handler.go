package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/infra/http/middleware"
	"github.com/bioarchive/api/pkg/apierror"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/logger"
)

// LibraryHandler handles libraries, folders, dataset slots, versions and
// metadata templates.
type LibraryHandler struct {
	libraries *app.LibraryService
	perms     *app.PermissionService
	log       *logger.Logger
}

// NewLibraryHandler creates a library handler.
func NewLibraryHandler(libraries *app.LibraryService, perms *app.PermissionService, log *logger.Logger) *LibraryHandler {
	return &LibraryHandler{libraries: libraries, perms: perms, log: log}
}

// LibraryResponse represents a library in API responses.
type LibraryResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Synopsis     string    `json:"synopsis,omitempty"`
	RootFolderID string    `json:"root_folder_id"`
	Deleted      bool      `json:"deleted,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FolderResponse represents a folder in API responses.
type FolderResponse struct {
	ID          string    `json:"id"`
	LibraryID   string    `json:"library_id"`
	ParentID    string    `json:"parent_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ItemCount   int       `json:"item_count"`
	Deleted     bool      `json:"deleted,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LDDAResponse represents one version of a library dataset.
type LDDAResponse struct {
	ID               string    `json:"id"`
	LibraryDatasetID string    `json:"library_dataset_id"`
	DatasetID        string    `json:"dataset_id"`
	ParentID         string    `json:"parent_id,omitempty"`
	Name             string    `json:"name"`
	Info             string    `json:"info,omitempty"`
	Extension        string    `json:"extension,omitempty"`
	Message          string    `json:"message,omitempty"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
}

// LibraryDatasetResponse represents a dataset slot with its current
// version.
type LibraryDatasetResponse struct {
	ID       string        `json:"id"`
	FolderID string        `json:"folder_id"`
	Name     string        `json:"name"`
	Info     string        `json:"info,omitempty"`
	Deleted  bool          `json:"deleted,omitempty"`
	Current  *LDDAResponse `json:"current_version,omitempty"`
}

// FolderContentsResponse is one folder's listing.
type FolderContentsResponse struct {
	Folders  []FolderResponse         `json:"folders"`
	Datasets []LibraryDatasetResponse `json:"datasets"`
}

// TemplateResponse represents a metadata template.
type TemplateResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Fields      []library.TemplateField `json:"fields"`
	Inherited   bool                    `json:"inherited,omitempty"`
}

// CreateLibraryRequest represents the request to create or update a
// library.
type CreateLibraryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Synopsis    string `json:"synopsis"`
}

// CreateFolderRequest represents the request to create or update a
// folder.
type CreateFolderRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AddDatasetRequest represents the request to add a dataset or upload a
// new version.
type AddDatasetRequest struct {
	Name            string   `json:"name"`
	Info            string   `json:"info"`
	Extension       string   `json:"extension"`
	Message         string   `json:"message"`
	SelectedRoleIDs []string `json:"selected_role_ids"`
}

// CreateTemplateRequest represents the request to create a template.
type CreateTemplateRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Fields      []library.TemplateField `json:"fields"`
}

// AttachTemplateRequest represents the request to attach a template to a
// library item.
type AttachTemplateRequest struct {
	TemplateID  string `json:"template_id"`
	Inheritable bool   `json:"inheritable"`
}

func toLibraryResponse(l *library.Library) LibraryResponse {
	return LibraryResponse{
		ID:           l.ID().String(),
		Name:         l.Name(),
		Description:  l.Description(),
		Synopsis:     l.Synopsis(),
		RootFolderID: l.RootFolderID().String(),
		Deleted:      l.IsDeleted(),
		CreatedAt:    l.CreatedAt(),
		UpdatedAt:    l.UpdatedAt(),
	}
}

func toFolderResponse(f *library.Folder) FolderResponse {
	resp := FolderResponse{
		ID:          f.ID().String(),
		LibraryID:   f.LibraryID().String(),
		Name:        f.Name(),
		Description: f.Description(),
		ItemCount:   f.ItemCount(),
		Deleted:     f.IsDeleted(),
		CreatedAt:   f.CreatedAt(),
		UpdatedAt:   f.UpdatedAt(),
	}
	if f.ParentID() != nil {
		resp.ParentID = f.ParentID().String()
	}
	return resp
}

func toLDDAResponse(l *library.LibraryDatasetDatasetAssociation) LDDAResponse {
	resp := LDDAResponse{
		ID:               l.ID().String(),
		LibraryDatasetID: l.LibraryDatasetID().String(),
		DatasetID:        l.DatasetID().String(),
		Name:             l.Name(),
		Info:             l.Info(),
		Extension:        l.Extension(),
		Message:          l.Message(),
		State:            l.State().String(),
		CreatedAt:        l.CreatedAt(),
	}
	if l.ParentID() != nil {
		resp.ParentID = l.ParentID().String()
	}
	return resp
}

func toLibraryDatasetResponse(v *app.LibraryDatasetView) LibraryDatasetResponse {
	resp := LibraryDatasetResponse{
		ID:       v.Slot.ID().String(),
		FolderID: v.Slot.FolderID().String(),
		Name:     v.Slot.DisplayName(v.Current),
		Info:     v.Slot.DisplayInfo(v.Current),
		Deleted:  v.Slot.IsDeleted(),
	}
	if v.Current != nil {
		current := toLDDAResponse(v.Current)
		resp.Current = &current
	}
	return resp
}

func parseRoleIDs(w http.ResponseWriter, raw []string) ([]shared.ID, bool) {
	ids := make([]shared.ID, 0, len(raw))
	for _, s := range raw {
		id, ok := parseID(w, s, "role id")
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// CreateLibrary handles POST /api/v1/admin/libraries
func (h *LibraryHandler) CreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req CreateLibraryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	l, err := h.libraries.CreateLibrary(r.Context(), req.Name, req.Description, req.Synopsis)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLibraryResponse(l))
}

// GetLibrary handles GET /api/v1/libraries/{libraryId}
func (h *LibraryHandler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "libraryId"), "library id")
	if !ok {
		return
	}

	l, err := h.libraries.GetLibrary(r.Context(), middleware.GetUser(r.Context()), id, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLibraryResponse(l))
}

// ListLibraries handles GET /api/v1/libraries
func (h *LibraryHandler) ListLibraries(w http.ResponseWriter, r *http.Request) {
	filter := library.DefaultListFilter()
	filter.Search = r.URL.Query().Get("search")
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		filter.Offset = o
	}

	libs, err := h.libraries.ListLibraries(r.Context(), middleware.GetUser(r.Context()), filter, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := make([]LibraryResponse, len(libs))
	for i, l := range libs {
		resp[i] = toLibraryResponse(l)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateLibrary handles PUT /api/v1/libraries/{libraryId}
func (h *LibraryHandler) UpdateLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "libraryId"), "library id")
	if !ok {
		return
	}

	var req CreateLibraryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	l, err := h.libraries.UpdateLibrary(r.Context(), middleware.GetUser(r.Context()), id,
		req.Name, req.Description, req.Synopsis, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLibraryResponse(l))
}

// DeleteLibrary handles DELETE /api/v1/libraries/{libraryId}
func (h *LibraryHandler) DeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "libraryId"), "library id")
	if !ok {
		return
	}

	if err := h.libraries.DeleteLibrary(r.Context(), middleware.GetUser(r.Context()), id, middleware.IsAdmin(r.Context())); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LegitimateRoles handles GET /api/v1/libraries/{libraryId}/legitimate-roles
func (h *LibraryHandler) LegitimateRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "libraryId"), "library id")
	if !ok {
		return
	}

	roles, err := h.perms.LegitimateRoles(r.Context(), id, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponses(roles))
}

// CreateFolder handles POST /api/v1/folders/{folderId}/folders
func (h *LibraryHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	parentID, ok := parseID(w, chi.URLParam(r, "folderId"), "folder id")
	if !ok {
		return
	}

	var req CreateFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, err := h.libraries.CreateFolder(r.Context(), middleware.GetUser(r.Context()), parentID,
		req.Name, req.Description, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFolderResponse(f))
}

// GetFolder handles GET /api/v1/folders/{folderId}
func (h *LibraryHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "folderId"), "folder id")
	if !ok {
		return
	}

	f, err := h.libraries.GetFolder(r.Context(), middleware.GetUser(r.Context()), id, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolderResponse(f))
}

// UpdateFolder handles PUT /api/v1/folders/{folderId}
func (h *LibraryHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "folderId"), "folder id")
	if !ok {
		return
	}

	var req CreateFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, err := h.libraries.UpdateFolder(r.Context(), middleware.GetUser(r.Context()), id,
		req.Name, req.Description, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolderResponse(f))
}

// DeleteFolder handles DELETE /api/v1/folders/{folderId}
func (h *LibraryHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "folderId"), "folder id")
	if !ok {
		return
	}

	if err := h.libraries.DeleteFolder(r.Context(), middleware.GetUser(r.Context()), id, middleware.IsAdmin(r.Context())); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFolderContents handles GET /api/v1/folders/{folderId}/contents
func (h *LibraryHandler) ListFolderContents(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "folderId"), "folder id")
	if !ok {
		return
	}

	contents, err := h.libraries.ListFolderContents(r.Context(), middleware.GetUser(r.Context()), id, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := FolderContentsResponse{
		Folders:  make([]FolderResponse, len(contents.Folders)),
		Datasets: make([]LibraryDatasetResponse, len(contents.Datasets)),
	}
	for i, f := range contents.Folders {
		resp.Folders[i] = toFolderResponse(f)
	}
	for i, d := range contents.Datasets {
		resp.Datasets[i] = toLibraryDatasetResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddDataset handles POST /api/v1/folders/{folderId}/datasets
func (h *LibraryHandler) AddDataset(w http.ResponseWriter, r *http.Request) {
	folderID, ok := parseID(w, chi.URLParam(r, "folderId"), "folder id")
	if !ok {
		return
	}

	var req AddDatasetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roleIDs, ok := parseRoleIDs(w, req.SelectedRoleIDs)
	if !ok {
		return
	}

	view, err := h.libraries.AddDataset(r.Context(), middleware.GetUser(r.Context()), folderID, app.AddDatasetParams{
		Name:            req.Name,
		Info:            req.Info,
		Extension:       req.Extension,
		Message:         req.Message,
		SelectedRoleIDs: roleIDs,
	}, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLibraryDatasetResponse(view))
}

// UploadVersion handles POST /api/v1/library-datasets/{datasetId}/versions
func (h *LibraryHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "library dataset id")
	if !ok {
		return
	}

	var req AddDatasetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ldda, err := h.libraries.UploadNewVersion(r.Context(), middleware.GetUser(r.Context()), id, app.AddDatasetParams{
		Name:      req.Name,
		Info:      req.Info,
		Extension: req.Extension,
		Message:   req.Message,
	}, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLDDAResponse(ldda))
}

// UpdateMetadataRequest represents a metadata revision for the current
// version of a library dataset.
type UpdateMetadataRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// UpdateMetadata handles PUT /api/v1/library-datasets/{datasetId}/metadata
func (h *LibraryHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "library dataset id")
	if !ok {
		return
	}

	var req UpdateMetadataRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ldda, err := h.libraries.UpdateMetadata(r.Context(), middleware.GetUser(r.Context()), id, req.Metadata, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLDDAResponse(ldda))
}

// ListVersions handles GET /api/v1/library-datasets/{datasetId}/versions
func (h *LibraryHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "library dataset id")
	if !ok {
		return
	}

	versions, err := h.libraries.ListVersions(r.Context(), middleware.GetUser(r.Context()), id, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := make([]LDDAResponse, len(versions))
	for i, v := range versions {
		resp[i] = toLDDAResponse(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RevertVersion handles PUT /api/v1/library-datasets/{datasetId}/versions/{versionId}
func (h *LibraryHandler) RevertVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "library dataset id")
	if !ok {
		return
	}
	versionID, ok := parseID(w, chi.URLParam(r, "versionId"), "version id")
	if !ok {
		return
	}

	if err := h.libraries.RevertToVersion(r.Context(), middleware.GetUser(r.Context()), id, versionID, middleware.IsAdmin(r.Context())); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteLibraryDataset handles DELETE /api/v1/library-datasets/{datasetId}
func (h *LibraryHandler) DeleteLibraryDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "library dataset id")
	if !ok {
		return
	}

	if err := h.libraries.DeleteLibraryDataset(r.Context(), middleware.GetUser(r.Context()), id, middleware.IsAdmin(r.Context())); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetLibraryDatasetPermissions handles PUT /api/v1/library-datasets/{datasetId}/permissions
func (h *LibraryHandler) SetLibraryDatasetPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "datasetId"), "library dataset id")
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

	if err := h.perms.SetLibraryDatasetPermissions(r.Context(), middleware.GetUser(r.Context()), id, grants, middleware.IsAdmin(r.Context())); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func itemRefFromRequest(w http.ResponseWriter, r *http.Request) (security.ItemRef, bool) {
	id, ok := parseID(w, chi.URLParam(r, "itemId"), "item id")
	if !ok {
		return security.ItemRef{}, false
	}
	switch chi.URLParam(r, "itemKind") {
	case "library":
		return security.LibraryRef(id), true
	case "folder":
		return security.FolderRef(id), true
	case "dataset":
		return security.LibraryDatasetRef(id), true
	case "version":
		return security.LDDARef(id), true
	default:
		apierror.BadRequest("Unknown library item kind").WriteJSON(w)
		return security.ItemRef{}, false
	}
}

// GetItemPermissions handles GET /api/v1/library-items/{itemKind}/{itemId}/permissions
func (h *LibraryHandler) GetItemPermissions(w http.ResponseWriter, r *http.Request) {
	item, ok := itemRefFromRequest(w, r)
	if !ok {
		return
	}

	grants, err := h.perms.GetLibraryItemPermissions(r.Context(), middleware.GetUser(r.Context()), item, middleware.IsAdmin(r.Context()))
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantsResponse(grants))
}

// SetItemPermissions handles PUT /api/v1/library-items/{itemKind}/{itemId}/permissions
func (h *LibraryHandler) SetItemPermissions(w http.ResponseWriter, r *http.Request) {
	item, ok := itemRefFromRequest(w, r)
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

	if err := h.perms.SetLibraryItemPermissions(r.Context(), middleware.GetUser(r.Context()), item, grants, middleware.IsAdmin(r.Context())); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func templateItemKind(w http.ResponseWriter, raw string) (library.ItemKind, bool) {
	switch raw {
	case "library":
		return library.ItemKindLibrary, true
	case "folder":
		return library.ItemKindFolder, true
	case "version":
		return library.ItemKindLDDA, true
	default:
		apierror.BadRequest("Unknown template item kind").WriteJSON(w)
		return "", false
	}
}

// CreateTemplate handles POST /api/v1/admin/templates
func (h *LibraryHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.libraries.CreateTemplate(r.Context(), req.Name, req.Description, req.Fields)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, TemplateResponse{
		ID:          t.ID().String(),
		Name:        t.Name(),
		Description: t.Description(),
		Fields:      t.Fields(),
	})
}

// ListTemplates handles GET /api/v1/templates
func (h *LibraryHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.libraries.ListTemplates(r.Context())
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		resp[i] = TemplateResponse{
			ID:          t.ID().String(),
			Name:        t.Name(),
			Description: t.Description(),
			Fields:      t.Fields(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AttachTemplate handles PUT /api/v1/library-items/{itemKind}/{itemId}/template
func (h *LibraryHandler) AttachTemplate(w http.ResponseWriter, r *http.Request) {
	kind, ok := templateItemKind(w, chi.URLParam(r, "itemKind"))
	if !ok {
		return
	}
	itemID, ok := parseID(w, chi.URLParam(r, "itemId"), "item id")
	if !ok {
		return
	}

	var req AttachTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	templateID, ok := parseID(w, req.TemplateID, "template id")
	if !ok {
		return
	}

	if _, err := h.libraries.AttachTemplate(r.Context(), middleware.GetUser(r.Context()),
		kind, itemID, templateID, req.Inheritable, middleware.IsAdmin(r.Context())); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EffectiveTemplate handles GET /api/v1/library-items/{itemKind}/{itemId}/template
func (h *LibraryHandler) EffectiveTemplate(w http.ResponseWriter, r *http.Request) {
	kind, ok := templateItemKind(w, chi.URLParam(r, "itemKind"))
	if !ok {
		return
	}
	itemID, ok := parseID(w, chi.URLParam(r, "itemId"), "item id")
	if !ok {
		return
	}
	restrict, _ := strconv.ParseBool(r.URL.Query().Get("own_only"))

	t, inherited, err := h.libraries.EffectiveTemplate(r.Context(), kind, itemID, restrict)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	if t == nil {
		apierror.NotFound("Template").WriteJSON(w)
		return
	}
	writeJSON(w, http.StatusOK, TemplateResponse{
		ID:          t.ID().String(),
		Name:        t.Name(),
		Description: t.Description(),
		Fields:      t.Fields(),
		Inherited:   inherited,
	})
}
