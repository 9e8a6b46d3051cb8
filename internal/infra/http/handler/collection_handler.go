package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/infra/http/middleware"
	"github.com/bioarchive/api/pkg/apierror"
	"github.com/bioarchive/api/pkg/domain/collection"
	"github.com/bioarchive/api/pkg/logger"
)

// CollectionHandler handles nested dataset collections.
type CollectionHandler struct {
	collections *app.CollectionService
	log         *logger.Logger
}

// NewCollectionHandler creates a collection handler.
func NewCollectionHandler(collections *app.CollectionService, log *logger.Logger) *CollectionHandler {
	return &CollectionHandler{collections: collections, log: log}
}

// CollectionResponse represents a collection record.
type CollectionResponse struct {
	ID               string    `json:"id"`
	Type             string    `json:"collection_type"`
	PopulatedState   string    `json:"populated_state"`
	PopulatedMessage string    `json:"populated_message,omitempty"`
	ElementCount     *int      `json:"element_count,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ElementResponse represents one element of a collection tree.
type ElementResponse struct {
	Identifier string        `json:"identifier"`
	Index      int           `json:"index"`
	HDAID      string        `json:"hda_id,omitempty"`
	LDDAID     string        `json:"ldda_id,omitempty"`
	State      string        `json:"state,omitempty"`
	Extension  string        `json:"extension,omitempty"`
	Child      *TreeResponse `json:"collection,omitempty"`
}

// TreeResponse represents a fully loaded collection tree.
type TreeResponse struct {
	CollectionResponse
	Elements []ElementResponse `json:"elements"`
}

// PathElementResponse represents a leaf with its identifier path.
type PathElementResponse struct {
	Path       string `json:"path"`
	Identifier string `json:"identifier"`
	State      string `json:"state,omitempty"`
}

// ElementInputRequest mirrors app.ElementInput on the wire.
type ElementInputRequest struct {
	Identifier string                `json:"identifier"`
	HDAID      string                `json:"hda_id,omitempty"`
	LDDAID     string                `json:"ldda_id,omitempty"`
	Elements   []ElementInputRequest `json:"elements,omitempty"`
}

// CreateCollectionRequest represents the request to create a collection.
type CreateCollectionRequest struct {
	Type     string                `json:"collection_type"`
	Elements []ElementInputRequest `json:"elements"`
}

// CreatePairRequest represents the request to pair two instances.
type CreatePairRequest struct {
	ForwardHDAID string `json:"forward_hda_id"`
	ReverseHDAID string `json:"reverse_hda_id"`
}

func toCollectionResponse(c *collection.DatasetCollection) CollectionResponse {
	return CollectionResponse{
		ID:               c.ID().String(),
		Type:             c.CollectionType().String(),
		PopulatedState:   c.PopulatedState().String(),
		PopulatedMessage: c.PopulatedMessage(),
		ElementCount:     c.ElementCount(),
		CreatedAt:        c.CreatedAt(),
		UpdatedAt:        c.UpdatedAt(),
	}
}

func toTreeResponse(t *collection.Tree) TreeResponse {
	resp := TreeResponse{
		CollectionResponse: toCollectionResponse(t.Collection),
		Elements:           make([]ElementResponse, len(t.Elements)),
	}
	for i, n := range t.Elements {
		resp.Elements[i] = toElementResponse(n)
	}
	return resp
}

func toElementResponse(n *collection.Node) ElementResponse {
	resp := ElementResponse{
		Identifier: n.Element.Identifier(),
		Index:      n.Element.Index(),
	}
	if n.Element.HDAID() != nil {
		resp.HDAID = n.Element.HDAID().String()
	}
	if n.Element.LDDAID() != nil {
		resp.LDDAID = n.Element.LDDAID().String()
	}
	if n.Leaf != nil {
		resp.State = n.Leaf.DatasetState().String()
		resp.Extension = n.Leaf.Extension()
	}
	if n.Child != nil {
		child := toTreeResponse(n.Child)
		resp.Child = &child
	}
	return resp
}

func (req ElementInputRequest) toInput(w http.ResponseWriter) (app.ElementInput, bool) {
	in := app.ElementInput{Identifier: req.Identifier}
	if req.HDAID != "" {
		id, ok := parseID(w, req.HDAID, "hda id")
		if !ok {
			return app.ElementInput{}, false
		}
		in.HDAID = &id
	}
	if req.LDDAID != "" {
		id, ok := parseID(w, req.LDDAID, "ldda id")
		if !ok {
			return app.ElementInput{}, false
		}
		in.LDDAID = &id
	}
	for _, child := range req.Elements {
		childIn, ok := child.toInput(w)
		if !ok {
			return app.ElementInput{}, false
		}
		in.Elements = append(in.Elements, childIn)
	}
	return in, true
}

// CreateCollection handles POST /api/v1/collections
func (h *CollectionHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	params := app.CreateCollectionParams{Type: req.Type}
	for _, el := range req.Elements {
		in, ok := el.toInput(w)
		if !ok {
			return
		}
		params.Elements = append(params.Elements, in)
	}

	tree, err := h.collections.Create(r.Context(), middleware.GetUser(r.Context()), params)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTreeResponse(tree))
}

// CreatePair handles POST /api/v1/collections/pairs
func (h *CollectionHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	var req CreatePairRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	forwardID, ok := parseID(w, req.ForwardHDAID, "forward hda id")
	if !ok {
		return
	}
	reverseID, ok := parseID(w, req.ReverseHDAID, "reverse hda id")
	if !ok {
		return
	}

	tree, err := h.collections.CreatePair(r.Context(), middleware.GetUser(r.Context()), forwardID, reverseID)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTreeResponse(tree))
}

// GetCollection handles GET /api/v1/collections/{collectionId}
func (h *CollectionHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "collectionId"), "collection id")
	if !ok {
		return
	}

	c, err := h.collections.Get(r.Context(), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionResponse(c))
}

// GetTree handles GET /api/v1/collections/{collectionId}/tree
func (h *CollectionHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "collectionId"), "collection id")
	if !ok {
		return
	}

	tree, err := h.collections.GetTree(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTreeResponse(tree))
}

// GetElement handles GET /api/v1/collections/{collectionId}/elements/{path}.
// The path addresses nested elements with slash-separated identifiers or
// numeric indices.
func (h *CollectionHandler) GetElement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "collectionId"), "collection id")
	if !ok {
		return
	}
	rawPath := chi.URLParam(r, "*")
	if rawPath == "" {
		apierror.BadRequest("Element path is required").WriteJSON(w)
		return
	}
	path := strings.Split(strings.Trim(rawPath, "/"), "/")

	node, err := h.collections.ExtractElement(r.Context(), middleware.GetUser(r.Context()), id, path...)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toElementResponse(node))
}

// ListFailedElements handles GET /api/v1/collections/{collectionId}/failed
func (h *CollectionHandler) ListFailedElements(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "collectionId"), "collection id")
	if !ok {
		return
	}

	failed, err := h.collections.ListFailedElements(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	resp := make([]PathElementResponse, len(failed))
	for i, pe := range failed {
		resp[i] = PathElementResponse{
			Path:       pe.IdentifierPath(),
			Identifier: pe.Node.Element.Identifier(),
			State:      pe.Node.Leaf.DatasetState().String(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSummary handles GET /api/v1/collections/{collectionId}/summary
func (h *CollectionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "collectionId"), "collection id")
	if !ok {
		return
	}

	summary, err := h.collections.Summary(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}

	states := make([]string, len(summary.States))
	for i, s := range summary.States {
		states[i] = s.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"states":      states,
		"extensions":  summary.Extensions,
		"all_ok":      summary.AllOK(),
		"homogeneous": summary.Homogeneous(),
	})
}

// RefreshCollection handles POST /api/v1/collections/{collectionId}/refresh
func (h *CollectionHandler) RefreshCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "collectionId"), "collection id")
	if !ok {
		return
	}

	if err := h.collections.RequestRefresh(r.Context(), id); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
