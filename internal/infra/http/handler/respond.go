package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/pkg/apierror"
	"github.com/bioarchive/api/pkg/domain/collection"
	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/group"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/jwt"
	"github.com/bioarchive/api/pkg/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, raw, field string) (shared.ID, bool) {
	id, err := shared.IDFromString(raw)
	if err != nil {
		apierror.BadRequest("Invalid " + field + " format").WriteJSON(w)
		return shared.ID{}, false
	}
	return id, true
}

var notFoundErrors = map[error]string{
	user.ErrUserNotFound:              "User",
	role.ErrRoleNotFound:              "Role",
	role.ErrAssociationNotFound:       "Role association",
	group.ErrGroupNotFound:            "Group",
	group.ErrMemberNotFound:           "Group member",
	dataset.ErrDatasetNotFound:        "Dataset",
	dataset.ErrHistoryNotFound:        "History",
	dataset.ErrHDANotFound:            "History dataset",
	library.ErrLibraryNotFound:        "Library",
	library.ErrFolderNotFound:         "Folder",
	library.ErrLibraryDatasetNotFound: "Library dataset",
	library.ErrLDDANotFound:           "Library dataset version",
	library.ErrTemplateNotFound:       "Template",
	collection.ErrCollectionNotFound:  "Collection",
	collection.ErrElementNotFound:     "Collection element",
	security.ErrContainerNotFound:     "Container",
}

var conflictErrors = []error{
	user.ErrEmailExists,
	role.ErrRoleNameExists,
	role.ErrAssociationExists,
	group.ErrGroupNameExists,
	group.ErrMemberExists,
	library.ErrLibraryNameExists,
	shared.ErrAlreadyExists,
}

// handleServiceError translates domain and application errors into API
// error responses. Unknown errors are logged and reported as internal.
func handleServiceError(log *logger.Logger, w http.ResponseWriter, err error) {
	for target, resource := range notFoundErrors {
		if errors.Is(err, target) {
			apierror.NotFound(resource).WriteJSON(w)
			return
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			apierror.Conflict(err.Error()).WriteJSON(w)
			return
		}
	}

	var structureErr *collection.StructureError
	var inconsistentErr *security.InconsistentRequestError
	switch {
	case errors.Is(err, shared.ErrValidation):
		msg := err.Error()
		if idx := strings.Index(msg, ": "); idx != -1 {
			msg = msg[idx+2:]
		}
		apierror.BadRequest(msg).WriteJSON(w)
	case errors.As(err, &structureErr):
		apierror.BadRequest(structureErr.Message).WriteJSON(w)
	case errors.As(err, &inconsistentErr):
		apierror.Conflict(inconsistentErr.Message).WriteJSON(w)
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, jwt.ErrInvalidToken), errors.Is(err, jwt.ErrExpiredToken):
		apierror.Unauthorized(err.Error()).WriteJSON(w)
	case errors.Is(err, shared.ErrUnauthorized):
		apierror.Unauthorized(err.Error()).WriteJSON(w)
	case errors.Is(err, shared.ErrForbidden):
		apierror.Forbidden("").WriteJSON(w)
	case errors.Is(err, shared.ErrNotFound):
		apierror.NotFound("").WriteJSON(w)
	default:
		log.Error("service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
