// Package http wires the REST API: routing, middleware and the server
// lifecycle.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bioarchive/api/internal/infra/http/handler"
	"github.com/bioarchive/api/internal/infra/http/middleware"
	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/logger"
)

// Handlers collects the route handlers the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Roles       *handler.RoleHandler
	Groups      *handler.GroupHandler
	Libraries   *handler.LibraryHandler
	Histories   *handler.HistoryHandler
	Collections *handler.CollectionHandler
}

// NewRouter builds the API router with all routes mounted.
func NewRouter(h Handlers, auth *middleware.Auth, m *metrics.Metrics, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.Logging(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public.
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/refresh", h.Auth.Refresh)

		// Authenticated.
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Get("/me", h.Auth.Me)
			r.Put("/me/password", h.Auth.ChangePassword)
			r.Put("/me/permissions/defaults", h.Users.SetDefaultPermissions)

			r.Get("/roles", h.Roles.ListRoles)
			r.Get("/roles/{roleId}", h.Roles.GetRole)

			r.Get("/groups", h.Groups.ListGroups)
			r.Get("/groups/{groupId}", h.Groups.GetGroup)
			r.Get("/groups/{groupId}/users", h.Groups.ListMembers)

			r.Get("/libraries", h.Libraries.ListLibraries)
			r.Get("/libraries/{libraryId}", h.Libraries.GetLibrary)
			r.Put("/libraries/{libraryId}", h.Libraries.UpdateLibrary)
			r.Delete("/libraries/{libraryId}", h.Libraries.DeleteLibrary)
			r.Get("/libraries/{libraryId}/legitimate-roles", h.Libraries.LegitimateRoles)

			r.Get("/folders/{folderId}", h.Libraries.GetFolder)
			r.Put("/folders/{folderId}", h.Libraries.UpdateFolder)
			r.Delete("/folders/{folderId}", h.Libraries.DeleteFolder)
			r.Get("/folders/{folderId}/contents", h.Libraries.ListFolderContents)
			r.Post("/folders/{folderId}/folders", h.Libraries.CreateFolder)
			r.Post("/folders/{folderId}/datasets", h.Libraries.AddDataset)

			r.Post("/library-datasets/{datasetId}/versions", h.Libraries.UploadVersion)
			r.Get("/library-datasets/{datasetId}/versions", h.Libraries.ListVersions)
			r.Put("/library-datasets/{datasetId}/versions/{versionId}", h.Libraries.RevertVersion)
			r.Put("/library-datasets/{datasetId}/metadata", h.Libraries.UpdateMetadata)
			r.Delete("/library-datasets/{datasetId}", h.Libraries.DeleteLibraryDataset)
			r.Put("/library-datasets/{datasetId}/permissions", h.Libraries.SetLibraryDatasetPermissions)

			r.Get("/library-items/{itemKind}/{itemId}/permissions", h.Libraries.GetItemPermissions)
			r.Put("/library-items/{itemKind}/{itemId}/permissions", h.Libraries.SetItemPermissions)
			r.Put("/library-items/{itemKind}/{itemId}/template", h.Libraries.AttachTemplate)
			r.Get("/library-items/{itemKind}/{itemId}/template", h.Libraries.EffectiveTemplate)

			r.Get("/templates", h.Libraries.ListTemplates)

			r.Post("/histories", h.Histories.CreateHistory)
			r.Get("/histories", h.Histories.ListHistories)
			r.Get("/histories/{historyId}", h.Histories.GetHistory)
			r.Put("/histories/{historyId}", h.Histories.RenameHistory)
			r.Delete("/histories/{historyId}", h.Histories.DeleteHistory)
			r.Put("/histories/{historyId}/permissions/defaults", h.Histories.SetHistoryDefaultPermissions)
			r.Post("/histories/{historyId}/datasets", h.Histories.UploadDataset)
			r.Get("/histories/{historyId}/datasets", h.Histories.ListHDAs)
			r.Get("/hdas/{hdaId}", h.Histories.GetHDA)

			r.Get("/datasets/{datasetId}/permissions", h.Histories.GetDatasetPermissions)
			r.Put("/datasets/{datasetId}/permissions", h.Histories.SetDatasetPermissions)
			r.Delete("/datasets/{datasetId}/permissions/access", h.Histories.MakeDatasetPublic)

			r.Post("/collections", h.Collections.CreateCollection)
			r.Post("/collections/pairs", h.Collections.CreatePair)
			r.Get("/collections/{collectionId}", h.Collections.GetCollection)
			r.Get("/collections/{collectionId}/tree", h.Collections.GetTree)
			r.Get("/collections/{collectionId}/elements/*", h.Collections.GetElement)
			r.Get("/collections/{collectionId}/failed", h.Collections.ListFailedElements)
			r.Get("/collections/{collectionId}/summary", h.Collections.GetSummary)
			r.Post("/collections/{collectionId}/refresh", h.Collections.RefreshCollection)
		})

		// Admin surface.
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(auth.RequireAdmin)

			r.Get("/admin/users", h.Users.ListUsers)
			r.Get("/admin/users/{userId}", h.Users.GetUser)
			r.Post("/admin/users/{userId}/deactivate", h.Users.DeactivateUser)
			r.Delete("/admin/users/{userId}", h.Users.DeleteUser)
			r.Get("/admin/users/{userId}/roles", h.Roles.ListUserRoles)

			r.Post("/admin/roles", h.Roles.CreateRole)
			r.Put("/admin/roles/{roleId}", h.Roles.UpdateRole)
			r.Delete("/admin/roles/{roleId}", h.Roles.DeleteRole)
			r.Put("/admin/roles/{roleId}/users/{userId}", h.Roles.AssociateUser)
			r.Delete("/admin/roles/{roleId}/users/{userId}", h.Roles.DissociateUser)
			r.Put("/admin/roles/{roleId}/groups/{groupId}", h.Roles.AssociateGroup)
			r.Delete("/admin/roles/{roleId}/groups/{groupId}", h.Roles.DissociateGroup)

			r.Post("/admin/groups", h.Groups.CreateGroup)
			r.Put("/admin/groups/{groupId}", h.Groups.RenameGroup)
			r.Delete("/admin/groups/{groupId}", h.Groups.DeleteGroup)
			r.Put("/admin/groups/{groupId}/users/{userId}", h.Groups.AddMember)
			r.Delete("/admin/groups/{groupId}/users/{userId}", h.Groups.RemoveMember)
			r.Get("/admin/groups/{groupId}/roles", h.Roles.ListGroupRoles)

			r.Post("/admin/libraries", h.Libraries.CreateLibrary)
			r.Post("/admin/templates", h.Libraries.CreateTemplate)

			r.Put("/admin/datasets/{datasetId}/state", h.Histories.UpdateDatasetState)
		})
	})

	return r
}
