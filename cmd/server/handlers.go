package main

import (
	"github.com/bioarchive/api/internal/config"
	bahttp "github.com/bioarchive/api/internal/infra/http"
	"github.com/bioarchive/api/internal/infra/http/handler"
	"github.com/bioarchive/api/pkg/logger"
)

// HandlerDeps contains dependencies needed to create handlers.
type HandlerDeps struct {
	Config   *config.Config
	Log      *logger.Logger
	Services *Services
}

// NewHandlers creates all HTTP handlers.
func NewHandlers(deps *HandlerDeps) bahttp.Handlers {
	cfg := deps.Config
	log := deps.Log
	svc := deps.Services

	return bahttp.Handlers{
		Auth:        handler.NewAuthHandler(svc.User, cfg.Auth.AllowRegistration, log),
		Users:       handler.NewUserHandler(svc.User, svc.Permission, log),
		Roles:       handler.NewRoleHandler(svc.Role, log),
		Groups:      handler.NewGroupHandler(svc.Group, log),
		Libraries:   handler.NewLibraryHandler(svc.Library, svc.Permission, log),
		Histories:   handler.NewHistoryHandler(svc.History, svc.Permission, log),
		Collections: handler.NewCollectionHandler(svc.Collection, log),
	}
}
