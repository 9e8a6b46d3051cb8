package main

import (
	"github.com/bioarchive/api/internal/infra/postgres"
)

// Repositories holds all repository instances.
type Repositories struct {
	User       *postgres.UserRepository
	Role       *postgres.RoleRepository
	Group      *postgres.GroupRepository
	Permission *postgres.PermissionRepository
	Library    *postgres.LibraryRepository
	Dataset    *postgres.DatasetRepository
	History    *postgres.HistoryRepository
	Collection *postgres.CollectionRepository
}

// NewRepositories creates all repositories.
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		User:       postgres.NewUserRepository(db),
		Role:       postgres.NewRoleRepository(db),
		Group:      postgres.NewGroupRepository(db),
		Permission: postgres.NewPermissionRepository(db),
		Library:    postgres.NewLibraryRepository(db),
		Dataset:    postgres.NewDatasetRepository(db),
		History:    postgres.NewHistoryRepository(db),
		Collection: postgres.NewCollectionRepository(db),
	}
}
