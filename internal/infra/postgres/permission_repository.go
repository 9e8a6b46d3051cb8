package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
)

// PermissionRepository implements security.Store using PostgreSQL. Each
// grant is one row in a (container, action, role) table; replace
// operations delete and re-insert rows per action inside one transaction
// so readers never observe a half-replaced action.
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new PermissionRepository.
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// DatasetGrants loads the permission rows of a dataset.
func (r *PermissionRepository) DatasetGrants(ctx context.Context, datasetID shared.ID) (security.Grants, error) {
	return r.loadGrants(ctx,
		`SELECT action, role_id FROM dataset_permissions WHERE dataset_id = $1`,
		datasetID.String())
}

// ReplaceDatasetGrants replaces the rows for the actions present in
// grants, leaving other actions untouched.
func (r *PermissionRepository) ReplaceDatasetGrants(ctx context.Context, datasetID shared.ID, grants security.Grants) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return replaceRows(ctx, tx, "dataset_permissions", "dataset_id", datasetID, grants)
	})
}

// LibraryItemGrants loads the permission rows of a library container.
func (r *PermissionRepository) LibraryItemGrants(ctx context.Context, item security.ItemRef) (security.Grants, error) {
	return r.loadGrants(ctx,
		`SELECT action, role_id FROM library_item_permissions WHERE item_kind = $1 AND item_id = $2`,
		string(item.Kind), item.ID.String())
}

// ReplaceLibraryItemGrants replaces the rows for the actions present in
// grants on one library container.
func (r *PermissionRepository) ReplaceLibraryItemGrants(ctx context.Context, item security.ItemRef, grants security.Grants) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return replaceLibraryRows(ctx, tx, item, grants)
	})
}

// AddLibraryItemGrants inserts rows additively and idempotently.
func (r *PermissionRepository) AddLibraryItemGrants(ctx context.Context, item security.ItemRef, grants security.Grants) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		for action, roles := range grants {
			for _, roleID := range roles.IDs() {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO library_item_permissions (item_kind, item_id, action, role_id)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT DO NOTHING
				`, string(item.Kind), item.ID.String(), action.String(), roleID.String())
				if err != nil {
					return fmt.Errorf("failed to add library permission row: %w", err)
				}
			}
		}
		return nil
	})
}

// ReplaceLibraryDatasetPairGrants updates a library dataset slot and its
// current version in a single transaction so their rows never diverge.
func (r *PermissionRepository) ReplaceLibraryDatasetPairGrants(ctx context.Context, libraryDatasetID, lddaID shared.ID, grants security.Grants) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := replaceLibraryRows(ctx, tx, security.LibraryDatasetRef(libraryDatasetID), grants); err != nil {
			return err
		}
		return replaceLibraryRows(ctx, tx, security.LDDARef(lddaID), grants)
	})
}

// UserDefaultGrants loads a user's default permission rows.
func (r *PermissionRepository) UserDefaultGrants(ctx context.Context, userID shared.ID) (security.Grants, error) {
	return r.loadGrants(ctx,
		`SELECT action, role_id FROM default_user_permissions WHERE user_id = $1`,
		userID.String())
}

// ReplaceUserDefaultGrants replaces a user's default permission rows for
// the actions present in grants.
func (r *PermissionRepository) ReplaceUserDefaultGrants(ctx context.Context, userID shared.ID, grants security.Grants) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return replaceRows(ctx, tx, "default_user_permissions", "user_id", userID, grants)
	})
}

// HistoryDefaultGrants loads a history's default permission rows.
func (r *PermissionRepository) HistoryDefaultGrants(ctx context.Context, historyID shared.ID) (security.Grants, error) {
	return r.loadGrants(ctx,
		`SELECT action, role_id FROM default_history_permissions WHERE history_id = $1`,
		historyID.String())
}

// ReplaceHistoryDefaultGrants replaces a history's default permission
// rows for the actions present in grants.
func (r *PermissionRepository) ReplaceHistoryDefaultGrants(ctx context.Context, historyID shared.ID, grants security.Grants) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return replaceRows(ctx, tx, "default_history_permissions", "history_id", historyID, grants)
	})
}

func (r *PermissionRepository) loadGrants(ctx context.Context, query string, args ...any) (security.Grants, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load permission rows: %w", err)
	}
	defer rows.Close()

	grants := security.Grants{}
	for rows.Next() {
		var actionStr, roleIDStr string
		if err := rows.Scan(&actionStr, &roleIDStr); err != nil {
			return nil, err
		}
		roleID, err := shared.IDFromString(roleIDStr)
		if err != nil {
			return nil, fmt.Errorf("invalid role id: %w", err)
		}
		action := security.Action(actionStr)
		if grants[action] == nil {
			grants[action] = security.NewRoleSet()
		}
		grants[action].Add(roleID)
	}
	return grants, rows.Err()
}

// replaceRows deletes and re-inserts the rows for each action present in
// grants on a simple (owner, action, role) table.
func replaceRows(ctx context.Context, tx *sql.Tx, table, ownerColumn string, ownerID shared.ID, grants security.Grants) error {
	for action, roles := range grants {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND action = $2`, table, ownerColumn),
			ownerID.String(), action.String())
		if err != nil {
			return fmt.Errorf("failed to clear permission rows: %w", err)
		}
		for _, roleID := range roles.IDs() {
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (%s, action, role_id) VALUES ($1, $2, $3)`, table, ownerColumn),
				ownerID.String(), action.String(), roleID.String())
			if err != nil {
				return fmt.Errorf("failed to insert permission row: %w", err)
			}
		}
	}
	return nil
}

// replaceLibraryRows is replaceRows for the kind-discriminated library
// permission table.
func replaceLibraryRows(ctx context.Context, tx *sql.Tx, item security.ItemRef, grants security.Grants) error {
	for action, roles := range grants {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM library_item_permissions WHERE item_kind = $1 AND item_id = $2 AND action = $3`,
			string(item.Kind), item.ID.String(), action.String())
		if err != nil {
			return fmt.Errorf("failed to clear library permission rows: %w", err)
		}
		for _, roleID := range roles.IDs() {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO library_item_permissions (item_kind, item_id, action, role_id)
				VALUES ($1, $2, $3, $4)
			`, string(item.Kind), item.ID.String(), action.String(), roleID.String())
			if err != nil {
				return fmt.Errorf("failed to insert library permission row: %w", err)
			}
		}
	}
	return nil
}
