package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/shared"
)

// roleColumns is the list of columns to select for a role.
const roleColumns = `id, name, description, type, deleted, created_at, updated_at`

// RoleRepository implements role.Repository using PostgreSQL.
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create persists a new role.
func (r *RoleRepository) Create(ctx context.Context, ro *role.Role) error {
	query := `
		INSERT INTO roles (id, name, description, type, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		ro.ID().String(),
		ro.Name(),
		ro.Description(),
		ro.RoleType().String(),
		ro.IsDeleted(),
		ro.CreatedAt(),
		ro.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return role.ErrRoleNameExists
		}
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// GetByID retrieves a role by ID.
func (r *RoleRepository) GetByID(ctx context.Context, id shared.ID) (*role.Role, error) {
	query := fmt.Sprintf(`SELECT %s FROM roles WHERE id = $1`, roleColumns)

	ro, err := r.scanRole(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, role.ErrRoleNotFound
		}
		return nil, err
	}
	return ro, nil
}

// GetByName retrieves a role by name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*role.Role, error) {
	query := fmt.Sprintf(`SELECT %s FROM roles WHERE name = $1`, roleColumns)

	ro, err := r.scanRole(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, role.ErrRoleNotFound
		}
		return nil, err
	}
	return ro, nil
}

// Update persists changes to an existing role.
func (r *RoleRepository) Update(ctx context.Context, ro *role.Role) error {
	query := `
		UPDATE roles
		SET name = $2, description = $3, type = $4, deleted = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		ro.ID().String(),
		ro.Name(),
		ro.Description(),
		ro.RoleType().String(),
		ro.IsDeleted(),
		ro.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return role.ErrRoleNameExists
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return role.ErrRoleNotFound
	}
	return nil
}

// List retrieves roles matching the filter.
func (r *RoleRepository) List(ctx context.Context, filter role.ListFilter) ([]*role.Role, error) {
	query := fmt.Sprintf(`SELECT %s FROM roles WHERE 1=1`, roleColumns)
	args := []any{}

	if !filter.IncludeDeleted {
		query += ` AND deleted = FALSE`
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = t.String()
		}
		args = append(args, pq.Array(types))
		query += fmt.Sprintf(` AND type = ANY($%d)`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}

	query += ` ORDER BY name`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	return r.queryRoles(ctx, query, args...)
}

// ListByIDs retrieves the roles with the given IDs.
func (r *RoleRepository) ListByIDs(ctx context.Context, ids []shared.ID) ([]*role.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}

	query := fmt.Sprintf(`SELECT %s FROM roles WHERE id = ANY($1)`, roleColumns)
	return r.queryRoles(ctx, query, pq.Array(idStrs))
}

// AssociateUser adds a user/role association.
func (r *RoleRepository) AssociateUser(ctx context.Context, userID, roleID shared.ID) error {
	query := `INSERT INTO user_role_associations (user_id, role_id) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, userID.String(), roleID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return role.ErrAssociationExists
		}
		return fmt.Errorf("failed to associate user with role: %w", err)
	}
	return nil
}

// DissociateUser removes a user/role association.
func (r *RoleRepository) DissociateUser(ctx context.Context, userID, roleID shared.ID) error {
	query := `DELETE FROM user_role_associations WHERE user_id = $1 AND role_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID.String(), roleID.String())
	if err != nil {
		return fmt.Errorf("failed to dissociate user from role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return role.ErrAssociationNotFound
	}
	return nil
}

// ListByUser retrieves the roles directly associated with a user.
func (r *RoleRepository) ListByUser(ctx context.Context, userID shared.ID) ([]*role.Role, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM roles r
		JOIN user_role_associations ura ON ura.role_id = r.id
		WHERE ura.user_id = $1
		ORDER BY r.name
	`, prefixedRoleColumns("r"))

	return r.queryRoles(ctx, query, userID.String())
}

// AssociateGroup adds a group/role association.
func (r *RoleRepository) AssociateGroup(ctx context.Context, groupID, roleID shared.ID) error {
	query := `INSERT INTO group_role_associations (group_id, role_id) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, groupID.String(), roleID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return role.ErrAssociationExists
		}
		return fmt.Errorf("failed to associate group with role: %w", err)
	}
	return nil
}

// DissociateGroup removes a group/role association.
func (r *RoleRepository) DissociateGroup(ctx context.Context, groupID, roleID shared.ID) error {
	query := `DELETE FROM group_role_associations WHERE group_id = $1 AND role_id = $2`

	result, err := r.db.ExecContext(ctx, query, groupID.String(), roleID.String())
	if err != nil {
		return fmt.Errorf("failed to dissociate group from role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return role.ErrAssociationNotFound
	}
	return nil
}

// ListByGroup retrieves the roles associated with a group.
func (r *RoleRepository) ListByGroup(ctx context.Context, groupID shared.ID) ([]*role.Role, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM roles r
		JOIN group_role_associations gra ON gra.role_id = r.id
		WHERE gra.group_id = $1
		ORDER BY r.name
	`, prefixedRoleColumns("r"))

	return r.queryRoles(ctx, query, groupID.String())
}

// ListByUserGroups retrieves the roles a user inherits through group
// membership, resolved in a single query.
func (r *RoleRepository) ListByUserGroups(ctx context.Context, userID shared.ID) ([]*role.Role, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM roles r
		JOIN group_role_associations gra ON gra.role_id = r.id
		JOIN user_group_associations uga ON uga.group_id = gra.group_id
		JOIN groups g ON g.id = gra.group_id
		WHERE uga.user_id = $1 AND g.deleted = FALSE
	`, prefixedRoleColumns("r"))

	return r.queryRoles(ctx, query, userID.String())
}

// GetPrivateByUser retrieves a user's private role.
func (r *RoleRepository) GetPrivateByUser(ctx context.Context, userID shared.ID) (*role.Role, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM roles r
		JOIN user_role_associations ura ON ura.role_id = r.id
		WHERE ura.user_id = $1 AND r.type = $2
	`, prefixedRoleColumns("r"))

	ro, err := r.scanRole(r.db.QueryRowContext(ctx, query, userID.String(), role.TypePrivate.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, role.ErrPrivateRoleMissing
		}
		return nil, err
	}
	return ro, nil
}

// CreatePrivate persists a private role and its user association
// atomically.
func (r *RoleRepository) CreatePrivate(ctx context.Context, ro *role.Role, userID shared.ID) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO roles (id, name, description, type, deleted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			ro.ID().String(),
			ro.Name(),
			ro.Description(),
			ro.RoleType().String(),
			ro.IsDeleted(),
			ro.CreatedAt(),
			ro.UpdatedAt(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return role.ErrRoleNameExists
			}
			return fmt.Errorf("failed to create private role: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_role_associations (user_id, role_id) VALUES ($1, $2)`,
			userID.String(), ro.ID().String())
		if err != nil {
			return fmt.Errorf("failed to associate private role: %w", err)
		}
		return nil
	})
}

func prefixedRoleColumns(alias string) string {
	return fmt.Sprintf("%s.id, %s.name, %s.description, %s.type, %s.deleted, %s.created_at, %s.updated_at",
		alias, alias, alias, alias, alias, alias, alias)
}

func (r *RoleRepository) queryRoles(ctx context.Context, query string, args ...any) ([]*role.Role, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []*role.Role
	for rows.Next() {
		ro, err := r.scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, ro)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) scanRole(s scanner) (*role.Role, error) {
	var (
		idStr       string
		name        string
		description string
		roleType    string
		deleted     bool
		createdAt   time.Time
		updatedAt   time.Time
	)

	if err := s.Scan(&idStr, &name, &description, &roleType, &deleted, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	return role.Reconstitute(id, name, description, role.Type(roleType), deleted, createdAt, updatedAt), nil
}
