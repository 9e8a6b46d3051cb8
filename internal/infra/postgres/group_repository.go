package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/group"
	"github.com/bioarchive/api/pkg/domain/shared"
)

// groupColumns is the list of columns to select for a group.
const groupColumns = `id, name, deleted, created_at, updated_at`

// GroupRepository implements group.Repository using PostgreSQL.
type GroupRepository struct {
	db *DB
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create persists a new group.
func (r *GroupRepository) Create(ctx context.Context, g *group.Group) error {
	query := `
		INSERT INTO groups (id, name, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		g.ID().String(),
		g.Name(),
		g.IsDeleted(),
		g.CreatedAt(),
		g.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return group.ErrGroupNameExists
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetByID retrieves a group by ID.
func (r *GroupRepository) GetByID(ctx context.Context, id shared.ID) (*group.Group, error) {
	query := fmt.Sprintf(`SELECT %s FROM groups WHERE id = $1`, groupColumns)

	g, err := r.scanGroup(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, group.ErrGroupNotFound
		}
		return nil, err
	}
	return g, nil
}

// GetByName retrieves a group by name.
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*group.Group, error) {
	query := fmt.Sprintf(`SELECT %s FROM groups WHERE name = $1`, groupColumns)

	g, err := r.scanGroup(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, group.ErrGroupNotFound
		}
		return nil, err
	}
	return g, nil
}

// Update persists changes to an existing group.
func (r *GroupRepository) Update(ctx context.Context, g *group.Group) error {
	query := `UPDATE groups SET name = $2, deleted = $3, updated_at = $4 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		g.ID().String(),
		g.Name(),
		g.IsDeleted(),
		g.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return group.ErrGroupNameExists
		}
		return fmt.Errorf("failed to update group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return group.ErrGroupNotFound
	}
	return nil
}

// List retrieves groups matching the filter.
func (r *GroupRepository) List(ctx context.Context, filter group.ListFilter) ([]*group.Group, error) {
	query := fmt.Sprintf(`SELECT %s FROM groups WHERE 1=1`, groupColumns)
	args := []any{}

	if !filter.IncludeDeleted {
		query += ` AND deleted = FALSE`
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

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*group.Group
	for rows.Next() {
		g, err := r.scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// AddMember adds a user to a group.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID shared.ID) error {
	query := `INSERT INTO user_group_associations (user_id, group_id) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, userID.String(), groupID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return group.ErrMemberExists
		}
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a group.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID shared.ID) error {
	query := `DELETE FROM user_group_associations WHERE user_id = $1 AND group_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID.String(), groupID.String())
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return group.ErrMemberNotFound
	}
	return nil
}

// IsMember checks whether a user belongs to a group.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID shared.ID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_group_associations WHERE user_id = $1 AND group_id = $2)`,
		userID.String(), groupID.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return exists, nil
}

// ListMemberIDs retrieves the user IDs of a group's members.
func (r *GroupRepository) ListMemberIDs(ctx context.Context, groupID shared.ID) ([]shared.ID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM user_group_associations WHERE group_id = $1`, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	var ids []shared.ID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := shared.IDFromString(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListGroupsByUser retrieves the groups a user belongs to.
func (r *GroupRepository) ListGroupsByUser(ctx context.Context, userID shared.ID) ([]*group.Group, error) {
	query := `
		SELECT g.id, g.name, g.deleted, g.created_at, g.updated_at
		FROM groups g
		JOIN user_group_associations uga ON uga.group_id = g.id
		WHERE uga.user_id = $1
		ORDER BY g.name
	`

	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list groups by user: %w", err)
	}
	defer rows.Close()

	var groups []*group.Group
	for rows.Next() {
		g, err := r.scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *GroupRepository) scanGroup(s scanner) (*group.Group, error) {
	var (
		idStr     string
		name      string
		deleted   bool
		createdAt time.Time
		updatedAt time.Time
	)

	if err := s.Scan(&idStr, &name, &deleted, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid group id: %w", err)
	}

	return group.Reconstitute(id, name, deleted, createdAt, updatedAt), nil
}
