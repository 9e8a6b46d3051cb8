package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
)

// userColumns is the list of columns to select for a user.
const userColumns = `id, email, username, password_hash, active, deleted, purged, last_login_at, created_at, updated_at`

// UserRepository implements user.Repository using PostgreSQL.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (id, email, username, password_hash, active, deleted, purged, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		u.ID().String(),
		u.Email(),
		u.Username(),
		u.PasswordHash(),
		u.IsActive(),
		u.IsDeleted(),
		u.IsPurged(),
		nullTime(u.LastLoginAt()),
		u.CreatedAt(),
		u.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id shared.ID) (*user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	u, err := r.scanUser(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	u, err := r.scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Update persists changes to an existing user.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET email = $2, username = $3, password_hash = $4, active = $5,
		    deleted = $6, purged = $7, last_login_at = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		u.ID().String(),
		u.Email(),
		u.Username(),
		u.PasswordHash(),
		u.IsActive(),
		u.IsDeleted(),
		u.IsPurged(),
		nullTime(u.LastLoginAt()),
		u.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// List retrieves users matching the filter.
func (r *UserRepository) List(ctx context.Context, filter user.ListFilter) ([]*user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE 1=1`, userColumns)
	args := []any{}

	if !filter.IncludeDeleted {
		query += ` AND deleted = FALSE`
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND (email ILIKE $%d OR username ILIKE $%d)`, len(args), len(args))
	}

	query += ` ORDER BY email`
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
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ExistsByEmail checks whether a user with the email exists.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(s scanner) (*user.User, error) {
	var (
		idStr        string
		email        string
		username     string
		passwordHash string
		active       bool
		deleted      bool
		purged       bool
		lastLoginAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := s.Scan(&idStr, &email, &username, &passwordHash, &active, &deleted, &purged,
		&lastLoginAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	return user.Reconstitute(id, email, username, passwordHash,
		active, deleted, purged, nullTimeValue(lastLoginAt), createdAt, updatedAt), nil
}
