package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/jwt"
	"github.com/bioarchive/api/pkg/logger"
	"github.com/bioarchive/api/pkg/password"
)

// ErrInvalidCredentials is returned on a failed login attempt without
// revealing whether the account exists.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserService implements account registration, authentication and
// lifecycle management.
type UserService struct {
	users     user.Repository
	histories dataset.HistoryRepository
	agent     *security.Agent
	hasher    *password.Hasher
	tokens    *jwt.Generator
	isAdmin   func(email string) bool
	log       *logger.Logger
}

// NewUserService creates a UserService. isAdmin decides whether an email
// belongs to a configured administrator; nil means no admins.
func NewUserService(
	users user.Repository,
	histories dataset.HistoryRepository,
	agent *security.Agent,
	hasher *password.Hasher,
	tokens *jwt.Generator,
	isAdmin func(email string) bool,
	log *logger.Logger,
) *UserService {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &UserService{
		users:     users,
		histories: histories,
		agent:     agent,
		hasher:    hasher,
		tokens:    tokens,
		isAdmin:   isAdmin,
		log:       log,
	}
}

// Register creates an account with its private role, default permission
// rows and an initial history.
func (s *UserService) Register(ctx context.Context, email, username, plainPassword string) (*user.User, error) {
	if err := s.hasher.Validate(plainPassword); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, err
	}

	u, err := user.New(email, username, hash)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	// The private role and the manage-permissions default must exist
	// before the user creates any dataset.
	if err := s.agent.SeedUserDefaults(ctx, u); err != nil {
		return nil, fmt.Errorf("seed user defaults: %w", err)
	}

	h, err := dataset.NewHistory(u.ID(), "Unnamed history")
	if err != nil {
		return nil, err
	}
	if err := s.histories.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create initial history: %w", err)
	}
	if err := s.agent.SeedHistoryDefaults(ctx, u.ID(), h.ID()); err != nil {
		return nil, fmt.Errorf("seed history defaults: %w", err)
	}

	s.log.Info("user registered", "user_id", u.ID().String(), "email", u.Email())
	return u, nil
}

// Authenticate verifies credentials and issues a token pair.
func (s *UserService) Authenticate(ctx context.Context, email, plainPassword string) (*user.User, *jwt.TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !u.IsActive() {
		return nil, nil, ErrInvalidCredentials
	}
	if err := s.hasher.Verify(plainPassword, u.PasswordHash()); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	u.RecordLogin()
	if err := s.users.Update(ctx, u); err != nil {
		return nil, nil, err
	}

	pair, err := s.tokens.GenerateTokenPair(u.ID().String(), u.Email(), s.isAdmin(u.Email()))
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// Refresh validates a refresh token and issues a fresh token pair.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(claims.UserID)
	if err != nil {
		return nil, jwt.ErrInvalidToken
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, jwt.ErrInvalidToken
	}

	return s.tokens.GenerateTokenPair(u.ID().String(), u.Email(), s.isAdmin(u.Email()))
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id shared.ID) (*user.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByEmail retrieves a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.users.GetByEmail(ctx, email)
}

// List retrieves users matching the filter.
func (s *UserService) List(ctx context.Context, filter user.ListFilter) ([]*user.User, error) {
	return s.users.List(ctx, filter)
}

// ChangePassword verifies the current password and stores a new hash.
func (s *UserService) ChangePassword(ctx context.Context, userID shared.ID, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Verify(current, u.PasswordHash()); err != nil {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Validate(next); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := u.SetPasswordHash(hash); err != nil {
		return err
	}
	return s.users.Update(ctx, u)
}

// Deactivate marks an account inactive.
func (s *UserService) Deactivate(ctx context.Context, userID shared.ID) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	u.Deactivate()
	return s.users.Update(ctx, u)
}

// Delete soft-deletes an account. Permission rows referencing the user's
// private role stay in place so shared data remains reachable by others.
func (s *UserService) Delete(ctx context.Context, userID shared.ID) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	u.Delete()
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	s.log.Info("user deleted", "user_id", userID.String())
	return nil
}
