package handler

import (
	"net/http"
	"time"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/infra/http/middleware"
	"github.com/bioarchive/api/pkg/apierror"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/logger"
)

// AuthHandler handles registration, login and token refresh.
type AuthHandler struct {
	users             *app.UserService
	allowRegistration bool
	log               *logger.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(users *app.UserService, allowRegistration bool, log *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, allowRegistration: allowRegistration, log: log}
}

// UserResponse represents an account in API responses.
type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	Active    bool       `json:"active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TokenResponse carries an issued token pair.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RegisterRequest represents the request to create an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents a login attempt.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID().String(),
		Email:     u.Email(),
		Username:  u.Username(),
		Active:    u.IsActive(),
		LastLogin: u.LastLoginAt(),
		CreatedAt: u.CreatedAt(),
		UpdatedAt: u.UpdatedAt(),
	}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allowRegistration {
		apierror.Forbidden("Registration is disabled").WriteJSON(w)
		return
	}

	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	_, pair, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

// Me handles GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUser(r.Context())
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// ChangePassword handles PUT /api/v1/me/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUser(r.Context())

	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.users.ChangePassword(r.Context(), u.ID(), req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(h.log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
