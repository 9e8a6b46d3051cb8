package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bioarchive/api/pkg/apierror"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/jwt"
	"github.com/bioarchive/api/pkg/logger"
)

type contextKey string

const (
	userContextKey   contextKey = "auth_user"
	claimsContextKey contextKey = "auth_claims"
)

// Auth authenticates requests with bearer tokens and loads the account
// into the request context.
type Auth struct {
	tokens *jwt.Generator
	users  user.Repository
	log    *logger.Logger
}

// NewAuth creates the authentication middleware.
func NewAuth(tokens *jwt.Generator, users user.Repository, log *logger.Logger) *Auth {
	return &Auth{tokens: tokens, users: users, log: log}
}

// Authenticate validates the Authorization header and stores the claims
// and the loaded user in the context. Inactive and deleted accounts are
// rejected even with a valid token.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			apierror.Unauthorized("Missing bearer token").WriteJSON(w)
			return
		}

		claims, err := a.tokens.ValidateAccessToken(token)
		if err != nil {
			apierror.Unauthorized("Invalid or expired token").WriteJSON(w)
			return
		}

		id, err := shared.IDFromString(claims.UserID)
		if err != nil {
			apierror.Unauthorized("Invalid token subject").WriteJSON(w)
			return
		}
		u, err := a.users.GetByID(r.Context(), id)
		if err != nil {
			apierror.Unauthorized("Account not found").WriteJSON(w)
			return
		}
		if !u.IsActive() {
			apierror.Unauthorized("Account is inactive").WriteJSON(w)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		ctx = context.WithValue(ctx, userContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects requests whose token does not carry the admin
// flag. Must run after Authenticate.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			apierror.Forbidden("Administrator access required").WriteJSON(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// GetUser returns the authenticated user, or nil outside Authenticate.
func GetUser(ctx context.Context) *user.User {
	u, _ := ctx.Value(userContextKey).(*user.User)
	return u
}

// GetClaims returns the token claims, or nil outside Authenticate.
func GetClaims(ctx context.Context) *jwt.Claims {
	c, _ := ctx.Value(claimsContextKey).(*jwt.Claims)
	return c
}

// IsAdmin reports whether the authenticated token carries the admin flag.
func IsAdmin(ctx context.Context) bool {
	c := GetClaims(ctx)
	return c != nil && c.IsAdmin
}
