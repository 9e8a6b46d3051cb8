// Package jwt provides JWT token generation and validation utilities.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrEmptyUserID is returned when user_id is empty.
	ErrEmptyUserID = errors.New("user_id cannot be empty")
	// ErrInvalidTokenType is returned when token type is invalid.
	ErrInvalidTokenType = errors.New("invalid token type")
)

// TokenType represents the type of JWT token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived access token.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived refresh token.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims represents the JWT claims structure.
type Claims struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	TokenType TokenType `json:"token_type,omitempty"`
	IsAdmin   bool      `json:"admin,omitempty"`

	jwt.RegisteredClaims
}

// TokenConfig holds configuration for token generation.
type TokenConfig struct {
	Secret               string
	Issuer               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// TokenPair contains both access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Generator handles JWT token generation and validation.
type Generator struct {
	config TokenConfig
}

// NewGenerator creates a new token generator.
func NewGenerator(config TokenConfig) *Generator {
	return &Generator{config: config}
}

// GenerateAccessToken creates a new access token.
func (g *Generator) GenerateAccessToken(userID, email string, isAdmin bool) (string, time.Time, error) {
	return g.generate(userID, email, isAdmin, TokenTypeAccess, g.config.AccessTokenDuration)
}

// GenerateRefreshToken creates a new refresh token.
func (g *Generator) GenerateRefreshToken(userID, email string) (string, time.Time, error) {
	return g.generate(userID, email, false, TokenTypeRefresh, g.config.RefreshTokenDuration)
}

// GenerateTokenPair creates an access and refresh token pair.
func (g *Generator) GenerateTokenPair(userID, email string, isAdmin bool) (*TokenPair, error) {
	access, expiresAt, err := g.GenerateAccessToken(userID, email, isAdmin)
	if err != nil {
		return nil, err
	}
	refresh, _, err := g.GenerateRefreshToken(userID, email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

func (g *Generator) generate(userID, email string, isAdmin bool, tokenType TokenType, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrEmptyUserID
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
		IsAdmin:   isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(g.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signedToken, expiresAt, nil
}

// ValidateToken parses and validates a token, returning its claims.
func (g *Generator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(g.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken validates a token and ensures it is an access token.
func (g *Generator) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := g.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}

// ValidateRefreshToken validates a token and ensures it is a refresh token.
func (g *Generator) ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := g.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}
