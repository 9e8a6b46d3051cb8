package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/api/pkg/jwt"
)

func newTestGenerator() *jwt.Generator {
	return jwt.NewGenerator(jwt.TokenConfig{
		Secret:               "test-secret",
		Issuer:               "bioarchive-test",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
	})
}

func TestGenerator_TokenPair(t *testing.T) {
	g := newTestGenerator()

	pair, err := g.GenerateTokenPair("user-123", "alice@example.org", true)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.ExpiresAt.After(time.Now()))

	access, err := g.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", access.UserID)
	assert.Equal(t, "alice@example.org", access.Email)
	assert.True(t, access.IsAdmin)

	refresh, err := g.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", refresh.UserID)
	assert.False(t, refresh.IsAdmin, "admin flag never rides on refresh tokens")
}

func TestGenerator_TokenTypeEnforcement(t *testing.T) {
	g := newTestGenerator()
	pair, err := g.GenerateTokenPair("user-123", "alice@example.org", false)
	require.NoError(t, err)

	_, err = g.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, jwt.ErrInvalidTokenType)

	_, err = g.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrInvalidTokenType)
}

func TestGenerator_Validation(t *testing.T) {
	g := newTestGenerator()

	t.Run("empty user id rejected", func(t *testing.T) {
		_, _, err := g.GenerateAccessToken("", "alice@example.org", false)
		assert.ErrorIs(t, err, jwt.ErrEmptyUserID)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		_, err := g.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		other := jwt.NewGenerator(jwt.TokenConfig{
			Secret:              "different-secret",
			Issuer:              "bioarchive-test",
			AccessTokenDuration: time.Minute,
		})
		token, _, err := other.GenerateAccessToken("user-123", "alice@example.org", false)
		require.NoError(t, err)

		_, err = g.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("expired token reported as expired", func(t *testing.T) {
		short := jwt.NewGenerator(jwt.TokenConfig{
			Secret:              "test-secret",
			Issuer:              "bioarchive-test",
			AccessTokenDuration: -time.Minute,
		})
		token, _, err := short.GenerateAccessToken("user-123", "alice@example.org", false)
		require.NoError(t, err)

		_, err = short.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrExpiredToken)
	})
}
