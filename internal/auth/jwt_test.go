package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saska-advisor-go/internal/models"
)

func TestTokens_GenerateAndParse(t *testing.T) {
	t.Parallel()

	tokens := NewTokens("super-secret", time.Hour)
	tok, err := tokens.GenerateToken(&models.User{ID: "user-123", Role: models.RoleAdmin})
	require.NoError(t, err)

	claims, err := tokens.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokens_Expired(t *testing.T) {
	t.Parallel()

	tokens := NewTokens("secret", -time.Second)
	tok, err := tokens.GenerateToken(&models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = tokens.ParseToken(tok)
	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokens_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokens("right-secret", time.Hour).GenerateToken(&models.User{ID: "u2"})
	require.NoError(t, err)

	_, err = NewTokens("wrong-secret", time.Hour).ParseToken(tok)
	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokens_Malformed(t *testing.T) {
	t.Parallel()

	_, err := NewTokens("k", time.Hour).ParseToken("not.a.jwt")
	require.ErrorIs(t, err, models.ErrUnauthorized)
}
