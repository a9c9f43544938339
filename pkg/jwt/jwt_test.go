package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	s := NewService("secret", time.Hour)

	token, err := s.GenerateToken("ops", RoleAdmin)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.True(t, claims.HasRole(RoleViewer))
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewService("secret", time.Hour).GenerateToken("ops", RoleViewer)
	require.NoError(t, err)

	_, err = NewService("other", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	s := NewService("secret", time.Minute)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := s.GenerateToken("ops", RoleAdmin)
	require.NoError(t, err)

	_, err = NewService("secret", time.Minute).ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestViewerIsNotAdmin(t *testing.T) {
	c := &Claims{Role: RoleViewer}
	assert.False(t, c.HasRole(RoleAdmin))
	assert.True(t, c.HasRole(RoleViewer))
}

func TestNoSecret(t *testing.T) {
	s := NewService("", 0)
	_, err := s.GenerateToken("ops", RoleAdmin)
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = s.ValidateToken("x.y.z")
	assert.ErrorIs(t, err, ErrNoSecret)
}
