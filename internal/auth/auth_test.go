package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_GenerateAndValidate(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken(7, "drhouse")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "drhouse", claims.Username)
	assert.Equal(t, "7", claims.Subject)
}

func TestService_ValidateToken_Invalid(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	_, err := svc.ValidateToken("invalid-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService("other-secret", time.Hour)
	token, err := other.GenerateToken(1, "drhouse")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := svc.WithIssuer("someone-else").GenerateToken(1, "drhouse")
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_ValidateToken_Expired(t *testing.T) {
	svc := NewService("test-secret", -time.Hour)

	token, err := svc.GenerateToken(1, "drhouse")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("mypassword123")
	require.NoError(t, err)

	assert.True(t, CheckPassword("mypassword123", hash))
	assert.False(t, CheckPassword("wrongpassword", hash))
	assert.False(t, CheckPassword("mypassword123", "not-a-hash"))
}
