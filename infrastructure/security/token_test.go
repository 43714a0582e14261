package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := NewTokenVerifier("secret", "lobby-auth", "authenticated")

	token, err := v.Sign("user-1", time.Minute)
	require.NoError(t, err)

	userID, claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "lobby-auth", claims.Issuer)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := NewTokenVerifier("secret", "", "authenticated")

	expired, err := v.Sign("user-1", -time.Minute)
	require.NoError(t, err)
	_, _, err = v.Verify(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other, err := NewTokenVerifier("other-secret", "", "authenticated").Sign("user-1", time.Minute)
	require.NoError(t, err)
	_, _, err = v.Verify(other)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	wrongAudience, err := NewTokenVerifier("secret", "", "service").Sign("user-1", time.Minute)
	require.NoError(t, err)
	_, _, err = v.Verify(wrongAudience)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)

	noSubject, err := v.Sign("", time.Minute)
	require.NoError(t, err)
	_, _, err = v.Verify(noSubject)
	assert.ErrorIs(t, err, ErrMissingSubject)

	_, _, err = v.Verify("not-a-token")
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)
}

func TestTokenVerifier_NoSecret(t *testing.T) {
	v := NewTokenVerifier("", "", "")
	_, _, err := v.Verify("anything")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
