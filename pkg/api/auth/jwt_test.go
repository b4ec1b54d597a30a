package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService("short", "")
	assert.ErrorIs(t, err, ErrInvalidSecretLength)
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService(testSecret, "")
	require.NoError(t, err)

	token, expiresAt, err := svc.IssueToken("ops", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "mediaforge", claims.Issuer)
	assert.Equal(t, "read", claims.Scope)
}

func TestJWTService_Rejects(t *testing.T) {
	svc, err := NewJWTService(testSecret, "mediaforge")
	require.NoError(t, err)

	t.Run("Expired", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		svc.now = func() time.Time { return past }
		token, _, err := svc.IssueToken("ops", time.Minute)
		svc.now = time.Now
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("OtherSecret", func(t *testing.T) {
		other, err := NewJWTService(strings.Repeat("x", 32), "mediaforge")
		require.NoError(t, err)
		token, _, err := other.IssueToken("ops", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("OtherIssuer", func(t *testing.T) {
		other, err := NewJWTService(testSecret, "someone-else")
		require.NoError(t, err)
		token, _, err := other.IssueToken("ops", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mediaforge",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
