package iam

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/clinic-portal/pkg/types"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	issuer := NewTokenIssuer("secret", "clinic-portal", 15*time.Minute, func() time.Time { return now })

	token, err := issuer.Issue(&types.UserClaims{UserID: "u-1", Email: "a@b.com", Role: "doctor", ClinicIDs: []string{"c1"}, SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(900), token.ExpiresIn)

	claims, err := issuer.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, &types.UserClaims{UserID: "u-1", Email: "a@b.com", Role: "doctor", ClinicIDs: []string{"c1"}, SessionID: "s-1"}, claims)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	issuer := NewTokenIssuer("secret", "clinic-portal", time.Minute, func() time.Time { return now })
	token, err := issuer.Issue(&types.UserClaims{UserID: "u-1", Role: "patient"})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer("other", "clinic-portal", time.Minute, func() time.Time { return now })
		_, err := other.Validate(token.AccessToken)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenIssuer("secret", "someone-else", time.Minute, func() time.Time { return now })
		_, err := other.Validate(token.AccessToken)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenIssuer("secret", "clinic-portal", time.Minute, func() time.Time { return now.Add(2 * time.Minute) })
		_, err := later.Validate(token.AccessToken)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{UserID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Validate(unsigned)
		assert.Error(t, err)
	})
}
