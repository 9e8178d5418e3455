package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	secret := "test-secret-key"
	userID := "user-123"
	role := "librarian"

	t.Run("valid token", func(t *testing.T) {
		token, jti, err := GenerateToken(secret, userID, "ada@example.com", role, time.Hour)
		require.NoError(t, err)

		claims, err := ParseToken(secret, token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.Sub)
		assert.Equal(t, role, claims.Role)
		assert.Equal(t, "ada@example.com", claims.Email)
		assert.Equal(t, jti, claims.ID)
	})

	t.Run("invalid signature", func(t *testing.T) {
		token, _, err := GenerateToken("wrong-secret", userID, "", role, time.Hour)
		require.NoError(t, err)

		claims, err := ParseToken(secret, token)
		assert.Error(t, err)
		assert.Nil(t, claims)
	})

	t.Run("expired token", func(t *testing.T) {
		c := Claims{
			Sub:  userID,
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
		require.NoError(t, err)

		claims, err := ParseToken(secret, token)
		assert.Error(t, err)
		assert.Nil(t, claims)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Sub: userID}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ParseToken(secret, token)
		assert.Error(t, err)
	})

	t.Run("malformed token", func(t *testing.T) {
		claims, err := ParseToken(secret, "not.a.valid.token")
		assert.Error(t, err)
		assert.Nil(t, claims)
	})
}

func TestGenerateToken_UniqueJTIs(t *testing.T) {
	_, jti1, err := GenerateToken("s", "u", "", "", time.Hour)
	require.NoError(t, err)
	_, jti2, err := GenerateToken("s", "u", "", "", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, jti1, jti2)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("Test123!@#")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "Test123!@#"))
	assert.False(t, VerifyPassword(hash, "wrong"))

	hash2, err := HashPassword("Test123!@#")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"Test123!@#", nil},
		{"SecureP@ss1", nil},
		{"Te1!", ErrPasswordTooShort},
		{"test123!@#", ErrPasswordNoUpper},
		{"TEST123!@#", ErrPasswordNoLower},
		{"TestTest!@#", ErrPasswordNoNumber},
		{"Test12345", ErrPasswordNoSpecialChar},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			assert.Equal(t, tt.want, err)
			assert.Equal(t, tt.want != nil, IsWeakPassword(err))
		})
	}
}
