package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "user-1", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "misepo", claims.Issuer)
}

func TestValidateTokenRejects(t *testing.T) {
	token, err := GenerateToken("secret", "user-1", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("secret", "user-1", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", token},
		{"expired", "secret", expired},
		{"garbage", "secret", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.secret, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateTokenNeedsSecret(t *testing.T) {
	_, err := GenerateToken("", "user-1", time.Hour)
	assert.Error(t, err)
}

func TestGenerateRandomKey(t *testing.T) {
	a, err := GenerateRandomKey(32)
	require.NoError(t, err)
	b, err := GenerateRandomKey(32)
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
