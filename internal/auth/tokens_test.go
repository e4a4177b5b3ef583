package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/config"
	"pulse/internal/constants"
	pkgerrors "pulse/pkg/errors"
)

func newTestTokenManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(config.JWTConfig{AccessSecret: "access-secret", RefreshSecret: "refresh-secret"})
	require.NoError(t, err)
	return m
}

func TestNewTokenManager_RequiresSecrets(t *testing.T) {
	_, err := NewTokenManager(config.JWTConfig{AccessSecret: "only-one"})
	assert.Error(t, err)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := newTestTokenManager(t)

	pair, err := m.IssuePair("user-1", []string{constants.RoleCustomer, constants.RoleAdmin})
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, []string{constants.RoleCustomer, constants.RoleAdmin}, claims.Roles)
	assert.Equal(t, constants.DefaultTokenIssuer, claims.Issuer)

	claims, err = m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Empty(t, claims.Roles)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := newTestTokenManager(t)
	pair, err := m.IssuePair("user-1", nil)
	require.NoError(t, err)

	expired, err := m.sign("user-1", nil, tokenTypeAccess, -time.Minute, m.accessSecret)
	require.NoError(t, err)

	other, err := NewTokenManager(config.JWTConfig{AccessSecret: "other", RefreshSecret: "other", Issuer: "someone-else"})
	require.NoError(t, err)
	foreign, err := other.GenerateAccessToken("user-1", nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		validate func(string) (*Claims, error)
		token    string
	}{
		{name: "refresh used as access", validate: m.ValidateAccessToken, token: pair.RefreshToken},
		{name: "access used as refresh", validate: m.ValidateRefreshToken, token: pair.AccessToken},
		{name: "expired", validate: m.ValidateAccessToken, token: expired},
		{name: "foreign issuer and secret", validate: m.ValidateAccessToken, token: foreign},
		{name: "garbage", validate: m.ValidateAccessToken, token: "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validate(tt.token)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsUnauthorized(err))
		})
	}
}
