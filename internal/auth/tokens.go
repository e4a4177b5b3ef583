package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pulse/internal/config"
	"pulse/internal/constants"
	pkgerrors "pulse/pkg/errors"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type Claims struct {
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenManager issues and validates HS256 access and refresh tokens. The
// two kinds are signed with different secrets.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

func NewTokenManager(cfg config.JWTConfig) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("jwt secrets are required")
	}

	m := &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
	}
	if m.accessTTL == 0 {
		m.accessTTL = constants.DefaultAccessTokenTTL
	}
	if m.refreshTTL == 0 {
		m.refreshTTL = constants.DefaultRefreshTokenTTL
	}
	if m.issuer == "" {
		m.issuer = constants.DefaultTokenIssuer
	}

	return m, nil
}

func (m *TokenManager) IssuePair(userID string, roles []string) (TokenPair, error) {
	access, err := m.GenerateAccessToken(userID, roles)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.GenerateRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *TokenManager) GenerateAccessToken(userID string, roles []string) (string, error) {
	return m.sign(userID, roles, tokenTypeAccess, m.accessTTL, m.accessSecret)
}

func (m *TokenManager) GenerateRefreshToken(userID string) (string, error) {
	return m.sign(userID, nil, tokenTypeRefresh, m.refreshTTL, m.refreshSecret)
}

func (m *TokenManager) ValidateAccessToken(token string) (*Claims, error) {
	return m.validate(token, tokenTypeAccess, m.accessSecret)
}

func (m *TokenManager) ValidateRefreshToken(token string) (*Claims, error) {
	return m.validate(token, tokenTypeRefresh, m.refreshSecret)
}

func (m *TokenManager) sign(userID string, roles []string, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := &Claims{
		Roles:     roles,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) validate(tokenString, tokenType string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, pkgerrors.ErrUnauthorized.WithCause(err).WithMessage("invalid token")
	}
	if !token.Valid || claims.TokenType != tokenType || claims.Subject == "" {
		return nil, pkgerrors.ErrUnauthorized.WithMessage("invalid token")
	}
	return claims, nil
}
