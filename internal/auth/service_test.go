package auth

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pulse/internal/actiontoken"
	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/internal/mailer"
	"pulse/internal/user"
	pkgerrors "pulse/pkg/errors"
)

type serviceEnv struct {
	users   *fakeUsers
	tokens  *fakeTokens
	mailer  *fakeMailer
	jwt     *TokenManager
	service *Service
}

func newServiceEnv(t *testing.T, verifier IdentityVerifier, users ...user.User) *serviceEnv {
	t.Helper()
	env := &serviceEnv{
		users:  newFakeUsers(users...),
		tokens: newFakeTokens(),
		mailer: &fakeMailer{},
		jwt:    newTestTokenManager(t),
	}
	env.service = NewService(env.users, env.tokens, NewPasswordHasher(bcrypt.MinCost), env.jwt, verifier, env.mailer, logger.NopLogger())
	return env
}

func TestService_RegisterAndLogin(t *testing.T) {
	env := newServiceEnv(t, nil)
	ctx := context.Background()

	session, err := env.service.Register(ctx, "alice@example.com", "long-enough", "https://app")
	require.NoError(t, err)
	assert.False(t, session.User.IsActive)
	assert.Equal(t, 1, session.User.EmailRequests)
	assert.NotEmpty(t, session.AccessToken)

	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, mailer.TemplateSignUp, env.mailer.sent[0].template)
	assert.Equal(t, map[string]string{"url": "https://app/verify/token-1"}, env.mailer.sent[0].params)

	_, err = env.service.Register(ctx, "ALICE@example.com", "long-enough", "https://app")
	assert.Equal(t, http.StatusBadRequest, pkgerrors.ToHTTPStatus(err))

	_, err = env.service.Register(ctx, "bob@example.com", "short", "https://app")
	assert.True(t, pkgerrors.IsValidation(err))

	session, err = env.service.Login(ctx, "alice@example.com", "long-enough")
	require.NoError(t, err)
	claims, err := env.jwt.ValidateAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.Subject)

	_, err = env.service.Login(ctx, "alice@example.com", "wrong-password")
	assert.True(t, pkgerrors.IsUnauthorized(err))

	_, err = env.service.Login(ctx, "nobody@example.com", "long-enough")
	assert.True(t, pkgerrors.IsUnauthorized(err))
}

func TestService_RegisterSurvivesMailFailure(t *testing.T) {
	env := newServiceEnv(t, nil)
	env.mailer.err = fmt.Errorf("kafka unavailable")

	session, err := env.service.Register(context.Background(), "alice@example.com", "long-enough", "https://app")
	require.NoError(t, err)
	assert.NotEmpty(t, session.RefreshToken)
}

func TestService_Google(t *testing.T) {
	profile := &GoogleProfile{Subject: "g-1", Email: "alice@example.com"}

	t.Run("creates account", func(t *testing.T) {
		env := newServiceEnv(t, fakeVerifier{profile: profile})

		session, err := env.service.Google(context.Background(), "id-token")
		require.NoError(t, err)
		assert.True(t, session.User.IsActive)
		assert.Equal(t, "g-1", session.User.GoogleID)
	})

	t.Run("links existing account", func(t *testing.T) {
		existing := user.User{ID: "u-1", Email: "alice@example.com"}
		env := newServiceEnv(t, fakeVerifier{profile: profile}, existing)

		session, err := env.service.Google(context.Background(), "id-token")
		require.NoError(t, err)
		assert.Equal(t, "u-1", session.User.ID)

		stored, err := env.users.Get(context.Background(), "u-1")
		require.NoError(t, err)
		assert.Equal(t, "g-1", stored.GoogleID)
		assert.True(t, stored.IsActive)
	})

	t.Run("linking an unverified account drops its password", func(t *testing.T) {
		hash, err := NewPasswordHasher(4).Hash("attacker-secret")
		require.NoError(t, err)
		squatted := user.User{ID: "u-1", Email: "alice@example.com", Password: hash}
		env := newServiceEnv(t, fakeVerifier{profile: profile}, squatted)

		_, err = env.service.Google(context.Background(), "id-token")
		require.NoError(t, err)

		stored, err := env.users.Get(context.Background(), "u-1")
		require.NoError(t, err)
		assert.Empty(t, stored.Password)
		assert.True(t, stored.IsActive)

		_, err = env.service.Login(context.Background(), "alice@example.com", "attacker-secret")
		assert.True(t, pkgerrors.IsUnauthorized(err))
	})

	t.Run("linking a verified account keeps its password", func(t *testing.T) {
		hash, err := NewPasswordHasher(4).Hash("alice-secret")
		require.NoError(t, err)
		owned := user.User{ID: "u-1", Email: "alice@example.com", Password: hash, IsActive: true}
		env := newServiceEnv(t, fakeVerifier{profile: profile}, owned)

		_, err = env.service.Google(context.Background(), "id-token")
		require.NoError(t, err)

		_, err = env.service.Login(context.Background(), "alice@example.com", "alice-secret")
		assert.NoError(t, err)
	})

	t.Run("verifier rejects", func(t *testing.T) {
		env := newServiceEnv(t, fakeVerifier{err: pkgerrors.ErrUnauthorized})

		_, err := env.service.Google(context.Background(), "id-token")
		assert.True(t, pkgerrors.IsUnauthorized(err))
	})
}

func TestService_Refresh(t *testing.T) {
	admin := user.User{ID: "u-1", Email: "a@example.com", Role: constants.RoleAdmin}
	env := newServiceEnv(t, nil, admin)

	refresh, err := env.jwt.GenerateRefreshToken("u-1")
	require.NoError(t, err)

	access, err := env.service.Refresh(context.Background(), refresh)
	require.NoError(t, err)
	claims, err := env.jwt.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, []string{constants.RoleCustomer, constants.RoleAdmin}, claims.Roles)

	_, err = env.service.Refresh(context.Background(), access)
	assert.True(t, pkgerrors.IsUnauthorized(err))

	orphan, err := env.jwt.GenerateRefreshToken("u-404")
	require.NoError(t, err)
	_, err = env.service.Refresh(context.Background(), orphan)
	assert.True(t, pkgerrors.IsUnauthorized(err))
}

func TestService_TokenFlows(t *testing.T) {
	ctx := context.Background()
	env := newServiceEnv(t, nil,
		user.User{ID: "u-1", Email: "alice@example.com"},
		user.User{ID: "u-2", Email: "bob@example.com"},
	)

	verify, err := env.tokens.Create(ctx, "u-1", actiontoken.ActionEmailVerification, "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, pkgerrors.ToHTTPStatus(env.service.ChangeEmail(ctx, verify.ID)))
	require.NoError(t, env.service.VerifyEmail(ctx, verify.ID))
	stored, _ := env.users.Get(ctx, "u-1")
	assert.True(t, stored.IsActive)

	err = env.service.VerifyEmail(ctx, verify.ID)
	assert.Equal(t, "Incorrect token provided", pkgerrors.ToErrorResponse(err)["error"])

	change, err := env.tokens.Create(ctx, "u-1", actiontoken.ActionEmailChange, "alice@new.example.com")
	require.NoError(t, err)
	require.NoError(t, env.service.ChangeEmail(ctx, change.ID))
	stored, _ = env.users.Get(ctx, "u-1")
	assert.Equal(t, "alice@new.example.com", stored.Email)

	taken, err := env.tokens.Create(ctx, "u-1", actiontoken.ActionEmailChange, "bob@example.com")
	require.NoError(t, err)
	err = env.service.ChangeEmail(ctx, taken.ID)
	assert.Equal(t, "User with this email already exists", pkgerrors.ToErrorResponse(err)["error"])
}
