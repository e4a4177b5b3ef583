package auth

import (
	"context"
	"fmt"
	"strings"

	"pulse/internal/actiontoken"
	"pulse/internal/logger"
	"pulse/internal/mailer"
	"pulse/internal/user"
	pkgerrors "pulse/pkg/errors"
)

const msgInvalidCredentials = "Invalid email or password"

// IdentityVerifier resolves a third party ID token to a profile.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleProfile, error)
}

// Session is returned by every sign-in flow.
type Session struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
}

type Service struct {
	users     user.Repository
	tokens    actiontoken.Repository
	passwords *PasswordHasher
	jwt       *TokenManager
	google    IdentityVerifier
	mailer    mailer.Mailer
	logger    logger.Logger
}

func NewService(
	users user.Repository,
	tokens actiontoken.Repository,
	passwords *PasswordHasher,
	jwt *TokenManager,
	google IdentityVerifier,
	mail mailer.Mailer,
	log logger.Logger,
) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		jwt:       jwt,
		google:    google,
		mailer:    mail,
		logger:    log,
	}
}

// Register creates an inactive account and mails its verification link.
// A failed mail does not fail the registration; the user can ask for a
// new link.
func (s *Service) Register(ctx context.Context, email, password, origin string) (*Session, error) {
	email = strings.TrimSpace(email)
	if err := s.passwords.Validate(password); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.ErrBadRequest.WithMessage("User with this email already exists")
	} else if !pkgerrors.IsNotFound(err) {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	u := &user.User{Email: email, Password: hash, EmailRequests: 1}
	if err := s.users.Create(ctx, u); err != nil {
		if pkgerrors.IsConflict(err) {
			return nil, pkgerrors.ErrBadRequest.WithCause(err).WithMessage("User with this email already exists")
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if err := s.sendVerification(ctx, u, origin); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to send verification mail", "error", err, "target_user_id", u.ID)
	}

	return s.session(u)
}

func (s *Service) sendVerification(ctx context.Context, u *user.User, origin string) error {
	token, err := s.tokens.Create(ctx, u.ID, actiontoken.ActionEmailVerification, u.Email)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/verify/%s", origin, token.ID)
	return s.mailer.Send(ctx, u.Email, mailer.TemplateSignUp, map[string]string{"url": url})
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if pkgerrors.IsNotFound(err) {
		return nil, pkgerrors.ErrUnauthorized.WithMessage(msgInvalidCredentials)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if !s.passwords.Compare(u.Password, password) {
		return nil, pkgerrors.ErrUnauthorized.WithMessage(msgInvalidCredentials)
	}

	return s.session(u)
}

// Google signs in with a Google ID token. An existing account with the same
// email is linked to the Google identity; otherwise a new active account is
// created.
func (s *Service) Google(ctx context.Context, idToken string) (*Session, error) {
	profile, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	u, err := s.users.FindByGoogleID(ctx, profile.Subject)
	if err == nil {
		return s.session(u)
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	u, err = s.users.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if !u.IsActive {
			// Nobody proved ownership of the address before, so a password
			// set at registration cannot be trusted.
			u.Password = ""
		}
		u.GoogleID = profile.Subject
		u.IsActive = true
		if err := s.users.Update(ctx, u); err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
	case pkgerrors.IsNotFound(err):
		u = &user.User{Email: profile.Email, GoogleID: profile.Subject, IsActive: true}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
	default:
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return s.session(u)
}

// Refresh issues a new access token. Roles are read again so a demoted
// admin loses access with the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}

	u, err := s.users.Get(ctx, claims.Subject)
	if pkgerrors.IsNotFound(err) {
		return "", pkgerrors.ErrUnauthorized.WithMessage("invalid token")
	}
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	return s.jwt.GenerateAccessToken(u.ID, u.Roles())
}

// VerifyEmail activates the account the token was issued for.
func (s *Service) VerifyEmail(ctx context.Context, tokenID string) error {
	u, _, err := s.consume(ctx, tokenID, actiontoken.ActionEmailVerification)
	if err != nil {
		return err
	}

	u.IsActive = true
	if err := s.users.Update(ctx, u); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return nil
}

// ChangeEmail applies the pending email change carried by the token.
func (s *Service) ChangeEmail(ctx context.Context, tokenID string) error {
	u, token, err := s.consume(ctx, tokenID, actiontoken.ActionEmailChange)
	if err != nil {
		return err
	}

	u.Email = token.NewValue
	if err := s.users.Update(ctx, u); err != nil {
		if pkgerrors.IsConflict(err) {
			return pkgerrors.ErrBadRequest.WithCause(err).WithMessage("User with this email already exists")
		}
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return nil
}

func (s *Service) consume(ctx context.Context, tokenID string, action actiontoken.Action) (*user.User, *actiontoken.Token, error) {
	token, err := s.tokens.Consume(ctx, tokenID, action)
	if pkgerrors.IsNotFound(err) {
		return nil, nil, pkgerrors.ErrBadRequest.WithCause(err).WithMessage("Incorrect token provided")
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	u, err := s.users.Get(ctx, token.UserID)
	if err != nil {
		return nil, nil, pkgerrors.ErrBadRequest.WithCause(err).WithMessage("Incorrect token provided")
	}
	return u, token, nil
}

func (s *Service) session(u *user.User) (*Session, error) {
	pair, err := s.jwt.IssuePair(u.ID, u.Roles())
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return &Session{User: u, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}
