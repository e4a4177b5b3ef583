package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pulse/internal/actiontoken"
	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/internal/mailer"
	"pulse/internal/project"
	pkgerrors "pulse/pkg/errors"
	"pulse/pkg/metrics"
)

const (
	msgEmailTaken         = "User with this email already exists"
	msgCancelSubFirst     = "cancelSubFirst"
	msgAccountDeleteError = "accountDeleteError"
)

type Service interface {
	List(ctx context.Context, take, skip int) (*Page, error)
	Search(ctx context.Context, query string) ([]User, error)
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	Delete(ctx context.Context, id string) error
	SendEmailConfirmation(ctx context.Context, id, origin string) (bool, error)
	Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error)
	UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest, origin string) (*User, error)
	Export(ctx context.Context, id string) (*User, error)
}

type PasswordHasher interface {
	Validate(password string) error
	Hash(password string) (string, error)
}

// AnalyticsEraser removes the collected analytics of projects.
type AnalyticsEraser interface {
	DeleteByProjects(ctx context.Context, projectIDs []string) error
}

type Dependencies struct {
	Projects  project.Repository
	Tokens    actiontoken.Repository
	Mailer    mailer.Mailer
	Passwords PasswordHasher
}

type service struct {
	repo      Repository
	projects  project.Repository
	tokens    actiontoken.Repository
	mailer    mailer.Mailer
	passwords PasswordHasher
	analytics AnalyticsEraser
	cooldown  Cooldown
	logger    logger.Logger

	maxEmailRequests    int
	exportTimeframeDays int
	now                 func() time.Time
}

type ServiceOption func(*service)

func WithAnalytics(eraser AnalyticsEraser) ServiceOption {
	return func(s *service) {
		s.analytics = eraser
	}
}

func WithCooldown(cooldown Cooldown) ServiceOption {
	return func(s *service) {
		s.cooldown = cooldown
	}
}

func WithLogger(log logger.Logger) ServiceOption {
	return func(s *service) {
		s.logger = log
	}
}

func WithManagementConfig(cfg config.ManagementConfig) ServiceOption {
	return func(s *service) {
		if cfg.MaxEmailRequests > 0 {
			s.maxEmailRequests = cfg.MaxEmailRequests
		}
		if cfg.ExportTimeframeDays > 0 {
			s.exportTimeframeDays = cfg.ExportTimeframeDays
		}
	}
}

func withClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		s.now = now
	}
}

func NewService(repo Repository, deps Dependencies, opts ...ServiceOption) Service {
	s := &service{
		repo:                repo,
		projects:            deps.Projects,
		tokens:              deps.Tokens,
		mailer:              deps.Mailer,
		passwords:           deps.Passwords,
		logger:              logger.NopLogger(),
		maxEmailRequests:    constants.MaxEmailRequests,
		exportTimeframeDays: constants.GDPRExportTimeframeDays,
		now:                 time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) List(ctx context.Context, take, skip int) (*Page, error) {
	users, total, err := s.repo.List(ctx, take, skip)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return &Page{Results: users, Total: total}, nil
}

func (s *service) Search(ctx context.Context, query string) ([]User, error) {
	users, err := s.repo.Search(ctx, strings.TrimSpace(query), constants.DefaultLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return users, nil
}

func (s *service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:    req.Email,
		Password: hash,
		Role:     req.Role,
		PlanCode: req.PlanCode,
		IsActive: true,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, translateEmailConflict(err)
	}

	metrics.IncAccountOperation("create", "success")
	return user, nil
}

// Delete removes an account with its projects and their analytics. Paid
// accounts must cancel their subscription first.
func (s *service) Delete(ctx context.Context, id string) error {
	user, err := s.repo.Get(ctx, id)
	if pkgerrors.IsNotFound(err) {
		return pkgerrors.ErrBadRequest.WithMessage(fmt.Sprintf("User with id %s does not exist", id))
	}
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if !user.CanBeDeleted() {
		metrics.IncAccountOperation("delete", "refused")
		return pkgerrors.ErrBadRequest.WithMessage(msgCancelSubFirst)
	}

	if err := s.deleteAccount(ctx, user); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to delete account", "error", err, "target_user_id", id)
		metrics.IncAccountOperation("delete", "error")
		return pkgerrors.ErrBadRequest.WithCause(err).WithMessage(msgAccountDeleteError)
	}

	metrics.IncAccountOperation("delete", "success")
	return nil
}

func (s *service) deleteAccount(ctx context.Context, user *User) error {
	projects, err := s.projects.FindByAdmin(ctx, user.ID)
	if err != nil {
		return err
	}

	if ids := project.IDs(projects); len(ids) > 0 {
		if err := s.projects.DeleteMultiple(ctx, ids); err != nil {
			return err
		}
		if s.analytics != nil {
			if err := s.analytics.DeleteByProjects(ctx, ids); err != nil {
				return err
			}
		}
	}

	return s.repo.Delete(ctx, user.ID)
}

// SendEmailConfirmation mails a new verification link. It returns false
// without sending when the account needs no confirmation, the request
// limit is used up or the cooldown is running.
func (s *service) SendEmailConfirmation(ctx context.Context, id, origin string) (sent bool, err error) {
	user, err := s.repo.Get(ctx, id)
	if pkgerrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if user.Email == "" || user.IsActive || user.EmailRequests >= s.maxEmailRequests {
		return false, nil
	}

	if s.cooldown != nil {
		ok, err := s.cooldown.Acquire(ctx, user.ID)
		if err != nil {
			return false, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		if !ok {
			return false, nil
		}
		defer func() {
			if !sent {
				s.cooldown.Release(ctx, user.ID)
			}
		}()
	}

	token, err := s.tokens.Create(ctx, user.ID, actiontoken.ActionEmailVerification, user.Email)
	if err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	url := fmt.Sprintf("%s/verify/%s", origin, token.ID)
	if err := s.mailer.Send(ctx, user.Email, mailer.TemplateSignUp, map[string]string{"url": url}); err != nil {
		metrics.IncAccountOperation("confirm_email", "failed")
		return false, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	// The mail is out, so the cooldown stays even if counting fails.
	sent = true
	user.EmailRequests++
	if err := s.repo.Update(ctx, user); err != nil {
		return sent, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	metrics.IncAccountOperation("confirm_email", "success")
	return sent, nil
}

// Update applies an admin edit, creating the user when the id is unknown.
func (s *service) Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pkgerrors.ErrBadRequest.WithMessage("invalid user id")
	}

	var hash string
	if req.Password != nil && *req.Password != "" {
		var err error
		if hash, err = s.hashPassword(*req.Password); err != nil {
			return nil, err
		}
	}

	user, err := s.repo.Get(ctx, id)
	switch {
	case pkgerrors.IsNotFound(err):
		if req.Email == nil || *req.Email == "" {
			return nil, pkgerrors.ErrBadRequest.WithMessage("email is required to create a user")
		}
		user = &User{ID: id}
		applyUpdate(user, req, hash)
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, translateEmailConflict(err)
		}
		return user, nil
	case err != nil:
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	applyUpdate(user, req, hash)
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, translateEmailConflict(err)
	}

	metrics.IncAccountOperation("update", "success")
	return user, nil
}

func applyUpdate(user *User, req UpdateUserRequest, hash string) {
	if req.Email != nil && *req.Email != "" {
		user.Email = *req.Email
	}
	if hash != "" {
		user.Password = hash
	}
	if req.Role != nil && *req.Role != "" {
		user.Role = *req.Role
	}
	if req.PlanCode != nil && *req.PlanCode != "" {
		user.PlanCode = *req.PlanCode
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
}

// UpdateProfile changes the caller's own password and starts an email
// change. The new address only takes effect once the link mailed to the
// current address is followed.
func (s *service) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest, origin string) (*User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.ErrBadRequest.WithCause(err).WithMessage("user not found")
	}

	if req.Password != "" {
		hash, err := s.hashPassword(req.Password)
		if err != nil {
			return nil, pkgerrors.ErrBadRequest.WithCause(err).WithMessage(messageOf(err))
		}
		user.Password = hash
		if err := s.repo.Update(ctx, user); err != nil {
			return nil, pkgerrors.ErrBadRequest.WithCause(err).WithMessage("failed to update password")
		}
		if err := s.mailer.Send(ctx, user.Email, mailer.TemplatePasswordChanged, nil); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to send password changed mail", "error", err)
		}
	}

	if req.Email != "" && !strings.EqualFold(req.Email, user.Email) {
		if err := s.requestEmailChange(ctx, user, req.Email, origin); err != nil {
			return nil, err
		}
	}

	return user, nil
}

func (s *service) requestEmailChange(ctx context.Context, user *User, email, origin string) error {
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return pkgerrors.ErrBadRequest.WithMessage(msgEmailTaken)
	}
	if !pkgerrors.IsNotFound(err) {
		return pkgerrors.ErrBadRequest.WithCause(err).WithMessage(messageOf(err))
	}

	token, err := s.tokens.Create(ctx, user.ID, actiontoken.ActionEmailChange, email)
	if err != nil {
		return pkgerrors.ErrBadRequest.WithCause(err).WithMessage("failed to create email change token")
	}

	url := fmt.Sprintf("%s/change-email/%s", origin, token.ID)
	if err := s.mailer.Send(ctx, user.Email, mailer.TemplateMailAddressChangeConfirmation, map[string]string{"url": url}); err != nil {
		return pkgerrors.ErrBadRequest.WithCause(err).WithMessage("failed to send confirmation mail")
	}

	metrics.IncAccountOperation("email_change_requested", "success")
	return nil
}

// Export mails the account data to its owner, at most once per export
// timeframe.
func (s *service) Export(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	now := s.now().UTC()
	if !s.exportAllowed(user.ExportedAt, now) {
		metrics.IncAccountOperation("export", "refused")
		return nil, pkgerrors.ErrMethodNotAllowed.WithMessage(fmt.Sprintf(
			"Please, try again later. You can request a GDPR Export only once per %d days.", s.exportTimeframeDays))
	}

	projects, err := s.projects.FindByAdmin(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if err := s.mailer.Send(ctx, user.Email, mailer.TemplateGDPRDataExport, buildExportData(user, projects)); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	user.ExportedAt = &now
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	metrics.IncAccountOperation("export", "success")
	return user, nil
}

// exportAllowed compares calendar days: an export made on day D allows the
// next one from day D+timeframe+1.
func (s *service) exportAllowed(exportedAt *time.Time, now time.Time) bool {
	if exportedAt == nil {
		return true
	}
	next := truncateDay(exportedAt.UTC().AddDate(0, 0, s.exportTimeframeDays))
	return truncateDay(now).After(next)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func buildExportData(user *User, projects []project.Project) ExportData {
	exportedAt := "-"
	if user.ExportedAt != nil {
		exportedAt = user.ExportedAt.Format(constants.ExportDateLayout)
	}

	data := ExportData{
		User: exportUser{
			ID:         user.ID,
			Email:      user.Email,
			Role:       user.Role,
			PlanCode:   user.PlanCode,
			IsActive:   user.IsActive,
			Created:    user.Created.Format(constants.ExportDateLayout),
			Updated:    user.Updated.Format(constants.ExportDateLayout),
			ExportedAt: exportedAt,
		},
		Projects: make([]exportProject, 0, len(projects)),
	}

	for _, p := range projects {
		data.Projects = append(data.Projects, exportProject{
			ID:      p.ID,
			Name:    p.Name,
			Origins: strings.Join(p.Origins, ", "),
			Active:  p.Active,
			Public:  p.Public,
			Created: p.Created.Format(constants.ExportDateLayout),
		})
	}

	return data
}

func (s *service) hashPassword(password string) (string, error) {
	if err := s.passwords.Validate(password); err != nil {
		return "", err
	}
	return s.passwords.Hash(password)
}

func translateEmailConflict(err error) error {
	if pkgerrors.IsConflict(err) {
		return pkgerrors.ErrBadRequest.WithCause(err).WithMessage(msgEmailTaken)
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func messageOf(err error) string {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
