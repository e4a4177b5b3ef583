package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pulse/internal/actiontoken"
	"pulse/internal/mailer"
	"pulse/internal/user"
	pkgerrors "pulse/pkg/errors"
)

type fakeUsers struct {
	mu    sync.Mutex
	seq   int
	users map[string]user.User
}

func newFakeUsers(users ...user.User) *fakeUsers {
	f := &fakeUsers{users: map[string]user.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) find(match func(user.User) bool) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return pkgerrors.ErrConflict
		}
	}
	if u.ID == "" {
		f.seq++
		u.ID = fmt.Sprintf("user-%d", f.seq)
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) Get(_ context.Context, id string) (*user.User, error) {
	return f.find(func(u user.User) bool { return u.ID == id })
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	return f.find(func(u user.User) bool { return strings.EqualFold(u.Email, email) })
}

func (f *fakeUsers) FindByGoogleID(_ context.Context, googleID string) (*user.User, error) {
	return f.find(func(u user.User) bool { return u.GoogleID != "" && u.GoogleID == googleID })
}

func (f *fakeUsers) List(context.Context, int, int) ([]user.User, int, error) {
	return nil, 0, nil
}

func (f *fakeUsers) Search(context.Context, string, int) ([]user.User, error) {
	return nil, nil
}

func (f *fakeUsers) Update(_ context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return pkgerrors.ErrConflict
		}
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

type fakeTokens struct {
	tokens map[string]actiontoken.Token
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: map[string]actiontoken.Token{}}
}

func (f *fakeTokens) Create(_ context.Context, userID string, action actiontoken.Action, newValue string) (*actiontoken.Token, error) {
	token := actiontoken.Token{ID: fmt.Sprintf("token-%d", len(f.tokens)+1), UserID: userID, Action: action, NewValue: newValue}
	f.tokens[token.ID] = token
	return &token, nil
}

func (f *fakeTokens) Consume(_ context.Context, id string, action actiontoken.Action) (*actiontoken.Token, error) {
	token, ok := f.tokens[id]
	if !ok || token.Action != action {
		return nil, pkgerrors.ErrNotFound
	}
	delete(f.tokens, id)
	return &token, nil
}

func (f *fakeTokens) DeleteForUser(context.Context, string) error { return nil }

type sentMail struct {
	to       string
	template mailer.Template
	params   any
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to string, template mailer.Template, params any) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, template: template, params: params})
	return nil
}

type fakeVerifier struct {
	profile *GoogleProfile
	err     error
}

func (v fakeVerifier) Verify(context.Context, string) (*GoogleProfile, error) {
	return v.profile, v.err
}
