package user

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pulse/internal/actiontoken"
	"pulse/internal/mailer"
	"pulse/internal/project"
	pkgerrors "pulse/pkg/errors"
)

type memoryRepository struct {
	mu    sync.Mutex
	users map[string]User
}

func newMemoryRepository(users ...User) *memoryRepository {
	r := &memoryRepository{users: map[string]User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memoryRepository) emailTaken(email, exceptID string) bool {
	for id, u := range r.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *memoryRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if r.emailTaken(user.Email, user.ID) {
		return pkgerrors.ErrConflict.WithDetail("email", user.Email)
	}
	r.users[user.ID] = *user
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return &u, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (r *memoryRepository) FindByGoogleID(_ context.Context, googleID string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if googleID != "" && u.GoogleID == googleID {
			return &u, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (r *memoryRepository) List(_ context.Context, take, skip int) ([]User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	slices.SortFunc(all, func(a, b User) int { return strings.Compare(a.Email, b.Email) })
	total := len(all)
	if skip > total {
		skip = total
	}
	end := min(skip+take, total)
	return all[skip:end], total, nil
}

func (r *memoryRepository) Search(_ context.Context, query string, limit int) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []User
	for _, u := range r.users {
		if strings.Contains(u.Email, query) && len(found) < limit {
			found = append(found, u)
		}
	}
	return found, nil
}

func (r *memoryRepository) Update(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pkgerrors.ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return pkgerrors.ErrConflict
	}
	r.users[user.ID] = *user
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return pkgerrors.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type memoryProjects struct {
	projects  []project.Project
	deleted   []string
	deleteErr error
}

func (p *memoryProjects) Create(_ context.Context, pr *project.Project) error {
	p.projects = append(p.projects, *pr)
	return nil
}

func (p *memoryProjects) Get(_ context.Context, id string) (*project.Project, error) {
	for _, pr := range p.projects {
		if pr.ID == id {
			return &pr, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (p *memoryProjects) FindByAdmin(_ context.Context, adminID string) ([]project.Project, error) {
	var out []project.Project
	for _, pr := range p.projects {
		if pr.Admin == adminID {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (p *memoryProjects) DeleteMultiple(_ context.Context, ids []string) error {
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.deleted = append(p.deleted, ids...)
	return nil
}

type memoryTokens struct {
	created []actiontoken.Token
}

func (t *memoryTokens) Create(_ context.Context, userID string, action actiontoken.Action, newValue string) (*actiontoken.Token, error) {
	token := actiontoken.Token{ID: fmt.Sprintf("token-%d", len(t.created)+1), UserID: userID, Action: action, NewValue: newValue}
	t.created = append(t.created, token)
	return &token, nil
}

func (t *memoryTokens) Consume(_ context.Context, id string, action actiontoken.Action) (*actiontoken.Token, error) {
	for i, token := range t.created {
		if token.ID == id && token.Action == action {
			t.created = slices.Delete(t.created, i, i+1)
			return &token, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (t *memoryTokens) DeleteForUser(context.Context, string) error { return nil }

type sentMail struct {
	to       string
	template mailer.Template
	params   any
}

type recordingMailer struct {
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to string, template mailer.Template, params any) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, template: template, params: params})
	return nil
}

type plainHasher struct{}

func (plainHasher) Validate(password string) error {
	if len(password) < 8 {
		return pkgerrors.ErrValidation.WithMessage("Minimum password length is 8 letters")
	}
	return nil
}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

type fixedCooldown struct {
	allow    bool
	calls    int
	released int
}

func (c *fixedCooldown) Acquire(context.Context, string) (bool, error) {
	c.calls++
	return c.allow, nil
}

func (c *fixedCooldown) Release(context.Context, string) {
	c.released++
}

type recordingEraser struct {
	projectIDs []string
}

func (e *recordingEraser) DeleteByProjects(_ context.Context, ids []string) error {
	e.projectIDs = append(e.projectIDs, ids...)
	return nil
}
