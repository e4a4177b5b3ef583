package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pulse/internal/constants"
	pkgerrors "pulse/pkg/errors"
	"pulse/pkg/metrics"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*User, error)
	List(ctx context.Context, take, skip int) ([]User, int, error)
	Search(ctx context.Context, query string, limit int) ([]User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
}

const userColumns = `id, email, password, google_id, role, is_active, plan_code, email_requests, exported_at, created, updated`

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *User) (err error) {
	defer observe("create", time.Now(), &err)

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = constants.RoleCustomer
	}
	if user.PlanCode == "" {
		user.PlanCode = constants.PlanNone
	}
	now := time.Now().UTC()
	user.Created = now
	user.Updated = now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.Email, nullable(user.Password), nullable(user.GoogleID),
		user.Role, user.IsActive, user.PlanCode, user.EmailRequests,
		user.ExportedAt, user.Created, user.Updated,
	)
	if err != nil {
		return translateWriteError(err, user.Email, "create")
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (_ *User, err error) {
	defer observe("get", time.Now(), &err)

	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (_ *User, err error) {
	defer observe("find_by_email", time.Now(), &err)
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *PostgresRepository) FindByGoogleID(ctx context.Context, googleID string) (_ *User, err error) {
	defer observe("find_by_google_id", time.Now(), &err)
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg string) (*User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithMessage("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) List(ctx context.Context, take, skip int) (_ []User, _ int, err error) {
	defer observe("list", time.Now(), &err)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	users, err := r.query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created DESC
		LIMIT $1 OFFSET $2
	`, take, skip)
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *PostgresRepository) Search(ctx context.Context, query string, limit int) (_ []User, err error) {
	defer observe("search", time.Now(), &err)

	pattern := "%" + escapeLike(query) + "%"
	return r.query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email ILIKE $1 OR id::text ILIKE $1
		ORDER BY created DESC
		LIMIT $2
	`, pattern, limit)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...interface{}) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *User) (err error) {
	defer observe("update", time.Now(), &err)

	user.Updated = time.Now().UTC()

	query := `
		UPDATE users
		SET email = $1, password = $2, google_id = $3, role = $4, is_active = $5,
		    plan_code = $6, email_requests = $7, exported_at = $8, updated = $9
		WHERE id = $10
	`

	res, err := r.db.ExecContext(ctx, query,
		user.Email, nullable(user.Password), nullable(user.GoogleID), user.Role, user.IsActive,
		user.PlanCode, user.EmailRequests, user.ExportedAt, user.Updated, user.ID,
	)
	if err != nil {
		return translateWriteError(err, user.Email, "update")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithMessage("user not found")
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	defer observe("delete", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithMessage("user not found")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u                  User
		password, googleID sql.NullString
		exportedAt         sql.NullTime
	)

	err := row.Scan(
		&u.ID, &u.Email, &password, &googleID, &u.Role, &u.IsActive,
		&u.PlanCode, &u.EmailRequests, &exportedAt, &u.Created, &u.Updated,
	)
	if err != nil {
		return nil, err
	}

	u.Password = password.String
	u.GoogleID = googleID.String
	if exportedAt.Valid {
		t := exportedAt.Time
		u.ExportedAt = &t
	}

	return &u, nil
}

func translateWriteError(err error, email, operation string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pkgerrors.ErrConflict.WithCause(err).WithDetail("email", email)
	}
	return fmt.Errorf("failed to %s user: %w", operation, err)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveDatabaseQuery("api-service", "postgresql", "users_"+operation, time.Since(start), *err)
}
