package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	pkgerrors "pulse/pkg/errors"
	"pulse/pkg/metrics"
)

type Repository interface {
	Create(ctx context.Context, project *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	FindByAdmin(ctx context.Context, adminID string) ([]Project, error)
	DeleteMultiple(ctx context.Context, ids []string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, project *Project) (err error) {
	defer observe("create", time.Now(), &err)

	if project.Created.IsZero() {
		project.Created = time.Now().UTC()
	}
	if project.Origins == nil {
		project.Origins = []string{}
	}

	query := `
		INSERT INTO projects (id, name, admin, origins, active, public, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		project.ID, project.Name, project.Admin, pq.Array(project.Origins),
		project.Active, project.Public, project.Created,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("id", project.ID)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (_ *Project, err error) {
	defer observe("get", time.Now(), &err)

	query := `
		SELECT id, name, admin, origins, active, public, created
		FROM projects
		WHERE id = $1
	`

	var p Project
	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Admin, pq.Array(&p.Origins), &p.Active, &p.Public, &p.Created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &p, nil
}

func (r *PostgresRepository) FindByAdmin(ctx context.Context, adminID string) (_ []Project, err error) {
	defer observe("find_by_admin", time.Now(), &err)

	query := `
		SELECT id, name, admin, origins, active, public, created
		FROM projects
		WHERE admin = $1
		ORDER BY created ASC
	`

	rows, err := r.db.QueryContext(ctx, query, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Admin, pq.Array(&p.Origins), &p.Active, &p.Public, &p.Created,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}

func (r *PostgresRepository) DeleteMultiple(ctx context.Context, ids []string) (err error) {
	if len(ids) == 0 {
		return nil
	}
	defer observe("delete_multiple", time.Now(), &err)

	_, err = r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to delete projects: %w", err)
	}

	return nil
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveDatabaseQuery("api-service", "postgresql", "projects_"+operation, time.Since(start), *err)
}
