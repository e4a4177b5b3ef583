// Package actiontoken stores single-use tokens mailed to users to confirm
// an action such as verifying or changing their email address.
package actiontoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "pulse/pkg/errors"
	"pulse/pkg/metrics"
)

type Action string

const (
	ActionEmailVerification Action = "email_verification"
	ActionEmailChange       Action = "email_change"
)

type Token struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Action   Action    `json:"action"`
	NewValue string    `json:"new_value,omitempty"`
	Created  time.Time `json:"created"`
}

type Repository interface {
	Create(ctx context.Context, userID string, action Action, newValue string) (*Token, error)
	// Consume returns the token and deletes it. A token of another action
	// is reported as not found and left in place.
	Consume(ctx context.Context, id string, action Action) (*Token, error)
	DeleteForUser(ctx context.Context, userID string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, action Action, newValue string) (*Token, error) {
	token := &Token{
		ID:       uuid.New().String(),
		UserID:   userID,
		Action:   action,
		NewValue: newValue,
		Created:  time.Now().UTC(),
	}

	start := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO action_tokens (id, user_id, action, new_value, created)
		VALUES ($1, $2, $3, $4, $5)
	`, token.ID, token.UserID, string(token.Action), nullable(token.NewValue), token.Created)
	metrics.ObserveDatabaseQuery("api-service", "postgresql", "action_tokens_create", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to create action token: %w", err)
	}

	return token, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, id string, action Action) (*Token, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pkgerrors.ErrNotFound.WithMessage("token not found")
	}

	var (
		token    Token
		newValue sql.NullString
	)

	start := time.Now()
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM action_tokens
		WHERE id = $1 AND action = $2
		RETURNING id, user_id, action, new_value, created
	`, id, string(action)).Scan(&token.ID, &token.UserID, &token.Action, &newValue, &token.Created)
	metrics.ObserveDatabaseQuery("api-service", "postgresql", "action_tokens_consume", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithMessage("token not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume action token: %w", err)
	}

	token.NewValue = newValue.String
	return &token, nil
}

func (r *PostgresRepository) DeleteForUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM action_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete action tokens: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
