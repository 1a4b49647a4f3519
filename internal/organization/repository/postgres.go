package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"loginus/internal/errs"
	"loginus/internal/organization/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the organization. The organization must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Organization) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, o.ID, o.Name, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: organization %q already exists", errs.ErrConflict, o.Name)
		}
		return err
	}
	return nil
}

// GetByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	var o domain.Organization
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM organizations WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// ListIDs returns the ids of every organization, ordered by creation time.
func (r *PostgresRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM organizations ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// IsMember reports whether the user belongs to the organization.
func (r *PostgresRepository) IsMember(ctx context.Context, userID, orgID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM organization_memberships WHERE user_id = $1 AND organization_id = $2
		)
	`, userID, orgID).Scan(&exists)
	return exists, err
}

// AddMember records the user as a member of the organization. Idempotent.
func (r *PostgresRepository) AddMember(ctx context.Context, userID, orgID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organization_memberships (user_id, organization_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, organization_id) DO NOTHING
	`, userID, orgID, time.Now().UTC())
	return err
}
