package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"loginus/internal/errs"
	"loginus/internal/permission/domain"
)

const pgErrUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a permission repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns all permissions ordered by resource then action.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, resource, action, COALESCE(description, ''), created_at
		FROM permissions
		ORDER BY resource, action
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// GetByID returns the permission for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Permission, error) {
	var p domain.Permission
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, resource, action, COALESCE(description, ''), created_at
		FROM permissions
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetByKey returns the permission for (resource, action), or nil if not found.
func (r *PostgresRepository) GetByKey(ctx context.Context, resource, action string) (*domain.Permission, error) {
	var p domain.Permission
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, resource, action, COALESCE(description, ''), created_at
		FROM permissions
		WHERE resource = $1 AND action = $2
	`, resource, action).Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Create persists the permission. The permission must have ID set.
// Returns errs.ErrConflict if the name or (resource, action) pair already exists.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Permission) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO permissions (id, name, resource, action, description, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, p.ID, p.Name, p.Resource, p.Action, p.Description, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: permission %q", errs.ErrConflict, p.Key())
		}
		return err
	}
	return nil
}
