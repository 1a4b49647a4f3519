package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"loginus/internal/merge/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a merge request repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `id, primary_user_id, secondary_user_id, auth_method, conflicts, resolution, status, resolved_at, expires_at, created_at, updated_at`

func scanRequest(scanner interface{ Scan(...any) error }) (*domain.Request, error) {
	var (
		r          domain.Request
		status     string
		conflicts  []byte
		resolution []byte
		resolvedAt sql.NullTime
	)
	if err := scanner.Scan(&r.ID, &r.PrimaryUserID, &r.SecondaryUserID, &r.AuthMethod,
		&conflicts, &resolution, &status, &resolvedAt, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = domain.Status(status)
	if len(conflicts) > 0 {
		if err := json.Unmarshal(conflicts, &r.Conflicts); err != nil {
			return nil, err
		}
	}
	if len(resolution) > 0 {
		if err := json.Unmarshal(resolution, &r.Resolution); err != nil {
			return nil, err
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	return &r, nil
}

// Create persists the merge request. The request must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, req *domain.Request) error {
	conflicts, err := json.Marshal(req.Conflicts)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO account_merge_requests (id, primary_user_id, secondary_user_id, auth_method, conflicts, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, req.ID, req.PrimaryUserID, req.SecondaryUserID, req.AuthMethod, conflicts,
		string(req.Status), req.ExpiresAt, req.CreatedAt, req.UpdatedAt)
	return err
}

// GetByID returns the request for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM account_merge_requests WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// FindPendingByUsers returns the pending request linking the two users, or nil.
func (r *PostgresRepository) FindPendingByUsers(ctx context.Context, primaryUserID, secondaryUserID string) (*domain.Request, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM account_merge_requests
		WHERE primary_user_id = $1 AND secondary_user_id = $2 AND status = 'pending'
	`, primaryUserID, secondaryUserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// Resolve records the resolution and moves the request pending -> resolved.
// Returns false if the request already left pending.
func (r *PostgresRepository) Resolve(ctx context.Context, id string, resolution map[string]domain.Choice, at time.Time) (bool, error) {
	b, err := json.Marshal(resolution)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE account_merge_requests
		SET status = 'resolved', resolution = $2, resolved_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, b, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Expire moves the request pending -> expired.
func (r *PostgresRepository) Expire(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, "expired")
}

// Cancel moves the request pending -> cancelled.
func (r *PostgresRepository) Cancel(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, "cancelled")
}

func (r *PostgresRepository) transition(ctx context.Context, id, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE account_merge_requests
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SweepExpired marks every pending request past its TTL as expired.
func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE account_merge_requests
		SET status = 'expired', updated_at = now()
		WHERE status = 'pending' AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
