package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"loginus/internal/code/domain"
	"loginus/internal/errs"
)

const pgErrUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a code repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const codeColumns = `id, purpose, subject, code_hash, status, attempts, max_attempts, expires_at, metadata, created_at, updated_at`

func scanCode(scanner interface{ Scan(...any) error }) (*domain.Code, error) {
	var (
		c        domain.Code
		purpose  string
		status   string
		metadata []byte
	)
	if err := scanner.Scan(&c.ID, &purpose, &c.Subject, &c.CodeHash, &status,
		&c.Attempts, &c.MaxAttempts, &c.ExpiresAt, &metadata, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Purpose = domain.Purpose(purpose)
	c.Status = domain.Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// Create persists the code. The code must have ID and CodeHash set. Returns
// errs.ErrConflict when another pending code for the same purpose+subject
// already exists (partial unique index).
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Code) error {
	var metadata any
	if len(c.Metadata) > 0 {
		b, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ephemeral_codes (id, purpose, subject, code_hash, status, attempts, max_attempts, expires_at, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, string(c.Purpose), c.Subject, c.CodeHash, string(c.Status),
		c.Attempts, c.MaxAttempts, c.ExpiresAt, metadata, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: a pending %s code already exists for subject", errs.ErrConflict, c.Purpose)
		}
		return err
	}
	return nil
}

// GetByID returns the code for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Code, error) {
	c, err := scanCode(r.db.QueryRowContext(ctx, `
		SELECT `+codeColumns+` FROM ephemeral_codes WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// FindLatest returns the most recently issued code for purpose+subject in any
// status, or nil if none exists.
func (r *PostgresRepository) FindLatest(ctx context.Context, purpose domain.Purpose, subject string) (*domain.Code, error) {
	c, err := scanCode(r.db.QueryRowContext(ctx, `
		SELECT `+codeColumns+`
		FROM ephemeral_codes
		WHERE purpose = $1 AND subject = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, string(purpose), subject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// FindPendingByHash returns the pending code matching the hash, or nil.
// Used when the caller holds only the code value, as in an OAuth exchange.
func (r *PostgresRepository) FindPendingByHash(ctx context.Context, purpose domain.Purpose, codeHash string) (*domain.Code, error) {
	c, err := scanCode(r.db.QueryRowContext(ctx, `
		SELECT `+codeColumns+`
		FROM ephemeral_codes
		WHERE purpose = $1 AND code_hash = $2 AND status = 'pending'
	`, string(purpose), codeHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// IncrementAttempts bumps the attempt counter of a still-pending code and
// returns the new count. Returns sql.ErrNoRows wrapped as 0 if the code left
// pending concurrently.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE ephemeral_codes
		SET attempts = attempts + 1, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING attempts
	`, id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return attempts, err
}

// Transition performs the status compare-and-swap. Returns true if this call
// moved the code from `from` to `to`; false means another caller got there
// first or the code is not in `from`.
func (r *PostgresRepository) Transition(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ephemeral_codes
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeactivatePending expires every pending code for purpose+subject.
// Called on re-issue so at most one code is live per subject.
func (r *PostgresRepository) DeactivatePending(ctx context.Context, purpose domain.Purpose, subject string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ephemeral_codes
		SET status = 'expired', updated_at = now()
		WHERE purpose = $1 AND subject = $2 AND status = 'pending'
	`, string(purpose), subject)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountIssuedSince returns how many codes were issued for purpose+subject
// after the given instant. Backs issuance rate limiting.
func (r *PostgresRepository) CountIssuedSince(ctx context.Context, purpose domain.Purpose, subject string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ephemeral_codes
		WHERE purpose = $1 AND subject = $2 AND created_at > $3
	`, string(purpose), subject, since).Scan(&n)
	return n, err
}

// SweepExpired marks every pending code past its TTL as expired and returns
// how many rows changed. Idempotent and safe to run concurrently with
// verification: both paths go through the same status CAS discipline.
func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ephemeral_codes
		SET status = 'expired', updated_at = now()
		WHERE status = 'pending' AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
