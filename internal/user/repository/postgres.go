package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"loginus/internal/errs"
	"loginus/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(display_name, ''), COALESCE(telegram_id, ''), COALESCE(password_hash, ''), status, email_verified, phone_verified, created_at, updated_at`

func scanUser(scanner interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	if err := scanner.Scan(&u.ID, &u.Email, &u.Phone, &u.DisplayName, &u.TelegramID,
		&u.PasswordHash, &u.Status, &u.EmailVerified, &u.PhoneVerified,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create persists the user. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, phone, display_name, telegram_id, password_hash, status, email_verified, phone_verified, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11)
	`, u.ID, u.Email, u.Phone, u.DisplayName, u.TelegramID, u.PasswordHash,
		string(u.Status), u.EmailVerified, u.PhoneVerified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: email already registered", errs.ErrConflict)
		}
		return err
	}
	return nil
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail returns the user for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetByPhone returns the user for phone, or nil if not found.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Update writes the user's mutable profile fields.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = NULLIF($2, ''), phone = NULLIF($3, ''), display_name = NULLIF($4, ''),
		    telegram_id = NULLIF($5, ''), status = $6, email_verified = $7, phone_verified = $8,
		    updated_at = $9
		WHERE id = $1
	`, u.ID, u.Email, u.Phone, u.DisplayName, u.TelegramID,
		string(u.Status), u.EmailVerified, u.PhoneVerified, time.Now().UTC())
	return err
}

// SetPasswordHash stores a new credential hash for the user.
func (r *PostgresRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, hash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: user %s", errs.ErrNotFound, id)
	}
	return nil
}

// DeactivateLogin marks the account merged and clears its credential hash so
// it can no longer authenticate. Historical data is untouched.
func (r *PostgresRepository) DeactivateLogin(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET status = 'merged', password_hash = NULL, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: user %s", errs.ErrNotFound, id)
	}
	return nil
}
