package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"loginus/internal/team/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a team repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the team. The team must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Team) error {
	var orgID any
	if t.OrganizationID != "" {
		orgID = t.OrganizationID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Name, orgID, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetByID returns the team for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	var (
		t     domain.Team
		orgID sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, organization_id, created_at, updated_at FROM teams WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &orgID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.OrganizationID = orgID.String
	return &t, nil
}

// ListIDs returns the ids of every team, ordered by creation time.
func (r *PostgresRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM teams ORDER BY created_at`)
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

// IsMember reports whether the user belongs to the team.
func (r *PostgresRepository) IsMember(ctx context.Context, userID, teamID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM team_memberships WHERE user_id = $1 AND team_id = $2
		)
	`, userID, teamID).Scan(&exists)
	return exists, err
}

// AddMember records the user as a member of the team. Idempotent.
func (r *PostgresRepository) AddMember(ctx context.Context, userID, teamID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO team_memberships (user_id, team_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, team_id) DO NOTHING
	`, userID, teamID, time.Now().UTC())
	return err
}
