package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loginus/internal/assignment/domain"
	"loginus/internal/errs"
	roledomain "loginus/internal/role/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an assignment repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const assignmentColumns = `id, user_id, role_id, scope_type, organization_id, team_id, COALESCE(assigned_by::text, ''), expires_at, created_at`

func scanAssignment(scanner interface{ Scan(...any) error }) (*domain.Assignment, error) {
	var (
		a         domain.Assignment
		scopeType string
		orgID     sql.NullString
		teamID    sql.NullString
		expiresAt sql.NullTime
	)
	if err := scanner.Scan(&a.ID, &a.UserID, &a.RoleID, &scopeType, &orgID, &teamID,
		&a.AssignedBy, &expiresAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	switch roledomain.ScopeKind(scopeType) {
	case roledomain.ScopeGlobal:
		a.Scope = roledomain.GlobalScope()
	case roledomain.ScopeOrganization:
		a.Scope = roledomain.OrganizationScope(orgID.String)
	case roledomain.ScopeTeam:
		a.Scope = roledomain.TeamScope(teamID.String)
	default:
		return nil, fmt.Errorf("assignment %s: unknown scope_type %q", a.ID, scopeType)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		a.ExpiresAt = &t
	}
	return &a, nil
}

// Create persists the assignment. The assignment must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Assignment) error {
	var orgID, teamID any
	switch a.Scope.Kind {
	case roledomain.ScopeOrganization:
		orgID = a.Scope.OrganizationID
	case roledomain.ScopeTeam:
		teamID = a.Scope.TeamID
	}
	var assignedBy any
	if a.AssignedBy != "" {
		assignedBy = a.AssignedBy
	}
	var expiresAt any
	if a.ExpiresAt != nil {
		expiresAt = *a.ExpiresAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_role_assignments (id, user_id, role_id, scope_type, organization_id, team_id, assigned_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.UserID, a.RoleID, string(a.Scope.Kind), orgID, teamID, assignedBy, expiresAt, a.CreatedAt)
	return err
}

// GetByID returns the assignment for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Assignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+` FROM user_role_assignments WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// Delete removes the assignment by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_role_assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: assignment %s", errs.ErrNotFound, id)
	}
	return nil
}

// ListByUser returns all of the user's assignments, expired ones included,
// ordered oldest first. Callers filter with ActiveAt.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM user_role_assignments
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ExistsActive reports whether the user already holds a live assignment of the role.
func (r *PostgresRepository) ExistsActive(ctx context.Context, userID, roleID string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_role_assignments
			WHERE user_id = $1 AND role_id = $2 AND (expires_at IS NULL OR expires_at > $3)
		)
	`, userID, roleID, now).Scan(&exists)
	return exists, err
}
