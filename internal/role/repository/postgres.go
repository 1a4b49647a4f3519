package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"loginus/internal/errs"
	"loginus/internal/role/domain"
)

const pgErrUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a role repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const roleColumns = `id, name, COALESCE(description, ''), scope_type, organization_id, team_id, level, is_system, created_at, updated_at`

func scanRole(scanner interface{ Scan(...any) error }) (*domain.Role, error) {
	var (
		r         domain.Role
		scopeType string
		orgID     sql.NullString
		teamID    sql.NullString
	)
	if err := scanner.Scan(&r.ID, &r.Name, &r.Description, &scopeType, &orgID, &teamID,
		&r.Level, &r.IsSystem, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	switch domain.ScopeKind(scopeType) {
	case domain.ScopeGlobal:
		r.Scope = domain.GlobalScope()
	case domain.ScopeOrganization:
		r.Scope = domain.OrganizationScope(orgID.String)
	case domain.ScopeTeam:
		r.Scope = domain.TeamScope(teamID.String)
	default:
		return nil, fmt.Errorf("role %s: unknown scope_type %q", r.ID, scopeType)
	}
	return &r, nil
}

func scopeColumns(scope domain.Scope) (orgID, teamID any) {
	switch scope.Kind {
	case domain.ScopeOrganization:
		return scope.OrganizationID, nil
	case domain.ScopeTeam:
		return nil, scope.TeamID
	default:
		return nil, nil
	}
}

// Create persists the role. The role must have ID set.
// Returns errs.ErrConflict if the name is already taken in the scope instance.
func (r *PostgresRepository) Create(ctx context.Context, role *domain.Role) error {
	orgID, teamID := scopeColumns(role.Scope)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, description, scope_type, organization_id, team_id, level, is_system, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
	`, role.ID, role.Name, role.Description, string(role.Scope.Kind), orgID, teamID,
		role.Level, role.IsSystem, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: role %q already exists in scope %s", errs.ErrConflict, role.Name, role.Scope)
		}
		return err
	}
	return nil
}

// GetByID returns the role for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}

// FindByName returns the role with the given name in the scope instance, or nil if not found.
func (r *PostgresRepository) FindByName(ctx context.Context, scope domain.Scope, name string) (*domain.Role, error) {
	orgID, teamID := scopeColumns(scope)
	role, err := scanRole(r.db.QueryRowContext(ctx, `
		SELECT `+roleColumns+`
		FROM roles
		WHERE scope_type = $1
		  AND organization_id IS NOT DISTINCT FROM $2
		  AND team_id IS NOT DISTINCT FROM $3
		  AND name = $4
	`, string(scope.Kind), orgID, teamID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}

// ListByScopeKind returns all roles of one scope kind, ordered by name.
func (r *PostgresRepository) ListByScopeKind(ctx context.Context, kind domain.ScopeKind) ([]*domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE scope_type = $1 ORDER BY name
	`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

// ListClonesByName returns all organization and team roles with the given name.
func (r *PostgresRepository) ListClonesByName(ctx context.Context, name string) ([]*domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+roleColumns+`
		FROM roles
		WHERE scope_type IN ('organization', 'team') AND name = $1
		ORDER BY scope_type, created_at
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows *sql.Rows) ([]*domain.Role, error) {
	var out []*domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Delete removes the role by id. role_permissions rows cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: role %s", errs.ErrNotFound, id)
	}
	return nil
}

// ListPermissionIDs returns the ids of the permissions granted to the role.
func (r *PostgresRepository) ListPermissionIDs(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT permission_id FROM role_permissions WHERE role_id = $1 ORDER BY permission_id
	`, roleID)
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

// ListGrants returns the role's permission grant rows including who granted them and when.
func (r *PostgresRepository) ListGrants(ctx context.Context, roleID string) ([]*domain.PermissionGrant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT role_id, permission_id, COALESCE(granted_by::text, ''), granted_at
		FROM role_permissions
		WHERE role_id = $1
		ORDER BY permission_id
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PermissionGrant
	for rows.Next() {
		var g domain.PermissionGrant
		if err := rows.Scan(&g.RoleID, &g.PermissionID, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

// ReplacePermissions reconciles role_permissions to exactly permissionIDs in
// one transaction. Rows already present are left untouched, so re-running
// with the same set writes nothing (idempotent, no grant churn).
func (r *PostgresRepository) ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string, grantedBy string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return err
	}
	current := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		current[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	wanted := make(map[string]bool, len(permissionIDs))
	for _, id := range permissionIDs {
		wanted[id] = true
	}

	var grantedByCol any
	if grantedBy != "" {
		grantedByCol = grantedBy
	}
	now := time.Now().UTC()
	changed := false
	for id := range wanted {
		if current[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO role_permissions (role_id, permission_id, granted_by, granted_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (role_id, permission_id) DO NOTHING
		`, roleID, id, grantedByCol, now); err != nil {
			return err
		}
		changed = true
	}
	for id := range current {
		if wanted[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2
		`, roleID, id); err != nil {
			return err
		}
		changed = true
	}

	if changed {
		if _, err := tx.ExecContext(ctx, `UPDATE roles SET updated_at = $2 WHERE id = $1`, roleID, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountActiveAssignments returns the number of live (non-expired) assignments referencing the role.
func (r *PostgresRepository) CountActiveAssignments(ctx context.Context, roleID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM user_role_assignments
		WHERE role_id = $1 AND (expires_at IS NULL OR expires_at > now())
	`, roleID).Scan(&n)
	return n, err
}
