package repository

import (
	"context"

	"loginus/internal/role/domain"
)

// Repository defines persistence for roles and their permission grants.
type Repository interface {
	Create(ctx context.Context, r *domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	FindByName(ctx context.Context, scope domain.Scope, name string) (*domain.Role, error)
	ListByScopeKind(ctx context.Context, kind domain.ScopeKind) ([]*domain.Role, error)
	// ListClonesByName returns every organization- and team-scoped role with
	// the given name (the derived clones of a global role).
	ListClonesByName(ctx context.Context, name string) ([]*domain.Role, error)
	Delete(ctx context.Context, id string) error

	ListPermissionIDs(ctx context.Context, roleID string) ([]string, error)
	ListGrants(ctx context.Context, roleID string) ([]*domain.PermissionGrant, error)
	// ReplacePermissions reconciles role_permissions for the role to exactly
	// permissionIDs in one transaction: rows to add are inserted, rows no
	// longer wanted are deleted, rows already present are left untouched.
	ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string, grantedBy string) error

	// CountActiveAssignments returns the number of live (non-expired) role
	// assignments referencing the role.
	CountActiveAssignments(ctx context.Context, roleID string) (int64, error)
}
