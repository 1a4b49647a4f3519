// Package service implements role management and global-to-clone propagation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"loginus/internal/audit"
	auditdomain "loginus/internal/audit/domain"
	"loginus/internal/errs"
	"loginus/internal/permission"
	permdomain "loginus/internal/permission/domain"
	"loginus/internal/role/domain"
)

// StoreRepo is the role repository surface needed by the store.
type StoreRepo interface {
	Create(ctx context.Context, r *domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	FindByName(ctx context.Context, scope domain.Scope, name string) (*domain.Role, error)
	Delete(ctx context.Context, id string) error
	ListPermissionIDs(ctx context.Context, roleID string) ([]string, error)
	ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string, grantedBy string) error
	CountActiveAssignments(ctx context.Context, roleID string) (int64, error)
}

// Store manages roles across the three scope variants. Permission updates on
// a global role propagate to every clone through the synchronizer before the
// call returns.
type Store struct {
	repo    StoreRepo
	catalog *permission.Catalog
	sync    *Synchronizer
	audits  audit.AuditLogger
}

// NewStore returns a Store. sync may be nil when propagation is not wired
// (tests, seeding); audits may be nil to drop audit events.
func NewStore(repo StoreRepo, catalog *permission.Catalog, sync *Synchronizer, audits audit.AuditLogger) *Store {
	if audits == nil {
		audits = audit.Nop{}
	}
	return &Store{repo: repo, catalog: catalog, sync: sync, audits: audits}
}

func isConflict(err error) bool {
	return errors.Is(err, errs.ErrConflict)
}

// CreateRole creates a role at the given scope with the given permission set.
// Fails with Conflict if the name is already taken in that scope instance and
// with NotFound if any permission id is unknown.
func (s *Store) CreateRole(ctx context.Context, actorID string, scope domain.Scope, name, description string, level int, permissionIDs []string) (*domain.Role, error) {
	now := time.Now().UTC()
	role := &domain.Role{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Scope:       scope,
		Level:       level,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := role.Validate(); err != nil {
		return nil, err
	}
	if missing, ok := s.catalog.Has(permissionIDs...); !ok {
		return nil, fmt.Errorf("%w: permission %s", errs.ErrNotFound, missing)
	}
	if err := s.repo.Create(ctx, role); err != nil {
		s.audits.LogEvent(ctx, actorID, "role.create", roleResource(role), auditdomain.ResultFailure, "")
		return nil, err
	}
	if len(permissionIDs) > 0 {
		if err := s.repo.ReplacePermissions(ctx, role.ID, permissionIDs, actorID); err != nil {
			return nil, err
		}
	}
	s.audits.LogEvent(ctx, actorID, "role.create", roleResource(role), auditdomain.ResultSuccess, "")
	return role, nil
}

// GetRole returns the role by id, or NotFound.
func (s *Store) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("%w: role %s", errs.ErrNotFound, id)
	}
	return role, nil
}

// FindByName returns the role with the given name in the scope instance, or NotFound.
func (s *Store) FindByName(ctx context.Context, scope domain.Scope, name string) (*domain.Role, error) {
	role, err := s.repo.FindByName(ctx, scope, name)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("%w: role %q in scope %s", errs.ErrNotFound, name, scope)
	}
	return role, nil
}

// UpdateRolePermissions atomically replaces the role's granted permission set
// and returns the new set. For a global role the change is propagated to every
// organization and team clone before the call returns; clone failures surface
// as a PartialSyncError alongside the (already committed) new set.
func (s *Store) UpdateRolePermissions(ctx context.Context, actorID, roleID string, permissionIDs []string) ([]*permdomain.Permission, error) {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if missing, ok := s.catalog.Has(permissionIDs...); !ok {
		return nil, fmt.Errorf("%w: permission %s", errs.ErrNotFound, missing)
	}
	if err := s.repo.ReplacePermissions(ctx, roleID, permissionIDs, actorID); err != nil {
		s.audits.LogEvent(ctx, actorID, "role.update_permissions", roleResource(role), auditdomain.ResultFailure, "")
		return nil, err
	}
	s.audits.LogEvent(ctx, actorID, "role.update_permissions", roleResource(role), auditdomain.ResultSuccess,
		fmt.Sprintf("permissions=%d", len(permissionIDs)))

	perms := make([]*permdomain.Permission, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		p, err := s.catalog.ByID(id)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}

	if role.Scope.Kind == domain.ScopeGlobal && s.sync != nil {
		if err := s.sync.Sync(ctx, role, permissionIDs, actorID); err != nil {
			return perms, err
		}
	}
	return perms, nil
}

// RolePermissions returns the role's granted permissions resolved against the catalog.
func (s *Store) RolePermissions(ctx context.Context, roleID string) ([]*permdomain.Permission, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	ids, err := s.repo.ListPermissionIDs(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perms := make([]*permdomain.Permission, 0, len(ids))
	for _, id := range ids {
		p, err := s.catalog.ByID(id)
		if err != nil {
			continue
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// DeleteRole removes the role. Fails with Forbidden if the role is a system
// role or if live assignments still reference it.
func (s *Store) DeleteRole(ctx context.Context, actorID, id string) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: role %q is a system role", errs.ErrForbidden, role.Name)
	}
	n, err := s.repo.CountActiveAssignments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: role %q has %d active assignment(s)", errs.ErrForbidden, role.Name, n)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audits.LogEvent(ctx, actorID, "role.delete", roleResource(role), auditdomain.ResultSuccess, "")
	return nil
}

func roleResource(r *domain.Role) string {
	return fmt.Sprintf("roles/%s@%s", r.Name, r.Scope)
}
