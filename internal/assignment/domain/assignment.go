// Package domain defines role assignments and the single-scope reference
// callers use to grant them.
package domain

import (
	"fmt"
	"time"

	"loginus/internal/errs"
	roledomain "loginus/internal/role/domain"
)

// RoleRef is the caller-supplied reference to the role being assigned.
// Exactly one of the three ids must be set; Normalize enforces this at the
// write boundary before anything touches storage.
type RoleRef struct {
	GlobalRoleID       string
	OrganizationRoleID string
	TeamRoleID         string
}

// Normalize checks the single-scope shape and returns the referenced role id
// together with the scope kind the role is expected to have.
func (r RoleRef) Normalize() (roleID string, kind roledomain.ScopeKind, err error) {
	set := 0
	if r.GlobalRoleID != "" {
		set++
		roleID, kind = r.GlobalRoleID, roledomain.ScopeGlobal
	}
	if r.OrganizationRoleID != "" {
		set++
		roleID, kind = r.OrganizationRoleID, roledomain.ScopeOrganization
	}
	if r.TeamRoleID != "" {
		set++
		roleID, kind = r.TeamRoleID, roledomain.ScopeTeam
	}
	switch set {
	case 0:
		return "", "", fmt.Errorf("%w: no role reference supplied", errs.ErrConflict)
	case 1:
		return roleID, kind, nil
	default:
		return "", "", fmt.Errorf("%w: %d role references supplied, want exactly one", errs.ErrConflict, set)
	}
}

// Assignment links a user to one role at one scope instance. The scope is
// denormalized from the role so visibility checks do not need a role lookup.
type Assignment struct {
	ID         string
	UserID     string
	RoleID     string
	Scope      roledomain.Scope
	AssignedBy string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// ActiveAt reports whether the assignment counts toward permission
// resolution at the given instant. Expired assignments are inert, not deleted.
func (a *Assignment) ActiveAt(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// VisibleIn reports whether the assignment participates in permission
// resolution for the given scope context. Global assignments always do;
// organization and team assignments only when the caller operates inside
// that organization or team.
func (a *Assignment) VisibleIn(ctx ScopeContext) bool {
	switch a.Scope.Kind {
	case roledomain.ScopeGlobal:
		return true
	case roledomain.ScopeOrganization:
		return ctx.OrganizationID != "" && a.Scope.OrganizationID == ctx.OrganizationID
	case roledomain.ScopeTeam:
		return ctx.TeamID != "" && a.Scope.TeamID == ctx.TeamID
	default:
		return false
	}
}

// ScopeContext is where the caller currently operates. Zero value means
// "no organization or team context": only global assignments resolve.
type ScopeContext struct {
	OrganizationID string
	TeamID         string
}
