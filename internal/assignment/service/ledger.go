// Package service implements the role assignment ledger: grants, revocations,
// and effective permission resolution.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"loginus/internal/assignment/domain"
	"loginus/internal/audit"
	auditdomain "loginus/internal/audit/domain"
	"loginus/internal/errs"
	orgdomain "loginus/internal/organization/domain"
	"loginus/internal/permission"
	permdomain "loginus/internal/permission/domain"
	roledomain "loginus/internal/role/domain"
	teamdomain "loginus/internal/team/domain"
)

// AssignmentRepo is the minimal assignment repository needed by the ledger.
type AssignmentRepo interface {
	Create(ctx context.Context, a *domain.Assignment) error
	GetByID(ctx context.Context, id string) (*domain.Assignment, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*domain.Assignment, error)
	ExistsActive(ctx context.Context, userID, roleID string, now time.Time) (bool, error)
}

// RoleReader is the minimal role repository needed by the ledger.
type RoleReader interface {
	GetByID(ctx context.Context, id string) (*roledomain.Role, error)
	ListPermissionIDs(ctx context.Context, roleID string) ([]string, error)
}

// OrganizationDirectory resolves organizations and membership for assignment checks.
type OrganizationDirectory interface {
	GetByID(ctx context.Context, id string) (*orgdomain.Organization, error)
	IsMember(ctx context.Context, userID, orgID string) (bool, error)
}

// TeamDirectory resolves teams and membership for assignment checks.
type TeamDirectory interface {
	GetByID(ctx context.Context, id string) (*teamdomain.Team, error)
	IsMember(ctx context.Context, userID, teamID string) (bool, error)
}

// AssignmentView is an assignment joined with its role and a human-readable scope name.
type AssignmentView struct {
	Assignment *domain.Assignment
	RoleName   string
	Level      int
	ScopeName  string
}

// Ledger assigns and revokes roles under the single-scope invariant and
// resolves a user's effective permission set.
type Ledger struct {
	repo    AssignmentRepo
	roles   RoleReader
	catalog *permission.Catalog
	orgs    OrganizationDirectory
	teams   TeamDirectory
	audits  audit.AuditLogger
	now     func() time.Time
}

// NewLedger returns a Ledger. audits may be nil to drop audit events.
func NewLedger(repo AssignmentRepo, roles RoleReader, catalog *permission.Catalog, orgs OrganizationDirectory, teams TeamDirectory, audits audit.AuditLogger) *Ledger {
	if audits == nil {
		audits = audit.Nop{}
	}
	return &Ledger{
		repo:    repo,
		roles:   roles,
		catalog: catalog,
		orgs:    orgs,
		teams:   teams,
		audits:  audits,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AssignRole grants the referenced role to the user. The reference must name
// exactly one role id; the variant used must match the role's actual scope.
// For organization and team roles the user must be a member of the scope
// instance. Fails with Conflict if an identical active assignment exists.
func (l *Ledger) AssignRole(ctx context.Context, actorID, userID string, ref domain.RoleRef, expiresAt *time.Time) (*domain.Assignment, error) {
	roleID, kind, err := ref.Normalize()
	if err != nil {
		return nil, err
	}
	role, err := l.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("%w: role %s", errs.ErrNotFound, roleID)
	}
	if role.Scope.Kind != kind {
		return nil, fmt.Errorf("%w: role %q is %s-scoped but was referenced as %s",
			errs.ErrConflict, role.Name, role.Scope.Kind, kind)
	}
	switch role.Scope.Kind {
	case roledomain.ScopeOrganization:
		ok, err := l.orgs.IsMember(ctx, userID, role.Scope.OrganizationID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: user is not a member of organization %s", errs.ErrConflict, role.Scope.OrganizationID)
		}
	case roledomain.ScopeTeam:
		ok, err := l.teams.IsMember(ctx, userID, role.Scope.TeamID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: user is not a member of team %s", errs.ErrConflict, role.Scope.TeamID)
		}
	}

	now := l.now()
	exists, err := l.repo.ExistsActive(ctx, userID, roleID, now)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: user already holds role %q at %s", errs.ErrConflict, role.Name, role.Scope)
	}
	a := &domain.Assignment{
		ID:         uuid.New().String(),
		UserID:     userID,
		RoleID:     roleID,
		Scope:      role.Scope,
		AssignedBy: actorID,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}
	if err := l.repo.Create(ctx, a); err != nil {
		l.audits.LogEvent(ctx, actorID, "assignment.grant", assignmentResource(role, userID), auditdomain.ResultFailure, "")
		return nil, err
	}
	l.audits.LogEvent(ctx, actorID, "assignment.grant", assignmentResource(role, userID), auditdomain.ResultSuccess, "")
	return a, nil
}

// RevokeRole deletes the assignment.
func (l *Ledger) RevokeRole(ctx context.Context, actorID, assignmentID string) error {
	a, err := l.repo.GetByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("%w: assignment %s", errs.ErrNotFound, assignmentID)
	}
	if err := l.repo.Delete(ctx, assignmentID); err != nil {
		return err
	}
	l.audits.LogEvent(ctx, actorID, "assignment.revoke",
		fmt.Sprintf("assignments/%s user %s", assignmentID, a.UserID), auditdomain.ResultSuccess, "")
	return nil
}

// ResolveEffectivePermissions unions the permission sets of the user's active
// assignments visible in the scope context, deduplicated by (resource, action)
// and sorted by key. Reflects the most recently committed assignment writes.
func (l *Ledger) ResolveEffectivePermissions(ctx context.Context, userID string, sc domain.ScopeContext) ([]*permdomain.Permission, error) {
	assignments, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	byKey := make(map[string]*permdomain.Permission)
	for _, a := range assignments {
		if !a.ActiveAt(now) || !a.VisibleIn(sc) {
			continue
		}
		ids, err := l.roles.ListPermissionIDs(ctx, a.RoleID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			p, err := l.catalog.ByID(id)
			if err != nil {
				continue
			}
			byKey[p.Key()] = p
		}
	}
	out := make([]*permdomain.Permission, 0, len(byKey))
	for _, p := range byKey {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// HighestRole returns the user's active role with the maximum level,
// regardless of scope. Ties break toward the oldest assignment. Fails with
// NotFound when the user holds no active assignment.
func (l *Ledger) HighestRole(ctx context.Context, userID string) (*roledomain.Role, error) {
	assignments, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	var (
		best   *roledomain.Role
		bestAt time.Time
	)
	for _, a := range assignments {
		if !a.ActiveAt(now) {
			continue
		}
		role, err := l.roles.GetByID(ctx, a.RoleID)
		if err != nil {
			return nil, err
		}
		if role == nil {
			continue
		}
		if best == nil || role.Level > best.Level ||
			(role.Level == best.Level && a.CreatedAt.Before(bestAt)) {
			best, bestAt = role, a.CreatedAt
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: user %s has no active role assignment", errs.ErrNotFound, userID)
	}
	return best, nil
}

// ListUserAssignments returns the user's active assignments joined with role
// names, levels, and resolved scope names.
func (l *Ledger) ListUserAssignments(ctx context.Context, userID string) ([]*AssignmentView, error) {
	assignments, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	var out []*AssignmentView
	for _, a := range assignments {
		if !a.ActiveAt(now) {
			continue
		}
		role, err := l.roles.GetByID(ctx, a.RoleID)
		if err != nil {
			return nil, err
		}
		if role == nil {
			continue
		}
		scopeName, err := l.scopeName(ctx, a.Scope)
		if err != nil {
			return nil, err
		}
		out = append(out, &AssignmentView{
			Assignment: a,
			RoleName:   role.Name,
			Level:      role.Level,
			ScopeName:  scopeName,
		})
	}
	return out, nil
}

func (l *Ledger) scopeName(ctx context.Context, scope roledomain.Scope) (string, error) {
	switch scope.Kind {
	case roledomain.ScopeOrganization:
		org, err := l.orgs.GetByID(ctx, scope.OrganizationID)
		if err != nil {
			return "", err
		}
		if org == nil {
			return scope.OrganizationID, nil
		}
		return org.Name, nil
	case roledomain.ScopeTeam:
		team, err := l.teams.GetByID(ctx, scope.TeamID)
		if err != nil {
			return "", err
		}
		if team == nil {
			return scope.TeamID, nil
		}
		return team.Name, nil
	default:
		return "global", nil
	}
}

func assignmentResource(role *roledomain.Role, userID string) string {
	return fmt.Sprintf("roles/%s@%s user %s", role.Name, role.Scope, userID)
}
