package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loginus/internal/assignment/domain"
	"loginus/internal/errs"
	orgdomain "loginus/internal/organization/domain"
	"loginus/internal/permission"
	permdomain "loginus/internal/permission/domain"
	roledomain "loginus/internal/role/domain"
	teamdomain "loginus/internal/team/domain"
)

type memAssignmentRepo struct {
	assignments map[string]*domain.Assignment
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{assignments: make(map[string]*domain.Assignment)}
}

func (m *memAssignmentRepo) Create(_ context.Context, a *domain.Assignment) error {
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}

func (m *memAssignmentRepo) GetByID(_ context.Context, id string) (*domain.Assignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAssignmentRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.assignments[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.assignments, id)
	return nil
}

func (m *memAssignmentRepo) ListByUser(_ context.Context, userID string) ([]*domain.Assignment, error) {
	var out []*domain.Assignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAssignmentRepo) ExistsActive(_ context.Context, userID, roleID string, now time.Time) (bool, error) {
	for _, a := range m.assignments {
		if a.UserID == userID && a.RoleID == roleID && a.ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}

type memRoleReader struct {
	roles map[string]*roledomain.Role
	perms map[string][]string
}

func (m *memRoleReader) GetByID(_ context.Context, id string) (*roledomain.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memRoleReader) ListPermissionIDs(_ context.Context, roleID string) ([]string, error) {
	return m.perms[roleID], nil
}

type memOrgDir struct {
	orgs    map[string]*orgdomain.Organization
	members map[string]bool // "userID/orgID"
}

func (m *memOrgDir) GetByID(_ context.Context, id string) (*orgdomain.Organization, error) {
	return m.orgs[id], nil
}

func (m *memOrgDir) IsMember(_ context.Context, userID, orgID string) (bool, error) {
	return m.members[userID+"/"+orgID], nil
}

type memTeamDir struct {
	teams   map[string]*teamdomain.Team
	members map[string]bool
}

func (m *memTeamDir) GetByID(_ context.Context, id string) (*teamdomain.Team, error) {
	return m.teams[id], nil
}

func (m *memTeamDir) IsMember(_ context.Context, userID, teamID string) (bool, error) {
	return m.members[userID+"/"+teamID], nil
}

type ledgerFixture struct {
	ledger *Ledger
	repo   *memAssignmentRepo
	roles  *memRoleReader
	orgs   *memOrgDir
	teams  *memTeamDir
	now    time.Time
}

func newLedgerFixture() *ledgerFixture {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	catalog := permission.NewCatalog([]*permdomain.Permission{
		{ID: "p-users-read", Name: "users.read", Resource: "users", Action: "read"},
		{ID: "p-users-create", Name: "users.create", Resource: "users", Action: "create"},
		{ID: "p-clients-read", Name: "clients.read", Resource: "clients", Action: "read"},
	})
	roles := &memRoleReader{
		roles: map[string]*roledomain.Role{
			"r-admin":  {ID: "r-admin", Name: "admin", Scope: roledomain.GlobalScope(), Level: 80},
			"r-viewer": {ID: "r-viewer", Name: "viewer", Scope: roledomain.TeamScope("team-1"), Level: 20},
			"r-editor": {ID: "r-editor", Name: "editor", Scope: roledomain.OrganizationScope("org-a"), Level: 40},
		},
		perms: map[string][]string{
			"r-admin":  {"p-users-read", "p-users-create"},
			"r-viewer": {"p-users-read", "p-clients-read"},
			"r-editor": {"p-clients-read"},
		},
	}
	repo := newMemAssignmentRepo()
	orgs := &memOrgDir{
		orgs:    map[string]*orgdomain.Organization{"org-a": {ID: "org-a", Name: "Acme"}},
		members: map[string]bool{"u1/org-a": true},
	}
	teams := &memTeamDir{
		teams:   map[string]*teamdomain.Team{"team-1": {ID: "team-1", Name: "Support"}},
		members: map[string]bool{"u1/team-1": true},
	}
	ledger := NewLedger(repo, roles, catalog, orgs, teams, nil)
	ledger.now = func() time.Time { return now }
	return &ledgerFixture{ledger: ledger, repo: repo, roles: roles, orgs: orgs, teams: teams, now: now}
}

func TestAssignRoleEnforcesSingleScopeReference(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	_, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{}, nil)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("zero refs: want ErrConflict, got %v", err)
	}
	_, err = f.ledger.AssignRole(ctx, "admin-1", "u1",
		domain.RoleRef{GlobalRoleID: "r-admin", TeamRoleID: "r-viewer"}, nil)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("two refs: want ErrConflict, got %v", err)
	}
}

func TestAssignRoleRejectsScopeVariantMismatch(t *testing.T) {
	f := newLedgerFixture()

	// r-viewer is team-scoped but referenced through the global field.
	_, err := f.ledger.AssignRole(context.Background(), "admin-1", "u1",
		domain.RoleRef{GlobalRoleID: "r-viewer"}, nil)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestAssignRoleRejectsDuplicateActive(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	if _, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{GlobalRoleID: "r-admin"}, nil); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	_, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{GlobalRoleID: "r-admin"}, nil)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestAssignRoleRequiresMembership(t *testing.T) {
	f := newLedgerFixture()

	_, err := f.ledger.AssignRole(context.Background(), "admin-1", "outsider",
		domain.RoleRef{OrganizationRoleID: "r-editor"}, nil)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestResolveEffectivePermissionsVisibility(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	if _, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{GlobalRoleID: "r-admin"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{TeamRoleID: "r-viewer"}, nil); err != nil {
		t.Fatal(err)
	}

	// No scope context: only the global assignment resolves.
	perms, err := f.ledger.ResolveEffectivePermissions(ctx, "u1", domain.ScopeContext{})
	if err != nil {
		t.Fatal(err)
	}
	if got := permKeys(perms); len(got) != 2 || got[0] != "users.create" || got[1] != "users.read" {
		t.Fatalf("global-only = %v", got)
	}

	// Inside team-1 the team assignment joins in; users.read dedupes.
	perms, err = f.ledger.ResolveEffectivePermissions(ctx, "u1", domain.ScopeContext{TeamID: "team-1"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"clients.read", "users.create", "users.read"}
	if got := permKeys(perms); len(got) != len(want) {
		t.Fatalf("in team = %v, want %v", got, want)
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("in team = %v, want %v", got, want)
			}
		}
	}

	// A different team's context hides the team-1 assignment.
	perms, err = f.ledger.ResolveEffectivePermissions(ctx, "u1", domain.ScopeContext{TeamID: "team-2"})
	if err != nil {
		t.Fatal(err)
	}
	if got := permKeys(perms); len(got) != 2 {
		t.Fatalf("other team = %v", got)
	}
}

func permKeys(perms []*permdomain.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.Key()
	}
	return out
}

func TestHighestRolePicksMaxLevelThenOldest(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	teamAssign, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{TeamRoleID: "r-viewer"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	adminExpiry := f.now.Add(time.Hour)
	if _, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{GlobalRoleID: "r-admin"}, &adminExpiry); err != nil {
		t.Fatal(err)
	}

	role, err := f.ledger.HighestRole(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if role.Name != "admin" {
		t.Fatalf("highest = %q, want admin", role.Name)
	}

	// Once the admin assignment expires, viewer wins.
	f.ledger.now = func() time.Time { return adminExpiry.Add(time.Minute) }
	role, err = f.ledger.HighestRole(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if role.Name != "viewer" {
		t.Fatalf("highest after expiry = %q, want viewer", role.Name)
	}
	_ = teamAssign
}

func TestHighestRoleLevelTieBreaksOldest(t *testing.T) {
	f := newLedgerFixture()
	f.roles.roles["r-editor2"] = &roledomain.Role{
		ID: "r-editor2", Name: "editor2", Scope: roledomain.GlobalScope(), Level: 40,
	}
	f.roles.roles["r-editor"].Scope = roledomain.GlobalScope()
	f.roles.roles["r-editor"].Level = 40

	older := &domain.Assignment{
		ID: "a1", UserID: "u1", RoleID: "r-editor", Scope: roledomain.GlobalScope(),
		CreatedAt: f.now.Add(-2 * time.Hour),
	}
	newer := &domain.Assignment{
		ID: "a2", UserID: "u1", RoleID: "r-editor2", Scope: roledomain.GlobalScope(),
		CreatedAt: f.now.Add(-time.Hour),
	}
	f.repo.assignments["a1"] = older
	f.repo.assignments["a2"] = newer

	role, err := f.ledger.HighestRole(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if role.Name != "editor" {
		t.Fatalf("tie should go to oldest assignment, got %q", role.Name)
	}
}

func TestHighestRoleNoActiveAssignments(t *testing.T) {
	f := newLedgerFixture()
	_, err := f.ledger.HighestRole(context.Background(), "nobody")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRevokeRemovesAssignment(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	a, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{GlobalRoleID: "r-admin"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.RevokeRole(ctx, "admin-1", a.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := f.ledger.RevokeRole(ctx, "admin-1", a.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second revoke: want ErrNotFound, got %v", err)
	}

	perms, err := f.ledger.ResolveEffectivePermissions(ctx, "u1", domain.ScopeContext{})
	if err != nil {
		t.Fatal(err)
	}
	if len(perms) != 0 {
		t.Fatalf("permissions after revoke = %v", permKeys(perms))
	}
}

func TestListUserAssignmentsResolvesScopeNames(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	if _, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{TeamRoleID: "r-viewer"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.AssignRole(ctx, "admin-1", "u1", domain.RoleRef{OrganizationRoleID: "r-editor"}, nil); err != nil {
		t.Fatal(err)
	}

	views, err := f.ledger.ListUserAssignments(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}
	names := map[string]string{}
	for _, v := range views {
		names[v.RoleName] = v.ScopeName
	}
	if names["viewer"] != "Support" || names["editor"] != "Acme" {
		t.Fatalf("scope names = %v", names)
	}
}
