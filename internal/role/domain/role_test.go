package domain

import "testing"

func TestScopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		wantErr bool
	}{
		{"global", GlobalScope(), false},
		{"organization", OrganizationScope("org-1"), false},
		{"team", TeamScope("team-1"), false},
		{"global with org id", Scope{Kind: ScopeGlobal, OrganizationID: "org-1"}, true},
		{"org without id", Scope{Kind: ScopeOrganization}, true},
		{"org with team id", Scope{Kind: ScopeOrganization, OrganizationID: "org-1", TeamID: "team-1"}, true},
		{"team without id", Scope{Kind: ScopeTeam}, true},
		{"unknown kind", Scope{Kind: "galaxy"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.scope.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScopeEqual(t *testing.T) {
	if !OrganizationScope("a").Equal(OrganizationScope("a")) {
		t.Error("same org scopes should be equal")
	}
	if OrganizationScope("a").Equal(OrganizationScope("b")) {
		t.Error("different org scopes should not be equal")
	}
	if OrganizationScope("a").Equal(TeamScope("a")) {
		t.Error("org and team scopes should not be equal")
	}
}

func TestRoleValidate(t *testing.T) {
	r := &Role{Name: "manager", Scope: GlobalScope()}
	if err := r.Validate(); err != nil {
		t.Fatalf("valid role rejected: %v", err)
	}
	r.Name = "менеджер"
	if err := r.Validate(); err == nil {
		t.Error("non-latin role name accepted")
	}
	r.Name = "has space"
	if err := r.Validate(); err == nil {
		t.Error("role name with space accepted")
	}
	r.Name = ""
	if err := r.Validate(); err == nil {
		t.Error("empty role name accepted")
	}
}
