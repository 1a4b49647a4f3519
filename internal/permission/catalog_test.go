package permission

import (
	"errors"
	"testing"

	"loginus/internal/errs"
	"loginus/internal/permission/domain"
)

func testPerms() []*domain.Permission {
	return []*domain.Permission{
		{ID: "p1", Name: "users.read", Resource: "users", Action: "read"},
		{ID: "p2", Name: "users.create", Resource: "users", Action: "create"},
		{ID: "p3", Name: "teams.read", Resource: "teams", Action: "read"},
	}
}

func TestCatalogLookups(t *testing.T) {
	c := NewCatalog(testPerms())

	p, err := c.ByID("p1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if p.Key() != "users.read" {
		t.Errorf("Key = %q, want users.read", p.Key())
	}

	if _, err := c.ByKey("teams.read"); err != nil {
		t.Errorf("ByKey(teams.read): %v", err)
	}
	if _, err := c.ByKey("nope.read"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("ByKey(nope.read) = %v, want ErrNotFound", err)
	}

	if missing, ok := c.Has("p1", "p2"); !ok {
		t.Errorf("Has(p1,p2) missing %q", missing)
	}
	if missing, ok := c.Has("p1", "p9"); ok || missing != "p9" {
		t.Errorf("Has(p1,p9) = (%q, %v), want (p9, false)", missing, ok)
	}
}

func TestCatalogGroupedByResource(t *testing.T) {
	c := NewCatalog(testPerms())
	groups := c.GroupedByResource()
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	users := groups["users"]
	if len(users) != 2 || users[0].Action != "create" || users[1].Action != "read" {
		t.Errorf("users group not ordered by action: %+v", users)
	}
}

func TestCatalogImmutable(t *testing.T) {
	src := testPerms()
	c := NewCatalog(src)
	src[0].Resource = "mutated"
	p, err := c.ByID("p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Resource != "users" {
		t.Error("catalog shares memory with its input slice")
	}
}

func TestDefaultsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Defaults() {
		if p.Validate() != nil {
			t.Errorf("invalid default permission %q", p.Name)
		}
		if seen[p.Name] {
			t.Errorf("duplicate default permission %q", p.Name)
		}
		seen[p.Name] = true
	}
}

func TestDefaultsIncludeManagePerResource(t *testing.T) {
	// The policy's blanket "<resource>.manage" rule must have a grantable
	// permission behind it for every resource.
	resources := map[string]bool{}
	manage := map[string]bool{}
	for _, p := range Defaults() {
		resources[p.Resource] = true
		if p.Action == "manage" {
			manage[p.Resource] = true
		}
	}
	for resource := range resources {
		if !manage[resource] {
			t.Errorf("resource %q has no manage permission", resource)
		}
	}
}
