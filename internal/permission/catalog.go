// Package permission provides the permission catalog: the registry of
// (resource, action) permissions loaded once at startup and immutable at
// runtime.
package permission

import (
	"context"
	"fmt"
	"sort"

	"loginus/internal/errs"
	"loginus/internal/permission/domain"
	"loginus/internal/permission/repository"
)

// Catalog is an immutable snapshot of all permissions. Build one with Load;
// lookups are safe for concurrent use without locking because the maps are
// never mutated after construction.
type Catalog struct {
	all   []*domain.Permission
	byID  map[string]*domain.Permission
	byKey map[string]*domain.Permission
}

// Load reads every permission from the repository and builds the catalog.
func Load(ctx context.Context, repo repository.Repository) (*Catalog, error) {
	perms, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load permission catalog: %w", err)
	}
	return NewCatalog(perms), nil
}

// NewCatalog builds a catalog from the given permissions.
func NewCatalog(perms []*domain.Permission) *Catalog {
	c := &Catalog{
		all:   make([]*domain.Permission, 0, len(perms)),
		byID:  make(map[string]*domain.Permission, len(perms)),
		byKey: make(map[string]*domain.Permission, len(perms)),
	}
	for _, p := range perms {
		cp := *p
		c.all = append(c.all, &cp)
		c.byID[cp.ID] = &cp
		c.byKey[cp.Key()] = &cp
	}
	return c
}

// ByID returns the permission with the given id.
func (c *Catalog) ByID(id string) (*domain.Permission, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: permission id %s", errs.ErrNotFound, id)
	}
	return p, nil
}

// ByKey returns the permission for "resource.action".
func (c *Catalog) ByKey(key string) (*domain.Permission, error) {
	p, ok := c.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: permission %s", errs.ErrNotFound, key)
	}
	return p, nil
}

// Has reports whether all given permission ids exist in the catalog.
// Returns the first unknown id when any is missing.
func (c *Catalog) Has(ids ...string) (string, bool) {
	for _, id := range ids {
		if _, ok := c.byID[id]; !ok {
			return id, false
		}
	}
	return "", true
}

// All returns every permission, ordered by resource then action.
func (c *Catalog) All() []*domain.Permission {
	out := make([]*domain.Permission, len(c.all))
	copy(out, c.all)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// GroupedByResource returns permissions grouped by resource, each group
// ordered by action. Used by the role/permission query surface.
func (c *Catalog) GroupedByResource() map[string][]*domain.Permission {
	groups := make(map[string][]*domain.Permission)
	for _, p := range c.All() {
		groups[p.Resource] = append(groups[p.Resource], p)
	}
	return groups
}
