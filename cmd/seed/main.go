// seed installs the permission catalog and the default global roles, then
// propagates the global roles to every organization and team. Idempotent:
// rows that already exist are left alone, so it is safe to re-run after
// adding permissions or scope instances.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"loginus/internal/config"
	"loginus/internal/db"
	"loginus/internal/errs"
	orgrepo "loginus/internal/organization/repository"
	"loginus/internal/permission"
	permrepo "loginus/internal/permission/repository"
	roledomain "loginus/internal/role/domain"
	rolerepo "loginus/internal/role/repository"
	roleservice "loginus/internal/role/service"
	teamrepo "loginus/internal/team/repository"
)

// systemRoles are the platform's built-in global roles. super_admin gets the
// full catalog; the others get the key sets below.
var systemRoles = []struct {
	name        string
	description string
	level       int
	keys        []string // nil means every permission
}{
	{"super_admin", "Full access to everything", 100, nil},
	{"admin", "Administrative access without role management", 80, []string{
		"users.create", "users.read", "users.update", "users.delete",
		"knowledge.create", "knowledge.read", "knowledge.update", "knowledge.delete", "knowledge.approve", "knowledge.publish",
		"clients.create", "clients.read", "clients.update", "clients.delete", "clients.export",
		"settings.read", "settings.update", "settings.integrations",
		"support.tickets_read", "support.tickets_update", "support.tickets_assign", "support.chat",
		"organizations.read", "organizations.update", "organizations.members",
		"teams.create", "teams.read", "teams.update", "teams.delete", "teams.members",
	}},
	{"manager", "Manages content, clients, and support", 60, []string{
		"users.read", "users.update",
		"knowledge.create", "knowledge.read", "knowledge.update", "knowledge.approve", "knowledge.publish",
		"clients.create", "clients.read", "clients.update", "clients.export",
		"support.tickets_read", "support.tickets_update", "support.tickets_assign", "support.chat",
		"teams.read", "teams.members",
	}},
	{"editor", "Creates and edits content", 40, []string{
		"knowledge.create", "knowledge.read", "knowledge.update",
		"clients.read",
		"support.tickets_read", "support.chat",
	}},
	{"viewer", "Read-only access", 20, []string{
		"users.read", "knowledge.read", "clients.read", "settings.read",
		"support.tickets_read", "organizations.read", "teams.read",
	}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	perms := permrepo.NewPostgresRepository(conn)
	if err := seedPermissions(ctx, perms); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}

	catalog, err := permission.Load(ctx, perms)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	roles := rolerepo.NewPostgresRepository(conn)
	sync := roleservice.NewSynchronizer(roles,
		orgrepo.NewPostgresRepository(conn),
		teamrepo.NewPostgresRepository(conn))

	for _, sr := range systemRoles {
		if err := seedRole(ctx, roles, sync, catalog, sr.name, sr.description, sr.level, sr.keys); err != nil {
			log.Fatalf("seed role %s: %v", sr.name, err)
		}
	}

	log.Println("seed: done")
}

// seedPermissions inserts every default permission that is not already
// present, keyed by (resource, action).
func seedPermissions(ctx context.Context, repo *permrepo.PostgresRepository) error {
	for _, p := range permission.Defaults() {
		existing, err := repo.GetByKey(ctx, p.Resource, p.Action)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		p.ID = uuid.New().String()
		p.CreatedAt = time.Now().UTC()
		if err := repo.Create(ctx, p); err != nil && !errors.Is(err, errs.ErrConflict) {
			return err
		}
		log.Printf("seed: permission %s", p.Key())
	}
	return nil
}

// seedRole ensures the global role exists with the given permission set and
// fans it out to every organization and team clone.
func seedRole(ctx context.Context, repo *rolerepo.PostgresRepository, sync *roleservice.Synchronizer, catalog *permission.Catalog, name, description string, level int, keys []string) error {
	ids, err := resolveKeys(catalog, keys)
	if err != nil {
		return err
	}

	role, err := repo.FindByName(ctx, roledomain.GlobalScope(), name)
	if err != nil {
		return err
	}
	if role == nil {
		now := time.Now().UTC()
		role = &roledomain.Role{
			ID:          uuid.New().String(),
			Name:        name,
			Description: description,
			Scope:       roledomain.GlobalScope(),
			Level:       level,
			IsSystem:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repo.Create(ctx, role); err != nil {
			return err
		}
		log.Printf("seed: role %s (level %d)", name, level)
	}

	if err := repo.ReplacePermissions(ctx, role.ID, ids, ""); err != nil {
		return err
	}
	// Clone fan-out; partial failures are reported but re-running seed converges.
	if err := sync.Sync(ctx, role, ids, ""); err != nil {
		var partial *errs.PartialSyncError
		if errors.As(err, &partial) {
			log.Printf("seed: role %s: %v", name, partial)
			return nil
		}
		return err
	}
	return nil
}

// resolveKeys maps "resource.action" keys to permission ids. nil means the
// whole catalog.
func resolveKeys(catalog *permission.Catalog, keys []string) ([]string, error) {
	if keys == nil {
		all := catalog.All()
		ids := make([]string, 0, len(all))
		for _, p := range all {
			ids = append(ids, p.ID)
		}
		return ids, nil
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		p, err := catalog.ByKey(k)
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}
