package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"loginus/internal/errs"
	"loginus/internal/role/domain"
)

// SyncRepo is the minimal role repository needed by the synchronizer.
type SyncRepo interface {
	Create(ctx context.Context, r *domain.Role) error
	FindByName(ctx context.Context, scope domain.Scope, name string) (*domain.Role, error)
	ListClonesByName(ctx context.Context, name string) ([]*domain.Role, error)
	ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string, grantedBy string) error
}

// OrganizationDirectory lists the organizations the synchronizer fans out to.
type OrganizationDirectory interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// TeamDirectory lists the teams the synchronizer fans out to.
type TeamDirectory interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Synchronizer keeps every organization and team role sharing a global role's
// name in permission lock-step with that global role. Each clone is updated in
// its own transaction; a failed clone never rolls back clones already updated.
type Synchronizer struct {
	repo  SyncRepo
	orgs  OrganizationDirectory
	teams TeamDirectory

	targetsSynced metric.Int64Counter
	targetsFailed metric.Int64Counter
}

// NewSynchronizer returns a Synchronizer over the given repositories.
func NewSynchronizer(repo SyncRepo, orgs OrganizationDirectory, teams TeamDirectory) *Synchronizer {
	meter := otel.Meter("loginus.role.sync")
	synced, err := meter.Int64Counter("role_sync.targets_synced",
		metric.WithDescription("Clone targets brought into lock-step with a global role"))
	if err != nil {
		log.Printf("role sync: counter init: %v", err)
	}
	failed, err := meter.Int64Counter("role_sync.targets_failed",
		metric.WithDescription("Clone targets that failed during propagation"))
	if err != nil {
		log.Printf("role sync: counter init: %v", err)
	}
	return &Synchronizer{repo: repo, orgs: orgs, teams: teams, targetsSynced: synced, targetsFailed: failed}
}

// Sync propagates permissionIDs to every organization and team clone of the
// global role, creating a clone (same level, same isSystem flag) where one is
// missing. Running Sync twice with the same permission set writes nothing the
// second time. Clone failures are collected into a PartialSyncError; the
// failed clones converge on the next explicit sync call.
func (s *Synchronizer) Sync(ctx context.Context, global *domain.Role, permissionIDs []string, actorID string) error {
	if global.Scope.Kind != domain.ScopeGlobal {
		return nil
	}

	orgIDs, err := s.orgs.ListIDs(ctx)
	if err != nil {
		return err
	}
	teamIDs, err := s.teams.ListIDs(ctx)
	if err != nil {
		return err
	}

	clones, err := s.repo.ListClonesByName(ctx, global.Name)
	if err != nil {
		return err
	}
	existing := make(map[string]*domain.Role, len(clones))
	for _, c := range clones {
		existing[c.Scope.String()] = c
	}

	var failures []errs.SyncFailure
	syncOne := func(scope domain.Scope) {
		if err := s.syncTarget(ctx, global, scope, existing[scope.String()], permissionIDs, actorID); err != nil {
			log.Printf("role sync: %s clone of %q at %s failed: %v", scope.Kind, global.Name, scope.InstanceID(), err)
			if s.targetsFailed != nil {
				s.targetsFailed.Add(ctx, 1)
			}
			failures = append(failures, errs.SyncFailure{
				ScopeType: string(scope.Kind),
				ScopeID:   scope.InstanceID(),
				RoleName:  global.Name,
				Err:       err,
			})
			return
		}
		if s.targetsSynced != nil {
			s.targetsSynced.Add(ctx, 1)
		}
	}
	for _, id := range orgIDs {
		syncOne(domain.OrganizationScope(id))
	}
	for _, id := range teamIDs {
		syncOne(domain.TeamScope(id))
	}

	if len(failures) > 0 {
		return &errs.PartialSyncError{RoleName: global.Name, Failures: failures}
	}
	return nil
}

// syncTarget brings a single clone into lock-step with the global role,
// creating it first if needed. The clone create can race another sync run;
// a Conflict from the insert means the clone now exists, so it is re-read
// and the permission replacement proceeds.
func (s *Synchronizer) syncTarget(ctx context.Context, global *domain.Role, scope domain.Scope, clone *domain.Role, permissionIDs []string, actorID string) error {
	if clone == nil {
		now := time.Now().UTC()
		candidate := &domain.Role{
			ID:          uuid.New().String(),
			Name:        global.Name,
			Description: global.Description,
			Scope:       scope,
			Level:       global.Level,
			IsSystem:    global.IsSystem,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		switch err := s.repo.Create(ctx, candidate); {
		case err == nil:
			clone = candidate
		case isConflict(err):
			found, ferr := s.repo.FindByName(ctx, scope, global.Name)
			if ferr != nil {
				return ferr
			}
			if found == nil {
				return err
			}
			clone = found
		default:
			return err
		}
	}
	return s.repo.ReplacePermissions(ctx, clone.ID, permissionIDs, actorID)
}
