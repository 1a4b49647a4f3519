package authz

import (
	"context"
	"fmt"

	assignmentdomain "loginus/internal/assignment/domain"
	"loginus/internal/errs"
	permdomain "loginus/internal/permission/domain"
)

// PermissionResolver yields a user's effective permissions in a scope
// context. Implemented by the assignment ledger.
type PermissionResolver interface {
	ResolveEffectivePermissions(ctx context.Context, userID string, sc assignmentdomain.ScopeContext) ([]*permdomain.Permission, error)
}

// Guard composes the ledger and the policy evaluator into a single
// authorization check.
type Guard struct {
	resolver PermissionResolver
	eval     Evaluator
}

// NewGuard returns a Guard over the given resolver and evaluator.
func NewGuard(resolver PermissionResolver, eval Evaluator) *Guard {
	return &Guard{resolver: resolver, eval: eval}
}

// Authorize resolves the user's effective permissions in the scope context
// and asks the evaluator whether the action is allowed. Returns Forbidden on
// denial.
func (g *Guard) Authorize(ctx context.Context, userID string, sc assignmentdomain.ScopeContext, resource, action string) error {
	perms, err := g.resolver.ResolveEffectivePermissions(ctx, userID, sc)
	if err != nil {
		return err
	}
	keys := make([]string, len(perms))
	for i, p := range perms {
		keys[i] = p.Key()
	}
	allowed, err := g.eval.Allow(ctx, Input{Permissions: keys, Resource: resource, Action: action})
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s.%s", errs.ErrForbidden, resource, action)
	}
	return nil
}
