// Package service implements cross-account merge: conflict detection between
// two user records and operator-chosen resolution.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"loginus/internal/audit"
	auditdomain "loginus/internal/audit/domain"
	"loginus/internal/errs"
	"loginus/internal/merge/domain"
	userdomain "loginus/internal/user/domain"
)

// UserRepo is the minimal user repository needed by the resolver.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	Update(ctx context.Context, u *userdomain.User) error
	DeactivateLogin(ctx context.Context, id string) error
}

// MergeRepo is the merge request repository surface needed by the resolver.
type MergeRepo interface {
	Create(ctx context.Context, r *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	FindPendingByUsers(ctx context.Context, primaryUserID, secondaryUserID string) (*domain.Request, error)
	Resolve(ctx context.Context, id string, resolution map[string]domain.Choice, at time.Time) (bool, error)
	Expire(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Resolver creates and resolves account merge requests.
type Resolver struct {
	repo   MergeRepo
	users  UserRepo
	audits audit.AuditLogger
	now    func() time.Time
}

// NewResolver returns a Resolver. audits may be nil to drop audit events.
func NewResolver(repo MergeRepo, users UserRepo, audits audit.AuditLogger) *Resolver {
	if audits == nil {
		audits = audit.Nop{}
	}
	return &Resolver{
		repo:   repo,
		users:  users,
		audits: audits,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// The user fields compared during conflict detection.
const (
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldDisplayName = "display_name"
	FieldTelegramID  = "telegram_id"
)

func comparedFields(u *userdomain.User) map[string]string {
	return map[string]string{
		FieldEmail:       u.Email,
		FieldPhone:       u.Phone,
		FieldDisplayName: u.DisplayName,
		FieldTelegramID:  u.TelegramID,
	}
}

// CreateMergeRequest diffs the two user records field by field. Every field
// with differing non-empty values on both sides becomes a conflict entry; a
// field set on only one side is not a conflict, the set value simply wins at
// resolution time. The request stays resolvable for DefaultTTL.
func (r *Resolver) CreateMergeRequest(ctx context.Context, primaryUserID, secondaryUserID, authMethod string) (*domain.Request, error) {
	if primaryUserID == secondaryUserID {
		return nil, fmt.Errorf("%w: cannot merge an account into itself", errs.ErrConflict)
	}
	primary, err := r.users.GetByID(ctx, primaryUserID)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, fmt.Errorf("%w: user %s", errs.ErrNotFound, primaryUserID)
	}
	secondary, err := r.users.GetByID(ctx, secondaryUserID)
	if err != nil {
		return nil, err
	}
	if secondary == nil {
		return nil, fmt.Errorf("%w: user %s", errs.ErrNotFound, secondaryUserID)
	}
	if secondary.Status == userdomain.UserStatusMerged {
		return nil, fmt.Errorf("%w: user %s is already merged", errs.ErrConflict, secondaryUserID)
	}
	existing, err := r.repo.FindPendingByUsers(ctx, primaryUserID, secondaryUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.ExpiredAt(r.now()) {
		return nil, fmt.Errorf("%w: merge request %s is already pending", errs.ErrConflict, existing.ID)
	}

	conflicts := make(map[string]domain.Conflict)
	pf, sf := comparedFields(primary), comparedFields(secondary)
	for field, pv := range pf {
		sv := sf[field]
		if pv != "" && sv != "" && pv != sv {
			conflicts[field] = domain.Conflict{Primary: pv, Secondary: sv}
		}
	}

	now := r.now()
	req := &domain.Request{
		ID:              uuid.New().String(),
		PrimaryUserID:   primaryUserID,
		SecondaryUserID: secondaryUserID,
		AuthMethod:      authMethod,
		Conflicts:       conflicts,
		Status:          domain.StatusPending,
		ExpiresAt:       now.Add(domain.DefaultTTL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.repo.Create(ctx, req); err != nil {
		return nil, err
	}
	r.audits.LogEvent(ctx, primaryUserID, "merge.create", mergeResource(req), auditdomain.ResultSuccess,
		fmt.Sprintf("conflicts=%d", len(conflicts)))
	return req, nil
}

// Resolve applies the operator's choices: every conflicting field must have a
// choice, chosen secondary values are written onto the primary record, and
// the secondary account's login is deactivated. The request only reaches
// resolved after the user writes succeed; a failed apply leaves it pending so
// the merge can be retried. Fails with Expired once the TTL has lapsed (the
// request is lazily marked expired).
func (r *Resolver) Resolve(ctx context.Context, actorID, requestID string, resolution map[string]domain.Choice) (*domain.Request, error) {
	req, err := r.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: merge request %s", errs.ErrNotFound, requestID)
	}
	switch req.Status {
	case domain.StatusExpired:
		return nil, fmt.Errorf("%w: merge request %s", errs.ErrExpired, requestID)
	case domain.StatusResolved, domain.StatusCancelled:
		return nil, fmt.Errorf("%w: merge request %s is already %s", errs.ErrConflict, requestID, req.Status)
	}
	now := r.now()
	if req.ExpiredAt(now) {
		if _, err := r.repo.Expire(ctx, requestID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: merge request %s", errs.ErrExpired, requestID)
	}

	for field := range req.Conflicts {
		choice, ok := resolution[field]
		if !ok {
			return nil, fmt.Errorf("%w: no choice for conflicting field %q", errs.ErrConflict, field)
		}
		if choice != domain.ChoicePrimary && choice != domain.ChoiceSecondary {
			return nil, fmt.Errorf("%w: invalid choice %q for field %q", errs.ErrConflict, choice, field)
		}
	}
	for field := range resolution {
		if _, ok := req.Conflicts[field]; !ok {
			return nil, fmt.Errorf("%w: field %q is not in conflict", errs.ErrConflict, field)
		}
	}

	// Apply the user writes first, then claim pending -> resolved. A failed
	// apply leaves the request pending and retryable; resolved is terminal
	// and must only be reached once the merge has actually happened. The
	// writes are deterministic for a given resolution, so losing the claim
	// after applying is harmless.
	if err := r.apply(ctx, req, resolution); err != nil {
		r.audits.LogEvent(ctx, actorID, "merge.resolve", mergeResource(req), auditdomain.ResultFailure, err.Error())
		return nil, err
	}

	won, err := r.repo.Resolve(ctx, requestID, resolution, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: merge request %s was resolved concurrently", errs.ErrConflict, requestID)
	}

	req.Status = domain.StatusResolved
	req.Resolution = resolution
	req.ResolvedAt = &now
	req.UpdatedAt = now
	r.audits.LogEvent(ctx, actorID, "merge.resolve", mergeResource(req), auditdomain.ResultSuccess, "")
	return req, nil
}

func (r *Resolver) apply(ctx context.Context, req *domain.Request, resolution map[string]domain.Choice) error {
	primary, err := r.users.GetByID(ctx, req.PrimaryUserID)
	if err != nil {
		return err
	}
	if primary == nil {
		return fmt.Errorf("%w: user %s", errs.ErrNotFound, req.PrimaryUserID)
	}
	for field, choice := range resolution {
		if choice != domain.ChoiceSecondary {
			continue
		}
		value := req.Conflicts[field].Secondary
		switch field {
		case FieldEmail:
			primary.Email = value
		case FieldPhone:
			primary.Phone = value
		case FieldDisplayName:
			primary.DisplayName = value
		case FieldTelegramID:
			primary.TelegramID = value
		}
	}
	if err := r.users.Update(ctx, primary); err != nil {
		return err
	}
	return r.users.DeactivateLogin(ctx, req.SecondaryUserID)
}

// Cancel abandons a pending merge request.
func (r *Resolver) Cancel(ctx context.Context, actorID, requestID string) error {
	req, err := r.repo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("%w: merge request %s", errs.ErrNotFound, requestID)
	}
	won, err := r.repo.Cancel(ctx, requestID)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("%w: merge request %s is already %s", errs.ErrConflict, requestID, req.Status)
	}
	r.audits.LogEvent(ctx, actorID, "merge.cancel", mergeResource(req), auditdomain.ResultSuccess, "")
	return nil
}

// Sweep expires stale pending merge requests.
func (r *Resolver) Sweep(ctx context.Context) (int64, error) {
	return r.repo.SweepExpired(ctx, r.now())
}

func mergeResource(req *domain.Request) string {
	return fmt.Sprintf("merges/%s (%s<-%s)", req.ID, req.PrimaryUserID, req.SecondaryUserID)
}
