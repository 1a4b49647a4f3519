// Package service implements issuance, verification, and single-use
// consumption of ephemeral codes.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"loginus/internal/audit"
	auditdomain "loginus/internal/audit/domain"
	"loginus/internal/code/domain"
	"loginus/internal/errs"
)

// Issuance rate limit per purpose+subject.
const (
	issueLimit  = 5
	issueWindow = time.Hour
)

// CodeRepo is the code repository surface needed by the manager.
type CodeRepo interface {
	Create(ctx context.Context, c *domain.Code) error
	FindLatest(ctx context.Context, purpose domain.Purpose, subject string) (*domain.Code, error)
	FindPendingByHash(ctx context.Context, purpose domain.Purpose, codeHash string) (*domain.Code, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	Transition(ctx context.Context, id string, from, to domain.Status) (bool, error)
	DeactivatePending(ctx context.Context, purpose domain.Purpose, subject string) (int64, error)
	CountIssuedSince(ctx context.Context, purpose domain.Purpose, subject string, since time.Time) (int, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Issued is handed to the caller for delivery by an external channel. The
// plaintext value is never stored.
type Issued struct {
	ID        string
	Value     string
	ExpiresAt time.Time
}

// Manager issues, verifies, and consumes ephemeral codes across all purposes.
type Manager struct {
	repo   CodeRepo
	audits audit.AuditLogger
	now    func() time.Time
}

// NewManager returns a Manager. audits may be nil to drop audit events.
func NewManager(repo CodeRepo, audits audit.AuditLogger) *Manager {
	if audits == nil {
		audits = audit.Nop{}
	}
	return &Manager{
		repo:   repo,
		audits: audits,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue generates a fresh code for purpose+subject, expiring any still-pending
// prior code for the same pair so at most one code is live per subject. A ttl
// of zero uses the purpose's default. Fails with Conflict once the subject
// exceeds the issuance rate limit, or when a concurrent Issue won the race
// for the single pending slot (retryable).
func (m *Manager) Issue(ctx context.Context, purpose domain.Purpose, subject string, ttl time.Duration, metadata map[string]string) (*Issued, error) {
	profile, err := domain.ProfileFor(purpose)
	if err != nil {
		return nil, err
	}
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if ttl <= 0 {
		ttl = profile.DefaultTTL
	}
	now := m.now()

	issued, err := m.repo.CountIssuedSince(ctx, purpose, subject, now.Add(-issueWindow))
	if err != nil {
		return nil, err
	}
	if issued >= issueLimit {
		return nil, fmt.Errorf("%w: %d codes issued for %s within %s", errs.ErrConflict, issued, purpose, issueWindow)
	}
	if _, err := m.repo.DeactivatePending(ctx, purpose, subject); err != nil {
		return nil, err
	}

	value, err := generateValue(profile.Format)
	if err != nil {
		return nil, err
	}
	c := &domain.Code{
		ID:          uuid.New().String(),
		Purpose:     purpose,
		Subject:     subject,
		CodeHash:    HashCode(value),
		Status:      domain.StatusPending,
		MaxAttempts: profile.MaxAttempts,
		ExpiresAt:   now.Add(ttl),
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	m.audits.LogEvent(ctx, subject, "code.issue", codeResource(purpose, c.ID), auditdomain.ResultSuccess, "")
	return &Issued{ID: c.ID, Value: value, ExpiresAt: c.ExpiresAt}, nil
}

// Verify checks the submitted value against the subject's latest code and, on
// match, transitions it pending -> verified/used under a status
// compare-and-swap, so at most one concurrent caller observes success.
//
// Failure modes: NotFound when no code matches (wrong value with attempts to
// spare, unknown subject, or already-consumed code), Expired when the TTL has
// lapsed (the code is lazily marked expired), AttemptsExceeded once the
// attempt budget is spent (which also expires the code).
func (m *Manager) Verify(ctx context.Context, purpose domain.Purpose, subject, submitted string) (*domain.Code, error) {
	c, err := m.repo.FindLatest(ctx, purpose, subject)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: no %s code for subject", errs.ErrNotFound, purpose)
	}

	switch c.Status {
	case domain.StatusExpired:
		if c.AttemptsExhausted() {
			return nil, fmt.Errorf("%w: %s code", errs.ErrAttemptsExceeded, purpose)
		}
		return nil, fmt.Errorf("%w: %s code", errs.ErrExpired, purpose)
	case domain.StatusVerified, domain.StatusUsed:
		return nil, fmt.Errorf("%w: %s code already consumed", errs.ErrNotFound, purpose)
	}

	now := m.now()
	if c.ExpiredAt(now) {
		if _, err := m.repo.Transition(ctx, c.ID, domain.StatusPending, domain.StatusExpired); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s code", errs.ErrExpired, purpose)
	}
	if c.AttemptsExhausted() {
		if _, err := m.repo.Transition(ctx, c.ID, domain.StatusPending, domain.StatusExpired); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s code", errs.ErrAttemptsExceeded, purpose)
	}

	if !codeEqual(submitted, c.CodeHash) {
		attempts, err := m.repo.IncrementAttempts(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if attempts >= c.MaxAttempts {
			if _, err := m.repo.Transition(ctx, c.ID, domain.StatusPending, domain.StatusExpired); err != nil {
				return nil, err
			}
			m.audits.LogEvent(ctx, subject, "code.verify", codeResource(purpose, c.ID), auditdomain.ResultFailure, "attempts exhausted")
			return nil, fmt.Errorf("%w: %s code", errs.ErrAttemptsExceeded, purpose)
		}
		m.audits.LogEvent(ctx, subject, "code.verify", codeResource(purpose, c.ID), auditdomain.ResultFailure, "wrong code")
		return nil, fmt.Errorf("%w: %s code does not match", errs.ErrNotFound, purpose)
	}

	profile, err := domain.ProfileFor(purpose)
	if err != nil {
		return nil, err
	}
	won, err := m.repo.Transition(ctx, c.ID, domain.StatusPending, profile.SuccessStatus)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: %s code already consumed", errs.ErrNotFound, purpose)
	}
	c.Status = profile.SuccessStatus
	c.UpdatedAt = now
	m.audits.LogEvent(ctx, subject, "code.verify", codeResource(purpose, c.ID), auditdomain.ResultSuccess, "")
	return c, nil
}

// ConsumeOnce redeems a code by its value alone, for flows where the subject
// is not known up front (an OAuth exchange carries only the code). The
// pending -> used swap guarantees exactly one redemption even under
// concurrent attempts; every other caller gets NotFound.
func (m *Manager) ConsumeOnce(ctx context.Context, purpose domain.Purpose, value string) (*domain.Code, error) {
	c, err := m.repo.FindPendingByHash(ctx, purpose, HashCode(value))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s code unknown or already consumed", errs.ErrNotFound, purpose)
	}
	now := m.now()
	if c.ExpiredAt(now) {
		if _, err := m.repo.Transition(ctx, c.ID, domain.StatusPending, domain.StatusExpired); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s code", errs.ErrExpired, purpose)
	}
	profile, err := domain.ProfileFor(purpose)
	if err != nil {
		return nil, err
	}
	won, err := m.repo.Transition(ctx, c.ID, domain.StatusPending, profile.SuccessStatus)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: %s code already consumed", errs.ErrNotFound, purpose)
	}
	c.Status = profile.SuccessStatus
	c.UpdatedAt = now
	m.audits.LogEvent(ctx, c.Subject, "code.consume", codeResource(purpose, c.ID), auditdomain.ResultSuccess, "")
	return c, nil
}

// Sweep expires stale pending codes. Safe to run concurrently with
// verification and with other sweeps.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.repo.SweepExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.audits.LogEvent(ctx, "", "code.sweep", "ephemeral_codes", auditdomain.ResultSuccess,
			fmt.Sprintf("expired=%d", n))
	}
	return n, nil
}

func codeResource(purpose domain.Purpose, id string) string {
	return fmt.Sprintf("codes/%s/%s", purpose, id)
}
