package repository

import (
	"context"
	"time"

	"loginus/internal/code/domain"
)

// Repository persists ephemeral codes. Transition is the compare-and-swap
// primitive behind single-use consumption: it moves a code from one status to
// another only if the code is still in the expected status, and reports
// whether this caller won the swap.
type Repository interface {
	Create(ctx context.Context, c *domain.Code) error
	GetByID(ctx context.Context, id string) (*domain.Code, error)
	FindLatest(ctx context.Context, purpose domain.Purpose, subject string) (*domain.Code, error)
	FindPendingByHash(ctx context.Context, purpose domain.Purpose, codeHash string) (*domain.Code, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	Transition(ctx context.Context, id string, from, to domain.Status) (bool, error)
	DeactivatePending(ctx context.Context, purpose domain.Purpose, subject string) (int64, error)
	CountIssuedSince(ctx context.Context, purpose domain.Purpose, subject string, since time.Time) (int, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
