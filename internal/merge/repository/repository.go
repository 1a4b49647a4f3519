package repository

import (
	"context"
	"time"

	"loginus/internal/merge/domain"
)

// Repository persists merge requests. Resolve and Expire are status
// compare-and-swap writes: they only act on a still-pending request and
// report whether this caller made the transition.
type Repository interface {
	Create(ctx context.Context, r *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	FindPendingByUsers(ctx context.Context, primaryUserID, secondaryUserID string) (*domain.Request, error)
	Resolve(ctx context.Context, id string, resolution map[string]domain.Choice, at time.Time) (bool, error)
	Expire(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
