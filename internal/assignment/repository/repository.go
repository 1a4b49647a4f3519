package repository

import (
	"context"
	"time"

	"loginus/internal/assignment/domain"
)

// Repository persists role assignments.
type Repository interface {
	Create(ctx context.Context, a *domain.Assignment) error
	GetByID(ctx context.Context, id string) (*domain.Assignment, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*domain.Assignment, error)
	ExistsActive(ctx context.Context, userID, roleID string, now time.Time) (bool, error)
}
