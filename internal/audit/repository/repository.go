package repository

import (
	"context"

	"loginus/internal/audit/domain"
)

// Repository persists audit log entries.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByActor(ctx context.Context, actorID string, limit int) ([]*domain.AuditLog, error)
}
