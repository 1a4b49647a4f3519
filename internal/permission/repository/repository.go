package repository

import (
	"context"

	"loginus/internal/permission/domain"
)

// Repository defines persistence for permissions.
type Repository interface {
	List(ctx context.Context) ([]*domain.Permission, error)
	GetByID(ctx context.Context, id string) (*domain.Permission, error)
	GetByKey(ctx context.Context, resource, action string) (*domain.Permission, error)
	Create(ctx context.Context, p *domain.Permission) error
}
