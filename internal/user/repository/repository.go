package repository

import (
	"context"

	"loginus/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	DeactivateLogin(ctx context.Context, id string) error
}
