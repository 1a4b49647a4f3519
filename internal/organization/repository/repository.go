package repository

import (
	"context"

	"loginus/internal/organization/domain"
)

// Repository defines persistence for organizations and their memberships.
type Repository interface {
	Create(ctx context.Context, o *domain.Organization) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	ListIDs(ctx context.Context) ([]string, error)
	IsMember(ctx context.Context, userID, orgID string) (bool, error)
	AddMember(ctx context.Context, userID, orgID string) error
}
