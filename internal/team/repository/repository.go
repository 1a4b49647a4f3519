package repository

import (
	"context"

	"loginus/internal/team/domain"
)

// Repository defines persistence for teams and their memberships.
type Repository interface {
	Create(ctx context.Context, t *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	ListIDs(ctx context.Context) ([]string, error)
	IsMember(ctx context.Context, userID, teamID string) (bool, error)
	AddMember(ctx context.Context, userID, teamID string) error
}
