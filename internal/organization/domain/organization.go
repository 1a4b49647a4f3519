package domain

import (
	"errors"
	"time"
)

// Organization is a tenant boundary for scoped roles and memberships.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the organization for persistence.
func (o *Organization) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	if len(o.Name) > 100 {
		return errors.New("name must be at most 100 characters")
	}
	return nil
}
