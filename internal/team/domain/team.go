package domain

import (
	"errors"
	"time"
)

// Team is a working group, optionally nested under an organization.
// Standalone teams have an empty OrganizationID.
type Team struct {
	ID             string
	Name           string
	OrganizationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate validates the team for persistence.
func (t *Team) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if len(t.Name) > 100 {
		return errors.New("name must be at most 100 characters")
	}
	return nil
}
