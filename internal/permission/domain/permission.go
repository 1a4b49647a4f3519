// Package domain defines permissions (stored in the permissions table).
package domain

import (
	"errors"
	"time"
)

// Permission is an immutable (resource, action) pair. Roles reference
// permissions; they never own them.
type Permission struct {
	ID          string
	Name        string
	Resource    string
	Action      string
	Description string
	CreatedAt   time.Time
}

// Key returns the canonical "resource.action" form, e.g. "users.read".
func (p *Permission) Key() string {
	return p.Resource + "." + p.Action
}

// Validate checks required fields.
func (p *Permission) Validate() error {
	if p.Resource == "" || p.Action == "" {
		return errors.New("permission resource and action are required")
	}
	if p.Name == "" {
		return errors.New("permission name is required")
	}
	return nil
}
