// Package domain defines cross-account merge requests and their field-level
// conflict model.
package domain

import (
	"time"
)

// Status follows the shared pending/terminal shape: pending -> resolved,
// pending -> expired (TTL lapse), or pending -> cancelled. No transition
// leaves a terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// DefaultTTL is how long a merge request stays resolvable.
const DefaultTTL = 24 * time.Hour

// Conflict holds both candidate values for one user field that differs
// between the two accounts.
type Conflict struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Choice selects which side's value wins for a conflicting field.
type Choice string

const (
	ChoicePrimary   Choice = "primary"
	ChoiceSecondary Choice = "secondary"
)

// Request links two accounts being merged after a new auth method matched an
// existing user. Conflicts is keyed by field name; Resolution is filled when
// an operator decides.
type Request struct {
	ID              string
	PrimaryUserID   string
	SecondaryUserID string
	AuthMethod      string
	Conflicts       map[string]Conflict
	Resolution      map[string]Choice
	Status          Status
	ResolvedAt      *time.Time
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ExpiredAt reports whether the request's TTL has lapsed at the given instant.
func (r *Request) ExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
