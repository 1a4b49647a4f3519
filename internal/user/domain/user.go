package domain

import (
	"errors"
	"time"
)

// User is the core user entity. Email, Phone, and TelegramID are the auth
// methods a user may attach; any of them can be empty as long as one is set.
type User struct {
	ID            string
	Email         string
	Phone         string
	DisplayName   string
	TelegramID    string
	PasswordHash  string
	Status        UserStatus
	EmailVerified bool
	PhoneVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type UserStatus string

const (
	UserStatusActive UserStatus = "active"
	// UserStatusMerged marks a secondary account folded into another user.
	// Its credentials are deactivated; its historical data stays.
	UserStatusMerged   UserStatus = "merged"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" && u.Phone == "" && u.TelegramID == "" {
		return errors.New("at least one auth identifier (email, phone, telegram) is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// CanLogin reports whether the account accepts authentication.
func (u *User) CanLogin() bool {
	return u.Status == UserStatusActive
}
