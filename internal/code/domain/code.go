// Package domain defines ephemeral single-use codes. One state machine covers
// every purpose; purposes differ only in code format, default TTL, attempt
// budget, and which terminal status counts as success.
package domain

import (
	"fmt"
	"time"
)

// Purpose identifies what a code is for and selects its issuance profile.
type Purpose string

const (
	PurposeTwoFactorEmail     Purpose = "two_factor_email"
	PurposeTwoFactorSMS       Purpose = "two_factor_sms"
	PurposeEmailVerification  Purpose = "email_verification"
	PurposePasswordReset      Purpose = "password_reset"
	PurposeOAuthAuthorization Purpose = "oauth_authorization"
	PurposeMergeConfirmation  Purpose = "merge_confirmation"
)

// Status is the code lifecycle state. pending transitions exactly once to
// verified or used, or to expired on TTL lapse or attempt exhaustion.
// Terminal states never transition.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusUsed     Status = "used"
	StatusExpired  Status = "expired"
)

// Format selects how the code value is generated.
type Format int

const (
	// FormatNumeric is a 6-digit numeric code a human types in.
	FormatNumeric Format = iota
	// FormatOpaque is a 64-character hex token carried in a link or an
	// OAuth redirect.
	FormatOpaque
)

// Profile is the purpose-specific issuance and verification policy.
type Profile struct {
	Format        Format
	DefaultTTL    time.Duration
	MaxAttempts   int
	SuccessStatus Status
}

var profiles = map[Purpose]Profile{
	PurposeTwoFactorEmail:     {Format: FormatNumeric, DefaultTTL: 10 * time.Minute, MaxAttempts: 3, SuccessStatus: StatusVerified},
	PurposeTwoFactorSMS:       {Format: FormatNumeric, DefaultTTL: 10 * time.Minute, MaxAttempts: 3, SuccessStatus: StatusVerified},
	PurposeEmailVerification:  {Format: FormatOpaque, DefaultTTL: 24 * time.Hour, MaxAttempts: 3, SuccessStatus: StatusVerified},
	PurposePasswordReset:      {Format: FormatOpaque, DefaultTTL: time.Hour, MaxAttempts: 3, SuccessStatus: StatusUsed},
	PurposeOAuthAuthorization: {Format: FormatOpaque, DefaultTTL: 10 * time.Minute, MaxAttempts: 3, SuccessStatus: StatusUsed},
	PurposeMergeConfirmation:  {Format: FormatOpaque, DefaultTTL: 24 * time.Hour, MaxAttempts: 3, SuccessStatus: StatusUsed},
}

// ProfileFor returns the issuance profile for the purpose.
func ProfileFor(p Purpose) (Profile, error) {
	prof, ok := profiles[p]
	if !ok {
		return Profile{}, fmt.Errorf("unknown code purpose %q", p)
	}
	return prof, nil
}

// Code is a stored ephemeral code. Only the SHA-256 hash of the value is
// persisted; the plaintext exists once, in the issuance response handed to
// the delivery channel.
type Code struct {
	ID          string
	Purpose     Purpose
	Subject     string
	CodeHash    string
	Status      Status
	Attempts    int
	MaxAttempts int
	ExpiresAt   time.Time
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExpiredAt reports whether the code's TTL has lapsed at the given instant.
func (c *Code) ExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// AttemptsExhausted reports whether the attempt budget is spent.
func (c *Code) AttemptsExhausted() bool {
	return c.Attempts >= c.MaxAttempts
}
