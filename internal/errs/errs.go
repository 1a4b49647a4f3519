// Package errs defines the error categories shared by the authorization core.
// Services wrap these sentinels with context (fmt.Errorf("%w: ...")); callers
// branch on the category with errors.Is.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a role, permission, code, user, or other
	// referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on duplicate names, duplicate active
	// assignments, and other invariant violations at the write boundary.
	ErrConflict = errors.New("conflict")
	// ErrForbidden is returned when an operation targets a protected entity,
	// e.g. mutating or deleting a system role.
	ErrForbidden = errors.New("forbidden")
	// ErrExpired is returned when a code or merge request is past its TTL.
	ErrExpired = errors.New("expired")
	// ErrAttemptsExceeded is returned once a code's verification attempts
	// are exhausted.
	ErrAttemptsExceeded = errors.New("attempts exceeded")
)

// SyncFailure records one org/team clone that failed to synchronize.
type SyncFailure struct {
	ScopeType string // "organization" or "team"
	ScopeID   string
	RoleName  string
	Err       error
}

// PartialSyncError reports clones that failed during role propagation.
// Non-fatal: clones that synchronized stay synchronized; failed ones are
// retried on the next explicit sync call.
type PartialSyncError struct {
	RoleName string
	Failures []SyncFailure
}

func (e *PartialSyncError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "role %q: %d clone(s) failed to sync:", e.RoleName, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, " %s/%s: %v;", f.ScopeType, f.ScopeID, f.Err)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Unwrap exposes the first underlying failure for errors.Is/As chains.
func (e *PartialSyncError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0].Err
}
