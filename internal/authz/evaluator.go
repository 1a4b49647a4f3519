// Package authz decides whether a caller may perform an action on a
// resource, given the caller's effective permission set.
package authz

import "context"

// Input is one authorization question.
type Input struct {
	// Permissions are the caller's effective permission keys ("resource.action").
	Permissions []string
	Resource    string
	Action      string
}

// Evaluator answers authorization questions. Implementations must be safe
// for concurrent use.
type Evaluator interface {
	Allow(ctx context.Context, input Input) (bool, error)
}
