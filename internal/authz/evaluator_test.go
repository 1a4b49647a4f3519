package authz

import (
	"context"
	"errors"
	"testing"

	assignmentdomain "loginus/internal/assignment/domain"
	"loginus/internal/errs"
	permdomain "loginus/internal/permission/domain"
)

func TestOPAEvaluatorDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name  string
		input Input
		want  bool
	}{
		{
			name:  "exact permission",
			input: Input{Permissions: []string{"users.read"}, Resource: "users", Action: "read"},
			want:  true,
		},
		{
			name:  "manage implies every action",
			input: Input{Permissions: []string{"roles.manage"}, Resource: "roles", Action: "delete"},
			want:  true,
		},
		{
			name:  "missing permission denies",
			input: Input{Permissions: []string{"users.read"}, Resource: "users", Action: "delete"},
			want:  false,
		},
		{
			name:  "empty set denies",
			input: Input{Resource: "users", Action: "read"},
			want:  false,
		},
		{
			name:  "manage on another resource does not leak",
			input: Input{Permissions: []string{"users.manage"}, Resource: "roles", Action: "read"},
			want:  false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Allow(ctx, tc.input)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("Allow = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewOPAEvaluatorRejectsBadPolicy(t *testing.T) {
	_, err := NewOPAEvaluator(context.Background(), "package broken\n\nallow if {")
	if err == nil {
		t.Fatal("invalid rego must fail to compile")
	}
}

type stubResolver struct {
	perms []*permdomain.Permission
}

func (s *stubResolver) ResolveEffectivePermissions(context.Context, string, assignmentdomain.ScopeContext) ([]*permdomain.Permission, error) {
	return s.perms, nil
}

func TestGuardAuthorize(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx)
	if err != nil {
		t.Fatal(err)
	}
	g := NewGuard(&stubResolver{perms: []*permdomain.Permission{
		{Resource: "clients", Action: "read"},
	}}, e)

	if err := g.Authorize(ctx, "u1", assignmentdomain.ScopeContext{}, "clients", "read"); err != nil {
		t.Fatalf("allowed action: %v", err)
	}
	err = g.Authorize(ctx, "u1", assignmentdomain.ScopeContext{}, "clients", "delete")
	if !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("denied action: want ErrForbidden, got %v", err)
	}
}
