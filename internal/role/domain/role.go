// Package domain defines roles and the scope variant they are tagged with.
package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ScopeKind is the context a role applies to.
type ScopeKind string

const (
	ScopeGlobal       ScopeKind = "global"
	ScopeOrganization ScopeKind = "organization"
	ScopeTeam         ScopeKind = "team"
)

// Scope is a tagged union over the three scope variants. Exactly the field
// matching Kind is set; construct values with GlobalScope, OrganizationScope,
// or TeamScope and check shape with Validate.
type Scope struct {
	Kind           ScopeKind
	OrganizationID string
	TeamID         string
}

// GlobalScope returns the platform-wide scope.
func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// OrganizationScope returns the scope of one organization.
func OrganizationScope(orgID string) Scope {
	return Scope{Kind: ScopeOrganization, OrganizationID: orgID}
}

// TeamScope returns the scope of one team.
func TeamScope(teamID string) Scope {
	return Scope{Kind: ScopeTeam, TeamID: teamID}
}

// Validate checks that exactly the field matching Kind is set.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		if s.OrganizationID != "" || s.TeamID != "" {
			return errors.New("global scope must not carry an organization or team id")
		}
	case ScopeOrganization:
		if s.OrganizationID == "" {
			return errors.New("organization scope requires an organization id")
		}
		if s.TeamID != "" {
			return errors.New("organization scope must not carry a team id")
		}
	case ScopeTeam:
		if s.TeamID == "" {
			return errors.New("team scope requires a team id")
		}
		if s.OrganizationID != "" {
			return errors.New("team scope must not carry an organization id")
		}
	default:
		return fmt.Errorf("unknown scope kind %q", s.Kind)
	}
	return nil
}

// InstanceID returns the id of the scope instance: empty for global, the
// organization id or team id otherwise.
func (s Scope) InstanceID() string {
	switch s.Kind {
	case ScopeOrganization:
		return s.OrganizationID
	case ScopeTeam:
		return s.TeamID
	default:
		return ""
	}
}

// Equal reports whether two scopes denote the same scope instance.
func (s Scope) Equal(o Scope) bool {
	return s.Kind == o.Kind && s.InstanceID() == o.InstanceID()
}

func (s Scope) String() string {
	if id := s.InstanceID(); id != "" {
		return fmt.Sprintf("%s/%s", s.Kind, id)
	}
	return string(s.Kind)
}

// roleNamePattern restricts role names to latin letters, digits, and underscores.
var roleNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Role is a named set of granted permissions at one scope instance. Global
// roles are the canonical template; organization and team roles sharing a
// global role's name are derived clones kept in permission lock-step by the
// synchronizer.
type Role struct {
	ID          string
	Name        string
	Description string
	Scope       Scope
	Level       int
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the role's name and scope shape.
func (r *Role) Validate() error {
	if r.Name == "" {
		return errors.New("role name is required")
	}
	if !roleNamePattern.MatchString(r.Name) {
		return errors.New("role name may contain only latin letters, digits, and underscores")
	}
	return r.Scope.Validate()
}

// PermissionGrant links a role to one permission, recording who granted it and when.
type PermissionGrant struct {
	RoleID       string
	PermissionID string
	GrantedBy    string
	GrantedAt    time.Time
}
