package permission

import "loginus/internal/permission/domain"

// Defaults returns the system permission set seeded at install time
// (cmd/seed). IDs are assigned on insert.
func Defaults() []*domain.Permission {
	specs := []struct {
		resource string
		actions  []string
	}{
		{"users", []string{"create", "read", "update", "delete", "manage"}},
		{"knowledge", []string{"create", "read", "update", "delete", "approve", "publish", "manage"}},
		{"clients", []string{"create", "read", "update", "delete", "export", "manage"}},
		{"settings", []string{"read", "update", "integrations", "manage"}},
		{"support", []string{"tickets_read", "tickets_update", "tickets_assign", "chat", "manage"}},
		{"organizations", []string{"create", "read", "update", "delete", "members", "manage"}},
		{"teams", []string{"create", "read", "update", "delete", "members", "manage"}},
		{"roles", []string{"create", "update", "delete", "assign", "manage"}},
	}
	var out []*domain.Permission
	for _, s := range specs {
		for _, a := range s.actions {
			out = append(out, &domain.Permission{
				Name:     s.resource + "." + a,
				Resource: s.resource,
				Action:   a,
			})
		}
	}
	return out
}
