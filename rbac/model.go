package rbac

import (
	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/permission"
)

// Resource is a board or a project as seen by the authorizer.
type Resource struct {
	ID      string
	Domain  permission.Domain
	OwnerID string
	Name    string
	// ProjectID links a board to its parent project; empty for projects.
	ProjectID string
}

// OwnedBy reports whether userID owns the resource.
func (r Resource) OwnedBy(userID string) bool {
	return userID != "" && r.OwnerID == userID
}

// Role is a positioned permission bundle scoped to one resource.
type Role struct {
	ordering.Item
	ResourceID string
	Name       string
	Granted    permission.Mask
	Denied     permission.Mask
}

// Effective returns the role's granted bits minus its denied bits.
func (r Role) Effective() permission.Mask {
	return permission.Effective(r.Granted, r.Denied)
}

// RoleItems projects roles to their ordering items.
func RoleItems(roles []Role) []ordering.Item {
	out := make([]ordering.Item, len(roles))
	for i := range roles {
		out[i] = roles[i].Item
	}
	return out
}

// ApplyRoles returns a copy of roles with item changes applied by ID.
func ApplyRoles(roles []Role, changes []ordering.Item) []Role {
	byID := make(map[string]ordering.Item, len(changes))
	for _, c := range changes {
		byID[c.ID] = c
	}
	out := make([]Role, len(roles))
	for i, r := range roles {
		if c, ok := byID[r.ID]; ok {
			r.Item = c
		}
		out[i] = r
	}
	return out
}

// Member links one user to one resource and holds the user's roles there.
type Member struct {
	ID         string
	UserID     string
	ResourceID string
	Roles      []Role
}

// EffectiveMask ORs the effective mask of every role that belongs to the
// member's resource. Roles of other resources contribute nothing.
func (m Member) EffectiveMask() permission.Mask {
	var out permission.Mask
	for _, r := range m.Roles {
		if r.ResourceID != m.ResourceID {
			continue
		}
		out |= r.Effective()
	}
	return out
}

// RoleIDs returns the IDs of the member's roles in assignment order.
func (m Member) RoleIDs() []string {
	out := make([]string, len(m.Roles))
	for i, r := range m.Roles {
		out[i] = r.ID
	}
	return out
}
