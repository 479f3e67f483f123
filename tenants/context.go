package tenants

import "slices"

// Context is the tenant scope a token is bound to. It is either NoTenant or a
// Scope; use ScopeOf rather than a type switch when only the scope matters.
type Context interface {
	isTenantContext()
}

// NoTenant is the context of a user who has no active membership to act in.
type NoTenant struct{}

// Scope is an active tenant context.
type Scope struct {
	TenantID    string
	Role        Role
	Permissions []string
}

// HasPermission reports whether the scope grants perm. Owners hold every permission.
func (s Scope) HasPermission(perm string) bool {
	return s.Role == RoleOwner || slices.Contains(s.Permissions, perm)
}

func (NoTenant) isTenantContext() {}
func (Scope) isTenantContext() {}

// ScopeOf returns the scope carried by c, if any.
func ScopeOf(c Context) (Scope, bool) {
	s, ok := c.(Scope)
	if !ok || s.TenantID == "" {
		return Scope{}, false
	}
	return s, true
}
