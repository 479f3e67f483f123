package tenants

import (
	"slices"
	"sort"
	"time"
)

// Role is a member's rank inside one tenant.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleGuest  Role = "GUEST"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleGuest:
		return true
	}
	return false
}

// CanManageMembers reports whether the role may list, invite, update and remove members.
func (r Role) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Membership grants a user a role and permission list within one tenant.
// There is one row per (TenantID, UserID) and exactly one OWNER per tenant.
type Membership struct {
	TenantID    string     `json:"tenantId"`
	UserID      string     `json:"userId"`
	Role        Role       `json:"role"`
	Permissions []string   `json:"permissions"`
	IsActive    bool       `json:"isActive"`
	InvitedBy   string     `json:"invitedBy,omitempty"`
	InvitedAt   *time.Time `json:"invitedAt,omitempty"`
	JoinedAt    *time.Time `json:"joinedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`

	// Pending invitations only. Cleared on acceptance.
	InvitationTokenHash string     `json:"-"`
	InvitationExpiresAt *time.Time `json:"-"`
}

// Scope returns the tenant context this membership grants.
func (m *Membership) Scope() Scope {
	return Scope{
		TenantID:    m.TenantID,
		Role:        m.Role,
		Permissions: slices.Clone(m.Permissions),
	}
}

// SortByJoinOrder orders memberships by JoinedAt (falling back to InvitedAt,
// then CreatedAt) with TenantID then UserID as tie breakers, giving a total order.
func SortByJoinOrder(ms []*Membership) {
	sort.SliceStable(ms, func(i, j int) bool {
		ti, tj := ms[i].joinOrder(), ms[j].joinOrder()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		if ms[i].TenantID != ms[j].TenantID {
			return ms[i].TenantID < ms[j].TenantID
		}
		return ms[i].UserID < ms[j].UserID
	})
}

func (m *Membership) joinOrder() time.Time {
	switch {
	case m.JoinedAt != nil:
		return *m.JoinedAt
	case m.InvitedAt != nil:
		return *m.InvitedAt
	}
	return m.CreatedAt
}
