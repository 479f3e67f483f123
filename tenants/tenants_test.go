package tenants_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	require.Equal(t, "ann-s-workspace", tenants.Slugify("Ann's Workspace"))
	require.Equal(t, "acme-corp", tenants.Slugify("  ACME  Corp!! "))
	require.Empty(t, tenants.Slugify("!!!"))
}

func TestRole(t *testing.T) {
	require.True(t, tenants.RoleOwner.Valid())
	require.False(t, tenants.Role("SUPERUSER").Valid())
	require.True(t, tenants.RoleAdmin.CanManageMembers())
	require.False(t, tenants.RoleMember.CanManageMembers())
}

func TestScope_HasPermission(t *testing.T) {
	member := (&tenants.Membership{TenantID: "t1", Role: tenants.RoleMember, Permissions: []string{"projects:read"}}).Scope()
	require.True(t, member.HasPermission("projects:read"))
	require.False(t, member.HasPermission("projects:write"))

	owner := tenants.Scope{TenantID: "t1", Role: tenants.RoleOwner}
	require.True(t, owner.HasPermission("anything"))
}

func TestSortByJoinOrder(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	ms := []*tenants.Membership{
		{TenantID: "c", JoinedAt: &t1},
		{TenantID: "b", JoinedAt: &t0},
		{TenantID: "a", JoinedAt: &t0},
		{TenantID: "d", CreatedAt: t0.Add(-time.Hour)},
	}
	tenants.SortByJoinOrder(ms)

	got := []string{ms[0].TenantID, ms[1].TenantID, ms[2].TenantID, ms[3].TenantID}
	require.Equal(t, []string{"d", "a", "b", "c"}, got)
}

func TestScopeOf(t *testing.T) {
	_, ok := tenants.ScopeOf(tenants.NoTenant{})
	require.False(t, ok)

	s, ok := tenants.ScopeOf(tenants.Scope{TenantID: "t-1", Role: tenants.RoleAdmin})
	require.True(t, ok)
	require.Equal(t, "t-1", s.TenantID)

	_, ok = tenants.ScopeOf(nil)
	require.False(t, ok)
}

func TestMembership_ScopeCopiesPermissions(t *testing.T) {
	m := &tenants.Membership{TenantID: "t-1", Role: tenants.RoleMember, Permissions: []string{"a"}}
	s := m.Scope()
	s.Permissions[0] = "changed"
	require.Equal(t, "a", m.Permissions[0])
}
