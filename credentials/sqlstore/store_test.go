package sqlstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-tenant-auth/credentials"
	"github.com/jrsteele09/go-tenant-auth/credentials/sqlstore"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/users"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "auth.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema creation is idempotent")
	return store
}

func seed(t *testing.T, store credentials.Queries, userID, tenantID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateTenant(ctx, &tenants.Tenant{
		ID: tenantID, Name: "Acme " + tenantID, Slug: "acme-" + tenantID,
		Plan: tenants.PlanFree, IsActive: true, CreatedAt: testNow, UpdatedAt: testNow,
	}))
	require.NoError(t, store.CreateUser(ctx, &users.User{
		ID: userID, Email: userID + "@example.com", PasswordHash: "hash",
		IsActive: true, DefaultTenantID: tenantID, CreatedAt: testNow, UpdatedAt: testNow,
	}))
}

func TestStore_UserRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seed(t, store, "u1", "t1")

	got, err := store.GetUserByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", got.ID)
	require.Equal(t, "t1", got.DefaultTenantID)
	require.True(t, got.IsActive)
	require.False(t, got.IsVerified)
	require.Nil(t, got.LastLoginAt)
	require.True(t, testNow.Equal(got.CreatedAt))

	login := testNow.Add(time.Hour)
	got.LastLoginAt = &login
	got.FirstName = "Ann"
	require.NoError(t, store.UpdateUser(ctx, got))

	again, err := store.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Ann", again.FirstName)
	require.NotNil(t, again.LastLoginAt)
	require.True(t, login.Equal(*again.LastLoginAt))

	_, err = store.GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, autherrors.ErrNotFound)

	err = store.UpdateUser(ctx, &users.User{ID: "missing"})
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestStore_UniqueViolationsAreConflicts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seed(t, store, "u1", "t1")

	err := store.CreateUser(ctx, &users.User{ID: "u2", Email: "u1@example.com", CreatedAt: testNow, UpdatedAt: testNow})
	require.ErrorIs(t, err, autherrors.ErrConflict)

	err = store.CreateTenant(ctx, &tenants.Tenant{ID: "t2", Name: "x", Slug: "acme-t1", CreatedAt: testNow, UpdatedAt: testNow})
	require.ErrorIs(t, err, autherrors.ErrConflict)

	exists, err := store.SlugExists(ctx, "acme-t1")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = store.SlugExists(ctx, "nope")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestStore_Memberships(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seed(t, store, "u1", "t1")
	seed(t, store, "u2", "t2")

	joined := testNow
	later := testNow.Add(time.Minute)
	require.NoError(t, store.CreateMembership(ctx, &tenants.Membership{
		TenantID: "t1", UserID: "u1", Role: tenants.RoleOwner, IsActive: true, JoinedAt: &joined, CreatedAt: testNow,
	}))
	require.NoError(t, store.CreateMembership(ctx, &tenants.Membership{
		TenantID: "t1", UserID: "u2", Role: tenants.RoleMember, Permissions: []string{"docs:read"},
		IsActive: true, JoinedAt: &later, CreatedAt: testNow,
	}))

	err := store.CreateMembership(ctx, &tenants.Membership{TenantID: "t1", UserID: "u2", Role: tenants.RoleGuest, CreatedAt: testNow})
	require.ErrorIs(t, err, autherrors.ErrConflict)

	err = store.CreateMembership(ctx, &tenants.Membership{TenantID: "t1", UserID: "ghost", Role: tenants.RoleGuest, CreatedAt: testNow})
	require.ErrorIs(t, err, autherrors.ErrNotFound)

	members, err := store.ListTenantMemberships(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "u1", members[0].UserID)
	require.Equal(t, []string{"docs:read"}, members[1].Permissions)

	m, err := store.GetMembership(ctx, "t1", "u2")
	require.NoError(t, err)
	m.Role = tenants.RoleAdmin
	m.Permissions = nil
	require.NoError(t, store.UpdateMembership(ctx, m))

	m, err = store.GetMembership(ctx, "t1", "u2")
	require.NoError(t, err)
	require.Equal(t, tenants.RoleAdmin, m.Role)
	require.Empty(t, m.Permissions)

	mine, err := store.ListUserMemberships(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	require.NoError(t, store.DeleteMembership(ctx, "t1", "u2"))
	_, err = store.GetMembership(ctx, "t1", "u2")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
	require.ErrorIs(t, store.DeleteMembership(ctx, "t1", "u2"), autherrors.ErrNotFound)
}

func TestStore_InvitationLookup(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seed(t, store, "u1", "t1")

	invited := testNow
	expires := testNow.Add(24 * time.Hour)
	require.NoError(t, store.CreateMembership(ctx, &tenants.Membership{
		TenantID: "t1", UserID: "u1", Role: tenants.RoleMember, InvitedBy: "owner", InvitedAt: &invited,
		CreatedAt: testNow, InvitationTokenHash: "abc", InvitationExpiresAt: &expires,
	}))

	m, err := store.GetMembershipByInvitation(ctx, "abc")
	require.NoError(t, err)
	require.False(t, m.IsActive)
	require.Equal(t, "owner", m.InvitedBy)
	require.True(t, expires.Equal(*m.InvitationExpiresAt))

	m.InvitationTokenHash = ""
	m.InvitationExpiresAt = nil
	m.IsActive = true
	require.NoError(t, store.UpdateMembership(ctx, m))

	_, err = store.GetMembershipByInvitation(ctx, "abc")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestStore_OAuthLinksAndResets(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seed(t, store, "u1", "t1")

	link := &users.OAuthLink{Provider: users.ProviderGoogle, ProviderAccountID: "sub-1", UserID: "u1", CreatedAt: testNow}
	require.NoError(t, store.CreateOAuthLink(ctx, link))
	require.ErrorIs(t, store.CreateOAuthLink(ctx, link), autherrors.ErrConflict)

	got, err := store.GetOAuthLink(ctx, users.ProviderGoogle, "sub-1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
	got, err = store.GetUserOAuthLink(ctx, "u1", users.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "sub-1", got.ProviderAccountID)

	reset := &users.PasswordReset{ID: "r1", UserID: "u1", TokenHash: "h1", ExpiresAt: testNow.Add(time.Hour), CreatedAt: testNow}
	require.NoError(t, store.CreatePasswordReset(ctx, reset))

	r, err := store.GetPasswordResetByHash(ctx, "h1")
	require.NoError(t, err)
	require.True(t, r.Redeemable(testNow))

	require.NoError(t, store.MarkPasswordResetUsed(ctx, "r1", testNow))
	require.ErrorIs(t, store.MarkPasswordResetUsed(ctx, "r1", testNow), autherrors.ErrConflict)
	require.ErrorIs(t, store.MarkPasswordResetUsed(ctx, "nope", testNow), autherrors.ErrNotFound)

	r, err = store.GetPasswordResetByHash(ctx, "h1")
	require.NoError(t, err)
	require.True(t, r.Used)
	require.NotNil(t, r.UsedAt)
}

func TestStore_InTxRollsBackOnError(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(q credentials.Queries) error {
		seed(t, q, "u1", "t1")
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetUserByID(ctx, "u1")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
	_, err = store.GetTenant(ctx, "t1")
	require.ErrorIs(t, err, autherrors.ErrNotFound)

	err = store.InTx(ctx, func(q credentials.Queries) error {
		seed(t, q, "u1", "t1")
		return nil
	})
	require.NoError(t, err)
	_, err = store.GetUserByID(ctx, "u1")
	require.NoError(t, err)
}

func TestStore_Ping(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Ping(context.Background()))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), "mysql", "dsn", 1)
	require.Error(t, err)
}
