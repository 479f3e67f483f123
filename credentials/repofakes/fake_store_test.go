package credentialrepofakes_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-tenant-auth/credentials"
	credentialrepofakes "github.com/jrsteele09/go-tenant-auth/credentials/repofakes"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/users"
	"github.com/stretchr/testify/require"
)

func TestFakeStore_InTxIsAllOrNothing(t *testing.T) {
	store := credentialrepofakes.NewFakeStore()
	ctx := context.Background()
	now := time.Now()

	err := store.InTx(ctx, func(q credentials.Queries) error {
		require.NoError(t, q.CreateTenant(ctx, &tenants.Tenant{ID: "t1", Slug: "t1", CreatedAt: now}))
		require.NoError(t, q.CreateUser(ctx, &users.User{ID: "u1", Email: "a@x.com", CreatedAt: now}))
		return errors.New("abort")
	})
	require.Error(t, err)

	u, tn, m := store.Counts()
	require.Zero(t, u)
	require.Zero(t, tn)
	require.Zero(t, m)
}

func TestFakeStore_InjectedFailureRollsBack(t *testing.T) {
	store := credentialrepofakes.NewFakeStore()
	ctx := context.Background()
	store.InjectError("CreateMembership", autherrors.Unavailable(errors.New("down"), "insert"))

	err := store.InTx(ctx, func(q credentials.Queries) error {
		if err := q.CreateTenant(ctx, &tenants.Tenant{ID: "t1", Slug: "t1"}); err != nil {
			return err
		}
		if err := q.CreateUser(ctx, &users.User{ID: "u1", Email: "a@x.com"}); err != nil {
			return err
		}
		return q.CreateMembership(ctx, &tenants.Membership{TenantID: "t1", UserID: "u1", Role: tenants.RoleOwner})
	})
	require.ErrorIs(t, err, autherrors.ErrStoreUnavailable)

	u, tn, _ := store.Counts()
	require.Zero(t, u)
	require.Zero(t, tn)

	store.InjectError("CreateMembership", nil)
	require.NoError(t, store.CreateTenant(ctx, &tenants.Tenant{ID: "t1", Slug: "t1"}))
}

func TestFakeStore_ReturnsCopies(t *testing.T) {
	store := credentialrepofakes.NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.CreateTenant(ctx, &tenants.Tenant{ID: "t1", Slug: "t1"}))
	require.NoError(t, store.CreateUser(ctx, &users.User{ID: "u1", Email: "a@x.com"}))
	require.NoError(t, store.CreateMembership(ctx, &tenants.Membership{
		TenantID: "t1", UserID: "u1", Role: tenants.RoleMember, Permissions: []string{"a"},
	}))

	m, err := store.GetMembership(ctx, "t1", "u1")
	require.NoError(t, err)
	m.Permissions[0] = "changed"
	m.Role = tenants.RoleAdmin

	again, err := store.GetMembership(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Equal(t, tenants.RoleMember, again.Role)
	require.Equal(t, []string{"a"}, again.Permissions)
}

func TestFakeStore_UniqueAndMissing(t *testing.T) {
	store := credentialrepofakes.NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, &users.User{ID: "u1", Email: "a@x.com"}))
	require.ErrorIs(t, store.CreateUser(ctx, &users.User{ID: "u2", Email: "a@x.com"}), autherrors.ErrConflict)

	_, err := store.GetUserByEmail(ctx, "b@x.com")
	require.ErrorIs(t, err, autherrors.ErrNotFound)

	err = store.CreateMembership(ctx, &tenants.Membership{TenantID: "nope", UserID: "u1"})
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestFakeStore_ReadersSeeCommittedStateOnly(t *testing.T) {
	store := credentialrepofakes.NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.CreateTenant(ctx, &tenants.Tenant{ID: "t1", Slug: "t1"}))
	require.NoError(t, store.CreateUser(ctx, &users.User{ID: "a", Email: "a@x.com"}))
	require.NoError(t, store.CreateUser(ctx, &users.User{ID: "b", Email: "b@x.com"}))
	require.NoError(t, store.CreateMembership(ctx, &tenants.Membership{TenantID: "t1", UserID: "a", Role: tenants.RoleOwner}))
	require.NoError(t, store.CreateMembership(ctx, &tenants.Membership{TenantID: "t1", UserID: "b", Role: tenants.RoleAdmin}))

	var wg sync.WaitGroup
	var torn atomic.Int32
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if store.OwnerCount("t1") != 1 {
					torn.Add(1)
				}
			}
		}
	}()

	for i := 0; i < 50; i++ {
		from, to := "a", "b"
		if i%2 == 1 {
			from, to = "b", "a"
		}
		err := store.InTx(ctx, func(q credentials.Queries) error {
			cur, err := q.GetMembership(ctx, "t1", from)
			if err != nil {
				return err
			}
			next, err := q.GetMembership(ctx, "t1", to)
			if err != nil {
				return err
			}
			cur.Role, next.Role = tenants.RoleAdmin, tenants.RoleOwner
			if err := q.UpdateMembership(ctx, cur); err != nil {
				return err
			}
			return q.UpdateMembership(ctx, next)
		})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
	require.Zero(t, torn.Load(), "a reader observed a half-applied transfer")
}
