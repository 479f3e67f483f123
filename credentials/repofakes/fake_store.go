package credentialrepofakes

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jrsteele09/go-tenant-auth/credentials"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/users"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credentials.Store. Stored entities are never
// mutated in place, so a transaction works on a cheap copy of the index maps
// and publishes it on commit. Readers never observe a half-applied transaction.
type FakeStore struct {
	lock   sync.RWMutex
	st     *state
	faults map[string]error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		st:     newState(),
		faults: make(map[string]error),
	}
}

// InjectError makes every later call of the named Queries method fail with err.
// Pass a nil err to clear it.
func (f *FakeStore) InjectError(method string, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err == nil {
		delete(f.faults, method)
		return
	}
	f.faults[method] = err
}

func (f *FakeStore) Ping(context.Context) error { return nil }

func (f *FakeStore) InTx(ctx context.Context, fn func(q credentials.Queries) error) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	working := f.st.clone()
	if err := fn(&txQueries{st: working, faults: f.faults}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return autherrors.Unavailable(err, "fake commit")
	}
	f.st = working
	return nil
}

func (f *FakeStore) read() *txQueries {
	return &txQueries{st: f.st, faults: f.faults}
}

func (f *FakeStore) write(fn func(q *txQueries) error) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	working := f.st.clone()
	if err := fn(&txQueries{st: working, faults: f.faults}); err != nil {
		return err
	}
	f.st = working
	return nil
}

func (f *FakeStore) CreateUser(ctx context.Context, user *users.User) error {
	return f.write(func(q *txQueries) error { return q.CreateUser(ctx, user) })
}

func (f *FakeStore) UpdateUser(ctx context.Context, user *users.User) error {
	return f.write(func(q *txQueries) error { return q.UpdateUser(ctx, user) })
}

func (f *FakeStore) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().GetUserByID(ctx, id)
}

func (f *FakeStore) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().GetUserByEmail(ctx, email)
}

func (f *FakeStore) CreateTenant(ctx context.Context, tenant *tenants.Tenant) error {
	return f.write(func(q *txQueries) error { return q.CreateTenant(ctx, tenant) })
}

func (f *FakeStore) GetTenant(ctx context.Context, id string) (*tenants.Tenant, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().GetTenant(ctx, id)
}

func (f *FakeStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().SlugExists(ctx, slug)
}

func (f *FakeStore) CreateMembership(ctx context.Context, m *tenants.Membership) error {
	return f.write(func(q *txQueries) error { return q.CreateMembership(ctx, m) })
}

func (f *FakeStore) UpdateMembership(ctx context.Context, m *tenants.Membership) error {
	return f.write(func(q *txQueries) error { return q.UpdateMembership(ctx, m) })
}

func (f *FakeStore) DeleteMembership(ctx context.Context, tenantID, userID string) error {
	return f.write(func(q *txQueries) error { return q.DeleteMembership(ctx, tenantID, userID) })
}

func (f *FakeStore) GetMembership(ctx context.Context, tenantID, userID string) (*tenants.Membership, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().GetMembership(ctx, tenantID, userID)
}

func (f *FakeStore) GetMembershipByInvitation(ctx context.Context, tokenHash string) (*tenants.Membership, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().GetMembershipByInvitation(ctx, tokenHash)
}

func (f *FakeStore) ListTenantMemberships(ctx context.Context, tenantID string) ([]*tenants.Membership, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().ListTenantMemberships(ctx, tenantID)
}

func (f *FakeStore) ListUserMemberships(ctx context.Context, userID string) ([]*tenants.Membership, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().ListUserMemberships(ctx, userID)
}

func (f *FakeStore) CreateOAuthLink(ctx context.Context, link *users.OAuthLink) error {
	return f.write(func(q *txQueries) error { return q.CreateOAuthLink(ctx, link) })
}

func (f *FakeStore) GetOAuthLink(ctx context.Context, provider, providerAccountID string) (*users.OAuthLink, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().GetOAuthLink(ctx, provider, providerAccountID)
}

func (f *FakeStore) GetUserOAuthLink(ctx context.Context, userID, provider string) (*users.OAuthLink, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().GetUserOAuthLink(ctx, userID, provider)
}

func (f *FakeStore) CreatePasswordReset(ctx context.Context, reset *users.PasswordReset) error {
	return f.write(func(q *txQueries) error { return q.CreatePasswordReset(ctx, reset) })
}

func (f *FakeStore) GetPasswordResetByHash(ctx context.Context, tokenHash string) (*users.PasswordReset, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.read().GetPasswordResetByHash(ctx, tokenHash)
}

func (f *FakeStore) MarkPasswordResetUsed(ctx context.Context, id string, usedAt time.Time) error {
	return f.write(func(q *txQueries) error { return q.MarkPasswordResetUsed(ctx, id, usedAt) })
}

// OwnerCount returns the number of OWNER memberships of a tenant in one consistent view.
func (f *FakeStore) OwnerCount(tenantID string) int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	n := 0
	for _, m := range f.st.memberships {
		if m.TenantID == tenantID && m.Role == tenants.RoleOwner {
			n++
		}
	}
	return n
}

// Counts reports the number of stored users, tenants and memberships.
func (f *FakeStore) Counts() (usersN, tenantsN, membershipsN int) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return len(f.st.users), len(f.st.tenants), len(f.st.memberships)
}

func copyUser(u *users.User) *users.User {
	c := *u
	return &c
}

func copyTenant(t *tenants.Tenant) *tenants.Tenant {
	c := *t
	return &c
}

func copyMembership(m *tenants.Membership) *tenants.Membership {
	c := *m
	c.Permissions = slices.Clone(m.Permissions)
	return &c
}

func copyLink(l *users.OAuthLink) *users.OAuthLink {
	c := *l
	return &c
}

func copyReset(r *users.PasswordReset) *users.PasswordReset {
	c := *r
	return &c
}
