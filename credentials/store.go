// Package credentials defines the durable, transactional store for users,
// tenants, memberships, OAuth links and password reset grants.
package credentials

import (
	"context"
	"time"

	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/users"
)

// Queries is the set of reads and writes available both outside and inside a
// transaction.
//
// Getters return autherrors.ErrNotFound for missing rows. Creates return
// autherrors.ErrConflict on a uniqueness violation. Transport failures are
// reported as autherrors.ErrStoreUnavailable. Returned entities are copies;
// mutate them and call the matching Update to persist.
type Queries interface {
	// Users
	CreateUser(ctx context.Context, user *users.User) error
	UpdateUser(ctx context.Context, user *users.User) error
	GetUserByID(ctx context.Context, id string) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)

	// Tenants
	CreateTenant(ctx context.Context, tenant *tenants.Tenant) error
	GetTenant(ctx context.Context, id string) (*tenants.Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)

	// Memberships
	CreateMembership(ctx context.Context, m *tenants.Membership) error
	UpdateMembership(ctx context.Context, m *tenants.Membership) error
	DeleteMembership(ctx context.Context, tenantID, userID string) error
	GetMembership(ctx context.Context, tenantID, userID string) (*tenants.Membership, error)
	GetMembershipByInvitation(ctx context.Context, tokenHash string) (*tenants.Membership, error)
	// ListTenantMemberships and ListUserMemberships return rows in join order
	// (see tenants.SortByJoinOrder).
	ListTenantMemberships(ctx context.Context, tenantID string) ([]*tenants.Membership, error)
	ListUserMemberships(ctx context.Context, userID string) ([]*tenants.Membership, error)

	// OAuth links
	CreateOAuthLink(ctx context.Context, link *users.OAuthLink) error
	GetOAuthLink(ctx context.Context, provider, providerAccountID string) (*users.OAuthLink, error)
	GetUserOAuthLink(ctx context.Context, userID, provider string) (*users.OAuthLink, error)

	// Password resets
	CreatePasswordReset(ctx context.Context, reset *users.PasswordReset) error
	GetPasswordResetByHash(ctx context.Context, tokenHash string) (*users.PasswordReset, error)
	MarkPasswordResetUsed(ctx context.Context, id string, usedAt time.Time) error
}

// Store is the Credential Store. InTx runs fn in a single transaction: every
// write fn makes is committed together when it returns nil and none are
// visible when it returns an error.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}
