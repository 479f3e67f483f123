package credentialrepofakes

import (
	"context"
	"maps"
	"time"

	"github.com/jrsteele09/go-tenant-auth/credentials"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/users"
)

type state struct {
	users       map[string]*users.User
	emails      map[string]string // email -> user id
	tenants     map[string]*tenants.Tenant
	slugs       map[string]string               // slug -> tenant id
	memberships map[string]*tenants.Membership  // tenantID/userID
	invitations map[string]string               // invitation hash -> membership key
	links       map[string]*users.OAuthLink     // provider/accountID
	resets      map[string]*users.PasswordReset // id
	resetHashes map[string]string               // hash -> id
}

func newState() *state {
	return &state{
		users:       make(map[string]*users.User),
		emails:      make(map[string]string),
		tenants:     make(map[string]*tenants.Tenant),
		slugs:       make(map[string]string),
		memberships: make(map[string]*tenants.Membership),
		invitations: make(map[string]string),
		links:       make(map[string]*users.OAuthLink),
		resets:      make(map[string]*users.PasswordReset),
		resetHashes: make(map[string]string),
	}
}

func (s *state) clone() *state {
	return &state{
		users:       maps.Clone(s.users),
		emails:      maps.Clone(s.emails),
		tenants:     maps.Clone(s.tenants),
		slugs:       maps.Clone(s.slugs),
		memberships: maps.Clone(s.memberships),
		invitations: maps.Clone(s.invitations),
		links:       maps.Clone(s.links),
		resets:      maps.Clone(s.resets),
		resetHashes: maps.Clone(s.resetHashes),
	}
}

func membershipKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

func linkKey(provider, accountID string) string {
	return provider + "/" + accountID
}

var _ credentials.Queries = (*txQueries)(nil)

// txQueries operates on a state without locking; the owner holds the lock.
type txQueries struct {
	st     *state
	faults map[string]error
}

func (q *txQueries) fault(method string) error {
	return q.faults[method]
}

func (q *txQueries) CreateUser(_ context.Context, user *users.User) error {
	if err := q.fault("CreateUser"); err != nil {
		return err
	}
	if _, ok := q.st.users[user.ID]; ok {
		return autherrors.Newf(autherrors.ErrConflict, "user %s exists", user.ID)
	}
	if _, ok := q.st.emails[user.Email]; ok {
		return autherrors.Newf(autherrors.ErrConflict, "email already registered")
	}
	q.st.users[user.ID] = copyUser(user)
	q.st.emails[user.Email] = user.ID
	return nil
}

func (q *txQueries) UpdateUser(_ context.Context, user *users.User) error {
	if err := q.fault("UpdateUser"); err != nil {
		return err
	}
	existing, ok := q.st.users[user.ID]
	if !ok {
		return autherrors.Newf(autherrors.ErrNotFound, "user %s", user.ID)
	}
	if existing.Email != user.Email {
		if _, taken := q.st.emails[user.Email]; taken {
			return autherrors.Newf(autherrors.ErrConflict, "email already registered")
		}
		delete(q.st.emails, existing.Email)
		q.st.emails[user.Email] = user.ID
	}
	q.st.users[user.ID] = copyUser(user)
	return nil
}

func (q *txQueries) GetUserByID(_ context.Context, id string) (*users.User, error) {
	if err := q.fault("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := q.st.users[id]
	if !ok {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "user %s", id)
	}
	return copyUser(u), nil
}

func (q *txQueries) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	if err := q.fault("GetUserByEmail"); err != nil {
		return nil, err
	}
	id, ok := q.st.emails[email]
	if !ok {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "user")
	}
	return copyUser(q.st.users[id]), nil
}

func (q *txQueries) CreateTenant(_ context.Context, tenant *tenants.Tenant) error {
	if err := q.fault("CreateTenant"); err != nil {
		return err
	}
	if _, ok := q.st.tenants[tenant.ID]; ok {
		return autherrors.Newf(autherrors.ErrConflict, "tenant %s exists", tenant.ID)
	}
	if _, ok := q.st.slugs[tenant.Slug]; ok {
		return autherrors.Newf(autherrors.ErrConflict, "slug %s taken", tenant.Slug)
	}
	q.st.tenants[tenant.ID] = copyTenant(tenant)
	q.st.slugs[tenant.Slug] = tenant.ID
	return nil
}

func (q *txQueries) GetTenant(_ context.Context, id string) (*tenants.Tenant, error) {
	if err := q.fault("GetTenant"); err != nil {
		return nil, err
	}
	t, ok := q.st.tenants[id]
	if !ok {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "tenant %s", id)
	}
	return copyTenant(t), nil
}

func (q *txQueries) SlugExists(_ context.Context, slug string) (bool, error) {
	if err := q.fault("SlugExists"); err != nil {
		return false, err
	}
	_, ok := q.st.slugs[slug]
	return ok, nil
}

func (q *txQueries) CreateMembership(_ context.Context, m *tenants.Membership) error {
	if err := q.fault("CreateMembership"); err != nil {
		return err
	}
	key := membershipKey(m.TenantID, m.UserID)
	if _, ok := q.st.memberships[key]; ok {
		return autherrors.Newf(autherrors.ErrConflict, "membership exists")
	}
	if _, ok := q.st.tenants[m.TenantID]; !ok {
		return autherrors.Newf(autherrors.ErrNotFound, "tenant %s", m.TenantID)
	}
	if _, ok := q.st.users[m.UserID]; !ok {
		return autherrors.Newf(autherrors.ErrNotFound, "user %s", m.UserID)
	}
	q.st.memberships[key] = copyMembership(m)
	if m.InvitationTokenHash != "" {
		q.st.invitations[m.InvitationTokenHash] = key
	}
	return nil
}

func (q *txQueries) UpdateMembership(_ context.Context, m *tenants.Membership) error {
	if err := q.fault("UpdateMembership"); err != nil {
		return err
	}
	key := membershipKey(m.TenantID, m.UserID)
	existing, ok := q.st.memberships[key]
	if !ok {
		return autherrors.Newf(autherrors.ErrNotFound, "membership")
	}
	if existing.InvitationTokenHash != "" {
		delete(q.st.invitations, existing.InvitationTokenHash)
	}
	q.st.memberships[key] = copyMembership(m)
	if m.InvitationTokenHash != "" {
		q.st.invitations[m.InvitationTokenHash] = key
	}
	return nil
}

func (q *txQueries) DeleteMembership(_ context.Context, tenantID, userID string) error {
	if err := q.fault("DeleteMembership"); err != nil {
		return err
	}
	key := membershipKey(tenantID, userID)
	existing, ok := q.st.memberships[key]
	if !ok {
		return autherrors.Newf(autherrors.ErrNotFound, "membership")
	}
	if existing.InvitationTokenHash != "" {
		delete(q.st.invitations, existing.InvitationTokenHash)
	}
	delete(q.st.memberships, key)
	return nil
}

func (q *txQueries) GetMembership(_ context.Context, tenantID, userID string) (*tenants.Membership, error) {
	if err := q.fault("GetMembership"); err != nil {
		return nil, err
	}
	m, ok := q.st.memberships[membershipKey(tenantID, userID)]
	if !ok {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "membership")
	}
	return copyMembership(m), nil
}

func (q *txQueries) GetMembershipByInvitation(_ context.Context, tokenHash string) (*tenants.Membership, error) {
	if err := q.fault("GetMembershipByInvitation"); err != nil {
		return nil, err
	}
	key, ok := q.st.invitations[tokenHash]
	if !ok {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "invitation")
	}
	return copyMembership(q.st.memberships[key]), nil
}

func (q *txQueries) ListTenantMemberships(_ context.Context, tenantID string) ([]*tenants.Membership, error) {
	if err := q.fault("ListTenantMemberships"); err != nil {
		return nil, err
	}
	out := make([]*tenants.Membership, 0)
	for _, m := range q.st.memberships {
		if m.TenantID == tenantID {
			out = append(out, copyMembership(m))
		}
	}
	tenants.SortByJoinOrder(out)
	return out, nil
}

func (q *txQueries) ListUserMemberships(_ context.Context, userID string) ([]*tenants.Membership, error) {
	if err := q.fault("ListUserMemberships"); err != nil {
		return nil, err
	}
	out := make([]*tenants.Membership, 0)
	for _, m := range q.st.memberships {
		if m.UserID == userID {
			out = append(out, copyMembership(m))
		}
	}
	tenants.SortByJoinOrder(out)
	return out, nil
}

func (q *txQueries) CreateOAuthLink(_ context.Context, link *users.OAuthLink) error {
	if err := q.fault("CreateOAuthLink"); err != nil {
		return err
	}
	key := linkKey(link.Provider, link.ProviderAccountID)
	if _, ok := q.st.links[key]; ok {
		return autherrors.Newf(autherrors.ErrConflict, "oauth link exists")
	}
	q.st.links[key] = copyLink(link)
	return nil
}

func (q *txQueries) GetOAuthLink(_ context.Context, provider, providerAccountID string) (*users.OAuthLink, error) {
	if err := q.fault("GetOAuthLink"); err != nil {
		return nil, err
	}
	l, ok := q.st.links[linkKey(provider, providerAccountID)]
	if !ok {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "oauth link")
	}
	return copyLink(l), nil
}

func (q *txQueries) GetUserOAuthLink(_ context.Context, userID, provider string) (*users.OAuthLink, error) {
	if err := q.fault("GetUserOAuthLink"); err != nil {
		return nil, err
	}
	for _, l := range q.st.links {
		if l.UserID == userID && l.Provider == provider {
			return copyLink(l), nil
		}
	}
	return nil, autherrors.Newf(autherrors.ErrNotFound, "oauth link")
}

func (q *txQueries) CreatePasswordReset(_ context.Context, reset *users.PasswordReset) error {
	if err := q.fault("CreatePasswordReset"); err != nil {
		return err
	}
	if _, ok := q.st.resetHashes[reset.TokenHash]; ok {
		return autherrors.Newf(autherrors.ErrConflict, "reset token exists")
	}
	q.st.resets[reset.ID] = copyReset(reset)
	q.st.resetHashes[reset.TokenHash] = reset.ID
	return nil
}

func (q *txQueries) GetPasswordResetByHash(_ context.Context, tokenHash string) (*users.PasswordReset, error) {
	if err := q.fault("GetPasswordResetByHash"); err != nil {
		return nil, err
	}
	id, ok := q.st.resetHashes[tokenHash]
	if !ok {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "password reset")
	}
	return copyReset(q.st.resets[id]), nil
}

func (q *txQueries) MarkPasswordResetUsed(_ context.Context, id string, usedAt time.Time) error {
	if err := q.fault("MarkPasswordResetUsed"); err != nil {
		return err
	}
	r, ok := q.st.resets[id]
	if !ok {
		return autherrors.Newf(autherrors.ErrNotFound, "password reset")
	}
	if r.Used {
		return autherrors.Newf(autherrors.ErrConflict, "password reset already used")
	}
	c := copyReset(r)
	c.Used = true
	c.UsedAt = &usedAt
	q.st.resets[id] = c
	return nil
}
