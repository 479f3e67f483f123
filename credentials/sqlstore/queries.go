package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jrsteele09/go-tenant-auth/credentials"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/users"
)

var _ credentials.Queries = queries{}

// queries runs against either the pool or an open transaction.
type queries struct {
	ext sqlx.ExtContext
}

func (q queries) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q queries) namedExec(ctx context.Context, query string, arg any) (int64, error) {
	res, err := sqlx.NamedExecContext(ctx, q.ext, query, arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q queries) CreateUser(ctx context.Context, user *users.User) error {
	const query = `INSERT INTO users (` + userColumns + `)
VALUES (:id, :email, :password_hash, :first_name, :last_name, :avatar_url, :is_active,
  :is_verified, :default_tenant_id, :last_login_at, :created_at, :updated_at, :deleted_at)`
	if _, err := q.namedExec(ctx, query, newUserRow(user)); err != nil {
		return translate(err, "[Store CreateUser]")
	}
	return nil
}

func (q queries) UpdateUser(ctx context.Context, user *users.User) error {
	const query = `UPDATE users SET email = :email, password_hash = :password_hash,
  first_name = :first_name, last_name = :last_name, avatar_url = :avatar_url,
  is_active = :is_active, is_verified = :is_verified, default_tenant_id = :default_tenant_id,
  last_login_at = :last_login_at, updated_at = :updated_at, deleted_at = :deleted_at
WHERE id = :id`
	n, err := q.namedExec(ctx, query, newUserRow(user))
	if err != nil {
		return translate(err, "[Store UpdateUser]")
	}
	if n == 0 {
		return autherrors.Newf(autherrors.ErrNotFound, "[Store UpdateUser] user %s", user.ID)
	}
	return nil
}

func (q queries) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	var row userRow
	if err := q.get(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, translate(err, "[Store GetUserByID]")
	}
	return row.user(), nil
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	var row userRow
	if err := q.get(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return nil, translate(err, "[Store GetUserByEmail]")
	}
	return row.user(), nil
}

func (q queries) CreateTenant(ctx context.Context, tenant *tenants.Tenant) error {
	const query = `INSERT INTO tenants (` + tenantColumns + `)
VALUES (:id, :name, :slug, :plan, :is_active, :created_at, :updated_at)`
	row := tenantRow{
		ID:        tenant.ID,
		Name:      tenant.Name,
		Slug:      tenant.Slug,
		Plan:      string(tenant.Plan),
		IsActive:  tenant.IsActive,
		CreatedAt: toMillis(tenant.CreatedAt),
		UpdatedAt: toMillis(tenant.UpdatedAt),
	}
	if _, err := q.namedExec(ctx, query, row); err != nil {
		return translate(err, "[Store CreateTenant]")
	}
	return nil
}

func (q queries) GetTenant(ctx context.Context, id string) (*tenants.Tenant, error) {
	var row tenantRow
	if err := q.get(ctx, &row, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id); err != nil {
		return nil, translate(err, "[Store GetTenant]")
	}
	return row.tenant(), nil
}

func (q queries) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM tenants WHERE slug = ?`, slug); err != nil {
		return false, translate(err, "[Store SlugExists]")
	}
	return n > 0, nil
}

func (q queries) CreateMembership(ctx context.Context, m *tenants.Membership) error {
	const query = `INSERT INTO memberships (` + membershipColumns + `)
VALUES (:tenant_id, :user_id, :role, :permissions, :is_active, :invited_by, :invited_at,
  :joined_at, :created_at, :invitation_token_hash, :invitation_expires_at)`
	row, err := newMembershipRow(m)
	if err != nil {
		return autherrors.Wrapf(err, "[Store CreateMembership]")
	}
	if _, err := q.namedExec(ctx, query, row); err != nil {
		return translate(err, "[Store CreateMembership]")
	}
	return nil
}

func (q queries) UpdateMembership(ctx context.Context, m *tenants.Membership) error {
	const query = `UPDATE memberships SET role = :role, permissions = :permissions,
  is_active = :is_active, invited_by = :invited_by, invited_at = :invited_at,
  joined_at = :joined_at, invitation_token_hash = :invitation_token_hash,
  invitation_expires_at = :invitation_expires_at
WHERE tenant_id = :tenant_id AND user_id = :user_id`
	row, err := newMembershipRow(m)
	if err != nil {
		return autherrors.Wrapf(err, "[Store UpdateMembership]")
	}
	n, err := q.namedExec(ctx, query, row)
	if err != nil {
		return translate(err, "[Store UpdateMembership]")
	}
	if n == 0 {
		return autherrors.Newf(autherrors.ErrNotFound, "[Store UpdateMembership] membership")
	}
	return nil
}

func (q queries) DeleteMembership(ctx context.Context, tenantID, userID string) error {
	n, err := q.exec(ctx, `DELETE FROM memberships WHERE tenant_id = ? AND user_id = ?`, tenantID, userID)
	if err != nil {
		return translate(err, "[Store DeleteMembership]")
	}
	if n == 0 {
		return autherrors.Newf(autherrors.ErrNotFound, "[Store DeleteMembership] membership")
	}
	return nil
}

func (q queries) GetMembership(ctx context.Context, tenantID, userID string) (*tenants.Membership, error) {
	var row membershipRow
	err := q.get(ctx, &row, `SELECT `+membershipColumns+` FROM memberships WHERE tenant_id = ? AND user_id = ?`, tenantID, userID)
	if err != nil {
		return nil, translate(err, "[Store GetMembership]")
	}
	m, err := row.membership()
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Store GetMembership]")
	}
	return m, nil
}

func (q queries) GetMembershipByInvitation(ctx context.Context, tokenHash string) (*tenants.Membership, error) {
	var row membershipRow
	err := q.get(ctx, &row, `SELECT `+membershipColumns+` FROM memberships WHERE invitation_token_hash = ?`, tokenHash)
	if err != nil {
		return nil, translate(err, "[Store GetMembershipByInvitation]")
	}
	m, err := row.membership()
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Store GetMembershipByInvitation]")
	}
	return m, nil
}

const joinOrder = ` ORDER BY COALESCE(joined_at, invited_at, created_at), tenant_id, user_id`

func (q queries) ListTenantMemberships(ctx context.Context, tenantID string) ([]*tenants.Membership, error) {
	return q.listMemberships(ctx, "[Store ListTenantMemberships]",
		`SELECT `+membershipColumns+` FROM memberships WHERE tenant_id = ?`+joinOrder, tenantID)
}

func (q queries) ListUserMemberships(ctx context.Context, userID string) ([]*tenants.Membership, error) {
	return q.listMemberships(ctx, "[Store ListUserMemberships]",
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = ?`+joinOrder, userID)
}

func (q queries) listMemberships(ctx context.Context, op, query string, args ...any) ([]*tenants.Membership, error) {
	var rows []membershipRow
	if err := q.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, translate(err, op)
	}
	out := make([]*tenants.Membership, 0, len(rows))
	for _, row := range rows {
		m, err := row.membership()
		if err != nil {
			return nil, autherrors.Wrapf(err, "%s", op)
		}
		out = append(out, m)
	}
	return out, nil
}

func (q queries) CreateOAuthLink(ctx context.Context, link *users.OAuthLink) error {
	const query = `INSERT INTO oauth_links (provider, provider_account_id, user_id, created_at)
VALUES (:provider, :provider_account_id, :user_id, :created_at)`
	row := oauthLinkRow{
		Provider:          link.Provider,
		ProviderAccountID: link.ProviderAccountID,
		UserID:            link.UserID,
		CreatedAt:         toMillis(link.CreatedAt),
	}
	if _, err := q.namedExec(ctx, query, row); err != nil {
		return translate(err, "[Store CreateOAuthLink]")
	}
	return nil
}

func (q queries) GetOAuthLink(ctx context.Context, provider, providerAccountID string) (*users.OAuthLink, error) {
	var row oauthLinkRow
	err := q.get(ctx, &row, `SELECT provider, provider_account_id, user_id, created_at
FROM oauth_links WHERE provider = ? AND provider_account_id = ?`, provider, providerAccountID)
	if err != nil {
		return nil, translate(err, "[Store GetOAuthLink]")
	}
	return row.link(), nil
}

func (q queries) GetUserOAuthLink(ctx context.Context, userID, provider string) (*users.OAuthLink, error) {
	var row oauthLinkRow
	err := q.get(ctx, &row, `SELECT provider, provider_account_id, user_id, created_at
FROM oauth_links WHERE user_id = ? AND provider = ? ORDER BY created_at LIMIT 1`, userID, provider)
	if err != nil {
		return nil, translate(err, "[Store GetUserOAuthLink]")
	}
	return row.link(), nil
}

func (q queries) CreatePasswordReset(ctx context.Context, reset *users.PasswordReset) error {
	const query = `INSERT INTO password_resets (id, user_id, token_hash, expires_at, used, used_at, created_at)
VALUES (:id, :user_id, :token_hash, :expires_at, :used, :used_at, :created_at)`
	row := passwordResetRow{
		ID:        reset.ID,
		UserID:    reset.UserID,
		TokenHash: reset.TokenHash,
		ExpiresAt: toMillis(reset.ExpiresAt),
		Used:      reset.Used,
		UsedAt:    toNullMillis(reset.UsedAt),
		CreatedAt: toMillis(reset.CreatedAt),
	}
	if _, err := q.namedExec(ctx, query, row); err != nil {
		return translate(err, "[Store CreatePasswordReset]")
	}
	return nil
}

func (q queries) GetPasswordResetByHash(ctx context.Context, tokenHash string) (*users.PasswordReset, error) {
	var row passwordResetRow
	err := q.get(ctx, &row, `SELECT id, user_id, token_hash, expires_at, used, used_at, created_at
FROM password_resets WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return nil, translate(err, "[Store GetPasswordResetByHash]")
	}
	return row.reset(), nil
}

// MarkPasswordResetUsed flips the grant to used. It fails with ErrConflict
// when the grant was already redeemed so two concurrent resets cannot both win.
func (q queries) MarkPasswordResetUsed(ctx context.Context, id string, usedAt time.Time) error {
	n, err := q.exec(ctx, `UPDATE password_resets SET used = ?, used_at = ? WHERE id = ? AND used = ?`,
		true, toMillis(usedAt), id, false)
	if err != nil {
		return translate(err, "[Store MarkPasswordResetUsed]")
	}
	if n > 0 {
		return nil
	}

	var used bool
	if err := q.get(ctx, &used, `SELECT used FROM password_resets WHERE id = ?`, id); err != nil {
		return translate(err, "[Store MarkPasswordResetUsed]")
	}
	return autherrors.Newf(autherrors.ErrConflict, "[Store MarkPasswordResetUsed] password reset already used")
}
