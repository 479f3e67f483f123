package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/users"
)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type userRow struct {
	ID              string        `db:"id"`
	Email           string        `db:"email"`
	PasswordHash    string        `db:"password_hash"`
	FirstName       string        `db:"first_name"`
	LastName        string        `db:"last_name"`
	AvatarURL       string        `db:"avatar_url"`
	IsActive        bool          `db:"is_active"`
	IsVerified      bool          `db:"is_verified"`
	DefaultTenantID string        `db:"default_tenant_id"`
	LastLoginAt     sql.NullInt64 `db:"last_login_at"`
	CreatedAt       int64         `db:"created_at"`
	UpdatedAt       int64         `db:"updated_at"`
	DeletedAt       sql.NullInt64 `db:"deleted_at"`
}

const userColumns = `id, email, password_hash, first_name, last_name, avatar_url, is_active,
  is_verified, default_tenant_id, last_login_at, created_at, updated_at, deleted_at`

func newUserRow(u *users.User) userRow {
	return userRow{
		ID:              u.ID,
		Email:           u.Email,
		PasswordHash:    u.PasswordHash,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		AvatarURL:       u.AvatarURL,
		IsActive:        u.IsActive,
		IsVerified:      u.IsVerified,
		DefaultTenantID: u.DefaultTenantID,
		LastLoginAt:     toNullMillis(u.LastLoginAt),
		CreatedAt:       toMillis(u.CreatedAt),
		UpdatedAt:       toMillis(u.UpdatedAt),
		DeletedAt:       toNullMillis(u.DeletedAt),
	}
}

func (r userRow) user() *users.User {
	return &users.User{
		ID:              r.ID,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		AvatarURL:       r.AvatarURL,
		IsActive:        r.IsActive,
		IsVerified:      r.IsVerified,
		DefaultTenantID: r.DefaultTenantID,
		LastLoginAt:     fromNullMillis(r.LastLoginAt),
		CreatedAt:       fromMillis(r.CreatedAt),
		UpdatedAt:       fromMillis(r.UpdatedAt),
		DeletedAt:       fromNullMillis(r.DeletedAt),
	}
}

type tenantRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Slug      string `db:"slug"`
	Plan      string `db:"plan"`
	IsActive  bool   `db:"is_active"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

const tenantColumns = `id, name, slug, plan, is_active, created_at, updated_at`

func (r tenantRow) tenant() *tenants.Tenant {
	return &tenants.Tenant{
		ID:        r.ID,
		Name:      r.Name,
		Slug:      r.Slug,
		Plan:      tenants.Plan(r.Plan),
		IsActive:  r.IsActive,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

type membershipRow struct {
	TenantID            string         `db:"tenant_id"`
	UserID              string         `db:"user_id"`
	Role                string         `db:"role"`
	Permissions         string         `db:"permissions"`
	IsActive            bool           `db:"is_active"`
	InvitedBy           string         `db:"invited_by"`
	InvitedAt           sql.NullInt64  `db:"invited_at"`
	JoinedAt            sql.NullInt64  `db:"joined_at"`
	CreatedAt           int64          `db:"created_at"`
	InvitationTokenHash sql.NullString `db:"invitation_token_hash"`
	InvitationExpiresAt sql.NullInt64  `db:"invitation_expires_at"`
}

const membershipColumns = `tenant_id, user_id, role, permissions, is_active, invited_by, invited_at,
  joined_at, created_at, invitation_token_hash, invitation_expires_at`

func newMembershipRow(m *tenants.Membership) (membershipRow, error) {
	perms := m.Permissions
	if perms == nil {
		perms = []string{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return membershipRow{}, fmt.Errorf("encode permissions: %w", err)
	}
	return membershipRow{
		TenantID:            m.TenantID,
		UserID:              m.UserID,
		Role:                string(m.Role),
		Permissions:         string(raw),
		IsActive:            m.IsActive,
		InvitedBy:           m.InvitedBy,
		InvitedAt:           toNullMillis(m.InvitedAt),
		JoinedAt:            toNullMillis(m.JoinedAt),
		CreatedAt:           toMillis(m.CreatedAt),
		InvitationTokenHash: toNullString(m.InvitationTokenHash),
		InvitationExpiresAt: toNullMillis(m.InvitationExpiresAt),
	}, nil
}

func (r membershipRow) membership() (*tenants.Membership, error) {
	var perms []string
	if r.Permissions != "" {
		if err := json.Unmarshal([]byte(r.Permissions), &perms); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	return &tenants.Membership{
		TenantID:            r.TenantID,
		UserID:              r.UserID,
		Role:                tenants.Role(r.Role),
		Permissions:         perms,
		IsActive:            r.IsActive,
		InvitedBy:           r.InvitedBy,
		InvitedAt:           fromNullMillis(r.InvitedAt),
		JoinedAt:            fromNullMillis(r.JoinedAt),
		CreatedAt:           fromMillis(r.CreatedAt),
		InvitationTokenHash: r.InvitationTokenHash.String,
		InvitationExpiresAt: fromNullMillis(r.InvitationExpiresAt),
	}, nil
}

type oauthLinkRow struct {
	Provider          string `db:"provider"`
	ProviderAccountID string `db:"provider_account_id"`
	UserID            string `db:"user_id"`
	CreatedAt         int64  `db:"created_at"`
}

func (r oauthLinkRow) link() *users.OAuthLink {
	return &users.OAuthLink{
		Provider:          r.Provider,
		ProviderAccountID: r.ProviderAccountID,
		UserID:            r.UserID,
		CreatedAt:         fromMillis(r.CreatedAt),
	}
}

type passwordResetRow struct {
	ID        string        `db:"id"`
	UserID    string        `db:"user_id"`
	TokenHash string        `db:"token_hash"`
	ExpiresAt int64         `db:"expires_at"`
	Used      bool          `db:"used"`
	UsedAt    sql.NullInt64 `db:"used_at"`
	CreatedAt int64         `db:"created_at"`
}

func (r passwordResetRow) reset() *users.PasswordReset {
	return &users.PasswordReset{
		ID:        r.ID,
		UserID:    r.UserID,
		TokenHash: r.TokenHash,
		ExpiresAt: fromMillis(r.ExpiresAt),
		Used:      r.Used,
		UsedAt:    fromNullMillis(r.UsedAt),
		CreatedAt: fromMillis(r.CreatedAt),
	}
}
