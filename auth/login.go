package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-tenant-auth/credentials"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/token"
	"github.com/jrsteele09/go-tenant-auth/users"
)

// Login authenticates with email and password. Unknown, inactive and
// mismatched accounts all fail with the same ErrInvalidCredentials message.
func (s *Service) Login(ctx context.Context, email, password, tenantID string) (*Result, error) {
	user, err := s.store.GetUserByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrInvalidCredentials, invalidLoginText)
		}
		return nil, autherrors.Wrapf(err, "[Service Login]")
	}
	if !user.CanLogin() {
		return nil, autherrors.Newf(autherrors.ErrInvalidCredentials, invalidLoginText)
	}
	if !user.HasPassword() {
		return nil, autherrors.Newf(autherrors.ErrInvalidCredentials, "account uses social sign-in")
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service Login]")
	}
	if !ok {
		return nil, autherrors.Newf(autherrors.ErrInvalidCredentials, invalidLoginText)
	}

	return s.completeLogin(ctx, user, tenantID)
}

// GoogleAuth signs in with an identity already verified by the provider. A
// first sign-in provisions a workspace like Register does; an existing
// account with the same verified email is linked.
func (s *Service) GoogleAuth(ctx context.Context, profile users.OAuthProfile, tenantID string) (*Result, error) {
	if profile.Provider == "" {
		profile.Provider = users.ProviderGoogle
	}
	profile.Email = users.NormalizeEmail(profile.Email)
	if profile.Subject == "" || profile.Email == "" {
		return nil, autherrors.Newf(autherrors.ErrBadRequest, "provider profile is missing subject or email")
	}

	user, err := s.oauthUser(ctx, profile)
	if err != nil {
		return nil, err
	}
	if !user.CanLogin() {
		return nil, autherrors.Newf(autherrors.ErrInvalidCredentials, "account is disabled")
	}
	return s.completeLogin(ctx, user, tenantID)
}

func (s *Service) oauthUser(ctx context.Context, profile users.OAuthProfile) (*users.User, error) {
	link, err := s.store.GetOAuthLink(ctx, profile.Provider, profile.Subject)
	switch {
	case err == nil:
		user, err := s.store.GetUserByID(ctx, link.UserID)
		if err != nil {
			return nil, autherrors.Wrapf(err, "[Service GoogleAuth] load linked user")
		}
		return user, nil
	case !autherrors.Is(err, autherrors.ErrNotFound):
		return nil, autherrors.Wrapf(err, "[Service GoogleAuth] lookup link")
	}

	existing, err := s.store.GetUserByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		return s.linkAccount(ctx, existing, profile)
	case !autherrors.Is(err, autherrors.ErrNotFound):
		return nil, autherrors.Wrapf(err, "[Service GoogleAuth] lookup email")
	}

	now := s.now()
	user := &users.User{
		ID:         s.newID(),
		Email:      profile.Email,
		FirstName:  strings.TrimSpace(profile.FirstName),
		LastName:   strings.TrimSpace(profile.LastName),
		AvatarURL:  profile.AvatarURL,
		IsActive:   true,
		IsVerified: profile.EmailVerified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.store.InTx(ctx, func(q credentials.Queries) error {
		if _, _, err := s.createWorkspace(ctx, q, user, ""); err != nil {
			return err
		}
		return q.CreateOAuthLink(ctx, &users.OAuthLink{
			Provider:          profile.Provider,
			ProviderAccountID: profile.Subject,
			UserID:            user.ID,
			CreatedAt:         now,
		})
	})
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service GoogleAuth] provision account")
	}
	return user, nil
}

// linkAccount attaches a provider identity to an existing account. Only an
// address the provider has verified may claim an account.
func (s *Service) linkAccount(ctx context.Context, user *users.User, profile users.OAuthProfile) (*users.User, error) {
	if !profile.EmailVerified {
		return nil, autherrors.Newf(autherrors.ErrInvalidCredentials, "provider has not verified %s", profile.Email)
	}
	if !user.CanLogin() {
		return nil, autherrors.Newf(autherrors.ErrInvalidCredentials, "account is disabled")
	}

	now := s.now()
	var linked *users.User
	err := s.store.InTx(ctx, func(q credentials.Queries) error {
		_, err := q.GetUserOAuthLink(ctx, user.ID, profile.Provider)
		switch {
		case err == nil:
			return autherrors.Newf(autherrors.ErrConflict, "account is linked to another %s identity", profile.Provider)
		case !autherrors.Is(err, autherrors.ErrNotFound):
			return err
		}
		if err := q.CreateOAuthLink(ctx, &users.OAuthLink{
			Provider:          profile.Provider,
			ProviderAccountID: profile.Subject,
			UserID:            user.ID,
			CreatedAt:         now,
		}); err != nil {
			return err
		}
		u, err := q.GetUserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		u.IsVerified = true
		if u.AvatarURL == "" {
			u.AvatarURL = profile.AvatarURL
		}
		u.UpdatedAt = now
		linked = u
		return q.UpdateUser(ctx, u)
	})
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service GoogleAuth] link account")
	}
	return linked, nil
}

// RefreshToken rotates a token pair. The presented refresh token is consumed
// and its session revoked whatever happens next. The new pair keeps the old
// tenant with the membership's current role, or moves to tenantID when given.
func (s *Service) RefreshToken(ctx context.Context, refreshToken, tenantID string) (*Result, error) {
	prev, err := s.tokens.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeSession(ctx, prev.SessionID); err != nil {
		return nil, autherrors.Wrapf(err, "[Service RefreshToken]")
	}

	user, err := s.store.GetUserByID(ctx, prev.UserID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrInvalidToken, "token subject no longer exists")
		}
		return nil, autherrors.Wrapf(err, "[Service RefreshToken]")
	}
	if !user.CanLogin() {
		return nil, autherrors.Newf(autherrors.ErrInvalidToken, "account is disabled")
	}
	stamp := user.CredentialStamp()
	if prev.CredentialStamp != stamp {
		return nil, autherrors.Newf(autherrors.ErrInvalidToken, "credentials changed since the token was issued")
	}

	var m *tenants.Membership
	switch {
	case tenantID != "":
		if m, err = s.activeMembership(ctx, tenantID, user.ID); err != nil {
			return nil, err
		}
	case prev.TenantID() != "":
		m, err = s.activeMembership(ctx, prev.TenantID(), user.ID)
		if err != nil && !autherrors.Is(err, autherrors.ErrUnauthorized) {
			return nil, err
		}
	}

	res, err := s.issue(ctx, user, m)
	if err != nil {
		return nil, err
	}
	// A password change may commit while the pair is minted and sweep the
	// sessions before the new one is saved. Recheck and drop the pair if so.
	current, err := s.store.GetUserByID(ctx, user.ID)
	if err == nil && current.CredentialStamp() == stamp {
		return res, nil
	}
	if rerr := s.revokePair(ctx, res.Tokens); rerr != nil {
		return nil, autherrors.Wrapf(rerr, "[Service RefreshToken] revoke new session")
	}
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrInvalidToken, "token subject no longer exists")
		}
		return nil, autherrors.Wrapf(err, "[Service RefreshToken]")
	}
	return nil, autherrors.Newf(autherrors.ErrInvalidToken, "credentials changed since the token was issued")
}

func (s *Service) revokePair(ctx context.Context, pair *token.Pair) error {
	if err := s.tokens.RevokeRefreshToken(ctx, pair.RefreshToken); err != nil {
		return err
	}
	return s.tokens.RevokeSession(ctx, pair.SessionID)
}

// Logout revokes one session.
func (s *Service) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.tokens.RevokeSession(ctx, sessionID); err != nil {
		return autherrors.Wrapf(err, "[Service Logout] user %s", userID)
	}
	return nil
}

// LogoutAll revokes every session of the user.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllSessions(ctx, userID)
}

// SwitchTenant mints a new pair scoped to tenantID. The caller's current
// session stays valid.
func (s *Service) SwitchTenant(ctx context.Context, userID, email, tenantID string) (*Result, error) {
	if tenantID == "" {
		return nil, autherrors.Newf(autherrors.ErrBadRequest, "tenantId is required")
	}
	m, err := s.activeMembership(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service SwitchTenant]")
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrInvalidToken, "token subject no longer exists")
		}
		return nil, autherrors.Wrapf(err, "[Service SwitchTenant]")
	}
	sub := subjectOf(user)
	sub.Email = email
	pair, err := s.tokens.Generate(ctx, sub, m.Scope())
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service SwitchTenant]")
	}
	return &Result{Tenant: tenant, Tokens: pair}, nil
}

// Identity describes the caller of an authenticated request.
type Identity struct {
	UserID      string       `json:"userId"`
	Email       string       `json:"email"`
	TenantID    string       `json:"tenantId,omitempty"`
	Role        tenants.Role `json:"role,omitempty"`
	Permissions []string     `json:"permissions,omitempty"`
	SessionID   string       `json:"sessionId"`
	User        *users.User  `json:"user"`
}

// Me echoes the verified token together with the caller's profile.
func (s *Service) Me(ctx context.Context, p *token.Payload) (*Identity, error) {
	if p == nil {
		return nil, autherrors.Newf(autherrors.ErrInvalidToken, "authentication required")
	}
	user, err := s.store.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service Me]")
	}
	id := &Identity{
		UserID:    p.UserID,
		Email:     p.Email,
		SessionID: p.SessionID,
		User:      user,
	}
	if scope, ok := p.Scope(); ok {
		id.TenantID = scope.TenantID
		id.Role = scope.Role
		id.Permissions = scope.Permissions
	}
	return id, nil
}
