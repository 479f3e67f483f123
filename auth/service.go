// Package auth orchestrates registration, login, token rotation, tenant
// switching and password management on top of the credential store and the
// token manager.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-tenant-auth/credentials"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/internal/utils"
	"github.com/jrsteele09/go-tenant-auth/notify"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/token"
	"github.com/jrsteele09/go-tenant-auth/users"
)

const (
	DefaultPasswordResetExpiry = time.Hour

	resetTokenBytes  = 32
	maxSlugAttempts  = 10
	workspaceSuffix  = "'s Workspace"
	defaultSlugStem  = "workspace"
	invalidLoginText = "invalid email or password"
)

// Result is returned by every operation that mints tokens. Tenant is nil when
// the tokens carry no tenant context.
type Result struct {
	User   *users.User     `json:"user,omitempty"`
	Tenant *tenants.Tenant `json:"tenant,omitempty"`
	Tokens *token.Pair     `json:"tokens"`
}

// Service is stateless; every call may run concurrently.
type Service struct {
	store     credentials.Store
	tokens    *token.Manager
	hasher    *users.Hasher
	notifier  notify.Notifier
	resetTTL  time.Duration
	nowTime   func() time.Time
	newID     func() string
	newSuffix func() string
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithResetTTL sets how long a password reset token stays redeemable.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.resetTTL = ttl
	}
}

// WithIDFunc replaces the generator for user, tenant and reset ids.
func WithIDFunc(f func() string) ServiceOption {
	return func(s *Service) {
		s.newID = f
	}
}

// NewService creates the Service. notifier may be nil, in which case
// messages are dropped.
func NewService(
	store credentials.Store,
	tokens *token.Manager,
	hasher *users.Hasher,
	notifier notify.Notifier,
	options ...ServiceOption,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("[NewService] credential store is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewService] hasher is required")
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	s := &Service{
		store:     store,
		tokens:    tokens,
		hasher:    hasher,
		notifier:  notifier,
		resetTTL:  DefaultPasswordResetExpiry,
		nowTime:   time.Now,
		newID:     uuid.NewString,
		newSuffix: func() string { return uuid.NewString()[:6] },
	}

	for _, opt := range options {
		opt(s)
	}

	if s.resetTTL <= 0 {
		s.resetTTL = DefaultPasswordResetExpiry
	}
	return s, nil
}

// Ping checks both stores.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	return s.tokens.Ping(ctx)
}

func (s *Service) now() time.Time {
	return s.nowTime().UTC()
}

// resolveTenant picks the tenant context for a fresh login: the requested
// tenant, then the default tenant, then the earliest joined membership. Only
// active memberships count; with none the context is NoTenant.
func (s *Service) resolveTenant(ctx context.Context, user *users.User, requestedTenantID string) (*tenants.Membership, error) {
	ms, err := s.store.ListUserMemberships(ctx, user.ID)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service resolveTenant] list memberships")
	}

	var first, byDefault, requested *tenants.Membership
	for _, m := range ms {
		if !m.IsActive {
			continue
		}
		if first == nil {
			first = m
		}
		if requestedTenantID != "" && m.TenantID == requestedTenantID {
			requested = m
		}
		if user.DefaultTenantID != "" && m.TenantID == user.DefaultTenantID {
			byDefault = m
		}
	}

	switch {
	case requested != nil:
		return requested, nil
	case byDefault != nil:
		return byDefault, nil
	}
	return first, nil
}

// activeMembership returns the caller's membership of tenantID or
// ErrUnauthorized when there is no active one.
func (s *Service) activeMembership(ctx context.Context, tenantID, userID string) (*tenants.Membership, error) {
	m, err := s.store.GetMembership(ctx, tenantID, userID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrUnauthorized, "not a member of tenant %s", tenantID)
		}
		return nil, autherrors.Wrapf(err, "[Service activeMembership]")
	}
	if !m.IsActive {
		return nil, autherrors.Newf(autherrors.ErrUnauthorized, "membership of tenant %s is not active", tenantID)
	}
	return m, nil
}

// issue mints a token pair for user scoped to m (nil for NoTenant).
func (s *Service) issue(ctx context.Context, user *users.User, m *tenants.Membership) (*Result, error) {
	res := &Result{User: user}
	var tc tenants.Context = tenants.NoTenant{}
	if m != nil {
		tenant, err := s.store.GetTenant(ctx, m.TenantID)
		if err != nil {
			return nil, autherrors.Wrapf(err, "[Service issue] load tenant")
		}
		res.Tenant = tenant
		tc = m.Scope()
	}

	pair, err := s.tokens.Generate(ctx, subjectOf(user), tc)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service issue]")
	}
	res.Tokens = pair
	return res, nil
}

func subjectOf(u *users.User) token.Subject {
	return token.Subject{UserID: u.ID, Email: u.Email, CredentialStamp: u.CredentialStamp()}
}

// completeLogin resolves the tenant, stamps the login time and mints tokens.
func (s *Service) completeLogin(ctx context.Context, user *users.User, requestedTenantID string) (*Result, error) {
	m, err := s.resolveTenant(ctx, user, requestedTenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.store.InTx(ctx, func(q credentials.Queries) error {
		u, err := q.GetUserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		u.LastLoginAt = utils.Ptr(now)
		if err := q.UpdateUser(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service completeLogin] stamp last login")
	}

	return s.issue(ctx, user, m)
}

// updateUser applies fn to a fresh copy of the user inside a transaction so
// concurrent updates of other fields are not overwritten.
func (s *Service) updateUser(ctx context.Context, userID string, fn func(u *users.User) error) (*users.User, error) {
	var updated *users.User
	err := s.store.InTx(ctx, func(q credentials.Queries) error {
		u, err := q.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		u.UpdatedAt = s.now()
		if err := q.UpdateUser(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
