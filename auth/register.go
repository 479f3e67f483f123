package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-tenant-auth/credentials"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/internal/utils"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/users"
)

type RegisterInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	TenantName string `json:"tenantName,omitempty"`
}

// Register creates a user together with a workspace they own and returns
// tokens scoped to it. The tenant, user and OWNER membership are written in
// one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	email := users.NormalizeEmail(in.Email)
	if err := users.ValidateEmail(email); err != nil {
		return nil, autherrors.Newf(autherrors.ErrBadRequest, "%v", err)
	}
	if err := users.ValidatePasswordStrength(in.Password); err != nil {
		return nil, autherrors.Newf(autherrors.ErrBadRequest, "%v", err)
	}

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service Register]")
	}

	now := s.now()
	user := &users.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var owner *tenants.Membership
	err = s.store.InTx(ctx, func(q credentials.Queries) error {
		var err error
		_, owner, err = s.createWorkspace(ctx, q, user, in.TenantName)
		return err
	})
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service Register] create workspace")
	}

	return s.issue(ctx, user, owner)
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return autherrors.Newf(autherrors.ErrConflict, "email %s is already registered", email)
	case autherrors.Is(err, autherrors.ErrNotFound):
		return nil
	}
	return autherrors.Wrapf(err, "[Service ensureEmailFree]")
}

// createWorkspace writes a new tenant, the user (defaulted to that tenant)
// and the user's OWNER membership using q.
func (s *Service) createWorkspace(ctx context.Context, q credentials.Queries, user *users.User, tenantName string) (*tenants.Tenant, *tenants.Membership, error) {
	name := workspaceName(tenantName, user)
	slug, err := s.uniqueSlug(ctx, q, name)
	if err != nil {
		return nil, nil, err
	}

	now := user.CreatedAt
	tenant := &tenants.Tenant{
		ID:        s.newID(),
		Name:      name,
		Slug:      slug,
		Plan:      tenants.PlanFree,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.CreateTenant(ctx, tenant); err != nil {
		return nil, nil, err
	}

	user.DefaultTenantID = tenant.ID
	if err := q.CreateUser(ctx, user); err != nil {
		return nil, nil, err
	}

	owner := &tenants.Membership{
		TenantID:    tenant.ID,
		UserID:      user.ID,
		Role:        tenants.RoleOwner,
		Permissions: []string{},
		IsActive:    true,
		JoinedAt:    utils.Ptr(now),
		CreatedAt:   now,
	}
	if err := q.CreateMembership(ctx, owner); err != nil {
		return nil, nil, err
	}
	return tenant, owner, nil
}

func (s *Service) uniqueSlug(ctx context.Context, q credentials.Queries, name string) (string, error) {
	stem := tenants.Slugify(name)
	if stem == "" {
		stem = defaultSlugStem
	}
	candidate := stem
	for range maxSlugAttempts {
		taken, err := q.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = stem + "-" + s.newSuffix()
	}
	return "", autherrors.Newf(autherrors.ErrConflict, "could not find a free slug for %q", name)
}

func workspaceName(requested string, user *users.User) string {
	if name := strings.TrimSpace(requested); name != "" {
		return name
	}
	if user.FirstName != "" {
		return user.FirstName + workspaceSuffix
	}
	local, _, _ := strings.Cut(user.Email, "@")
	return local + workspaceSuffix
}
