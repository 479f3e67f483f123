// Package membership manages who belongs to a tenant and with which role:
// invitations, role and permission updates, removal, ownership transfer and
// leaving.
package membership

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-tenant-auth/credentials"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/internal/utils"
	"github.com/jrsteele09/go-tenant-auth/notify"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/users"
)

const (
	DefaultInvitationExpiry = 7 * 24 * time.Hour

	invitationTokenBytes = 32
)

// Member is a membership joined with the member's profile.
type Member struct {
	*tenants.Membership
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type ListOptions struct {
	// ActiveOnly hides pending invitations and deactivated members.
	ActiveOnly bool
}

type InviteInput struct {
	TenantID    string       `json:"-"`
	InviterID   string       `json:"-"`
	Email       string       `json:"email"`
	Role        tenants.Role `json:"role"`
	Permissions []string     `json:"permissions,omitempty"`
}

// Invitation is a pending membership. Token is the raw invitation secret;
// only its hash is stored.
type Invitation struct {
	Membership *tenants.Membership `json:"membership"`
	User       *users.User         `json:"user"`
	Token      string              `json:"-"`
}

// MemberUpdate changes only the fields that are set. A nil Permissions leaves
// the list alone; an empty one clears it.
type MemberUpdate struct {
	Role        *tenants.Role `json:"role,omitempty"`
	Permissions []string      `json:"permissions,omitempty"`
	IsActive    *bool         `json:"isActive,omitempty"`
}

type Service struct {
	store         credentials.Store
	hasher        *users.Hasher
	notifier      notify.Notifier
	invitationTTL time.Duration
	nowTime       func() time.Time
	newID         func() string
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithInvitationTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.invitationTTL = ttl
	}
}

func NewService(store credentials.Store, hasher *users.Hasher, notifier notify.Notifier, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("[NewService] credential store is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewService] hasher is required")
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	s := &Service{
		store:         store,
		hasher:        hasher,
		notifier:      notifier,
		invitationTTL: DefaultInvitationExpiry,
		nowTime:       time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.invitationTTL <= 0 {
		s.invitationTTL = DefaultInvitationExpiry
	}
	return s, nil
}

func (s *Service) now() time.Time {
	return s.nowTime().UTC()
}

// requireManager returns the caller's membership when it is an active OWNER or ADMIN.
func requireManager(ctx context.Context, q credentials.Queries, tenantID, userID string) (*tenants.Membership, error) {
	m, err := q.GetMembership(ctx, tenantID, userID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrForbidden, "not a member of tenant %s", tenantID)
		}
		return nil, err
	}
	if !m.IsActive || !m.Role.CanManageMembers() {
		return nil, autherrors.Newf(autherrors.ErrForbidden, "managing members requires OWNER or ADMIN")
	}
	return m, nil
}

func getTarget(ctx context.Context, q credentials.Queries, tenantID, userID string) (*tenants.Membership, error) {
	m, err := q.GetMembership(ctx, tenantID, userID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrNotFound, "user %s is not a member of tenant %s", userID, tenantID)
		}
		return nil, err
	}
	return m, nil
}

// ListMembers returns the tenant's members in join order. Only OWNER and
// ADMIN may list.
func (s *Service) ListMembers(ctx context.Context, tenantID, requesterID string, opts ListOptions) ([]*Member, error) {
	if _, err := requireManager(ctx, s.store, tenantID, requesterID); err != nil {
		return nil, autherrors.Wrapf(err, "[Service ListMembers]")
	}

	ms, err := s.store.ListTenantMemberships(ctx, tenantID)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service ListMembers]")
	}

	members := make([]*Member, 0, len(ms))
	for _, m := range ms {
		if opts.ActiveOnly && !m.IsActive {
			continue
		}
		u, err := s.store.GetUserByID(ctx, m.UserID)
		if err != nil {
			return nil, autherrors.Wrapf(err, "[Service ListMembers] user %s", m.UserID)
		}
		members = append(members, &Member{
			Membership: m,
			Email:      u.Email,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
		})
	}
	return members, nil
}

// Invite adds a pending membership for email, creating an unverified
// password-less user when the address is new. The raw token is handed to
// the notifier and returned to the caller.
func (s *Service) Invite(ctx context.Context, in InviteInput) (*Invitation, error) {
	email := users.NormalizeEmail(in.Email)
	if err := users.ValidateEmail(email); err != nil {
		return nil, autherrors.Newf(autherrors.ErrBadRequest, "%v", err)
	}
	role := in.Role
	if role == "" {
		role = tenants.RoleMember
	}
	if !role.Valid() {
		return nil, autherrors.Newf(autherrors.ErrBadRequest, "unknown role %q", role)
	}
	if role == tenants.RoleOwner {
		return nil, autherrors.Newf(autherrors.ErrForbidden, "ownership can only be transferred")
	}

	raw, err := utils.RandomToken(invitationTokenBytes)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service Invite]")
	}
	now := s.now()
	expires := now.Add(s.invitationTTL)

	var (
		inv     *Invitation
		tenant  *tenants.Tenant
		inviter *users.User
	)
	err = s.store.InTx(ctx, func(q credentials.Queries) error {
		if _, err := requireManager(ctx, q, in.TenantID, in.InviterID); err != nil {
			return err
		}
		var err error
		if tenant, err = q.GetTenant(ctx, in.TenantID); err != nil {
			return err
		}
		if inviter, err = q.GetUserByID(ctx, in.InviterID); err != nil {
			return err
		}

		invitee, err := q.GetUserByEmail(ctx, email)
		switch {
		case autherrors.Is(err, autherrors.ErrNotFound):
			invitee = &users.User{
				ID:        s.newID(),
				Email:     email,
				IsActive:  true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := q.CreateUser(ctx, invitee); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			_, err := q.GetMembership(ctx, in.TenantID, invitee.ID)
			if err == nil {
				return autherrors.Newf(autherrors.ErrConflict, "%s is already a member", email)
			}
			if !autherrors.Is(err, autherrors.ErrNotFound) {
				return err
			}
		}

		m := &tenants.Membership{
			TenantID:            in.TenantID,
			UserID:              invitee.ID,
			Role:                role,
			Permissions:         normalizePermissions(in.Permissions),
			IsActive:            false,
			InvitedBy:           in.InviterID,
			InvitedAt:           utils.Ptr(now),
			CreatedAt:           now,
			InvitationTokenHash: utils.HashToken(raw),
			InvitationExpiresAt: &expires,
		}
		if err := q.CreateMembership(ctx, m); err != nil {
			return err
		}
		inv = &Invitation{Membership: m, User: invitee, Token: raw}
		return nil
	})
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service Invite]")
	}

	s.notifier.Invitation(ctx, email, tenant.Name, inviter.Email, raw)
	return inv, nil
}

// AcceptInvitation activates the membership behind an invitation token. A
// user without a password may set one here.
func (s *Service) AcceptInvitation(ctx context.Context, invitationToken, password string) (*Member, error) {
	invitationToken = strings.TrimSpace(invitationToken)
	if invitationToken == "" {
		return nil, autherrors.Newf(autherrors.ErrBadRequest, "invitation token is required")
	}
	hashed := utils.HashToken(invitationToken)

	pending, err := s.pendingInvitation(ctx, s.store, hashed)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service AcceptInvitation]")
	}
	invitee, err := s.store.GetUserByID(ctx, pending.UserID)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service AcceptInvitation]")
	}

	var passwordHash string
	if password != "" && !invitee.HasPassword() {
		if err := users.ValidatePasswordStrength(password); err != nil {
			return nil, autherrors.Newf(autherrors.ErrBadRequest, "%v", err)
		}
		if passwordHash, err = s.hasher.Hash(ctx, password); err != nil {
			return nil, autherrors.Wrapf(err, "[Service AcceptInvitation]")
		}
	}

	now := s.now()
	var accepted *Member
	err = s.store.InTx(ctx, func(q credentials.Queries) error {
		m, err := s.pendingInvitation(ctx, q, hashed)
		if err != nil {
			return err
		}
		m.IsActive = true
		m.JoinedAt = utils.Ptr(now)
		m.InvitationTokenHash = ""
		m.InvitationExpiresAt = nil
		if err := q.UpdateMembership(ctx, m); err != nil {
			return err
		}

		u, err := q.GetUserByID(ctx, m.UserID)
		if err != nil {
			return err
		}
		u.IsVerified = true
		if passwordHash != "" && !u.HasPassword() {
			u.PasswordHash = passwordHash
		}
		if u.DefaultTenantID == "" {
			u.DefaultTenantID = m.TenantID
		}
		u.UpdatedAt = now
		if err := q.UpdateUser(ctx, u); err != nil {
			return err
		}
		accepted = &Member{Membership: m, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
		return nil
	})
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service AcceptInvitation]")
	}
	return accepted, nil
}

func (s *Service) pendingInvitation(ctx context.Context, q credentials.Queries, tokenHash string) (*tenants.Membership, error) {
	m, err := q.GetMembershipByInvitation(ctx, tokenHash)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrBadRequest, "invitation is invalid or already used")
		}
		return nil, err
	}
	if m.InvitationExpiresAt != nil && !s.now().Before(*m.InvitationExpiresAt) {
		return nil, autherrors.Newf(autherrors.ErrBadRequest, "invitation has expired")
	}
	return m, nil
}

// UpdateMember changes a member's role, permissions or active flag. The
// OWNER role never moves through here; use TransferOwnership.
func (s *Service) UpdateMember(ctx context.Context, tenantID, updaterID, userID string, update MemberUpdate) (*tenants.Membership, error) {
	if update.Role != nil && !update.Role.Valid() {
		return nil, autherrors.Newf(autherrors.ErrBadRequest, "unknown role %q", *update.Role)
	}

	var updated *tenants.Membership
	err := s.store.InTx(ctx, func(q credentials.Queries) error {
		updater, err := requireManager(ctx, q, tenantID, updaterID)
		if err != nil {
			return err
		}
		target, err := getTarget(ctx, q, tenantID, userID)
		if err != nil {
			return err
		}

		touchesOwner := target.Role == tenants.RoleOwner || (update.Role != nil && *update.Role == tenants.RoleOwner)
		if touchesOwner && updater.Role != tenants.RoleOwner {
			return autherrors.Newf(autherrors.ErrForbidden, "only the owner can change the owner membership")
		}
		if update.Role != nil && *update.Role != target.Role {
			if target.Role == tenants.RoleOwner {
				return autherrors.Newf(autherrors.ErrBadRequest, "the owner role can only change through ownership transfer")
			}
			if *update.Role == tenants.RoleOwner {
				return autherrors.Newf(autherrors.ErrBadRequest, "use ownership transfer to grant OWNER")
			}
			target.Role = *update.Role
		}
		if update.IsActive != nil {
			if !*update.IsActive && target.Role == tenants.RoleOwner {
				return autherrors.Newf(autherrors.ErrBadRequest, "the owner cannot be deactivated")
			}
			target.IsActive = *update.IsActive
		}
		if update.Permissions != nil {
			target.Permissions = normalizePermissions(update.Permissions)
		}

		if err := q.UpdateMembership(ctx, target); err != nil {
			return err
		}
		updated = target
		return nil
	})
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service UpdateMember]")
	}
	return updated, nil
}

// RemoveMember deletes a membership. The owner cannot be removed and an
// admin cannot remove themself; LeaveTenant covers that.
func (s *Service) RemoveMember(ctx context.Context, tenantID, removerID, userID string) error {
	err := s.store.InTx(ctx, func(q credentials.Queries) error {
		remover, err := requireManager(ctx, q, tenantID, removerID)
		if err != nil {
			return err
		}
		target, err := getTarget(ctx, q, tenantID, userID)
		if err != nil {
			return err
		}
		if target.Role == tenants.RoleOwner {
			return autherrors.Newf(autherrors.ErrBadRequest, "the owner cannot be removed")
		}
		if removerID == userID && remover.Role == tenants.RoleAdmin {
			return autherrors.Newf(autherrors.ErrBadRequest, "admins cannot remove themselves; leave the tenant instead")
		}
		return deleteMembership(ctx, q, tenantID, userID)
	})
	return autherrors.Wrapf(err, "[Service RemoveMember]")
}

// TransferOwnership demotes the current owner to ADMIN and promotes an
// active member to OWNER in one transaction.
func (s *Service) TransferOwnership(ctx context.Context, tenantID, currentOwnerID, newOwnerID string) error {
	err := s.store.InTx(ctx, func(q credentials.Queries) error {
		current, err := q.GetMembership(ctx, tenantID, currentOwnerID)
		if err != nil && !autherrors.Is(err, autherrors.ErrNotFound) {
			return err
		}
		if current == nil || current.Role != tenants.RoleOwner {
			return autherrors.Newf(autherrors.ErrForbidden, "only the owner can transfer ownership")
		}
		if newOwnerID == currentOwnerID {
			return autherrors.Newf(autherrors.ErrBadRequest, "already the owner")
		}
		next, err := getTarget(ctx, q, tenantID, newOwnerID)
		if err != nil {
			return err
		}
		if !next.IsActive {
			return autherrors.Newf(autherrors.ErrBadRequest, "new owner must be an active member")
		}

		current.Role = tenants.RoleAdmin
		next.Role = tenants.RoleOwner
		if err := q.UpdateMembership(ctx, current); err != nil {
			return err
		}
		return q.UpdateMembership(ctx, next)
	})
	return autherrors.Wrapf(err, "[Service TransferOwnership]")
}

// LeaveTenant removes the caller's own membership. The owner must transfer
// ownership first.
func (s *Service) LeaveTenant(ctx context.Context, tenantID, userID string) error {
	err := s.store.InTx(ctx, func(q credentials.Queries) error {
		m, err := getTarget(ctx, q, tenantID, userID)
		if err != nil {
			return err
		}
		if m.Role == tenants.RoleOwner {
			return autherrors.Newf(autherrors.ErrBadRequest, "the owner must transfer ownership before leaving")
		}
		return deleteMembership(ctx, q, tenantID, userID)
	})
	return autherrors.Wrapf(err, "[Service LeaveTenant]")
}

// deleteMembership removes the row and clears the user's default tenant when
// it pointed here.
func deleteMembership(ctx context.Context, q credentials.Queries, tenantID, userID string) error {
	if err := q.DeleteMembership(ctx, tenantID, userID); err != nil {
		return err
	}
	u, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.DefaultTenantID != tenantID {
		return nil
	}
	u.DefaultTenantID = ""
	return q.UpdateUser(ctx, u)
}

func normalizePermissions(perms []string) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
