package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-tenant-auth/credentials"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/internal/utils"
	"github.com/jrsteele09/go-tenant-auth/users"
)

// ChangePassword replaces the password of a password account and signs the
// user out everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return autherrors.Wrapf(err, "[Service ChangePassword]")
	}
	if !user.HasPassword() {
		return autherrors.Newf(autherrors.ErrBadRequest, "account has no password; it uses social sign-in")
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, currentPassword)
	if err != nil {
		return autherrors.Wrapf(err, "[Service ChangePassword]")
	}
	if !ok {
		return autherrors.Newf(autherrors.ErrUnauthorized, "current password is incorrect")
	}
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return autherrors.Newf(autherrors.ErrBadRequest, "%v", err)
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return autherrors.Wrapf(err, "[Service ChangePassword]")
	}
	_, err = s.updateUser(ctx, userID, func(u *users.User) error {
		u.PasswordHash = hash
		return nil
	})
	if err != nil {
		return autherrors.Wrapf(err, "[Service ChangePassword]")
	}

	return s.tokens.RevokeAllSessions(ctx, userID)
}

// ForgotPassword issues a reset token for an active account and hands it to
// the notifier. It reports success whether or not the address is known.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil
		}
		return autherrors.Wrapf(err, "[Service ForgotPassword]")
	}
	if !user.CanLogin() {
		return nil
	}

	raw, err := utils.RandomToken(resetTokenBytes)
	if err != nil {
		return autherrors.Wrapf(err, "[Service ForgotPassword]")
	}
	now := s.now()
	reset := &users.PasswordReset{
		ID:        s.newID(),
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	if err := s.store.CreatePasswordReset(ctx, reset); err != nil {
		return autherrors.Wrapf(err, "[Service ForgotPassword]")
	}

	s.notifier.PasswordReset(ctx, user.Email, raw)
	return nil
}

// ResetPassword redeems a reset token. Setting the password and burning the
// token happen in one transaction; afterwards every session is revoked.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" {
		return autherrors.Newf(autherrors.ErrBadRequest, "reset token is required")
	}
	hashed := utils.HashToken(resetToken)

	reset, err := s.store.GetPasswordResetByHash(ctx, hashed)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return autherrors.Newf(autherrors.ErrBadRequest, "reset token is invalid or expired")
		}
		return autherrors.Wrapf(err, "[Service ResetPassword]")
	}
	if !reset.Redeemable(s.now()) {
		return autherrors.Newf(autherrors.ErrBadRequest, "reset token is invalid or expired")
	}
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return autherrors.Newf(autherrors.ErrBadRequest, "%v", err)
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return autherrors.Wrapf(err, "[Service ResetPassword]")
	}

	now := s.now()
	err = s.store.InTx(ctx, func(q credentials.Queries) error {
		if err := q.MarkPasswordResetUsed(ctx, reset.ID, now); err != nil {
			if autherrors.Is(err, autherrors.ErrConflict) {
				return autherrors.Newf(autherrors.ErrBadRequest, "reset token is invalid or expired")
			}
			return err
		}
		u, err := q.GetUserByID(ctx, reset.UserID)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		u.UpdatedAt = now
		return q.UpdateUser(ctx, u)
	})
	if err != nil {
		return autherrors.Wrapf(err, "[Service ResetPassword]")
	}

	return s.tokens.RevokeAllSessions(ctx, reset.UserID)
}

// ProfileUpdate changes only the fields that are set.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// UpdateProfile edits the caller's display fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*users.User, error) {
	user, err := s.updateUser(ctx, userID, func(u *users.User) error {
		if update.FirstName != nil {
			u.FirstName = strings.TrimSpace(*update.FirstName)
		}
		if update.LastName != nil {
			u.LastName = strings.TrimSpace(*update.LastName)
		}
		if update.AvatarURL != nil {
			u.AvatarURL = strings.TrimSpace(*update.AvatarURL)
		}
		return nil
	})
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Service UpdateProfile]")
	}
	return user, nil
}
