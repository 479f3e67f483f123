package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-tenant-auth/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		errPart  string
	}{
		{"valid", "P@ssw0rd1", ""},
		{"too short", "Ab1", "at least 8"},
		{"no upper", "passw0rd1", "uppercase"},
		{"no lower", "PASSW0RD1", "lowercase"},
		{"no number", "Password!", "number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tt.password)
			if tt.errPart == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, users.ValidateEmail("a@x.com"))
	require.Error(t, users.ValidateEmail("ax.com"))
	require.Error(t, users.ValidateEmail("a@x"))
	require.Error(t, users.ValidateEmail("@x.com"))
	require.Error(t, users.ValidateEmail("a b@x.com"))
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "ann@example.com", users.NormalizeEmail("  Ann@Example.COM "))
}

func TestUser_CanLogin(t *testing.T) {
	now := time.Now()
	require.True(t, (&users.User{IsActive: true}).CanLogin())
	require.False(t, (&users.User{IsActive: false}).CanLogin())
	require.False(t, (&users.User{IsActive: true, DeletedAt: &now}).CanLogin())
}

func TestPasswordReset_Redeemable(t *testing.T) {
	now := time.Now()
	r := &users.PasswordReset{ExpiresAt: now.Add(time.Minute)}
	require.True(t, r.Redeemable(now))
	require.False(t, r.Redeemable(now.Add(2*time.Minute)))
	r.Used = true
	require.False(t, r.Redeemable(now))
}

func TestHasher_HashAndCompare(t *testing.T) {
	h := users.NewHasher(bcrypt.MinCost, 2)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "P@ssw0rd1")
	require.NoError(t, err)
	require.NotEqual(t, "P@ssw0rd1", hash)

	ok, err := h.Compare(ctx, hash, "P@ssw0rd1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Compare(ctx, hash, "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	again, err := h.Hash(ctx, "P@ssw0rd1")
	require.NoError(t, err)
	require.NotEqual(t, hash, again, "each hash gets a fresh salt")
}

func TestHasher_CompareMalformedHash(t *testing.T) {
	h := users.NewHasher(bcrypt.MinCost, 1)
	_, err := h.Compare(context.Background(), "not-a-bcrypt-hash", "x")
	require.Error(t, err)
}

func TestHasher_RespectsCancellation(t *testing.T) {
	h := users.NewHasher(bcrypt.MinCost, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Hash(ctx, "P@ssw0rd1")
	require.ErrorIs(t, err, context.Canceled)

	_, err = h.Compare(ctx, "$2a$04$abc", "P@ssw0rd1")
	require.ErrorIs(t, err, context.Canceled)
}
