package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jrsteele09/go-tenant-auth/internal/utils"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"` // lower-cased, unique
	// bcrypt hash with its salt embedded. Empty for social-only accounts.
	PasswordHash    string     `json:"-"`
	FirstName       string     `json:"firstName,omitempty"`
	LastName        string     `json:"lastName,omitempty"`
	AvatarURL       string     `json:"avatarUrl,omitempty"`
	IsActive        bool       `json:"isActive"`
	IsVerified      bool       `json:"isVerified"`
	DefaultTenantID string     `json:"defaultTenantId,omitempty"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	DeletedAt       *time.Time `json:"-"` // soft delete, rows are never removed
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// CredentialStamp changes whenever the password hash does. Tokens remember
// the stamp they were minted under so a password change can be detected.
func (u *User) CredentialStamp() string {
	return utils.HashToken(u.PasswordHash)
}

// CanLogin reports whether the account may be issued tokens.
func (u *User) CanLogin() bool {
	return u.IsActive && u.DeletedAt == nil
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail performs a cheap structural check; deliverability is the notifier's problem.
func ValidateEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return fmt.Errorf("invalid email address")
	}
	if !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 bytes long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
