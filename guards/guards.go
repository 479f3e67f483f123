// Package guards holds request-time authorization predicates over a verified
// token payload. Routes list the guards they need; Check runs them in order.
package guards

import (
	"slices"

	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/token"
)

// Guard returns nil when the payload may proceed.
type Guard func(p *token.Payload) error

// Check evaluates guards in order and returns the first failure.
func Check(p *token.Payload, guards ...Guard) error {
	for _, g := range guards {
		if err := g(p); err != nil {
			return err
		}
	}
	return nil
}

// Authenticated requires a verified payload.
func Authenticated(p *token.Payload) error {
	if p == nil {
		return autherrors.Newf(autherrors.ErrInvalidToken, "authentication required")
	}
	return nil
}

// RequireTenant requires the token to be scoped to a tenant.
func RequireTenant(p *token.Payload) error {
	if err := Authenticated(p); err != nil {
		return err
	}
	if _, ok := p.Scope(); !ok {
		return autherrors.Newf(autherrors.ErrForbidden, "tenant context required")
	}
	return nil
}

// RequireRole requires the scoped role to be one of roles.
func RequireRole(roles ...tenants.Role) Guard {
	return func(p *token.Payload) error {
		if err := RequireTenant(p); err != nil {
			return err
		}
		s, _ := p.Scope()
		if !slices.Contains(roles, s.Role) {
			return autherrors.Newf(autherrors.ErrForbidden, "role %s is not allowed", s.Role)
		}
		return nil
	}
}

// RequirePermission requires every listed permission. OWNER holds them all.
func RequirePermission(perms ...string) Guard {
	return func(p *token.Payload) error {
		if err := RequireTenant(p); err != nil {
			return err
		}
		s, _ := p.Scope()
		for _, perm := range perms {
			if !s.HasPermission(perm) {
				return autherrors.Newf(autherrors.ErrForbidden, "missing permission %s", perm)
			}
		}
		return nil
	}
}
