package token

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-tenant-auth/tenants"
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the JWT payload shared by access and refresh tokens:
// sub, email, tenantId?, role?, permissions?, sessionId, type, iat, exp.
type Claims struct {
	Email       string   `json:"email"`
	TenantID    string   `json:"tenantId,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	SessionID   string   `json:"sessionId"`
	Type        Type     `json:"type"`
	jwt.RegisteredClaims
}

// Subject identifies who the tokens are minted for. CredentialStamp is
// stored with the refresh record, never in the JWT, and comes back on the
// payload when the refresh token is verified or consumed.
type Subject struct {
	UserID          string
	Email           string
	CredentialStamp string
}

// Payload is a verified token.
type Payload struct {
	UserID    string
	Email     string
	Tenant    tenants.Context
	SessionID string
	Type      Type
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Set on refresh payloads only.
	CredentialStamp string
}

// Scope returns the tenant scope the token carries, if any.
func (p *Payload) Scope() (tenants.Scope, bool) {
	if p == nil {
		return tenants.Scope{}, false
	}
	return tenants.ScopeOf(p.Tenant)
}

// TenantID returns the scoped tenant or "".
func (p *Payload) TenantID() string {
	s, _ := p.Scope()
	return s.TenantID
}

// Pair is what clients receive after a successful authentication.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // access token lifetime in seconds
	SessionID    string `json:"-"`
}

func newClaims(sub Subject, tc tenants.Context, sessionID string, typ Type, now time.Time, ttl time.Duration) *Claims {
	c := &Claims{
		Email:     sub.Email,
		SessionID: sessionID,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if scope, ok := tenants.ScopeOf(tc); ok {
		c.TenantID = scope.TenantID
		c.Role = string(scope.Role)
		c.Permissions = slices.Clone(scope.Permissions)
	}
	return c
}

func (c *Claims) payload() *Payload {
	p := &Payload{
		UserID:    c.Subject,
		Email:     c.Email,
		Tenant:    tenants.NoTenant{},
		SessionID: c.SessionID,
		Type:      c.Type,
	}
	if c.TenantID != "" {
		p.Tenant = tenants.Scope{
			TenantID:    c.TenantID,
			Role:        tenants.Role(c.Role),
			Permissions: slices.Clone(c.Permissions),
		}
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
