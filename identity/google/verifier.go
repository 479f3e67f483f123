// Package google verifies Google Sign-In identities and turns them into
// users.OAuthProfile values for the auth service.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/users"
	"golang.org/x/oauth2"
)

// Issuer is Google's OpenID Connect issuer.
const Issuer = "https://accounts.google.com"

// Verifier checks Google ID tokens and runs the authorization code exchange.
type Verifier struct {
	idTokens *oidc.IDTokenVerifier
	oauth2   *oauth2.Config
}

type Option func(*oidc.Config)

// WithNowFunc sets the clock used for expiry checks.
func WithNowFunc(now func() time.Time) Option {
	return func(c *oidc.Config) {
		c.Now = now
	}
}

// NewVerifier discovers Google's endpoints and signing keys.
func NewVerifier(ctx context.Context, clientID, clientSecret, redirectURL string, options ...Option) (*Verifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("[google NewVerifier] client id is required")
	}
	provider, err := oidc.NewProvider(ctx, Issuer)
	if err != nil {
		return nil, fmt.Errorf("[google NewVerifier] failed to create OIDC provider: %w", err)
	}

	cfg := &oidc.Config{ClientID: clientID}
	for _, opt := range options {
		opt(cfg)
	}
	return &Verifier{
		idTokens: provider.Verifier(cfg),
		oauth2: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// NewStaticVerifier verifies against a fixed key set without discovery.
// oauthConfig supplies the client id and the token endpoint for Exchange.
func NewStaticVerifier(issuer string, keys oidc.KeySet, oauthConfig *oauth2.Config, options ...Option) *Verifier {
	cfg := &oidc.Config{ClientID: oauthConfig.ClientID}
	for _, opt := range options {
		opt(cfg)
	}
	return &Verifier{
		idTokens: oidc.NewVerifier(issuer, keys, cfg),
		oauth2:   oauthConfig,
	}
}

type claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verify checks an ID token's signature, issuer, audience and expiry and
// returns the identity it asserts.
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (users.OAuthProfile, error) {
	if rawIDToken == "" {
		return users.OAuthProfile{}, autherrors.Newf(autherrors.ErrBadRequest, "idToken is required")
	}
	idToken, err := v.idTokens.Verify(ctx, rawIDToken)
	if err != nil {
		return users.OAuthProfile{}, autherrors.Newf(autherrors.ErrInvalidToken, "google id token rejected: %v", err)
	}

	var c claims
	if err := idToken.Claims(&c); err != nil {
		return users.OAuthProfile{}, autherrors.Newf(autherrors.ErrInvalidToken, "google id token claims: %v", err)
	}
	if c.Email == "" {
		return users.OAuthProfile{}, autherrors.Newf(autherrors.ErrInvalidToken, "google id token has no email")
	}

	first, last := c.GivenName, c.FamilyName
	if first == "" && last == "" && c.Name != "" {
		first, last, _ = strings.Cut(c.Name, " ")
	}
	return users.OAuthProfile{
		Provider:      users.ProviderGoogle,
		Subject:       idToken.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		FirstName:     first,
		LastName:      last,
		AvatarURL:     c.Picture,
	}, nil
}

// AuthCodeURL returns the consent page URL for the code flow.
func (v *Verifier) AuthCodeURL(state string) string {
	return v.oauth2.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens and verifies the ID token
// in the response.
func (v *Verifier) Exchange(ctx context.Context, code string) (users.OAuthProfile, error) {
	if code == "" {
		return users.OAuthProfile{}, autherrors.Newf(autherrors.ErrBadRequest, "code is required")
	}
	tok, err := v.oauth2.Exchange(ctx, code)
	if err != nil {
		return users.OAuthProfile{}, autherrors.Newf(autherrors.ErrInvalidCredentials, "google code exchange failed: %v", err)
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return users.OAuthProfile{}, autherrors.Newf(autherrors.ErrInvalidToken, "no id_token in google token response")
	}
	return v.Verify(ctx, rawIDToken)
}
