package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/sessions"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/segmentio/ksuid"
)

const (
	DefaultAccessTokenExpiry  = time.Hour
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Manager mints, verifies and revokes access/refresh token pairs. Every pair
// is bound to a session record; deleting the record revokes the pair.
type Manager struct {
	sessions           *sessions.Store
	accessSigner       Signer
	refreshSigner      Signer
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
	newSessionID       func() string
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithSessionIDFunc replaces the session id generator.
func WithSessionIDFunc(f func() string) ManagerOption {
	return func(m *Manager) {
		m.newSessionID = f
	}
}

// New creates a Manager. Access and refresh tokens must use different signers.
func New(kv sessions.KV, accessSigner, refreshSigner Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		sessions:      sessions.NewStore(kv),
		accessSigner:  accessSigner,
		refreshSigner: refreshSigner,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry <= 0 {
		m.accessTokenExpiry = DefaultAccessTokenExpiry
	}
	if m.refreshTokenExpiry <= 0 {
		m.refreshTokenExpiry = DefaultRefreshTokenExpiry
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	if m.newSessionID == nil {
		m.newSessionID = func() string { return ksuid.New().String() }
	}
	return m
}

func (m *Manager) AccessTokenTTL() time.Duration {
	return m.accessTokenExpiry
}

// Ping checks the session store.
func (m *Manager) Ping(ctx context.Context) error {
	return m.sessions.Ping(ctx)
}

// Generate starts a new session for sub scoped to tc and returns its token pair.
func (m *Manager) Generate(ctx context.Context, sub Subject, tc tenants.Context) (*Pair, error) {
	if tc == nil {
		tc = tenants.NoTenant{}
	}
	now := m.nowFunc()
	sessionID := m.newSessionID()

	access, err := m.accessSigner.Sign(newClaims(sub, tc, sessionID, TypeAccess, now, m.accessTokenExpiry))
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Manager Generate] sign access token")
	}
	refresh, err := m.refreshSigner.Sign(newClaims(sub, tc, sessionID, TypeRefresh, now, m.refreshTokenExpiry))
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Manager Generate] sign refresh token")
	}

	scope, _ := tenants.ScopeOf(tc)
	sess := &sessions.Session{
		UserID:    sub.UserID,
		TenantID:  scope.TenantID,
		SessionID: sessionID,
		ExpiresAt: now.Add(m.refreshTokenExpiry),
	}
	if err := m.sessions.SaveSession(ctx, sess, m.refreshTokenExpiry); err != nil {
		return nil, autherrors.Wrapf(err, "[Manager Generate] save session")
	}
	rec := &sessions.RefreshRecord{UserID: sub.UserID, SessionID: sessionID, CredentialStamp: sub.CredentialStamp}
	if err := m.sessions.SaveRefresh(ctx, sessions.HashRefreshToken(refresh), rec, m.refreshTokenExpiry); err != nil {
		_, _ = m.sessions.DeleteSession(ctx, sessionID)
		return nil, autherrors.Wrapf(err, "[Manager Generate] save refresh record")
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.accessTokenExpiry / time.Second),
		SessionID:    sessionID,
	}, nil
}

// VerifyAccessToken checks signature, expiry and type, then requires the
// session to still exist. A revoked or expired session yields ErrSessionExpired.
func (m *Manager) VerifyAccessToken(ctx context.Context, raw string) (*Payload, error) {
	claims, err := m.parse(raw, m.accessSigner, TypeAccess)
	if err != nil {
		return nil, err
	}
	sess, err := m.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrSessionExpired, "session is no longer active")
		}
		return nil, autherrors.Wrapf(err, "[Manager VerifyAccessToken]")
	}
	if sess.UserID != claims.Subject {
		return nil, autherrors.Newf(autherrors.ErrSessionExpired, "session is no longer active")
	}
	return claims.payload(), nil
}

// VerifyRefreshToken checks the token and that its refresh record is still
// present. It does not consume the record.
func (m *Manager) VerifyRefreshToken(ctx context.Context, raw string) (*Payload, error) {
	claims, err := m.parse(raw, m.refreshSigner, TypeRefresh)
	if err != nil {
		return nil, err
	}
	rec, err := m.sessions.GetRefresh(ctx, sessions.HashRefreshToken(raw))
	if err != nil {
		return nil, refreshLookupError(err, "[Manager VerifyRefreshToken]")
	}
	if rec.SessionID != claims.SessionID || rec.UserID != claims.Subject {
		return nil, autherrors.Newf(autherrors.ErrInvalidToken, "refresh token does not match its record")
	}
	return refreshPayload(claims, rec), nil
}

// ConsumeRefreshToken verifies the token and atomically removes its refresh
// record. When several callers present the same token only one succeeds.
// The token is also rejected once its session has been revoked.
func (m *Manager) ConsumeRefreshToken(ctx context.Context, raw string) (*Payload, error) {
	claims, err := m.parse(raw, m.refreshSigner, TypeRefresh)
	if err != nil {
		return nil, err
	}
	rec, err := m.sessions.TakeRefresh(ctx, sessions.HashRefreshToken(raw))
	if err != nil {
		return nil, refreshLookupError(err, "[Manager ConsumeRefreshToken]")
	}
	if rec.SessionID != claims.SessionID || rec.UserID != claims.Subject {
		return nil, autherrors.Newf(autherrors.ErrInvalidToken, "refresh token does not match its record")
	}
	if _, err := m.sessions.GetSession(ctx, claims.SessionID); err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.Newf(autherrors.ErrInvalidToken, "refresh token session was revoked")
		}
		return nil, autherrors.Wrapf(err, "[Manager ConsumeRefreshToken]")
	}
	return refreshPayload(claims, rec), nil
}

func refreshPayload(claims *Claims, rec *sessions.RefreshRecord) *Payload {
	p := claims.payload()
	p.CredentialStamp = rec.CredentialStamp
	return p
}

// RevokeSession deletes the session record. Revoking an unknown session is not an error.
func (m *Manager) RevokeSession(ctx context.Context, sessionID string) error {
	if _, err := m.sessions.DeleteSession(ctx, sessionID); err != nil {
		return autherrors.Wrapf(err, "[Manager RevokeSession]")
	}
	return nil
}

// RevokeRefreshToken deletes the refresh record of raw.
func (m *Manager) RevokeRefreshToken(ctx context.Context, raw string) error {
	if _, err := m.sessions.DeleteRefresh(ctx, sessions.HashRefreshToken(raw)); err != nil {
		return autherrors.Wrapf(err, "[Manager RevokeRefreshToken]")
	}
	return nil
}

// RevokeAllSessions logs the user out everywhere.
func (m *Manager) RevokeAllSessions(ctx context.Context, userID string) error {
	if _, err := m.sessions.DeleteUserSessions(ctx, userID); err != nil {
		return autherrors.Wrapf(err, "[Manager RevokeAllSessions]")
	}
	return nil
}

func (m *Manager) parse(raw string, signer Signer, want Type) (*Claims, error) {
	if raw == "" {
		return nil, autherrors.Newf(autherrors.ErrInvalidToken, "missing token")
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, signer.GetVerificationKey,
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, autherrors.Newf(autherrors.ErrInvalidToken, "token rejected: %v", err)
	}
	if claims.Type != want {
		return nil, autherrors.Newf(autherrors.ErrInvalidToken, "expected %s token", want)
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, autherrors.Newf(autherrors.ErrInvalidToken, "token is missing subject or session")
	}
	return claims, nil
}

func refreshLookupError(err error, op string) error {
	if autherrors.Is(err, autherrors.ErrNotFound) {
		return autherrors.Newf(autherrors.ErrInvalidToken, "refresh token already used or revoked")
	}
	return autherrors.Wrapf(err, "%s", op)
}
