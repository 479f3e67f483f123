package token_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	sessionrepofakes "github.com/jrsteele09/go-tenant-auth/sessions/repofakes"
	"github.com/jrsteele09/go-tenant-auth/tenants"
	"github.com/jrsteele09/go-tenant-auth/token"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	clock   *testClock
	kv      *sessionrepofakes.FakeKV
	manager *token.Manager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	clock := &testClock{now: time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)}
	kv := sessionrepofakes.NewFakeKV(sessionrepofakes.WithNowFunc(clock.Now))
	manager := token.New(kv,
		token.NewHMACSigner("access-secret"),
		token.NewHMACSigner("refresh-secret"),
		token.WithNowFunc(clock.Now),
	)
	return &testFixture{clock: clock, kv: kv, manager: manager}
}

var (
	ann   = token.Subject{UserID: "user-ann", Email: "ann@example.com"}
	bob   = token.Subject{UserID: "user-bob", Email: "bob@example.com"}
	scope = tenants.Scope{TenantID: "tenant-1", Role: tenants.RoleAdmin, Permissions: []string{"billing:read"}}
)

func decodeClaims(t *testing.T, raw string) map[string]any {
	t.Helper()
	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	body, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(body, &claims))
	return claims
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestGenerate_PayloadFieldSet(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	pair, err := f.manager.Generate(ctx, ann, scope)
	require.NoError(t, err)
	require.EqualValues(t, 3600, pair.ExpiresIn)

	access := decodeClaims(t, pair.AccessToken)
	require.ElementsMatch(t, []string{"sub", "email", "tenantId", "role", "permissions", "sessionId", "type", "iat", "exp"}, keys(access))
	require.Equal(t, "access", access["type"])
	require.Equal(t, "ADMIN", access["role"])
	require.EqualValues(t, f.clock.Now().Add(time.Hour).Unix(), access["exp"])

	refresh := decodeClaims(t, pair.RefreshToken)
	require.Equal(t, "refresh", refresh["type"])
	require.Equal(t, access["sessionId"], refresh["sessionId"])
	require.EqualValues(t, f.clock.Now().Add(7*24*time.Hour).Unix(), refresh["exp"])

	noTenant, err := f.manager.Generate(ctx, ann, tenants.NoTenant{})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sub", "email", "sessionId", "type", "iat", "exp"}, keys(decodeClaims(t, noTenant.AccessToken)))
}

func TestGenerate_PersistsSessionAndRefreshRecord(t *testing.T) {
	f := setupTestFixture(t)
	pair, err := f.manager.Generate(context.Background(), ann, scope)
	require.NoError(t, err)

	sid := decodeClaims(t, pair.AccessToken)["sessionId"].(string)
	require.Equal(t, []string{"session:" + sid}, f.kv.Keys("session:"))
	require.Len(t, f.kv.Keys("refresh:"), 1)
	require.NotContains(t, f.kv.Keys("refresh:")[0], pair.RefreshToken)
}

func TestVerifyAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair, err := f.manager.Generate(ctx, ann, scope)
	require.NoError(t, err)

	payload, err := f.manager.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, ann.UserID, payload.UserID)
	require.Equal(t, ann.Email, payload.Email)
	require.Equal(t, token.TypeAccess, payload.Type)
	got, ok := payload.Scope()
	require.True(t, ok)
	require.Equal(t, scope, got)

	_, err = f.manager.VerifyAccessToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken, "refresh token is signed with the other key")

	_, err = f.manager.VerifyAccessToken(ctx, pair.AccessToken+"x")
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	_, err = f.manager.VerifyAccessToken(ctx, "")
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestVerifyAccessToken_WrongTypeWithSameKey(t *testing.T) {
	clock := &testClock{now: time.Now()}
	kv := sessionrepofakes.NewFakeKV(sessionrepofakes.WithNowFunc(clock.Now))
	shared := token.NewHMACSigner("same")
	m := token.New(kv, shared, shared, token.WithNowFunc(clock.Now))

	pair, err := m.Generate(context.Background(), ann, scope)
	require.NoError(t, err)
	_, err = m.VerifyAccessToken(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	_, err = m.VerifyRefreshToken(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair, err := f.manager.Generate(ctx, ann, scope)
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)
	_, err = f.manager.VerifyAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	_, err = f.manager.VerifyRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err, "refresh token outlives the access token")
}

func TestRevokeSession_KillsAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair, err := f.manager.Generate(ctx, ann, scope)
	require.NoError(t, err)
	payload, err := f.manager.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.manager.RevokeSession(ctx, payload.SessionID))
	require.NoError(t, f.manager.RevokeSession(ctx, payload.SessionID), "revoking twice is harmless")

	_, err = f.manager.VerifyAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, autherrors.ErrSessionExpired)

	_, err = f.manager.ConsumeRefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestConsumeRefreshToken_SingleUse(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair, err := f.manager.Generate(ctx, ann, scope)
	require.NoError(t, err)

	payload, err := f.manager.ConsumeRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, token.TypeRefresh, payload.Type)
	require.Equal(t, "tenant-1", payload.TenantID())

	_, err = f.manager.ConsumeRefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	_, err = f.manager.VerifyRefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestRefreshPayload_CarriesCredentialStamp(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	sub := ann
	sub.CredentialStamp = "stamp-1"
	pair, err := f.manager.Generate(ctx, sub, scope)
	require.NoError(t, err)
	require.NotEmpty(t, pair.SessionID)

	access, err := f.manager.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Empty(t, access.CredentialStamp)
	require.Equal(t, pair.SessionID, access.SessionID)

	verified, err := f.manager.VerifyRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "stamp-1", verified.CredentialStamp)

	consumed, err := f.manager.ConsumeRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "stamp-1", consumed.CredentialStamp)
}

func TestConsumeRefreshToken_ConcurrentCallersOneWins(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair, err := f.manager.Generate(ctx, ann, scope)
	require.NoError(t, err)

	const callers = 20
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.ConsumeRefreshToken(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	}
	require.Equal(t, 1, wins)
}

func TestRevokeRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair, err := f.manager.Generate(ctx, ann, scope)
	require.NoError(t, err)

	require.NoError(t, f.manager.RevokeRefreshToken(ctx, pair.RefreshToken))
	_, err = f.manager.VerifyRefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)

	_, err = f.manager.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err, "the session itself is untouched")
}

func TestRevokeAllSessions(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	first, err := f.manager.Generate(ctx, ann, scope)
	require.NoError(t, err)
	second, err := f.manager.Generate(ctx, ann, tenants.NoTenant{})
	require.NoError(t, err)
	other, err := f.manager.Generate(ctx, bob, scope)
	require.NoError(t, err)

	require.NoError(t, f.manager.RevokeAllSessions(ctx, ann.UserID))

	for _, p := range []*token.Pair{first, second} {
		_, err = f.manager.VerifyAccessToken(ctx, p.AccessToken)
		require.ErrorIs(t, err, autherrors.ErrSessionExpired)
		_, err = f.manager.VerifyRefreshToken(ctx, p.RefreshToken)
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	}

	_, err = f.manager.VerifyAccessToken(ctx, other.AccessToken)
	require.NoError(t, err)
	_, err = f.manager.VerifyRefreshToken(ctx, other.RefreshToken)
	require.NoError(t, err)
}

func TestSessionExpiresWithRefreshLifetime(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	pair, err := f.manager.Generate(ctx, ann, scope)
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour + time.Second)
	require.Empty(t, f.kv.Keys("session:"))
	_, err = f.manager.ConsumeRefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, autherrors.ErrInvalidToken)
}

func TestWithSessionIDFunc(t *testing.T) {
	kv := sessionrepofakes.NewFakeKV()
	m := token.New(kv, token.NewHMACSigner("a"), token.NewHMACSigner("b"),
		token.WithSessionIDFunc(func() string { return "fixed" }),
		token.WithTokenExpiry(time.Minute, time.Hour))
	pair, err := m.Generate(context.Background(), ann, nil)
	require.NoError(t, err)
	require.EqualValues(t, 60, pair.ExpiresIn)
	require.Equal(t, time.Minute, m.AccessTokenTTL())
	require.Equal(t, []string{"session:fixed"}, kv.Keys("session:"))
}

func TestGenerate_StoreUnavailable(t *testing.T) {
	f := setupTestFixture(t)
	f.kv.SetUnavailable(true)
	_, err := f.manager.Generate(context.Background(), ann, scope)
	require.ErrorIs(t, err, autherrors.ErrStoreUnavailable)
}
