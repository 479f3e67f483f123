package sessions_test

import (
	"context"
	"testing"
	"time"

	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/sessions"
	sessionrepofakes "github.com/jrsteele09/go-tenant-auth/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestStore_SessionLifecycle(t *testing.T) {
	clk := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	kv := sessionrepofakes.NewFakeKV(sessionrepofakes.WithNowFunc(clk.Now))
	store := sessions.NewStore(kv)
	ctx := context.Background()

	sess := &sessions.Session{UserID: "u1", TenantID: "t1", SessionID: "s1", ExpiresAt: clk.now.Add(time.Hour)}
	require.NoError(t, store.SaveSession(ctx, sess, time.Hour))
	require.Equal(t, []string{"session:s1"}, kv.Keys("session:"))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "t1", got.TenantID)
	require.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	clk.now = clk.now.Add(time.Hour)
	_, err = store.GetSession(ctx, "s1")
	require.ErrorIs(t, err, autherrors.ErrNotFound)

	existed, err := store.DeleteSession(ctx, "s1")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestStore_RefreshRecordIsTakenOnce(t *testing.T) {
	store := sessions.NewStore(sessionrepofakes.NewFakeKV())
	ctx := context.Background()
	hash := sessions.HashRefreshToken("raw-token")
	require.Len(t, hash, 64)

	require.NoError(t, store.SaveRefresh(ctx, hash, &sessions.RefreshRecord{UserID: "u1", SessionID: "s1"}, time.Hour))

	rec, err := store.GetRefresh(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, "s1", rec.SessionID)

	rec, err = store.TakeRefresh(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, "u1", rec.UserID)

	_, err = store.TakeRefresh(ctx, hash)
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestStore_DeleteUserSessions(t *testing.T) {
	kv := sessionrepofakes.NewFakeKV()
	store := sessions.NewStore(kv)
	ctx := context.Background()

	for _, s := range []struct{ user, id string }{{"u1", "a"}, {"u1", "b"}, {"u2", "c"}} {
		require.NoError(t, store.SaveSession(ctx, &sessions.Session{UserID: s.user, SessionID: s.id}, time.Hour))
		require.NoError(t, store.SaveRefresh(ctx, sessions.HashRefreshToken(s.id),
			&sessions.RefreshRecord{UserID: s.user, SessionID: s.id}, time.Hour))
	}

	n, err := store.DeleteUserSessions(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, []string{"session:c"}, kv.Keys("session:"))
	require.Equal(t, []string{sessions.RefreshKey(sessions.HashRefreshToken("c"))}, kv.Keys("refresh:"))
}

func TestStore_UnavailableBackend(t *testing.T) {
	kv := sessionrepofakes.NewFakeKV()
	kv.SetUnavailable(true)
	store := sessions.NewStore(kv)

	_, err := store.GetSession(context.Background(), "s1")
	require.ErrorIs(t, err, autherrors.ErrStoreUnavailable)
}
