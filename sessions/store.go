package sessions

import (
	"context"
	"encoding/json"
	"time"

	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/internal/utils"
)

const (
	sessionPrefix = "session:"
	refreshPrefix = "refresh:"
)

// Session marks a live login. It is stored under session:{SessionID} with a
// TTL equal to the refresh token lifetime.
type Session struct {
	UserID    string    `json:"userId"`
	TenantID  string    `json:"tenantId,omitempty"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RefreshRecord binds an unused refresh token to its session. It is stored
// under refresh:{sha256hex(token)} and removed when the token is used.
type RefreshRecord struct {
	UserID          string `json:"userId"`
	SessionID       string `json:"sessionId"`
	CredentialStamp string `json:"credentialStamp,omitempty"`
}

// HashRefreshToken returns the key suffix for a raw refresh token. Raw tokens
// are never written to the store.
func HashRefreshToken(raw string) string {
	return utils.HashToken(raw)
}

func SessionKey(sessionID string) string { return sessionPrefix + sessionID }
func RefreshKey(tokenHash string) string { return refreshPrefix + tokenHash }

// Store reads and writes typed session records on a KV.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

func (s *Store) SaveSession(ctx context.Context, sess *Session, ttl time.Duration) error {
	return s.put(ctx, SessionKey(sess.SessionID), sess, ttl)
}

// GetSession returns autherrors.ErrNotFound once the session was revoked or expired.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	if err := s.get(ctx, SessionKey(sessionID), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession reports whether the session existed.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.kv.Delete(ctx, SessionKey(sessionID))
	return n > 0, err
}

func (s *Store) SaveRefresh(ctx context.Context, tokenHash string, rec *RefreshRecord, ttl time.Duration) error {
	return s.put(ctx, RefreshKey(tokenHash), rec, ttl)
}

func (s *Store) GetRefresh(ctx context.Context, tokenHash string) (*RefreshRecord, error) {
	var rec RefreshRecord
	if err := s.get(ctx, RefreshKey(tokenHash), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// TakeRefresh removes and returns the record in one step. Only one caller
// can take a given record.
func (s *Store) TakeRefresh(ctx context.Context, tokenHash string) (*RefreshRecord, error) {
	raw, err := s.kv.Take(ctx, RefreshKey(tokenHash))
	if err != nil {
		return nil, err
	}
	var rec RefreshRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "[Store TakeRefresh] corrupt record: %v", err)
	}
	return &rec, nil
}

func (s *Store) DeleteRefresh(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.kv.Delete(ctx, RefreshKey(tokenHash))
	return n > 0, err
}

// DeleteUserSessions removes every session and refresh record belonging to
// userID and returns the number of sessions removed.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	var sessionKeys []string
	err := s.kv.Scan(ctx, sessionPrefix, func(key string, value []byte) error {
		var sess Session
		if json.Unmarshal(value, &sess) == nil && sess.UserID == userID {
			sessionKeys = append(sessionKeys, key)
		}
		return nil
	})
	if err != nil {
		return 0, autherrors.Wrapf(err, "[Store DeleteUserSessions] scan sessions")
	}

	var refreshKeys []string
	err = s.kv.Scan(ctx, refreshPrefix, func(key string, value []byte) error {
		var rec RefreshRecord
		if json.Unmarshal(value, &rec) == nil && rec.UserID == userID {
			refreshKeys = append(refreshKeys, key)
		}
		return nil
	})
	if err != nil {
		return 0, autherrors.Wrapf(err, "[Store DeleteUserSessions] scan refresh records")
	}

	removed, err := s.kv.Delete(ctx, sessionKeys...)
	if err != nil {
		return 0, autherrors.Wrapf(err, "[Store DeleteUserSessions] delete sessions")
	}
	if _, err := s.kv.Delete(ctx, refreshKeys...); err != nil {
		return int(removed), autherrors.Wrapf(err, "[Store DeleteUserSessions] delete refresh records")
	}
	return int(removed), nil
}

func (s *Store) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return autherrors.Wrapf(err, "[Store] encode %s", key)
	}
	return s.kv.Set(ctx, key, raw, ttl)
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return autherrors.Newf(autherrors.ErrNotFound, "[Store] corrupt record %s: %v", key, err)
	}
	return nil
}
