// Package sessions holds the ephemeral session and refresh-token records.
// The key/value store is the only source of truth for whether a session is
// alive; expiry is enforced by the store's own TTL.
package sessions

import (
	"context"
	"time"
)

// KV is the key/value contract the session store depends on.
//
// Get and Take return autherrors.ErrNotFound for a missing or expired key and
// autherrors.ErrStoreUnavailable when the backend cannot be reached.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the keys and reports how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Take atomically reads and deletes key. Of several concurrent callers for
	// the same key at most one receives the value.
	Take(ctx context.Context, key string) ([]byte, error)
	// Scan calls fn for every live key starting with prefix. Keys written or
	// removed during the scan may or may not be visited.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	Ping(ctx context.Context) error
}
