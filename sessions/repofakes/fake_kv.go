package sessionrepofakes

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/sessions"
)

var _ sessions.KV = (*FakeKV)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// FakeKV is an in-memory sessions.KV with TTL support driven by a clock.
type FakeKV struct {
	lock    sync.Mutex
	data    map[string]entry
	nowFunc func() time.Time
	down    bool
}

type FakeKVOption func(*FakeKV)

// WithNowFunc sets the clock used to expire keys.
func WithNowFunc(now func() time.Time) FakeKVOption {
	return func(f *FakeKV) {
		f.nowFunc = now
	}
}

func NewFakeKV(options ...FakeKVOption) *FakeKV {
	f := &FakeKV{
		data:    make(map[string]entry),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// SetUnavailable makes every operation fail as if the backend were unreachable.
func (f *FakeKV) SetUnavailable(down bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.down = down
}

// Keys returns the live keys with prefix, sorted.
func (f *FakeKV) Keys(prefix string) []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) && f.liveLocked(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func (f *FakeKV) Get(_ context.Context, key string) ([]byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.checkLocked(); err != nil {
		return nil, err
	}
	if !f.liveLocked(key) {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "key %s", key)
	}
	return slices.Clone(f.data[key].value), nil
}

func (f *FakeKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.checkLocked(); err != nil {
		return err
	}
	e := entry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = f.nowFunc().Add(ttl)
	}
	f.data[key] = e
	return nil
}

func (f *FakeKV) Delete(_ context.Context, keys ...string) (int64, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.checkLocked(); err != nil {
		return 0, err
	}
	var n int64
	for _, k := range keys {
		if f.liveLocked(k) {
			n++
		}
		delete(f.data, k)
	}
	return n, nil
}

func (f *FakeKV) Take(_ context.Context, key string) ([]byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.checkLocked(); err != nil {
		return nil, err
	}
	if !f.liveLocked(key) {
		return nil, autherrors.Newf(autherrors.ErrNotFound, "key %s", key)
	}
	v := f.data[key].value
	delete(f.data, key)
	return v, nil
}

func (f *FakeKV) Scan(_ context.Context, prefix string, fn func(key string, value []byte) error) error {
	f.lock.Lock()
	if err := f.checkLocked(); err != nil {
		f.lock.Unlock()
		return err
	}
	type kv struct {
		key   string
		value []byte
	}
	var snapshot []kv
	for k, e := range f.data {
		if strings.HasPrefix(k, prefix) && f.liveLocked(k) {
			snapshot = append(snapshot, kv{k, slices.Clone(e.value)})
		}
	}
	f.lock.Unlock()

	for _, item := range snapshot {
		if err := fn(item.key, item.value); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeKV) Ping(context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.checkLocked()
}

func (f *FakeKV) checkLocked() error {
	if f.down {
		return autherrors.Newf(autherrors.ErrStoreUnavailable, "fake kv down")
	}
	return nil
}

func (f *FakeKV) liveLocked(key string) bool {
	e, ok := f.data[key]
	if !ok {
		return false
	}
	if !e.expiresAt.IsZero() && !f.nowFunc().Before(e.expiresAt) {
		delete(f.data, key)
		return false
	}
	return true
}
