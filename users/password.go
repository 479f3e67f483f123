package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher runs bcrypt on a bounded pool so a burst of logins cannot occupy
// every core. Callers wait for a slot and give up when their context ends.
type Hasher struct {
	cost  int
	slots *semaphore.Weighted
}

// NewHasher creates a hasher with the given bcrypt cost and number of concurrent workers.
func NewHasher(cost, workers int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if workers < 1 {
		workers = 1
	}
	return &Hasher{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(workers)),
	}
}

// Hash returns a freshly salted bcrypt hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("[Hasher Hash] waiting for worker: %w", err)
	}
	defer h.slots.Release(1)

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("[Hasher Hash] bcrypt: %w", err)
	}
	return string(bytes), nil
}

// Compare reports whether password matches hash. A mismatch is (false, nil);
// an error means the comparison could not run.
func (h *Hasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("[Hasher Compare] waiting for worker: %w", err)
	}
	defer h.slots.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("[Hasher Compare] bcrypt: %w", err)
	}
}
