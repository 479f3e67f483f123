package users

import "time"

// PasswordReset is a single-use reset grant. Only the hash of the emailed
// token is stored and rows are kept after use as an audit trail.
type PasswordReset struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Redeemable reports whether the grant can still be used at now.
func (r *PasswordReset) Redeemable(now time.Time) bool {
	return !r.Used && now.Before(r.ExpiresAt)
}
