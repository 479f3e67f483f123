package users

import "time"

// Supported external identity providers.
const (
	ProviderGoogle = "google"
)

// OAuthLink ties a provider account to a local user. (Provider, ProviderAccountID) is unique.
type OAuthLink struct {
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"providerAccountId"`
	UserID            string    `json:"userId"`
	CreatedAt         time.Time `json:"createdAt"`
}

// OAuthProfile is an identity already verified by a provider. The core never
// sees the raw provider token.
type OAuthProfile struct {
	Provider      string
	Subject       string // provider account id
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	AvatarURL     string
}
