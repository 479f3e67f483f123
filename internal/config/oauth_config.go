package config

type OAuthConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleRedirectURL() string
}

type OAuth struct {
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetGoogleClientID() string { return o.GoogleClientID }
func (o OAuth) GetGoogleClientSecret() string { return o.GoogleClientSecret }
func (o OAuth) GetGoogleRedirectURL() string { return o.GoogleRedirectURL }
