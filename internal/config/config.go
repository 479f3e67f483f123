package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	SecurityConfig
	StoreConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogFile() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Cors
	Token
	Security
	Store
	OAuth
}

// New loads an optional .env file and parses the process environment.
func New() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("[config New] load .env: %w", err)
		}
	}
	return Parse()
}

// Parse reads configuration from the environment without touching .env.
func Parse() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config Parse] parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c mainConfig) validate() error {
	if c.Token.AccessSecret == "" || c.Token.RefreshSecret == "" {
		return fmt.Errorf("[config] JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.Token.AccessSecret == c.Token.RefreshSecret {
		return fmt.Errorf("[config] access and refresh signing secrets must differ")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return fmt.Errorf("[config] token lifetimes must be positive")
	}
	if c.Security.BcryptCost < MinBcryptCost {
		return fmt.Errorf("[config] BCRYPT_COST must be at least %d", MinBcryptCost)
	}
	switch c.Store.DatabaseDriver {
	case DriverPostgres, DriverPgx, DriverSQLite:
	default:
		return fmt.Errorf("[config] unsupported DATABASE_DRIVER %q", c.Store.DatabaseDriver)
	}
	return nil
}

type EnvVars struct {
	Port    string `env:"PORT" envDefault:"8080"`
	AppName string `env:"APP_NAME" envDefault:"Tenant Auth"`
	Mode    string `env:"ENV" envDefault:"DEV"`
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	File    string `env:"LOG_FILE"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if e.Port != "" && e.Port[0] != ':' {
		return ":" + e.Port
	}
	return e.Port
}

func (e EnvVars) GetAppName() string { return e.AppName }
func (e EnvVars) GetEnv() string { return e.Mode }
func (e EnvVars) GetLogLevel() string { return e.Level }
func (e EnvVars) GetLogFile() string { return e.File }

type TokenConfig interface {
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Token struct {
	AccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
}

var _ TokenConfig = Token{}

func (t Token) GetAccessTokenSecret() string { return t.AccessSecret }
func (t Token) GetRefreshTokenSecret() string { return t.RefreshSecret }
func (t Token) GetAccessTokenExpiry() time.Duration { return t.AccessTTL }
func (t Token) GetRefreshTokenExpiry() time.Duration { return t.RefreshTTL }
