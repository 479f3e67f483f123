package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-tenant-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestParse_Defaults(t *testing.T) {
	setRequiredEnv(t)

	c, err := config.Parse()
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, time.Hour, c.GetAccessTokenExpiry())
	require.Equal(t, 7*24*time.Hour, c.GetRefreshTokenExpiry())
	require.Equal(t, time.Hour, c.GetPasswordResetExpiry())
	require.Equal(t, 12, c.GetBcryptCost())
	require.Positive(t, c.GetHashWorkers())
	require.Equal(t, config.DriverPostgres, c.GetDatabaseDriver())
	require.Equal(t, "localhost:6379", c.GetRedisAddr())
	require.Empty(t, c.GetAllowedOrigins())
}

func TestParse_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("HASH_WORKERS", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	c, err := config.Parse()
	require.NoError(t, err)

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, 15*time.Minute, c.GetAccessTokenExpiry())
	require.Equal(t, config.DriverSQLite, c.GetDatabaseDriver())
	require.Equal(t, 3, c.GetHashWorkers())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://admin.example.com"))
}

func TestParse_Validation(t *testing.T) {
	t.Run("missing secrets", func(t *testing.T) {
		t.Setenv("JWT_ACCESS_SECRET", "")
		t.Setenv("JWT_REFRESH_SECRET", "")
		_, err := config.Parse()
		require.Error(t, err)
		require.Contains(t, err.Error(), "JWT_ACCESS_SECRET")
	})

	t.Run("shared secret", func(t *testing.T) {
		t.Setenv("JWT_ACCESS_SECRET", "same")
		t.Setenv("JWT_REFRESH_SECRET", "same")
		_, err := config.Parse()
		require.Error(t, err)
		require.Contains(t, err.Error(), "must differ")
	})

	t.Run("weak bcrypt cost", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("BCRYPT_COST", "8")
		_, err := config.Parse()
		require.Error(t, err)
		require.Contains(t, err.Error(), "BCRYPT_COST")
	})

	t.Run("unknown driver", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DATABASE_DRIVER", "oracle")
		_, err := config.Parse()
		require.Error(t, err)
		require.Contains(t, err.Error(), "oracle")
	})
}
