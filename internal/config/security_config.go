package config

import (
	"runtime"
	"time"
)

// MinBcryptCost is the lowest work factor accepted for password hashing.
const MinBcryptCost = 10

type SecurityConfig interface {
	GetBcryptCost() int
	GetHashWorkers() int
	GetPasswordResetExpiry() time.Duration
	GetInvitationExpiry() time.Duration
}

type Security struct {
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"12"`
	HashWorkers      int           `env:"HASH_WORKERS"`
	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	InvitationTTL    time.Duration `env:"INVITATION_TTL" envDefault:"168h"`
}

var _ SecurityConfig = Security{}

func (s Security) GetBcryptCost() int { return s.BcryptCost }

// GetHashWorkers defaults to GOMAXPROCS so hashing never takes every core
// away from request handling on its own.
func (s Security) GetHashWorkers() int {
	if s.HashWorkers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return s.HashWorkers
}

func (s Security) GetPasswordResetExpiry() time.Duration { return s.PasswordResetTTL }
func (s Security) GetInvitationExpiry() time.Duration { return s.InvitationTTL }
