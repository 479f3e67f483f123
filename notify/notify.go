// Package notify delivers password-reset and invitation messages. Delivery is
// fire and forget: a failed send never fails the operation that triggered it.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

type Notifier interface {
	PasswordReset(ctx context.Context, email, token string)
	Invitation(ctx context.Context, email, tenantName, inviterEmail, token string)
}

// LogNotifier writes messages to a logger instead of sending them. It is the
// default for development; the token is only logged at debug level.
type LogNotifier struct {
	log zerolog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) PasswordReset(_ context.Context, email, token string) {
	n.log.Info().Str("email", email).Msg("password reset requested")
	n.log.Debug().Str("email", email).Str("token", token).Msg("password reset token")
}

func (n *LogNotifier) Invitation(_ context.Context, email, tenantName, inviterEmail, token string) {
	n.log.Info().
		Str("email", email).
		Str("tenant", tenantName).
		Str("invitedBy", inviterEmail).
		Msg("invitation issued")
	n.log.Debug().Str("email", email).Str("token", token).Msg("invitation token")
}

// Nop discards every message.
type Nop struct{}

func (Nop) PasswordReset(context.Context, string, string) {}
func (Nop) Invitation(context.Context, string, string, string, string) {}
