package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-tenant-auth/guards"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyPayload stores the verified access token payload
const ContextKeyPayload ContextKey = "payload"

// PayloadFromContext returns the payload stored by RequireAuth, or nil.
func PayloadFromContext(ctx context.Context) *token.Payload {
	p, _ := ctx.Value(ContextKeyPayload).(*token.Payload)
	return p
}

// RequireAuth verifies the Bearer access token, then runs checks in order.
// The payload is available to the handler through PayloadFromContext.
func (s *Server) RequireAuth(checks ...guards.Guard) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}

			payload, err := s.tokens.VerifyAccessToken(r.Context(), raw)
			if err != nil {
				s.writeError(w, r, err)
				return
			}

			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("userId", payload.UserID).Str("tenantId", payload.TenantID())
			})

			if err := guards.Check(payload, checks...); err != nil {
				s.writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPayload, payload)
			next(w, r.WithContext(ctx))
		}
	}
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", autherrors.Newf(autherrors.ErrInvalidToken, "missing Authorization header")
	}

	scheme, raw, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", autherrors.Newf(autherrors.ErrInvalidToken, "invalid Authorization header format")
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", autherrors.Newf(autherrors.ErrInvalidToken, "empty token")
	}
	return raw, nil
}
