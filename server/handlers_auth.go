package server

import (
	"net/http"

	"github.com/jrsteele09/go-tenant-auth/auth"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/users"
	"github.com/rs/zerolog/hlog"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenantId,omitempty"`
}

// googleRequest carries either an ID token from the client side sign-in or an
// authorization code from the redirect flow.
type googleRequest struct {
	IDToken  string `json:"idToken,omitempty"`
	Code     string `json:"code,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	TenantID     string `json:"tenantId,omitempty"`
}

type switchTenantRequest struct {
	TenantID string `json:"tenantId"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type acceptInvitationRequest struct {
	Token    string `json:"token"`
	Password string `json:"password,omitempty"`
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterInput
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := s.auth.Register(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := s.auth.Login(r.Context(), req.Email, req.Password, req.TenantID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) GoogleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.google == nil {
			s.writeError(w, r, autherrors.Newf(autherrors.ErrNotFound, "google sign-in is not configured"))
			return
		}
		var req googleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		var (
			profile users.OAuthProfile
			err     error
		)
		if req.Code != "" {
			profile, err = s.google.Exchange(r.Context(), req.Code)
		} else {
			profile, err = s.google.Verify(r.Context(), req.IDToken)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		res, err := s.auth.GoogleAuth(r.Context(), profile, req.TenantID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GoogleURLHandler returns the consent page URL for the redirect flow. The
// caller generates and later checks the state value.
func (s *Server) GoogleURLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.google == nil {
			s.writeError(w, r, autherrors.Newf(autherrors.ErrNotFound, "google sign-in is not configured"))
			return
		}
		state := r.URL.Query().Get("state")
		if state == "" {
			s.writeError(w, r, autherrors.Newf(autherrors.ErrBadRequest, "state is required"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": s.google.AuthCodeURL(state)})
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.RefreshToken == "" {
			s.writeError(w, r, autherrors.Newf(autherrors.ErrBadRequest, "refreshToken is required"))
			return
		}
		res, err := s.auth.RefreshToken(r.Context(), req.RefreshToken, req.TenantID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PayloadFromContext(r.Context())
		if err := s.auth.Logout(r.Context(), p.UserID, p.SessionID); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PayloadFromContext(r.Context())
		if err := s.auth.LogoutAll(r.Context(), p.UserID); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.auth.Me(r.Context(), PayloadFromContext(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, id)
	}
}

func (s *Server) SwitchTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req switchTenantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		p := PayloadFromContext(r.Context())
		res, err := s.auth.SwitchTenant(r.Context(), p.UserID, p.Email, req.TenantID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		p := PayloadFromContext(r.Context())
		if err := s.auth.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ForgotPasswordHandler answers 204 whether or not the account exists.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.auth.ForgotPassword(r.Context(), req.Email); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) AcceptInvitationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req acceptInvitationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		member, err := s.members.AcceptInvitation(r.Context(), req.Token, req.Password)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, member)
	}
}

func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.ProfileUpdate
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		user, err := s.auth.UpdateProfile(r.Context(), PayloadFromContext(r.Context()).UserID, req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// HealthHandler reports whether the credential and session stores answer.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Ping(r.Context()); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
