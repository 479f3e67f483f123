package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/jrsteele09/go-tenant-auth/membership"
)

type transferOwnershipRequest struct {
	NewOwnerID string `json:"newOwnerId"`
}

// Every tenant route acts on the tenant the caller's token is scoped to.

func (s *Server) ListMembersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var opts membership.ListOptions
		if v := r.URL.Query().Get("activeOnly"); v != "" {
			activeOnly, err := strconv.ParseBool(v)
			if err != nil {
				s.writeError(w, r, autherrors.Newf(autherrors.ErrBadRequest, "activeOnly must be a boolean"))
				return
			}
			opts.ActiveOnly = activeOnly
		}

		p := PayloadFromContext(r.Context())
		members, err := s.members.ListMembers(r.Context(), p.TenantID(), p.UserID, opts)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": members})
	}
}

func (s *Server) InviteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req membership.InviteInput
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		p := PayloadFromContext(r.Context())
		req.TenantID = p.TenantID()
		req.InviterID = p.UserID

		invitation, err := s.members.Invite(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, invitation)
	}
}

func (s *Server) UpdateMemberHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req membership.MemberUpdate
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		p := PayloadFromContext(r.Context())
		m, err := s.members.UpdateMember(r.Context(), p.TenantID(), p.UserID, chi.URLParam(r, "userId"), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func (s *Server) RemoveMemberHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PayloadFromContext(r.Context())
		if err := s.members.RemoveMember(r.Context(), p.TenantID(), p.UserID, chi.URLParam(r, "userId")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) TransferOwnershipHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferOwnershipRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.NewOwnerID == "" {
			s.writeError(w, r, autherrors.Newf(autherrors.ErrBadRequest, "newOwnerId is required"))
			return
		}
		p := PayloadFromContext(r.Context())
		if err := s.members.TransferOwnership(r.Context(), p.TenantID(), p.UserID, req.NewOwnerID); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) LeaveTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PayloadFromContext(r.Context())
		if err := s.members.LeaveTenant(r.Context(), p.TenantID(), p.UserID); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
