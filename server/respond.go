package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/rs/zerolog/hlog"
)

const (
	maxBodyBytes = 1 << 20

	codeInternal = "internal_error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	status int
	code   string
}

var errorStatuses = map[error]errorMapping{
	autherrors.ErrInvalidCredentials: {http.StatusUnauthorized, "invalid_credentials"},
	autherrors.ErrInvalidToken:       {http.StatusUnauthorized, "invalid_token"},
	autherrors.ErrSessionExpired:     {http.StatusUnauthorized, "session_expired"},
	autherrors.ErrUnauthorized:       {http.StatusForbidden, "unauthorized"},
	autherrors.ErrForbidden:          {http.StatusForbidden, "forbidden"},
	autherrors.ErrConflict:           {http.StatusConflict, "conflict"},
	autherrors.ErrNotFound:           {http.StatusNotFound, "not_found"},
	autherrors.ErrBadRequest:         {http.StatusBadRequest, "bad_request"},
	autherrors.ErrStoreUnavailable:   {http.StatusServiceUnavailable, "store_unavailable"},
}

// StatusFor maps a service error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	if m, ok := errorStatuses[autherrors.Kind(err)]; ok {
		return m.status, m.code
	}
	return http.StatusInternalServerError, codeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	message := publicMessage(err)
	switch status {
	case http.StatusInternalServerError:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		message = "internal server error"
	case http.StatusServiceUnavailable:
		hlog.FromRequest(r).Warn().Err(err).Msg("store unavailable")
		message = autherrors.ErrStoreUnavailable.Error()
	default:
		hlog.FromRequest(r).Debug().Err(err).Msg("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// publicMessage strips the "[Component Method]" context segments and the
// trailing kind from a service error, leaving the caller facing message.
func publicMessage(err error) string {
	msg := err.Error()
	if kind := autherrors.Kind(err); kind != nil {
		msg = strings.TrimSuffix(msg, ": "+kind.Error())
	}
	parts := strings.Split(msg, ": ")
	kept := parts[:0]
	for _, p := range parts {
		if !strings.HasPrefix(p, "[") {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return msg
	}
	return strings.Join(kept, ": ")
}

// decodeJSON reads a single JSON object into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return autherrors.Newf(autherrors.ErrBadRequest, "invalid request body: %v", err)
	}
	return nil
}
