// Package server exposes the auth and membership services over HTTP/JSON.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-tenant-auth/auth"
	"github.com/jrsteele09/go-tenant-auth/identity/google"
	"github.com/jrsteele09/go-tenant-auth/internal/config"
	"github.com/jrsteele09/go-tenant-auth/membership"
	"github.com/jrsteele09/go-tenant-auth/token"
	"github.com/rs/zerolog"
)

// Config is the part of the process configuration the server reads.
type Config interface {
	config.EnvConfig
	config.CorsConfig
}

// Services are the operations the routes dispatch to. Google is optional;
// without it the Google routes answer 404.
type Services struct {
	Auth    *auth.Service
	Members *membership.Service
	Tokens  *token.Manager
	Google  *google.Verifier
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	router  chi.Router
	config  Config
	log     zerolog.Logger
	auth    *auth.Service
	members *membership.Service
	tokens  *token.Manager
	google  *google.Verifier
}

func New(config Config, log zerolog.Logger, services Services) (*Server, error) {
	if services.Auth == nil || services.Members == nil || services.Tokens == nil {
		return nil, errors.New("[Server New] auth, membership and token services are required")
	}

	s := &Server{
		env:     config.GetEnv(),
		router:  chi.NewRouter(),
		config:  config,
		log:     log.With().Str("component", "server").Logger(),
		auth:    services.Auth,
		members: services.Members,
		tokens:  services.Tokens,
		google:  services.Google,
	}

	s.initRoutes()
	if err := s.logRoutes(); err != nil {
		return nil, fmt.Errorf("[Server New] failed to walk routes: %w", err)
	}

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRoutes() error {
	if s.env != "DEV" {
		return nil // Skip logging in non-development environments
	}
	return chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		s.logRoute(method, route)
		return nil
	})
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
