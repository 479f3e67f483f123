package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-tenant-auth/auth"
	"github.com/jrsteele09/go-tenant-auth/credentials/sqlstore"
	"github.com/jrsteele09/go-tenant-auth/identity/google"
	"github.com/jrsteele09/go-tenant-auth/internal/config"
	"github.com/jrsteele09/go-tenant-auth/internal/logging"
	"github.com/jrsteele09/go-tenant-auth/membership"
	"github.com/jrsteele09/go-tenant-auth/notify"
	"github.com/jrsteele09/go-tenant-auth/server"
	"github.com/jrsteele09/go-tenant-auth/sessions"
	"github.com/jrsteele09/go-tenant-auth/token"
	"github.com/jrsteele09/go-tenant-auth/users"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level: c.GetLogLevel(),
		Dev:   c.GetEnv() == "DEV",
		File:  c.GetLogFile(),
	})
	if err != nil {
		return err
	}
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, closeStores, err := build(ctx, c, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(httpServer, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer)
	})
	return g.Wait()
}

// build connects the stores and assembles the services behind the router.
func build(ctx context.Context, c config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, c.GetStoreTimeout())
	defer cancel()

	store, err := sqlstore.Open(connectCtx, c.GetDatabaseDriver(), c.GetDatabaseURL(), c.GetDatabaseMaxConns())
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureSchema(connectCtx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
		DB:       c.GetRedisDB(),
	})
	kv := sessions.NewRedisKV(rdb)
	if err := kv.Ping(connectCtx); err != nil {
		_ = rdb.Close()
		_ = store.Close()
		return nil, nil, err
	}
	closeStores := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing redis")
		}
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing database")
		}
	}

	tokens := token.New(kv,
		token.NewHMACSigner(c.GetAccessTokenSecret()),
		token.NewHMACSigner(c.GetRefreshTokenSecret()),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
	)
	hasher := users.NewHasher(c.GetBcryptCost(), c.GetHashWorkers())
	notifier := notify.NewLogNotifier(logger)

	authService, err := auth.NewService(store, tokens, hasher, notifier, auth.WithResetTTL(c.GetPasswordResetExpiry()))
	if err != nil {
		closeStores()
		return nil, nil, err
	}
	members, err := membership.NewService(store, hasher, notifier, membership.WithInvitationTTL(c.GetInvitationExpiry()))
	if err != nil {
		closeStores()
		return nil, nil, err
	}

	services := server.Services{Auth: authService, Members: members, Tokens: tokens}
	if clientID := c.GetGoogleClientID(); clientID != "" {
		verifier, err := google.NewVerifier(ctx, clientID, c.GetGoogleClientSecret(), c.GetGoogleRedirectURL())
		if err != nil {
			closeStores()
			return nil, nil, err
		}
		services.Google = verifier
	} else {
		logger.Info().Msg("GOOGLE_CLIENT_ID not set, google sign-in disabled")
	}

	s, err := server.New(c, logger, services)
	if err != nil {
		closeStores()
		return nil, nil, err
	}
	return s, closeStores, nil
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
