// Package sqlstore is the database/sql implementation of credentials.Store.
// It runs against Postgres (lib/pq or pgx) and SQLite (modernc) with the same
// queries; placeholders are written as ? and rebound per driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/jrsteele09/go-tenant-auth/credentials"
	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	driverPostgres = "postgres"
	driverPgx      = "pgx"
	driverSQLite   = "sqlite"

	// maxTxAttempts bounds retries of a serializable transaction that lost a
	// conflict to a concurrent one.
	maxTxAttempts = 3
)

func init() {
	sqlx.BindDriver(driverSQLite, sqlx.QUESTION)
}

var _ credentials.Store = (*Store)(nil)

type Store struct {
	queries
	db *sqlx.DB
}

// Open connects to the database with the named driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string, maxConns int) (*Store, error) {
	switch driver {
	case driverPostgres, driverPgx:
	case driverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
		}
	default:
		return nil, fmt.Errorf("[sqlstore Open] unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("[sqlstore Open] open %s: %w", driver, err)
	}
	if driver == driverSQLite {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY on lock upgrades.
		db.SetMaxOpenConns(1)
	} else if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, autherrors.Unavailable(err, "[sqlstore Open] ping")
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{
		queries: queries{ext: db},
		db:      db,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return autherrors.Unavailable(err, "[Store Ping]")
	}
	return nil
}

// InTx runs fn in a transaction. On Postgres the transaction is serializable
// and is retried when it loses a serialization conflict, so fn must not have
// side effects outside the store.
func (s *Store) InTx(ctx context.Context, fn func(q credentials.Queries) error) error {
	var opts *sql.TxOptions
	if s.db.DriverName() != driverSQLite {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.runTx(ctx, opts, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return autherrors.Unavailable(err, "[Store InTx] retries exhausted")
}

func (s *Store) runTx(ctx context.Context, opts *sql.TxOptions, fn func(q credentials.Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return autherrors.Unavailable(err, "[Store InTx] begin")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(queries{ext: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return err
		}
		return translate(err, "[Store InTx] commit")
	}
	return nil
}

// translate maps driver failures onto the error taxonomy.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return autherrors.Newf(autherrors.ErrNotFound, "%s", op)
	case isUniqueViolation(err):
		return autherrors.Newf(autherrors.ErrConflict, "%s: already exists", op)
	case isForeignKeyViolation(err):
		return autherrors.Newf(autherrors.ErrNotFound, "%s: referenced row missing", op)
	case isSerializationFailure(err):
		return err
	}
	return autherrors.Unavailable(err, op)
}

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	if pgCode(err) == "23505" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if pgCode(err) == "23503" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

func isSerializationFailure(err error) bool {
	return err != nil && pgCode(err) == "40001"
}
