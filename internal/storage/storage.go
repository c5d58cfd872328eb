// Package storage opens the local SQLite vault database and keeps its schema
// current. Migrations are numbered, embedded, applied in order inside a
// transaction each, and re-running them is a no-op.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/EiDHindY/vaulture/internal/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// pragmas are applied by the driver to every new connection. Foreign keys
// must be on before any statement runs so cascades hold.
var pragmas = []string{"foreign_keys(1)", "busy_timeout(5000)"}

// FileDSN returns the DSN for a database file at path.
func FileDSN(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// MemoryDSN returns the DSN of a named in-memory database shared by all
// connections of one *sql.DB. Used by tests.
func MemoryDSN(name string) string {
	q := url.Values{}
	q.Set("mode", "memory")
	q.Set("cache", "shared")
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + url.PathEscape(name) + "?" + q.Encode()
}

// Open connects to dsn and applies pending migrations. The pool is limited to
// a single connection: the vault is single-process, and SQLite serializes
// writers anyway.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies every embedded migration newer than the recorded version.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Version returns the highest applied migration number.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
