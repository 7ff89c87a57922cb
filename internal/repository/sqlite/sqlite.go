// Package sqlite implements the repository interfaces on an embedded SQLite
// database.
//
// The driver is modernc.org/sqlite, a pure Go translation of SQLite, so the
// binary cross-compiles without CGo. Schema changes are goose migrations
// embedded in the binary; New brings the database up to date on every start.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DB wraps the sql.DB pool. The Users and RefreshTokens accessors expose the
// per-table stores implementing the repository interfaces; both share the one
// underlying pool.
type DB struct {
	conn *sql.DB
}

// Users returns the user store backed by this database.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// RefreshTokens returns the refresh-token store backed by this database.
func (db *DB) RefreshTokens() *RefreshTokenDB {
	return &RefreshTokenDB{conn: db.conn}
}

// New opens (or creates) the database at dbPath and runs pending migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection for the whole pool: SQLite allows a single writer at a
	// time anyway, and ":memory:" databases exist per connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed during a write; busy_timeout makes concurrent
	// writers queue instead of failing with SQLITE_BUSY. Foreign keys are off
	// by default in SQLite and we rely on ON DELETE CASCADE.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db.conn, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
