// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: the whole store is a single file next to the
// binary, with no database server to run. It is the default backend for
// development and small single-instance deployments. Larger deployments point
// DATABASE_URL at PostgreSQL instead (see the postgres package).
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so no C
// compiler is needed and cross-compilation just works.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/stardylog/backend/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements every repository interface.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/stardylog.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
//
// CONNECTION PRAGMAS:
// PRAGMAs such as foreign_keys and busy_timeout are per connection, and
// database/sql hands out many connections from its pool. Running
// `PRAGMA foreign_keys=ON` once would only configure whichever connection
// happened to execute it. The modernc driver accepts `_pragma` parameters in
// the DSN and applies them to every connection it opens, so we use that.
//
// busy_timeout matters for first-login races: two requests inserting the same
// user at the same moment both need the write lock. With a timeout the loser
// waits and then sees the conflict, instead of failing with SQLITE_BUSY.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new, empty database.
	// Pin the pool to one connection so all queries see the same tables.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}
	if dbPath != ":memory:" {
		// WAL lets readers proceed while a writer holds the lock.
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return "file:" + dbPath + "?" + strings.Join(pragmas, "&")
}

// Ping verifies the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent, so it is safe to
// run on each start.
//
// UNIQUENESS LIVES IN THE SCHEMA:
//   - users.uid is the PRIMARY KEY. Concurrent first logins for the same UID
//     cannot both insert, whatever the application code does.
//   - display_name has a UNIQUE index. SQLite treats NULLs as distinct, so any
//     number of users may still be without a nickname.
//   - subject names are unique per user among live rows only (partial index),
//     so a deleted "Math" does not block creating a new "Math".
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			uid           TEXT PRIMARY KEY,
			email         TEXT,
			display_name  TEXT,
			provider      TEXT,
			created_at    DATETIME NOT NULL,
			last_login_at DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_display_name ON users(display_name);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS subjects (
			id         TEXT PRIMARY KEY,
			user_uid   TEXT NOT NULL REFERENCES users(uid),
			name       TEXT NOT NULL,
			color      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			deleted    INTEGER NOT NULL DEFAULT 0,
			deleted_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_subjects_user_uid ON subjects(user_uid);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_subjects_user_live_name
			ON subjects(user_uid, name) WHERE deleted = 0;
	`)
	if err != nil {
		return fmt.Errorf("creating subjects table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS study_logs (
			id               TEXT PRIMARY KEY,
			user_uid         TEXT NOT NULL REFERENCES users(uid),
			subject_name     TEXT NOT NULL,
			session_id       TEXT NOT NULL,
			interval_type    TEXT NOT NULL,
			duration_seconds INTEGER NOT NULL,
			start_time       DATETIME NOT NULL,
			end_time         DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_study_logs_user_end ON study_logs(user_uid, end_time);
	`)
	if err != nil {
		return fmt.Errorf("creating study_logs table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
