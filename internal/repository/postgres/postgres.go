// Package postgres implements the repository interfaces on PostgreSQL.
//
// It is selected when DATABASE_URL is set and is the backend for multi-instance
// deployments, where several API processes race on the same users table.
// The schema is managed by golang-migrate (see migrate.go); the SQL lives in
// migrations/ and is embedded into the binary.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/stardylog/backend/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// uniqueViolation is the SQLSTATE PostgreSQL reports for a duplicate key.
const uniqueViolation = pq.ErrorCode("23505")

type DB struct {
	conn *sql.DB
}

// Open connects to databaseURL, verifies the connection and applies migrations.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}

	// sql.Open does not dial; Ping does.
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	if err := RunMigrations(databaseURL); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// requireOneRow turns "the WHERE clause matched nothing" into ErrNotFound.
func requireOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
