package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stardylog/backend/internal/apperror"
	"github.com/stardylog/backend/internal/model"
	"github.com/stardylog/backend/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `uid, email, display_name, provider, created_at, last_login_at`

// FindBySubjectID looks a user up by their identity-provider UID.
// Returns apperror.ErrNotFound if no user exists with that UID.
func (db *DB) FindBySubjectID(ctx context.Context, uid string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE uid = ?`, uid)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", uid)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", uid, err)
	}
	return u, nil
}

// InsertUser creates a user row unless one with the same UID already exists.
//
// INSERT ... ON CONFLICT DO NOTHING:
// When a concurrent request inserted the same UID first, the PRIMARY KEY turns
// our INSERT into a no-op instead of an error. Zero affected rows therefore
// means "someone else won the race", which is reported as
// InsertAlreadyExists. The statement is atomic, so there is no window between
// "check" and "insert" for another writer to slip into.
func (db *DB) InsertUser(ctx context.Context, user *model.User) (repository.InsertOutcome, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(uid) DO NOTHING`,
		user.UID,
		nullString(user.Email),
		nullString(user.DisplayName),
		nullString(user.Provider),
		user.CreatedAt.UTC(),
		user.LastLoginAt.UTC(),
	)
	if err != nil {
		// A display_name collision is the only other unique index on users.
		if isUniqueViolation(err) {
			return 0, apperror.Conflict("displayName", "display name already in use")
		}
		return 0, fmt.Errorf("sqlite: inserting user %s: %w", user.UID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: inserting user %s: %w", user.UID, err)
	}
	if n == 0 {
		return repository.InsertAlreadyExists, nil
	}
	return repository.InsertCreated, nil
}

// UpdateLogin refreshes the login metadata of an existing user.
// display_name is deliberately absent from the SET list.
//
// COMPARE AND SWAP:
// The WHERE clause only matches while last_login_at still holds the value
// the caller read. Two returning-user logins that race therefore cannot let
// the older timestamp overwrite the newer one; the loser gets
// repository.ErrLoginChanged and re-reads.
func (db *DB) UpdateLogin(ctx context.Context, user *model.User, prevLastLogin time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET email = ?, provider = ?, last_login_at = ?
		 WHERE uid = ? AND last_login_at = ?`,
		nullString(user.Email),
		nullString(user.Provider),
		user.LastLoginAt.UTC(),
		user.UID,
		prevLastLogin.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating login for user %s: %w", user.UID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating login for user %s: %w", user.UID, err)
	}
	if n == 0 {
		return db.loginMiss(ctx, user.UID)
	}
	return nil
}

// loginMiss explains why UpdateLogin matched no row.
func (db *DB) loginMiss(ctx context.Context, uid string) error {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM users WHERE uid = ?`, uid).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperror.NotFound("user", uid)
	case err != nil:
		return fmt.Errorf("sqlite: checking user %s: %w", uid, err)
	}
	return repository.ErrLoginChanged
}

// SetDisplayName stores a new nickname and returns the updated user.
// The UNIQUE index decides who gets a contested name.
func (db *DB) SetDisplayName(ctx context.Context, uid, displayName string) (*model.User, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET display_name = ? WHERE uid = ?`, displayName, uid)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("displayName", "display name already in use")
		}
		return nil, fmt.Errorf("sqlite: setting display name for user %s: %w", uid, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: setting display name for user %s: %w", uid, err)
	}
	if n == 0 {
		return nil, apperror.NotFound("user", uid)
	}

	return db.FindBySubjectID(ctx, uid)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u                     model.User
		email, name, provider sql.NullString
	)
	if err := row.Scan(&u.UID, &email, &name, &provider, &u.CreatedAt, &u.LastLoginAt); err != nil {
		return nil, err
	}
	u.Email = stringPtr(email)
	u.DisplayName = stringPtr(name)
	u.Provider = stringPtr(provider)
	return &u, nil
}

// nullString converts an optional Go string into a value SQLite stores as NULL.
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
