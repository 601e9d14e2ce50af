package postgres

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

const userColumns = `uid, email, display_name, provider, created_at, last_login_at`

func (db *DB) FindBySubjectID(ctx context.Context, uid string) (*model.User, error) {
	var (
		u                     model.User
		email, name, provider sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE uid = $1`, uid,
	).Scan(&u.UID, &email, &name, &provider, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", uid)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", uid, err)
	}
	u.Email = stringPtr(email)
	u.DisplayName = stringPtr(name)
	u.Provider = stringPtr(provider)
	return &u, nil
}

// InsertUser relies on ON CONFLICT (uid) DO NOTHING: under READ COMMITTED the
// second of two concurrent inserts waits for the first to commit and then
// affects zero rows instead of failing.
func (db *DB) InsertUser(ctx context.Context, user *model.User) (repository.InsertOutcome, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (uid) DO NOTHING`,
		user.UID,
		nullString(user.Email),
		nullString(user.DisplayName),
		nullString(user.Provider),
		user.CreatedAt,
		user.LastLoginAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperror.Conflict("displayName", "display name already in use")
		}
		return 0, fmt.Errorf("postgres: inserting user %s: %w", user.UID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: inserting user %s: %w", user.UID, err)
	}
	if n == 0 {
		return repository.InsertAlreadyExists, nil
	}
	return repository.InsertCreated, nil
}

// UpdateLogin only matches while last_login_at equals prevLastLogin.
func (db *DB) UpdateLogin(ctx context.Context, user *model.User, prevLastLogin time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET email = $1, provider = $2, last_login_at = $3
		 WHERE uid = $4 AND last_login_at = $5`,
		nullString(user.Email),
		nullString(user.Provider),
		user.LastLoginAt,
		user.UID,
		prevLastLogin,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating login for user %s: %w", user.UID, err)
	}
	if err := requireOneRow(res, repository.ErrLoginChanged); !errors.Is(err, repository.ErrLoginChanged) {
		return err
	}

	var one int
	err = db.conn.QueryRowContext(ctx, `SELECT 1 FROM users WHERE uid = $1`, user.UID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperror.NotFound("user", user.UID)
	case err != nil:
		return fmt.Errorf("postgres: checking user %s: %w", user.UID, err)
	}
	return repository.ErrLoginChanged
}

func (db *DB) SetDisplayName(ctx context.Context, uid, displayName string) (*model.User, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET display_name = $1 WHERE uid = $2`, displayName, uid)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("displayName", "display name already in use")
		}
		return nil, fmt.Errorf("postgres: setting display name for user %s: %w", uid, err)
	}
	if err := requireOneRow(res, apperror.NotFound("user", uid)); err != nil {
		return nil, err
	}
	return db.FindBySubjectID(ctx, uid)
}
