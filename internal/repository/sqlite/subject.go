package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/stardylog/backend/internal/apperror"
	"github.com/stardylog/backend/internal/model"
	"github.com/stardylog/backend/internal/repository"
)

var _ repository.SubjectRepository = (*DB)(nil)

// CreateSubject inserts a new subject for subject.UserUID.
// ID and CreatedAt are filled in here.
//
// xid gives 20-character, roughly time-ordered IDs without a round trip to
// the database, so the caller can return the ID straight away.
func (db *DB) CreateSubject(ctx context.Context, subject *model.Subject) error {
	subject.ID = xid.New().String()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO subjects (id, user_uid, name, color, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		subject.ID,
		subject.UserUID,
		subject.Name,
		subject.Color,
		subject.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", "subject name already in use")
		}
		return fmt.Errorf("sqlite: creating subject: %w", err)
	}
	return nil
}

// ListSubjects returns the user's live subjects, oldest first.
func (db *DB) ListSubjects(ctx context.Context, userUID string) ([]model.Subject, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_uid, name, color, created_at
		 FROM subjects
		 WHERE user_uid = ? AND deleted = 0
		 ORDER BY created_at, id`,
		userUID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]model.Subject, 0)
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.UserUID, &s.Name, &s.Color, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning subject row: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating subjects: %w", err)
	}
	return subjects, nil
}

// GetSubject returns a live subject owned by userUID.
// A subject owned by someone else is reported as not found, never forbidden,
// so IDs of other users' data are not confirmed to exist.
func (db *DB) GetSubject(ctx context.Context, userUID, id string) (*model.Subject, error) {
	var s model.Subject
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_uid, name, color, created_at
		 FROM subjects
		 WHERE id = ? AND user_uid = ? AND deleted = 0`,
		id, userUID,
	).Scan(&s.ID, &s.UserUID, &s.Name, &s.Color, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("subject", id)
		}
		return nil, fmt.Errorf("sqlite: getting subject %s: %w", id, err)
	}
	return &s, nil
}

// UpdateSubject renames and recolours a live subject.
func (db *DB) UpdateSubject(ctx context.Context, subject *model.Subject) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE subjects SET name = ?, color = ?
		 WHERE id = ? AND user_uid = ? AND deleted = 0`,
		subject.Name,
		subject.Color,
		subject.ID,
		subject.UserUID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", "subject name already in use")
		}
		return fmt.Errorf("sqlite: updating subject %s: %w", subject.ID, err)
	}
	return requireOneRow(res, "subject", subject.ID)
}

// SoftDeleteSubject flags the subject as deleted. Study logs keep the
// subject's name as plain text, so history survives the deletion.
func (db *DB) SoftDeleteSubject(ctx context.Context, userUID, id string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE subjects SET deleted = 1, deleted_at = ?
		 WHERE id = ? AND user_uid = ? AND deleted = 0`,
		at.UTC(), id, userUID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting subject %s: %w", id, err)
	}
	return requireOneRow(res, "subject", id)
}

// requireOneRow turns "the WHERE clause matched nothing" into ErrNotFound.
func requireOneRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
