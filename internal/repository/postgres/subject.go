package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/stardylog/backend/internal/apperror"
	"github.com/stardylog/backend/internal/model"
)

func (db *DB) CreateSubject(ctx context.Context, subject *model.Subject) error {
	subject.ID = xid.New().String()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO subjects (id, user_uid, name, color, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		subject.ID, subject.UserUID, subject.Name, subject.Color, subject.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", "subject name already in use")
		}
		return fmt.Errorf("postgres: creating subject: %w", err)
	}
	return nil
}

func (db *DB) ListSubjects(ctx context.Context, userUID string) ([]model.Subject, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_uid, name, color, created_at
		 FROM subjects
		 WHERE user_uid = $1 AND NOT deleted
		 ORDER BY created_at, id`,
		userUID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]model.Subject, 0)
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.UserUID, &s.Name, &s.Color, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning subject row: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating subjects: %w", err)
	}
	return subjects, nil
}

func (db *DB) GetSubject(ctx context.Context, userUID, id string) (*model.Subject, error) {
	var s model.Subject
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_uid, name, color, created_at
		 FROM subjects
		 WHERE id = $1 AND user_uid = $2 AND NOT deleted`,
		id, userUID,
	).Scan(&s.ID, &s.UserUID, &s.Name, &s.Color, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("subject", id)
		}
		return nil, fmt.Errorf("postgres: getting subject %s: %w", id, err)
	}
	return &s, nil
}

func (db *DB) UpdateSubject(ctx context.Context, subject *model.Subject) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE subjects SET name = $1, color = $2
		 WHERE id = $3 AND user_uid = $4 AND NOT deleted`,
		subject.Name, subject.Color, subject.ID, subject.UserUID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("name", "subject name already in use")
		}
		return fmt.Errorf("postgres: updating subject %s: %w", subject.ID, err)
	}
	return requireOneRow(res, apperror.NotFound("subject", subject.ID))
}

func (db *DB) SoftDeleteSubject(ctx context.Context, userUID, id string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE subjects SET deleted = TRUE, deleted_at = $1
		 WHERE id = $2 AND user_uid = $3 AND NOT deleted`,
		at, id, userUID,
	)
	if err != nil {
		return fmt.Errorf("postgres: deleting subject %s: %w", id, err)
	}
	return requireOneRow(res, apperror.NotFound("subject", id))
}
