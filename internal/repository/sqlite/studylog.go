package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/stardylog/backend/internal/model"
	"github.com/stardylog/backend/internal/repository"
)

var _ repository.StudyLogRepository = (*DB)(nil)

func (db *DB) CreateStudyLog(ctx context.Context, log *model.StudyLog) error {
	log.ID = xid.New().String()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO study_logs
		   (id, user_uid, subject_name, session_id, interval_type, duration_seconds, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.UserUID,
		log.SubjectName,
		log.SessionID,
		log.IntervalType,
		log.DurationSeconds,
		log.StartTime.UTC(),
		log.EndTime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating study log: %w", err)
	}
	return nil
}

// ListStudyLogs returns every log of the user, latest end time first.
func (db *DB) ListStudyLogs(ctx context.Context, userUID string) ([]model.StudyLog, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_uid, subject_name, session_id, interval_type, duration_seconds, start_time, end_time
		 FROM study_logs
		 WHERE user_uid = ?
		 ORDER BY end_time DESC, id DESC`,
		userUID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing study logs: %w", err)
	}
	defer rows.Close()

	logs := make([]model.StudyLog, 0)
	for rows.Next() {
		var l model.StudyLog
		if err := rows.Scan(
			&l.ID, &l.UserUID, &l.SubjectName, &l.SessionID,
			&l.IntervalType, &l.DurationSeconds, &l.StartTime, &l.EndTime,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning study log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating study logs: %w", err)
	}
	return logs, nil
}
