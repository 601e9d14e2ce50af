package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stardylog/backend/internal/apperror"
	"github.com/stardylog/backend/internal/model"
	"github.com/stardylog/backend/internal/repository"
)

// StudyLogInput is one interval as reported by the client timer.
type StudyLogInput struct {
	SubjectName     string
	SessionID       string
	IntervalType    string
	DurationSeconds int
	StartTime       time.Time
	EndTime         time.Time
}

type StudyLogService struct {
	repo   repository.StudyLogRepository
	logger *slog.Logger
}

func NewStudyLogService(repo repository.StudyLogRepository, logger *slog.Logger) *StudyLogService {
	return &StudyLogService{repo: repo, logger: logger}
}

// Record validates and stores one interval for uid.
func (s *StudyLogService) Record(ctx context.Context, uid string, in StudyLogInput) (*model.StudyLog, error) {
	in.SubjectName = strings.TrimSpace(in.SubjectName)
	in.SessionID = strings.TrimSpace(in.SessionID)
	if err := validateStudyLog(in); err != nil {
		return nil, err
	}

	log := &model.StudyLog{
		UserUID:         uid,
		SubjectName:     in.SubjectName,
		SessionID:       in.SessionID,
		IntervalType:    in.IntervalType,
		DurationSeconds: in.DurationSeconds,
		StartTime:       in.StartTime.UTC(),
		EndTime:         in.EndTime.UTC(),
	}
	if err := s.repo.CreateStudyLog(ctx, log); err != nil {
		s.logger.Error("failed to record study log",
			slog.String("uid", uid),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recording study log: %w", err)
	}

	s.logger.Debug("study log recorded",
		slog.String("uid", uid),
		slog.String("type", log.IntervalType),
		slog.Int("seconds", log.DurationSeconds),
	)
	return log, nil
}

// List returns uid's logs, most recent first.
func (s *StudyLogService) List(ctx context.Context, uid string) ([]model.StudyLog, error) {
	logs, err := s.repo.ListStudyLogs(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("listing study logs: %w", err)
	}
	return logs, nil
}

func validateStudyLog(in StudyLogInput) error {
	switch {
	case in.SubjectName == "":
		return apperror.ValidationFailed("subjectName", "subject name is required")
	case utf8.RuneCountInString(in.SubjectName) > MaxSubjectNameLength:
		return apperror.ValidationFailed("subjectName",
			fmt.Sprintf("subject name must be %d characters or less", MaxSubjectNameLength))
	case in.SessionID == "":
		return apperror.ValidationFailed("sessionId", "session ID is required")
	case in.IntervalType != model.IntervalStudy && in.IntervalType != model.IntervalBreak:
		return apperror.ValidationFailed("intervalType", `interval type must be "study" or "break"`)
	case in.DurationSeconds < 0:
		return apperror.ValidationFailed("durationSeconds", "duration must not be negative")
	case in.StartTime.IsZero() || in.EndTime.IsZero():
		return apperror.ValidationFailed("startTime", "start and end time are required")
	case in.EndTime.Before(in.StartTime):
		return apperror.ValidationFailed("endTime", "end time must not be before start time")
	}
	return nil
}
