package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stardylog/backend/internal/apperror"
	"github.com/stardylog/backend/internal/model"
)

func validInput() StudyLogInput {
	return StudyLogInput{
		SubjectName:     "Math",
		SessionID:       "session-1",
		IntervalType:    model.IntervalStudy,
		DurationSeconds: 1500,
		StartTime:       t0,
		EndTime:         t0.Add(25 * time.Minute),
	}
}

func TestRecordStudyLog(t *testing.T) {
	repo := &fakeStudyLogRepo{}
	svc := NewStudyLogService(repo, testLogger)

	l, err := svc.Record(context.Background(), "uid-1", validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "uid-1", l.UserUID)
	assert.Equal(t, 1500, l.DurationSeconds)
	require.Len(t, repo.logs, 1)
}

func TestRecordStudyLog_ZeroLengthIntervalAllowed(t *testing.T) {
	svc := NewStudyLogService(&fakeStudyLogRepo{}, testLogger)
	in := validInput()
	in.EndTime = in.StartTime
	in.DurationSeconds = 0

	_, err := svc.Record(context.Background(), "uid-1", in)
	assert.NoError(t, err)
}

func TestRecordStudyLog_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *StudyLogInput)
		field  string
	}{
		{"missing subject", func(in *StudyLogInput) { in.SubjectName = " " }, "subjectName"},
		{"missing session", func(in *StudyLogInput) { in.SessionID = "" }, "sessionId"},
		{"bad interval type", func(in *StudyLogInput) { in.IntervalType = "nap" }, "intervalType"},
		{"negative duration", func(in *StudyLogInput) { in.DurationSeconds = -1 }, "durationSeconds"},
		{"missing start", func(in *StudyLogInput) { in.StartTime = time.Time{} }, "startTime"},
		{"end before start", func(in *StudyLogInput) { in.EndTime = in.StartTime.Add(-time.Second) }, "endTime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeStudyLogRepo{}
			svc := NewStudyLogService(repo, testLogger)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Record(context.Background(), "uid-1", in)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
			assert.Empty(t, repo.logs)
		})
	}
}

func TestListStudyLogs(t *testing.T) {
	repo := &fakeStudyLogRepo{}
	svc := NewStudyLogService(repo, testLogger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		in := validInput()
		in.StartTime = t0.Add(time.Duration(i) * time.Hour)
		in.EndTime = in.StartTime.Add(time.Minute)
		_, err := svc.Record(ctx, "uid-1", in)
		require.NoError(t, err)
	}
	_, err := svc.Record(ctx, "uid-2", validInput())
	require.NoError(t, err)

	logs, err := svc.List(ctx, "uid-1")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.True(t, logs[0].EndTime.After(logs[1].EndTime))
}

func TestRecordStudyLog_RepoError(t *testing.T) {
	svc := NewStudyLogService(&fakeStudyLogRepo{err: errors.New("db down")}, testLogger)

	_, err := svc.Record(context.Background(), "uid-1", validInput())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrValidation)
}
