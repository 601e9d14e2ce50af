package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stardylog/backend/internal/apperror"
)

func newTestSubjectService() (*SubjectService, *fakeSubjectRepo) {
	repo := newFakeSubjectRepo()
	svc := NewSubjectService(repo, testLogger)
	svc.now = fixedClock(t0, time.Second)
	return svc, repo
}

func TestSubjectCreate(t *testing.T) {
	svc, _ := newTestSubjectService()

	s, err := svc.Create(context.Background(), "uid-1", "  Math  ", "FF0000")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Math", s.Name)
	assert.Equal(t, "FF0000", s.Color)
	assert.Equal(t, "uid-1", s.UserUID)
	assert.True(t, s.CreatedAt.Equal(t0))
}

func TestSubjectCreate_Validation(t *testing.T) {
	tests := []struct {
		name, subject, color, field string
	}{
		{"empty name", "", "", "name"},
		{"blank name", "   ", "", "name"},
		{"long name", strings.Repeat("x", MaxSubjectNameLength+1), "", "name"},
		{"long color", "Math", "#1234567890", "color"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestSubjectService()

			_, err := svc.Create(context.Background(), "uid-1", tt.subject, tt.color)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestSubjectCreate_MultibyteNameWithinLimit(t *testing.T) {
	svc, _ := newTestSubjectService()

	_, err := svc.Create(context.Background(), "uid-1", strings.Repeat("수", MaxSubjectNameLength), "")
	assert.NoError(t, err)
}

func TestSubjectCreate_Duplicate(t *testing.T) {
	svc, _ := newTestSubjectService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "uid-1", "Math", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "uid-1", "Math", "")
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestSubjectList_OnlyOwnLiveSubjects(t *testing.T) {
	svc, _ := newTestSubjectService()
	ctx := context.Background()

	math, err := svc.Create(ctx, "uid-1", "Math", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "uid-1", "English", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "uid-2", "Art", "")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "uid-1", math.ID))

	list, err := svc.List(ctx, "uid-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "English", list[0].Name)
}

func TestSubjectList_RepoError(t *testing.T) {
	svc, repo := newTestSubjectService()
	repo.err = errors.New("db down")

	_, err := svc.List(context.Background(), "uid-1")
	assert.Error(t, err)
}

func TestSubjectUpdate(t *testing.T) {
	svc, _ := newTestSubjectService()
	ctx := context.Background()
	s, err := svc.Create(ctx, "uid-1", "Math", "FF0000")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "uid-1", s.ID, "Math", "00FF00")
	require.NoError(t, err)
	assert.Equal(t, "Math", updated.Name)
	assert.Equal(t, "00FF00", updated.Color)

	updated, err = svc.Update(ctx, "uid-1", s.ID, " Calculus ", "")
	require.NoError(t, err)
	assert.Equal(t, "Calculus", updated.Name)
	assert.Empty(t, updated.Color, "an empty color clears it")
}

func TestSubjectUpdate_KeepsOwnName(t *testing.T) {
	svc, _ := newTestSubjectService()
	ctx := context.Background()
	s, err := svc.Create(ctx, "uid-1", "Math", "FF0000")
	require.NoError(t, err)

	// Re-sending the subject's own name is not a conflict.
	_, err = svc.Update(ctx, "uid-1", s.ID, "Math", "0000FF")
	assert.NoError(t, err)
}

func TestSubjectUpdate_Errors(t *testing.T) {
	svc, _ := newTestSubjectService()
	ctx := context.Background()
	s, err := svc.Create(ctx, "uid-1", "Math", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "uid-1", "English", "")
	require.NoError(t, err)

	_, err = svc.Update(ctx, "uid-1", "", "x", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Update(ctx, "uid-1", s.ID, "  ", "FF0000")
	assert.ErrorIs(t, err, apperror.ErrValidation, "name is required")

	_, err = svc.Update(ctx, "uid-2", s.ID, "Mine now", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "other users' subjects look missing")

	_, err = svc.Update(ctx, "uid-1", s.ID, "English", "")
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = svc.Update(ctx, "uid-1", s.ID, strings.Repeat("x", MaxSubjectNameLength+1), "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestSubjectDelete(t *testing.T) {
	svc, repo := newTestSubjectService()
	ctx := context.Background()
	s, err := svc.Create(ctx, "uid-1", "Math", "")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "uid-2", s.ID), apperror.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "uid-1", s.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "uid-1", s.ID), apperror.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "uid-1", " "), apperror.ErrValidation)

	stored := repo.subjects[s.ID]
	assert.True(t, stored.Deleted)
	require.NotNil(t, stored.DeletedAt)

	// The name is free again.
	_, err = svc.Create(ctx, "uid-1", "Math", "")
	assert.NoError(t, err)
}
