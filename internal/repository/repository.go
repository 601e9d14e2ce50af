// Package repository declares the storage contracts the services depend on.
//
// Services only see these interfaces. The sqlite and postgres sub-packages
// provide the concrete implementations, and tests use in-memory fakes.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/stardylog/backend/internal/model"
)

// ErrLoginChanged is UpdateLogin's answer when the row's last_login_at no
// longer matches what the caller read: a concurrent login got there first.
var ErrLoginChanged = errors.New("repository: last login changed concurrently")

// InsertOutcome tells the caller what an InsertUser call did.
//
// Losing a first-login race is an expected outcome, not an error: the row the
// caller wanted now exists either way. Backends report it as
// InsertAlreadyExists instead of surfacing the uniqueness violation.
type InsertOutcome int

const (
	InsertCreated InsertOutcome = iota + 1
	InsertAlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertCreated:
		return "created"
	case InsertAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// UserRepository stores user accounts keyed by the identity provider UID.
// Every method is a single-row, atomic statement.
type UserRepository interface {
	// FindBySubjectID returns apperror.ErrNotFound when no row exists.
	FindBySubjectID(ctx context.Context, uid string) (*model.User, error)

	// InsertUser creates the row unless one with the same UID already exists.
	InsertUser(ctx context.Context, user *model.User) (InsertOutcome, error)

	// UpdateLogin overwrites email, provider and last_login_at, but only
	// while the stored last_login_at still equals prevLastLogin (compare and
	// swap). display_name is never touched. Returns ErrLoginChanged when
	// another login updated the row first, apperror.ErrNotFound if the row
	// is gone.
	UpdateLogin(ctx context.Context, user *model.User, prevLastLogin time.Time) error

	// SetDisplayName returns apperror.ErrConflict if another user holds the name.
	SetDisplayName(ctx context.Context, uid, displayName string) (*model.User, error)
}

// SubjectRepository stores subjects. All lookups ignore soft-deleted rows
// and are scoped to the owning user.
type SubjectRepository interface {
	CreateSubject(ctx context.Context, subject *model.Subject) error
	ListSubjects(ctx context.Context, userUID string) ([]model.Subject, error)
	GetSubject(ctx context.Context, userUID, id string) (*model.Subject, error)
	// UpdateSubject and CreateSubject return apperror.ErrConflict when the
	// user already has a live subject with the same name.
	UpdateSubject(ctx context.Context, subject *model.Subject) error
	SoftDeleteSubject(ctx context.Context, userUID, id string, at time.Time) error
}

// StudyLogRepository stores study and break intervals.
type StudyLogRepository interface {
	CreateStudyLog(ctx context.Context, log *model.StudyLog) error
	// ListStudyLogs returns the user's logs, most recent end time first.
	ListStudyLogs(ctx context.Context, userUID string) ([]model.StudyLog, error)
}

// Store bundles every repository one backend provides, plus lifecycle hooks.
type Store interface {
	UserRepository
	SubjectRepository
	StudyLogRepository

	Ping(ctx context.Context) error
	Close() error
}
