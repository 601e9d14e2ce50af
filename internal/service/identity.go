// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take repository interfaces, never a concrete *sqlite.DB, so the
// same code runs against SQLite, PostgreSQL or an in-memory fake in tests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stardylog/backend/internal/apperror"
	"github.com/stardylog/backend/internal/auth"
	"github.com/stardylog/backend/internal/model"
	"github.com/stardylog/backend/internal/repository"
)

// ErrFatalStorage wraps any storage failure Reconcile cannot absorb.
// The admission filter answers it with 500, never with 401.
var ErrFatalStorage = errors.New("service: fatal storage error")

// maxLoginRefreshAttempts bounds the compare-and-swap retries of a
// returning-user login.
const maxLoginRefreshAttempts = 3

// Provisioning outcomes, used as metric labels.
const (
	ProvisionCreated  = "created"
	ProvisionRaceLost = "already_exists"
	ProvisionUpdated  = "updated"
	ProvisionFailed   = "error"
)

// ProvisionRecorder receives one outcome per Reconcile call.
type ProvisionRecorder interface {
	ObserveProvisioning(outcome string)
}

type nopProvisionRecorder struct{}

func (nopProvisionRecorder) ObserveProvisioning(string) {}

var _ auth.Reconciler = (*IdentityService)(nil)

// IdentityService provisions users just in time, on their first
// authenticated request, and refreshes login metadata afterwards.
type IdentityService struct {
	users    repository.UserRepository
	logger   *slog.Logger
	now      func() time.Time
	recorder ProvisionRecorder
}

type IdentityOption func(*IdentityService)

// WithClock replaces time.Now. Tests use it to pin timestamps.
func WithClock(now func() time.Time) IdentityOption {
	return func(s *IdentityService) { s.now = now }
}

func WithProvisionRecorder(r ProvisionRecorder) IdentityOption {
	return func(s *IdentityService) { s.recorder = r }
}

func NewIdentityService(users repository.UserRepository, logger *slog.Logger, opts ...IdentityOption) *IdentityService {
	s := &IdentityService{
		users:    users,
		logger:   logger,
		now:      time.Now,
		recorder: nopProvisionRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile makes sure a user row exists for claims.Subject and returns the
// subject identifier.
//
// FIRST LOGIN vs RETURNING USER:
//
//	found      → overwrite email, provider and last_login_at
//	not found  → insert a new row (display name left empty)
//
// CONCURRENT FIRST LOGINS:
// A client that fires several requests right after sign-in makes all of them
// see "not found" and all of them try to insert. The primary key lets exactly
// one insert win; the others get repository.InsertAlreadyExists, which is
// success here: the row the request needed exists. No lock is held across
// the read and the write, and the winner's row is not re-read.
//
// The display name is never written here. It belongs to the user and only
// changes through UserService.SetDisplayName.
func (s *IdentityService) Reconcile(ctx context.Context, claims *auth.VerifiedClaims) (string, error) {
	if claims == nil || claims.Subject == "" {
		return "", errors.New("service/identity: claims without subject")
	}
	uid := claims.Subject

	// Microsecond precision survives a round trip through both backends.
	now := s.now().UTC().Truncate(time.Microsecond)

	existing, err := s.users.FindBySubjectID(ctx, uid)
	switch {
	case err == nil:
		err = s.refreshLogin(ctx, existing, claims, now)
		if err == nil {
			s.recorder.ObserveProvisioning(ProvisionUpdated)
			return uid, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return "", s.fatal(uid, "updating login", err)
		}
		// The row disappeared between the read and the update. Recreate it.
	case errors.Is(err, apperror.ErrNotFound):
	default:
		return "", s.fatal(uid, "looking up user", err)
	}

	return s.provision(ctx, claims, now)
}

func (s *IdentityService) refreshLogin(ctx context.Context, existing *model.User, claims *auth.VerifiedClaims, now time.Time) error {
	for attempt := 1; ; attempt++ {
		updated := *existing
		updated.Email = claims.Email
		updated.Provider = claims.Provider

		// last_login_at must move forward on every login, even if two logins
		// land in the same microsecond or the clock stepped backwards.
		updated.LastLoginAt = now
		if !now.After(existing.LastLoginAt) {
			updated.LastLoginAt = existing.LastLoginAt.Add(time.Microsecond)
		}

		err := s.users.UpdateLogin(ctx, &updated, existing.LastLoginAt)
		if !errors.Is(err, repository.ErrLoginChanged) {
			return err
		}
		if attempt == maxLoginRefreshAttempts {
			// Someone else keeps logging in as this user; their write already
			// moved last_login_at forward, which is all this refresh promises.
			s.logger.Debug("login refresh lost to concurrent logins",
				slog.String("uid", existing.UID), slog.Int("attempts", attempt))
			return nil
		}

		existing, err = s.users.FindBySubjectID(ctx, existing.UID)
		if err != nil {
			return err
		}
	}
}

func (s *IdentityService) provision(ctx context.Context, claims *auth.VerifiedClaims, now time.Time) (string, error) {
	uid := claims.Subject
	user := &model.User{
		UID:         uid,
		Email:       claims.Email,
		Provider:    claims.Provider,
		CreatedAt:   now,
		LastLoginAt: now,
	}

	outcome, err := s.users.InsertUser(ctx, user)
	if err != nil {
		return "", s.fatal(uid, "inserting user", err)
	}

	switch outcome {
	case repository.InsertCreated:
		s.recorder.ObserveProvisioning(ProvisionCreated)
		s.logger.Info("user provisioned", slog.String("uid", uid))
	case repository.InsertAlreadyExists:
		s.recorder.ObserveProvisioning(ProvisionRaceLost)
		s.logger.Debug("concurrent first login, user already provisioned", slog.String("uid", uid))
	default:
		return "", s.fatal(uid, "inserting user", fmt.Errorf("unexpected insert outcome %d", outcome))
	}
	return uid, nil
}

func (s *IdentityService) fatal(uid, action string, err error) error {
	s.recorder.ObserveProvisioning(ProvisionFailed)
	s.logger.Error("user reconciliation failed",
		slog.String("uid", uid),
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w: %s for %s: %w", ErrFatalStorage, action, uid, err)
}
