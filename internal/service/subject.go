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

const (
	MaxSubjectNameLength  = 50
	MaxSubjectColorLength = 10
)

// SubjectService manages a user's study subjects.
// Every method takes the owner's uid and never touches other users' rows.
type SubjectService struct {
	repo   repository.SubjectRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewSubjectService(repo repository.SubjectRepository, logger *slog.Logger) *SubjectService {
	return &SubjectService{repo: repo, logger: logger, now: time.Now}
}

// Create validates and saves a new subject.
// Returns apperror.ErrConflict if the user already has a live subject with that name.
func (s *SubjectService) Create(ctx context.Context, uid, name, color string) (*model.Subject, error) {
	name = strings.TrimSpace(name)
	color = strings.TrimSpace(color)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "subject name is required")
	}
	if err := validateSubject(name, color); err != nil {
		return nil, err
	}

	subject := &model.Subject{
		UserUID:   uid,
		Name:      name,
		Color:     color,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateSubject(ctx, subject); err != nil {
		return nil, fmt.Errorf("creating subject: %w", err)
	}

	s.logger.Info("subject created",
		slog.String("uid", uid),
		slog.String("id", subject.ID),
	)
	return subject, nil
}

func (s *SubjectService) List(ctx context.Context, uid string) ([]model.Subject, error) {
	subjects, err := s.repo.ListSubjects(ctx, uid)
	if err != nil {
		s.logger.Error("failed to list subjects", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing subjects: %w", err)
	}
	return subjects, nil
}

// Update replaces name and color, as PUT does: name is required, and an
// empty color clears the subject's color.
//
// STRATEGY: "Fetch then update"
// The fetch gives us the NotFound for missing, deleted or foreign subjects
// before any validation of the new values.
func (s *SubjectService) Update(ctx context.Context, uid, id, name, color string) (*model.Subject, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "subject ID is required")
	}

	subject, err := s.repo.GetSubject(ctx, uid, id)
	if err != nil {
		return nil, err
	}

	subject.Name = strings.TrimSpace(name)
	subject.Color = strings.TrimSpace(color)
	if subject.Name == "" {
		return nil, apperror.ValidationFailed("name", "subject name is required")
	}
	if err := validateSubject(subject.Name, subject.Color); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSubject(ctx, subject); err != nil {
		return nil, fmt.Errorf("updating subject: %w", err)
	}

	s.logger.Info("subject updated", slog.String("uid", uid), slog.String("id", id))
	return subject, nil
}

// Delete soft-deletes the subject. Logged study time keeps its subject name.
func (s *SubjectService) Delete(ctx context.Context, uid, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "subject ID is required")
	}

	if err := s.repo.SoftDeleteSubject(ctx, uid, id, s.now().UTC()); err != nil {
		return err
	}

	s.logger.Info("subject deleted", slog.String("uid", uid), slog.String("id", id))
	return nil
}

func validateSubject(name, color string) error {
	if utf8.RuneCountInString(name) > MaxSubjectNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("subject name must be %d characters or less", MaxSubjectNameLength))
	}
	if utf8.RuneCountInString(color) > MaxSubjectColorLength {
		return apperror.ValidationFailed("color",
			fmt.Sprintf("color must be %d characters or less", MaxSubjectColorLength))
	}
	return nil
}
