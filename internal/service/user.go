package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/stardylog/backend/internal/apperror"
	"github.com/stardylog/backend/internal/model"
	"github.com/stardylog/backend/internal/repository"
)

const (
	MinDisplayNameLength = 2
	MaxDisplayNameLength = 20
)

// Letters, digits, underscore and Hangul syllables.
var displayNamePattern = regexp.MustCompile(`^[a-zA-Z0-9가-힣_]+$`)

// UserService serves the caller's own profile.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// Me returns the profile of uid.
func (s *UserService) Me(ctx context.Context, uid string) (*model.User, error) {
	return s.users.FindBySubjectID(ctx, uid)
}

// SetDisplayName validates and stores a nickname.
// Returns apperror.ErrConflict if another user already has it.
func (s *UserService) SetDisplayName(ctx context.Context, uid, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if err := validateDisplayName(name); err != nil {
		return nil, err
	}

	user, err := s.users.SetDisplayName(ctx, uid, name)
	if err != nil {
		return nil, fmt.Errorf("setting display name: %w", err)
	}

	s.logger.Info("display name changed", slog.String("uid", uid))
	return user, nil
}

func validateDisplayName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinDisplayNameLength || n > MaxDisplayNameLength {
		return apperror.ValidationFailed("displayName",
			fmt.Sprintf("display name must be %d to %d characters", MinDisplayNameLength, MaxDisplayNameLength))
	}
	if !displayNamePattern.MatchString(name) {
		return apperror.ValidationFailed("displayName",
			"display name may only contain letters, digits, Hangul and underscores")
	}
	return nil
}
