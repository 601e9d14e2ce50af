package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/stardylog/backend/internal/apperror"
	"github.com/stardylog/backend/internal/model"
	"github.com/stardylog/backend/internal/repository"
)

// =========================================================================
// IN-MEMORY FAKES
// =========================================================================
//
// The fakes implement the repository interfaces on maps guarded by a mutex,
// so the service tests run without a database and can be driven from many
// goroutines at once. Error fields let a test simulate storage failures.

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]model.User

	findErr   error
	insertErr error
	updateErr error

	// afterFind runs outside the lock after every FindBySubjectID call.
	afterFind func()

	inserts int
	updates int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]model.User)}
}

func (f *fakeUserRepo) FindBySubjectID(_ context.Context, uid string) (*model.User, error) {
	f.mu.Lock()
	u, ok := f.users[uid]
	err := f.findErr
	f.mu.Unlock()

	if f.afterFind != nil {
		f.afterFind()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound("user", uid)
	}
	return &u, nil
}

func (f *fakeUserRepo) InsertUser(_ context.Context, user *model.User) (repository.InsertOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	if _, ok := f.users[user.UID]; ok {
		return repository.InsertAlreadyExists, nil
	}
	f.users[user.UID] = *user
	f.inserts++
	return repository.InsertCreated, nil
}

func (f *fakeUserRepo) UpdateLogin(_ context.Context, user *model.User, prevLastLogin time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.users[user.UID]
	if !ok {
		return apperror.NotFound("user", user.UID)
	}
	if !stored.LastLoginAt.Equal(prevLastLogin) {
		return repository.ErrLoginChanged
	}
	stored.Email = user.Email
	stored.Provider = user.Provider
	stored.LastLoginAt = user.LastLoginAt
	f.users[user.UID] = stored
	f.updates++
	return nil
}

func (f *fakeUserRepo) SetDisplayName(_ context.Context, uid, name string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for other, u := range f.users {
		if other != uid && u.DisplayName != nil && *u.DisplayName == name {
			return nil, apperror.Conflict("displayName", "display name already in use")
		}
	}
	u, ok := f.users[uid]
	if !ok {
		return nil, apperror.NotFound("user", uid)
	}
	u.DisplayName = &name
	f.users[uid] = u
	return &u, nil
}

func (f *fakeUserRepo) get(uid string) (model.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	return u, ok
}

type fakeSubjectRepo struct {
	mu       sync.Mutex
	subjects map[string]model.Subject
	nextID   int
	err      error
}

func newFakeSubjectRepo() *fakeSubjectRepo {
	return &fakeSubjectRepo{subjects: make(map[string]model.Subject)}
}

func (f *fakeSubjectRepo) nameTaken(s *model.Subject) bool {
	for id, other := range f.subjects {
		if id != s.ID && !other.Deleted && other.UserUID == s.UserUID && other.Name == s.Name {
			return true
		}
	}
	return false
}

func (f *fakeSubjectRepo) CreateSubject(_ context.Context, s *model.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.nameTaken(s) {
		return apperror.Conflict("name", "subject name already in use")
	}
	f.nextID++
	s.ID = fmt.Sprintf("subject-%d", f.nextID)
	f.subjects[s.ID] = *s
	return nil
}

func (f *fakeSubjectRepo) ListSubjects(_ context.Context, uid string) ([]model.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Subject, 0)
	for _, s := range f.subjects {
		if s.UserUID == uid && !s.Deleted {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeSubjectRepo) GetSubject(_ context.Context, uid, id string) (*model.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subjects[id]
	if !ok || s.Deleted || s.UserUID != uid {
		return nil, apperror.NotFound("subject", id)
	}
	return &s, nil
}

func (f *fakeSubjectRepo) UpdateSubject(_ context.Context, s *model.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.subjects[s.ID]
	if !ok || stored.Deleted || stored.UserUID != s.UserUID {
		return apperror.NotFound("subject", s.ID)
	}
	if f.nameTaken(s) {
		return apperror.Conflict("name", "subject name already in use")
	}
	stored.Name = s.Name
	stored.Color = s.Color
	f.subjects[s.ID] = stored
	return nil
}

func (f *fakeSubjectRepo) SoftDeleteSubject(_ context.Context, uid, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subjects[id]
	if !ok || s.Deleted || s.UserUID != uid {
		return apperror.NotFound("subject", id)
	}
	s.Deleted = true
	s.DeletedAt = &at
	f.subjects[id] = s
	return nil
}

type fakeStudyLogRepo struct {
	mu   sync.Mutex
	logs []model.StudyLog
	err  error
}

func (f *fakeStudyLogRepo) CreateStudyLog(_ context.Context, l *model.StudyLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	l.ID = fmt.Sprintf("log-%d", len(f.logs)+1)
	f.logs = append(f.logs, *l)
	return nil
}

func (f *fakeStudyLogRepo) ListStudyLogs(_ context.Context, uid string) ([]model.StudyLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.StudyLog, 0)
	for _, l := range f.logs {
		if l.UserUID == uid {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.After(out[j].EndTime) })
	return out, nil
}

type fakeProvisionRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (f *fakeProvisionRecorder) ObserveProvisioning(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = make(map[string]int)
	}
	f.outcomes[outcome]++
}
