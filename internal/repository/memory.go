package repository

import (
	"context"
	"sync"

	"ojudge/internal/model"
	appErr "ojudge/pkg/errors"
)

// RootUserName is the name of the seeded user with id 0.
const RootUserName = "root"

// MemoryStore keeps the whole working set behind one mutex. Reads hand
// out copies so callers can never race the scheduler's writes.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     []*model.Job
	users    []model.User
	contests []model.Contest
}

// NewMemoryStore creates an empty store seeded with the root user.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.seedRoot()
	return s
}

func (s *MemoryStore) seedRoot() {
	rootID := int64(0)
	s.users = []model.User{{ID: &rootID, Name: RootUserName}}
}

func (s *MemoryStore) CreateJob(_ context.Context, sub model.Submission, caseCount int) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := model.NewQueuedJob(int64(len(s.jobs)), sub, caseCount, model.Now())
	s.jobs = append(s.jobs, job)
	return cloneJob(job), nil
}

func (s *MemoryStore) GetJob(_ context.Context, id int64) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= int64(len(s.jobs)) {
		return nil, appErr.Newf(appErr.JobNotFound, "Job %d not found.", id)
	}
	return cloneJob(s.jobs[id]), nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID < 0 || job.ID >= int64(len(s.jobs)) {
		return appErr.Newf(appErr.JobNotFound, "Job %d not found.", job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryStore) ListJobs(_ context.Context) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Job, len(s.jobs))
	for i, job := range s.jobs {
		out[i] = cloneJob(job)
	}
	return out, nil
}

func (s *MemoryStore) SaveUser(_ context.Context, user model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == user.Name && (user.ID == nil || *u.ID != *user.ID) {
			return model.User{}, appErr.Newf(appErr.UserNameTaken, "User name '%s' already exists.", user.Name)
		}
	}
	if user.ID == nil {
		id := int64(len(s.users))
		user.ID = &id
		s.users = append(s.users, user)
		return user, nil
	}
	if *user.ID < 0 || *user.ID >= int64(len(s.users)) {
		return model.User{}, appErr.Newf(appErr.UserNotFound, "User %d not found.", *user.ID)
	}
	s.users[*user.ID] = user
	return user, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= int64(len(s.users)) {
		return model.User{}, appErr.Newf(appErr.UserNotFound, "User %d not found.", id)
	}
	return s.users[id], nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *MemoryStore) CreateContest(_ context.Context, contest model.Contest) (model.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contest.ID = int64(len(s.contests)) + 1
	s.contests = append(s.contests, contest)
	return contest, nil
}

func (s *MemoryStore) UpdateContest(_ context.Context, contest model.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contest.ID < 1 || contest.ID > int64(len(s.contests)) {
		return appErr.Newf(appErr.ContestNotFound, "Contest %d not found.", contest.ID)
	}
	s.contests[contest.ID-1] = contest
	return nil
}

func (s *MemoryStore) GetContest(_ context.Context, id int64) (model.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 1 || id > int64(len(s.contests)) {
		return model.Contest{}, appErr.Newf(appErr.ContestNotFound, "Contest %d not found.", id)
	}
	return cloneContest(s.contests[id-1]), nil
}

func (s *MemoryStore) ListContests(_ context.Context) ([]model.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Contest, len(s.contests))
	for i, c := range s.contests {
		out[i] = cloneContest(c)
	}
	return out, nil
}

func (s *MemoryStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = nil
	s.contests = nil
	s.seedRoot()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneJob(job *model.Job) *model.Job {
	c := *job
	c.Cases = make([]model.CaseResult, len(job.Cases))
	copy(c.Cases, job.Cases)
	return &c
}

func cloneContest(contest model.Contest) model.Contest {
	contest.ProblemIDs = append([]int64(nil), contest.ProblemIDs...)
	contest.UserIDs = append([]int64(nil), contest.UserIDs...)
	return contest
}
