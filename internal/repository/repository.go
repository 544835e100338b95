// Package repository is the persistence layer. The judge holds its
// whole working set in memory by default; a MySQL-backed store offers
// durable persistence with the same interface.
package repository

import (
	"context"

	"ojudge/internal/model"
)

// JobStore stores judge jobs. Job ids are dense and start at 0.
type JobStore interface {
	// CreateJob allocates the next job id and stores a queued job with
	// 1+caseCount Waiting case slots.
	CreateJob(ctx context.Context, sub model.Submission, caseCount int) (*model.Job, error)

	// GetJob returns a copy of the job, or JobNotFound.
	GetJob(ctx context.Context, id int64) (*model.Job, error)

	// UpdateJob replaces the stored record matching job.ID.
	UpdateJob(ctx context.Context, job *model.Job) error

	// ListJobs returns copies of all jobs in ascending id order.
	ListJobs(ctx context.Context) ([]*model.Job, error)
}

// UserStore stores judge accounts. User id 0 is the built-in root
// account, present from the first start.
type UserStore interface {
	// SaveUser creates the user when user.ID is nil, assigning the next
	// id, or renames the existing user. Names are unique; a clash
	// returns UserNameTaken, an unknown id UserNotFound.
	SaveUser(ctx context.Context, user model.User) (model.User, error)

	// GetUser returns the user, or UserNotFound.
	GetUser(ctx context.Context, id int64) (model.User, error)

	// ListUsers returns all users in ascending id order.
	ListUsers(ctx context.Context) ([]model.User, error)
}

// ContestStore stores contests. Contest ids start at 1; id 0 names the
// global scope and is never stored.
type ContestStore interface {
	// CreateContest assigns the next contest id and stores the contest.
	CreateContest(ctx context.Context, contest model.Contest) (model.Contest, error)

	// UpdateContest replaces the stored contest, or ContestNotFound.
	UpdateContest(ctx context.Context, contest model.Contest) error

	// GetContest returns the contest, or ContestNotFound.
	GetContest(ctx context.Context, id int64) (model.Contest, error)

	// ListContests returns all contests in ascending id order.
	ListContests(ctx context.Context) ([]model.Contest, error)
}

// Store is the full persistence surface.
type Store interface {
	JobStore
	UserStore
	ContestStore

	// Flush drops all stored data and reseeds the root user.
	Flush(ctx context.Context) error

	Close() error
}
