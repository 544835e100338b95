package service

import (
	"ojudge/internal/model"
)

// JobFilter narrows a job listing. Nil fields match everything. All set
// fields must match at once.
type JobFilter struct {
	UserID    *int64
	UserName  *string
	ContestID *int64
	ProblemID *int64
	Language  *string
	From      *model.Timestamp
	To        *model.Timestamp
	State     *model.JobState
	Result    *model.Verdict
}

// Match reports whether the job passes the filter. The user name filter
// must be resolved to a user id before matching.
func (f *JobFilter) Match(job *model.Job) bool {
	if f.UserID != nil && job.Submission.UserID != *f.UserID {
		return false
	}
	if f.ContestID != nil && job.Submission.ContestID != *f.ContestID && job.Submission.ContestID != 0 {
		return false
	}
	if f.ProblemID != nil && job.Submission.ProblemID != *f.ProblemID {
		return false
	}
	if f.Language != nil && job.Submission.Language != *f.Language {
		return false
	}
	if f.From != nil && job.CreatedTime.Before(f.From.Time) {
		return false
	}
	if f.To != nil && job.CreatedTime.After(f.To.Time) {
		return false
	}
	if f.State != nil && job.State != *f.State {
		return false
	}
	if f.Result != nil && job.Result != *f.Result {
		return false
	}
	return true
}
