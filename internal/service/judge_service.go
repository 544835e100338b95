// Package service implements the business rules on top of the stores
// and the judge engine: submission validation, job scheduling, contest
// membership checks and standings.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ojudge/internal/cache"
	"ojudge/internal/config"
	"ojudge/internal/model"
	"ojudge/internal/repository"
	appErr "ojudge/pkg/errors"
	"ojudge/pkg/utils/contextkey"
	"ojudge/pkg/utils/logger"
)

// Judger runs the judging pipeline for one submission.
type Judger interface {
	Judge(ctx context.Context, jobID int64, sub model.Submission, problem model.Problem, lang model.Language, created, updated model.Timestamp) (*model.Job, error)
}

// JudgeService validates submissions, owns the scheduler and manages
// the job lifecycle.
type JudgeService struct {
	cfg       *config.Config
	store     repository.Store
	judger    Judger
	standings *cache.StandingsCache
	sched     *Scheduler
}

// NewJudgeService creates the service and starts its worker pool.
func NewJudgeService(cfg *config.Config, store repository.Store, judger Judger, standings *cache.StandingsCache, workers int) *JudgeService {
	s := &JudgeService{
		cfg:       cfg,
		store:     store,
		judger:    judger,
		standings: standings,
	}
	s.sched = NewScheduler(workers, DefaultBacklog, s.runJob)
	return s
}

// Shutdown drains the worker pool.
func (s *JudgeService) Shutdown(ctx context.Context) error {
	return s.sched.Shutdown(ctx)
}

// Submit validates a submission against the configured problem set and
// contest rules, stores a queued job and schedules it.
func (s *JudgeService) Submit(ctx context.Context, sub model.Submission) (*model.Job, error) {
	_, ok := s.cfg.Language(sub.Language)
	if !ok {
		return nil, appErr.Newf(appErr.LanguageNotFound, "Language %s not found.", sub.Language)
	}
	problem, ok := s.cfg.Problem(sub.ProblemID)
	if !ok {
		return nil, appErr.Newf(appErr.ProblemNotFound, "Problem %d not found.", sub.ProblemID)
	}
	if _, err := s.store.GetUser(ctx, sub.UserID); err != nil {
		return nil, err
	}
	if sub.ContestID != 0 {
		if err := s.checkContestRules(ctx, sub); err != nil {
			return nil, err
		}
	}

	job, err := s.store.CreateJob(ctx, sub, len(problem.Cases))
	if err != nil {
		return nil, err
	}
	if err := s.sched.Enqueue(job.ID); err != nil {
		return nil, err
	}
	s.standings.Invalidate(ctx)
	return job, nil
}

func (s *JudgeService) checkContestRules(ctx context.Context, sub model.Submission) error {
	contest, err := s.store.GetContest(ctx, sub.ContestID)
	if err != nil {
		return err
	}
	if !contest.HasUser(sub.UserID) {
		return appErr.Newf(appErr.UserNotInContest, "User %d not in contest %d.", sub.UserID, sub.ContestID)
	}
	if !contest.HasProblem(sub.ProblemID) {
		return appErr.Newf(appErr.ProblemNotInContest, "Problem %d not in contest %d.", sub.ProblemID, sub.ContestID)
	}
	now := model.Now()
	if now.Before(contest.From.Time) || !now.Before(contest.To.Time) {
		return appErr.Newf(appErr.ContestClosed, "Contest %d is not open now.", sub.ContestID)
	}
	if contest.SubmissionLimit > 0 {
		jobs, err := s.store.ListJobs(ctx)
		if err != nil {
			return err
		}
		count := 0
		for _, job := range jobs {
			if job.Submission.UserID == sub.UserID &&
				job.Submission.ProblemID == sub.ProblemID &&
				job.Submission.ContestID == sub.ContestID {
				count++
			}
		}
		if count >= contest.SubmissionLimit {
			return appErr.New(appErr.SubmissionLimited).WithMessage("Submission limit exceeded.")
		}
	}
	return nil
}

// GetJob returns one job.
func (s *JudgeService) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	return s.store.GetJob(ctx, id)
}

// ListJobs returns jobs passing the filter, in ascending id order.
func (s *JudgeService) ListJobs(ctx context.Context, filter JobFilter) ([]*model.Job, error) {
	if filter.UserName != nil {
		id, ok, err := s.resolveUserName(ctx, *filter.UserName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []*model.Job{}, nil
		}
		if filter.UserID != nil && *filter.UserID != id {
			return []*model.Job{}, nil
		}
		filter.UserID = &id
	}

	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Job, 0, len(jobs))
	for _, job := range jobs {
		if filter.Match(job) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *JudgeService) resolveUserName(ctx context.Context, name string) (int64, bool, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, user := range users {
		if user.Name == name && user.ID != nil {
			return *user.ID, true, nil
		}
	}
	return 0, false, nil
}

// Rejudge resets a finished job to Queueing and schedules it again,
// keeping its identity and creation time.
func (s *JudgeService) Rejudge(ctx context.Context, id int64) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State != model.StateFinished {
		return nil, appErr.Newf(appErr.InvalidState, "Job %d not finished.", id)
	}
	problem, ok := s.cfg.Problem(job.Submission.ProblemID)
	if !ok {
		return nil, appErr.Newf(appErr.ProblemNotFound, "Problem %d not found.", job.Submission.ProblemID)
	}

	job.State = model.StateQueueing
	job.Result = model.VerdictWaiting
	job.Score = 0
	job.Cases = model.WaitingCases(len(problem.Cases))
	job.UpdatedTime = model.Now()
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := s.sched.Enqueue(job.ID); err != nil {
		return nil, err
	}
	s.standings.Invalidate(ctx)
	return job, nil
}

// Cancel aborts a queued or running job. The job record flips to
// Canceled; a running judge process is killed through its context.
func (s *JudgeService) Cancel(ctx context.Context, id int64) error {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	switch job.State {
	case model.StateQueueing:
		job.State = model.StateCanceled
		job.UpdatedTime = model.Now()
		if err := s.store.UpdateJob(ctx, job); err != nil {
			return err
		}
		s.standings.Invalidate(ctx)
		return nil
	case model.StateRunning:
		// the worker observes the canceled context and records the state
		if s.sched.Cancel(id) {
			return nil
		}
		// no active worker: it finished or recorded a cancel between the
		// load above and now. Re-read and never touch a finished result.
		job, err = s.store.GetJob(ctx, id)
		if err != nil {
			return err
		}
		switch job.State {
		case model.StateQueueing, model.StateRunning:
			job.State = model.StateCanceled
			job.UpdatedTime = model.Now()
			if err := s.store.UpdateJob(ctx, job); err != nil {
				return err
			}
			s.standings.Invalidate(ctx)
			return nil
		case model.StateCanceled:
			return nil
		default:
			return appErr.Newf(appErr.JobNotCancelable, "Job %d not cancelable.", id)
		}
	default:
		return appErr.Newf(appErr.JobNotCancelable, "Job %d not cancelable.", id)
	}
}

// runJob is the worker callback: it claims a queued job, runs the
// pipeline and records the outcome.
func (s *JudgeService) runJob(ctx context.Context, id int64) {
	ctx = context.WithValue(ctx, contextkey.JobID, id)

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		logger.Error(ctx, "load queued job failed", zap.Error(err))
		return
	}
	if job.State != model.StateQueueing {
		// canceled while waiting in the queue
		return
	}

	job.State = model.StateRunning
	job.UpdatedTime = model.Now()
	if err := s.store.UpdateJob(ctx, job); err != nil {
		logger.Error(ctx, "mark job running failed", zap.Error(err))
		return
	}

	problem, _ := s.cfg.Problem(job.Submission.ProblemID)
	lang, _ := s.cfg.Language(job.Submission.Language)

	started := time.Now()
	result, err := s.judger.Judge(ctx, job.ID, job.Submission, problem, lang, job.CreatedTime, job.UpdatedTime)
	if err != nil {
		s.recordFailure(ctx, job, err)
		s.standings.Invalidate(ctx)
		return
	}

	result.State = model.StateFinished
	result.UpdatedTime = model.Now()
	if err := s.store.UpdateJob(ctx, result); err != nil {
		logger.Error(ctx, "store job result failed", zap.Error(err))
		return
	}
	s.standings.Invalidate(ctx)
	logger.Info(ctx, "job finished",
		zap.String("result", string(result.Result)),
		zap.Float64("score", result.Score),
		zap.Duration("elapsed", time.Since(started)))
}

// recordFailure maps a pipeline error onto the job record: a canceled
// context means the job was aborted, anything else is a system error.
func (s *JudgeService) recordFailure(ctx context.Context, job *model.Job, cause error) {
	caseCount := len(job.Cases) - 1
	if errors.Is(cause, context.Canceled) {
		job.State = model.StateCanceled
		job.Result = model.VerdictWaiting
	} else {
		logger.Error(ctx, "judge pipeline failed", zap.Error(cause))
		job.State = model.StateFinished
		job.Result = model.VerdictSystemError
	}
	job.Score = 0
	job.Cases = model.WaitingCases(caseCount)
	job.UpdatedTime = model.Now()
	if err := s.store.UpdateJob(ctx, job); err != nil {
		logger.Error(ctx, "store failed job failed", zap.Error(err))
	}
}
