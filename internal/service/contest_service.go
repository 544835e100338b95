package service

import (
	"context"
	"sort"

	"ojudge/internal/cache"
	"ojudge/internal/config"
	"ojudge/internal/model"
	"ojudge/internal/ranking"
	"ojudge/internal/repository"
	appErr "ojudge/pkg/errors"
)

// ContestService manages contests and computes standings.
type ContestService struct {
	cfg       *config.Config
	store     repository.Store
	standings *cache.StandingsCache
}

func NewContestService(cfg *config.Config, store repository.Store, standings *cache.StandingsCache) *ContestService {
	return &ContestService{cfg: cfg, store: store, standings: standings}
}

// Save creates the contest when no id is given, or replaces an existing
// one. Member lists are validated against the configured problem set
// and the user store.
func (s *ContestService) Save(ctx context.Context, contest model.Contest, hasID bool) (model.Contest, error) {
	if hasID && contest.ID == 0 {
		return model.Contest{}, appErr.BadRequest("Invalid contest id 0.")
	}
	for _, pid := range contest.ProblemIDs {
		if _, ok := s.cfg.Problem(pid); !ok {
			return model.Contest{}, appErr.Newf(appErr.ProblemNotFound, "Problem %d not found.", pid)
		}
	}
	for _, uid := range contest.UserIDs {
		if _, err := s.store.GetUser(ctx, uid); err != nil {
			return model.Contest{}, err
		}
	}

	if !hasID {
		return s.store.CreateContest(ctx, contest)
	}
	if err := s.store.UpdateContest(ctx, contest); err != nil {
		return model.Contest{}, err
	}
	return contest, nil
}

// Get returns one contest.
func (s *ContestService) Get(ctx context.Context, id int64) (model.Contest, error) {
	return s.store.GetContest(ctx, id)
}

// List returns all contests in ascending id order.
func (s *ContestService) List(ctx context.Context) ([]model.Contest, error) {
	return s.store.ListContests(ctx)
}

// Ranklist computes standings for the scope: a contest id, or 0 for the
// global scope covering every user and every configured problem.
func (s *ContestService) Ranklist(ctx context.Context, scope int64, rule model.RankingRule) ([]model.RankRow, error) {
	if rows, ok := s.standings.Get(ctx, scope, rule); ok {
		return rows, nil
	}

	users, problems, err := s.scopeMembers(ctx, scope)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := ranking.Rank(scope, rule, jobs, users, problems)
	if err != nil {
		return nil, err
	}
	s.standings.Put(ctx, scope, rule, rows)
	return rows, nil
}

func (s *ContestService) scopeMembers(ctx context.Context, scope int64) ([]model.User, []model.Problem, error) {
	if scope == 0 {
		users, err := s.store.ListUsers(ctx)
		if err != nil {
			return nil, nil, err
		}
		problems := make([]model.Problem, len(s.cfg.Problems))
		copy(problems, s.cfg.Problems)
		sort.Slice(problems, func(i, j int) bool { return problems[i].ID < problems[j].ID })
		return users, problems, nil
	}

	contest, err := s.store.GetContest(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	users := make([]model.User, 0, len(contest.UserIDs))
	for _, uid := range contest.UserIDs {
		user, err := s.store.GetUser(ctx, uid)
		if err != nil {
			return nil, nil, err
		}
		users = append(users, user)
	}
	problems := make([]model.Problem, 0, len(contest.ProblemIDs))
	for _, pid := range contest.ProblemIDs {
		problem, ok := s.cfg.Problem(pid)
		if !ok {
			return nil, nil, appErr.Newf(appErr.ProblemNotFound, "Problem %d not found.", pid)
		}
		problems = append(problems, problem)
	}
	return users, problems, nil
}
