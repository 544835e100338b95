// Package ranking computes contest and global standings from finished
// job records. Rank computation is pure: it reads a snapshot of jobs and
// never mutates stored records.
package ranking

import (
	"sort"
	"time"

	"ojudge/internal/model"
	appErr "ojudge/pkg/errors"
)

// sentinel tie-break time for users with no submissions; sorts last.
var maxTime = model.At(time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC))

type userStanding struct {
	user            model.User
	scores          []float64
	total           float64
	maxTime         model.Timestamp
	submissionCount int
}

// Rank computes standings over the given scope. Scope is a contest id;
// 0 means the global (practice) scope. Jobs with contest id 0 are
// visible in every scope. Users and problems are the eligible sets in
// presentation order; jobs may contain records outside the scope, they
// are filtered here.
func Rank(scope int64, rule model.RankingRule, jobs []*model.Job, users []model.User, problems []model.Problem) ([]model.RankRow, error) {
	scoring := rule.ScoringRule
	if scoring == "" {
		scoring = model.ScoringLatest
	}
	if scoring != model.ScoringLatest && scoring != model.ScoringHighest {
		return nil, appErr.Newf(appErr.RankingRuleUnknown, "unknown scoring rule %q", scoring)
	}
	switch rule.TieBreaker {
	case "", model.TieBySubmissionTime, model.TieBySubmissionCount, model.TieByUserID:
	default:
		return nil, appErr.Newf(appErr.RankingRuleUnknown, "unknown tie breaker %q", rule.TieBreaker)
	}

	inScope := make([]*model.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Submission.ContestID == scope || job.Submission.ContestID == 0 {
			inScope = append(inScope, job)
		}
	}

	standings := make([]userStanding, 0, len(users))
	for _, user := range users {
		st := userStanding{user: user, maxTime: model.At(time.Time{})}
		uid := int64(0)
		if user.ID != nil {
			uid = *user.ID
		}

		for _, problem := range problems {
			mine := jobsFor(inScope, uid, problem.ID)
			st.submissionCount += len(mine)
			for _, job := range mine {
				if job.CreatedTime.After(st.maxTime.Time) {
					st.maxTime = job.CreatedTime
				}
			}

			var score float64
			var err error
			if problem.Type == model.ProblemDynamicRanking {
				score, err = dynamicScore(problem, scoring, mine, inScope)
				if err != nil {
					return nil, err
				}
			} else if job := pickRepresentative(mine, scoring); job != nil {
				score = job.Score
			}
			st.scores = append(st.scores, score)
			st.total += score
		}

		if st.submissionCount == 0 {
			st.maxTime = maxTime
		}
		standings = append(standings, st)
	}

	sortStandings(standings, rule.TieBreaker)

	rows := make([]model.RankRow, len(standings))
	groupHead := 0
	for i, st := range standings {
		if i > 0 && !sameRankGroup(standings[i-1], st, rule.TieBreaker) {
			groupHead = i
		}
		rows[i] = model.RankRow{
			User:   st.user,
			Rank:   groupHead + 1,
			Scores: st.scores,
		}
	}
	return rows, nil
}

func jobsFor(jobs []*model.Job, userID, problemID int64) []*model.Job {
	var out []*model.Job
	for _, job := range jobs {
		if job.Submission.UserID == userID && job.Submission.ProblemID == problemID {
			out = append(out, job)
		}
	}
	return out
}

// pickRepresentative selects one job by the scoring rule: the most
// recently created, or the highest-scored. Later jobs win score ties.
func pickRepresentative(jobs []*model.Job, scoring model.ScoringRule) *model.Job {
	var best *model.Job
	for _, job := range jobs {
		if best == nil {
			best = job
			continue
		}
		switch scoring {
		case model.ScoringHighest:
			if job.Score >= best.Score {
				best = job
			}
		default:
			if !job.CreatedTime.Before(best.CreatedTime.Time) {
				best = job
			}
		}
	}
	return best
}

// dynamicScore computes the contribution of a dynamic-ranking problem:
// a static share weighted by (1-ratio) plus a dynamic share scaled by
// how close the representative's per-case time is to the fastest
// accepted time in scope. The time representative is always the most
// recently created accepted job, whatever the scoring rule says.
func dynamicScore(problem model.Problem, scoring model.ScoringRule, mine, inScope []*model.Job) (float64, error) {
	if problem.Misc.DynamicRankingRatio == nil {
		return 0, appErr.Newf(appErr.RankingRatioMissing, "Dynamic ranking ratio of problem %d not found.", problem.ID)
	}
	ratio := *problem.Misc.DynamicRankingRatio

	var accepted []*model.Job
	for _, job := range mine {
		if job.Result == model.VerdictAccepted {
			accepted = append(accepted, job)
		}
	}

	if len(accepted) == 0 {
		if job := pickRepresentative(mine, scoring); job != nil {
			return job.Score * (1 - ratio), nil
		}
		return 0, nil
	}

	rep := pickRepresentative(accepted, model.ScoringLatest)
	var score float64
	for i, tc := range problem.Cases {
		fastest, ok := fastestAcceptedTime(inScope, problem.ID, i+1)
		share := 1.0
		if ok && rep.Cases[i+1].Time > 0 {
			share = float64(fastest) / float64(rep.Cases[i+1].Time)
		}
		score += tc.Score*(1-ratio) + tc.Score*ratio*share
	}
	return score, nil
}

// fastestAcceptedTime finds the minimum recorded time for one case slot
// across every accepted job in scope for the problem.
func fastestAcceptedTime(jobs []*model.Job, problemID int64, slot int) (int64, bool) {
	var fastest int64
	found := false
	for _, job := range jobs {
		if job.Submission.ProblemID != problemID || job.Result != model.VerdictAccepted {
			continue
		}
		if slot >= len(job.Cases) {
			continue
		}
		t := job.Cases[slot].Time
		if !found || t < fastest {
			fastest = t
			found = true
		}
	}
	return fastest, found
}

// sortStandings orders by total score descending, then the tie-break
// key (earlier max time, fewer submissions, or smaller user id), then
// user id as the final key.
func sortStandings(standings []userStanding, breaker model.TieBreaker) {
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.total != b.total {
			return a.total > b.total
		}
		switch breaker {
		case model.TieBySubmissionTime:
			if !a.maxTime.Equal(b.maxTime.Time) {
				return a.maxTime.Before(b.maxTime.Time)
			}
		case model.TieBySubmissionCount:
			if a.submissionCount != b.submissionCount {
				return a.submissionCount < b.submissionCount
			}
		}
		return userID(a) < userID(b)
	})
}

// sameRankGroup reports whether two adjacent standings share a rank:
// equal totals and, when a tie-breaker is configured, an equal tie key.
func sameRankGroup(a, b userStanding, breaker model.TieBreaker) bool {
	if a.total != b.total {
		return false
	}
	switch breaker {
	case model.TieBySubmissionTime:
		return a.maxTime.Equal(b.maxTime.Time)
	case model.TieBySubmissionCount:
		return a.submissionCount == b.submissionCount
	case model.TieByUserID:
		return userID(a) == userID(b)
	default:
		return true
	}
}

func userID(st userStanding) int64 {
	if st.user.ID != nil {
		return *st.user.ID
	}
	return 0
}
