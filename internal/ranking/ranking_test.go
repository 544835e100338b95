package ranking_test

import (
	"testing"
	"time"

	"ojudge/internal/model"
	"ojudge/internal/ranking"
	appErr "ojudge/pkg/errors"
)

func userAt(id int64, name string) model.User {
	return model.User{ID: &id, Name: name}
}

func jobAt(id, userID, problemID int64, created time.Time, result model.Verdict, score float64) *model.Job {
	return &model.Job{
		ID:          id,
		CreatedTime: model.At(created),
		UpdatedTime: model.At(created),
		Submission:  model.Submission{UserID: userID, ProblemID: problemID},
		State:       model.StateFinished,
		Result:      result,
		Score:       score,
	}
}

var epoch = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func TestRankLatestScoring(t *testing.T) {
	users := []model.User{userAt(0, "root"), userAt(1, "alice")}
	problems := []model.Problem{{ID: 0, Type: model.ProblemStandard, Cases: []model.Case{{Score: 100}}}}
	jobs := []*model.Job{
		jobAt(0, 1, 0, epoch, model.VerdictAccepted, 100),
		jobAt(1, 1, 0, epoch.Add(time.Minute), model.VerdictWrongAnswer, 0),
	}

	rows, err := ranking.Rank(0, model.RankingRule{}, jobs, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	// the latest job scores 0, so alice ties with root
	if rows[0].Rank != 1 || rows[1].Rank != 1 {
		t.Fatalf("expected a shared rank 1, got %d and %d", rows[0].Rank, rows[1].Rank)
	}
	if *rows[0].User.ID != 0 || *rows[1].User.ID != 1 {
		t.Fatalf("expected user id order on ties, got %d then %d", *rows[0].User.ID, *rows[1].User.ID)
	}
}

func TestRankHighestScoring(t *testing.T) {
	users := []model.User{userAt(0, "root"), userAt(1, "alice")}
	problems := []model.Problem{{ID: 0, Type: model.ProblemStandard, Cases: []model.Case{{Score: 100}}}}
	jobs := []*model.Job{
		jobAt(0, 1, 0, epoch, model.VerdictAccepted, 100),
		jobAt(1, 1, 0, epoch.Add(time.Minute), model.VerdictWrongAnswer, 0),
	}

	rule := model.RankingRule{ScoringRule: model.ScoringHighest}
	rows, err := ranking.Rank(0, rule, jobs, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if *rows[0].User.ID != 1 || rows[0].Rank != 1 {
		t.Fatalf("expected alice first, got user %d rank %d", *rows[0].User.ID, rows[0].Rank)
	}
	if rows[0].Scores[0] != 100 {
		t.Fatalf("expected highest score 100, got %v", rows[0].Scores[0])
	}
	if rows[1].Rank != 2 {
		t.Fatalf("expected root at rank 2, got %d", rows[1].Rank)
	}
}

func TestRankSharedRanksSkipPositions(t *testing.T) {
	users := []model.User{userAt(0, "root"), userAt(1, "a"), userAt(2, "b"), userAt(3, "c")}
	problems := []model.Problem{{ID: 0, Type: model.ProblemStandard, Cases: []model.Case{{Score: 100}}}}
	jobs := []*model.Job{
		jobAt(0, 1, 0, epoch, model.VerdictAccepted, 100),
		jobAt(1, 2, 0, epoch.Add(time.Second), model.VerdictAccepted, 100),
		jobAt(2, 3, 0, epoch.Add(2*time.Second), model.VerdictWrongAnswer, 40),
	}

	rows, err := ranking.Rank(0, model.RankingRule{}, jobs, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	got := make(map[int64]int)
	for _, row := range rows {
		got[*row.User.ID] = row.Rank
	}
	// 1-2-2-4 shape: two users share rank 1 and the next rank is 3
	if got[1] != 1 || got[2] != 1 {
		t.Fatalf("expected users 1 and 2 to share rank 1, got %v", got)
	}
	if got[3] != 3 {
		t.Fatalf("expected user 3 at rank 3, got %v", got)
	}
	if got[0] != 4 {
		t.Fatalf("expected root at rank 4, got %v", got)
	}
}

func TestRankSubmissionTimeTieBreaker(t *testing.T) {
	users := []model.User{userAt(0, "root"), userAt(1, "a"), userAt(2, "b")}
	problems := []model.Problem{{ID: 0, Type: model.ProblemStandard, Cases: []model.Case{{Score: 100}}}}
	jobs := []*model.Job{
		jobAt(0, 2, 0, epoch, model.VerdictAccepted, 100),
		jobAt(1, 1, 0, epoch.Add(time.Hour), model.VerdictAccepted, 100),
	}

	rule := model.RankingRule{TieBreaker: model.TieBySubmissionTime}
	rows, err := ranking.Rank(0, rule, jobs, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if *rows[0].User.ID != 2 || rows[0].Rank != 1 {
		t.Fatalf("expected earlier submitter first, got user %d rank %d", *rows[0].User.ID, rows[0].Rank)
	}
	if *rows[1].User.ID != 1 || rows[1].Rank != 2 {
		t.Fatalf("expected later submitter second at rank 2, got user %d rank %d", *rows[1].User.ID, rows[1].Rank)
	}
}

func TestRankSubmissionCountTieBreaker(t *testing.T) {
	users := []model.User{userAt(1, "a"), userAt(2, "b")}
	problems := []model.Problem{{ID: 0, Type: model.ProblemStandard, Cases: []model.Case{{Score: 100}}}}
	jobs := []*model.Job{
		jobAt(0, 1, 0, epoch, model.VerdictWrongAnswer, 0),
		jobAt(1, 1, 0, epoch.Add(time.Minute), model.VerdictAccepted, 100),
		jobAt(2, 2, 0, epoch.Add(2*time.Minute), model.VerdictAccepted, 100),
	}

	rule := model.RankingRule{TieBreaker: model.TieBySubmissionCount}
	rows, err := ranking.Rank(0, rule, jobs, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if *rows[0].User.ID != 2 {
		t.Fatalf("expected the one-submission user first, got %d", *rows[0].User.ID)
	}
	if rows[1].Rank != 2 {
		t.Fatalf("expected distinct ranks, got %d", rows[1].Rank)
	}
}

func TestRankUsersWithoutSubmissionsShareLastGroup(t *testing.T) {
	users := []model.User{userAt(0, "root"), userAt(1, "a"), userAt(2, "b")}
	problems := []model.Problem{{ID: 0, Type: model.ProblemStandard, Cases: []model.Case{{Score: 100}}}}
	jobs := []*model.Job{
		jobAt(0, 1, 0, epoch, model.VerdictAccepted, 100),
	}

	rule := model.RankingRule{TieBreaker: model.TieBySubmissionTime}
	rows, err := ranking.Rank(0, rule, jobs, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	// root and b never submitted, both carry the sentinel time and tie
	if rows[1].Rank != 2 || rows[2].Rank != 2 {
		t.Fatalf("expected idle users to share rank 2, got %d and %d", rows[1].Rank, rows[2].Rank)
	}
}

func TestRankDynamicScoring(t *testing.T) {
	ratio := 0.5
	users := []model.User{userAt(1, "fast"), userAt(2, "slow")}
	problems := []model.Problem{{
		ID:    0,
		Type:  model.ProblemDynamicRanking,
		Misc:  model.Misc{DynamicRankingRatio: &ratio},
		Cases: []model.Case{{Score: 100}},
	}}

	fast := jobAt(0, 1, 0, epoch, model.VerdictAccepted, 100)
	fast.Cases = []model.CaseResult{{ID: 0}, {ID: 1, Result: model.VerdictAccepted, Time: 1000}}
	slow := jobAt(1, 2, 0, epoch.Add(time.Minute), model.VerdictAccepted, 100)
	slow.Cases = []model.CaseResult{{ID: 0}, {ID: 1, Result: model.VerdictAccepted, Time: 4000}}

	rows, err := ranking.Rank(0, model.RankingRule{}, []*model.Job{fast, slow}, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	got := make(map[int64]float64)
	for _, row := range rows {
		got[*row.User.ID] = row.Scores[0]
	}
	// fast: 100*0.5 + 100*0.5*(1000/1000) = 100
	if got[1] != 100 {
		t.Fatalf("expected the fastest run to keep full score, got %v", got[1])
	}
	// slow: 100*0.5 + 100*0.5*(1000/4000) = 62.5
	if got[2] != 62.5 {
		t.Fatalf("expected the slower run at 62.5, got %v", got[2])
	}
}

func TestRankDynamicScoringTimesLatestAcceptedJob(t *testing.T) {
	ratio := 0.5
	users := []model.User{userAt(1, "resubmitter"), userAt(2, "baseline")}
	problems := []model.Problem{{
		ID:    0,
		Type:  model.ProblemDynamicRanking,
		Misc:  model.Misc{DynamicRankingRatio: &ratio},
		Cases: []model.Case{{Score: 100}},
	}}

	// the newest accepted run is slower than the earlier one; its time
	// must be the one measured, even under the highest scoring rule
	newer := jobAt(5, 1, 0, epoch.Add(2*time.Minute), model.VerdictAccepted, 100)
	newer.Cases = []model.CaseResult{{ID: 0}, {ID: 1, Result: model.VerdictAccepted, Time: 4000}}
	older := jobAt(4, 1, 0, epoch.Add(time.Minute), model.VerdictAccepted, 100)
	older.Cases = []model.CaseResult{{ID: 0}, {ID: 1, Result: model.VerdictAccepted, Time: 2000}}
	fastest := jobAt(0, 2, 0, epoch, model.VerdictAccepted, 100)
	fastest.Cases = []model.CaseResult{{ID: 0}, {ID: 1, Result: model.VerdictAccepted, Time: 1000}}

	rule := model.RankingRule{ScoringRule: model.ScoringHighest}
	rows, err := ranking.Rank(0, rule, []*model.Job{newer, older, fastest}, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	got := make(map[int64]float64)
	for _, row := range rows {
		got[*row.User.ID] = row.Scores[0]
	}
	// 100*0.5 + 100*0.5*(1000/4000) = 62.5; timing the older run would give 75
	if got[1] != 62.5 {
		t.Fatalf("expected the newest accepted run to be timed, got %v", got[1])
	}
}

func TestRankDynamicScoringNoAcceptedJob(t *testing.T) {
	ratio := 0.4
	users := []model.User{userAt(1, "a")}
	problems := []model.Problem{{
		ID:    0,
		Type:  model.ProblemDynamicRanking,
		Misc:  model.Misc{DynamicRankingRatio: &ratio},
		Cases: []model.Case{{Score: 100}},
	}}
	job := jobAt(0, 1, 0, epoch, model.VerdictWrongAnswer, 60)
	job.Cases = []model.CaseResult{{ID: 0}, {ID: 1, Result: model.VerdictWrongAnswer, Time: 500}}

	rows, err := ranking.Rank(0, model.RankingRule{}, []*model.Job{job}, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	// only the static share of the representative score counts
	if want := 60 * (1 - ratio); rows[0].Scores[0] != want {
		t.Fatalf("expected %v, got %v", want, rows[0].Scores[0])
	}
}

func TestRankDynamicRatioMissing(t *testing.T) {
	users := []model.User{userAt(1, "a")}
	problems := []model.Problem{{ID: 7, Type: model.ProblemDynamicRanking, Cases: []model.Case{{Score: 100}}}}

	_, err := ranking.Rank(0, model.RankingRule{}, nil, users, problems)
	if !appErr.Is(err, appErr.RankingRatioMissing) {
		t.Fatalf("expected RankingRatioMissing, got %v", err)
	}
}

func TestRankContestScopeIncludesPracticeJobs(t *testing.T) {
	users := []model.User{userAt(1, "a")}
	problems := []model.Problem{{ID: 0, Type: model.ProblemStandard, Cases: []model.Case{{Score: 100}}}}
	practice := jobAt(0, 1, 0, epoch, model.VerdictAccepted, 100)
	other := jobAt(1, 1, 0, epoch.Add(time.Minute), model.VerdictWrongAnswer, 0)
	other.Submission.ContestID = 9

	rows, err := ranking.Rank(3, model.RankingRule{}, []*model.Job{practice, other}, users, problems)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	// job in contest 9 is outside scope 3, the practice job is the latest visible one
	if rows[0].Scores[0] != 100 {
		t.Fatalf("expected the practice job to count, got %v", rows[0].Scores[0])
	}
}

func TestRankUnknownRule(t *testing.T) {
	_, err := ranking.Rank(0, model.RankingRule{ScoringRule: "best"}, nil, nil, nil)
	if !appErr.Is(err, appErr.RankingRuleUnknown) {
		t.Fatalf("expected RankingRuleUnknown, got %v", err)
	}
	_, err = ranking.Rank(0, model.RankingRule{TieBreaker: "luck"}, nil, nil, nil)
	if !appErr.Is(err, appErr.RankingRuleUnknown) {
		t.Fatalf("expected RankingRuleUnknown, got %v", err)
	}
}
