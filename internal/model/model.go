// Package model holds the judging data model shared by the judge pipeline,
// the ranking engine, the stores and the HTTP layer.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProblemType selects the comparison strategy for a problem.
type ProblemType string

const (
	ProblemStandard       ProblemType = "standard"
	ProblemStrict         ProblemType = "strict"
	ProblemSPJ            ProblemType = "spj"
	ProblemDynamicRanking ProblemType = "dynamic_ranking"
)

// JobState is the lifecycle state of a job.
type JobState string

const (
	StateQueueing JobState = "Queueing"
	StateRunning  JobState = "Running"
	StateFinished JobState = "Finished"
	StateCanceled JobState = "Canceled"
)

// Verdict is the outcome of one test case, also used as the job-level
// overall result. The wire names carry spaces; clients depend on them.
type Verdict string

const (
	VerdictWaiting             Verdict = "Waiting"
	VerdictRunning             Verdict = "Running"
	VerdictAccepted            Verdict = "Accepted"
	VerdictCompilationError    Verdict = "Compilation Error"
	VerdictCompilationSuccess  Verdict = "Compilation Success"
	VerdictWrongAnswer         Verdict = "Wrong Answer"
	VerdictRuntimeError        Verdict = "Runtime Error"
	VerdictTimeLimitExceeded   Verdict = "Time Limit Exceeded"
	VerdictMemoryLimitExceeded Verdict = "Memory Limit Exceeded"
	VerdictSystemError         Verdict = "System Error"
	VerdictSPJError            Verdict = "SPJ Error"
	VerdictSkipped             Verdict = "Skipped"
)

var knownVerdicts = map[Verdict]bool{
	VerdictWaiting:             true,
	VerdictRunning:             true,
	VerdictAccepted:            true,
	VerdictCompilationError:    true,
	VerdictCompilationSuccess:  true,
	VerdictWrongAnswer:         true,
	VerdictRuntimeError:        true,
	VerdictTimeLimitExceeded:   true,
	VerdictMemoryLimitExceeded: true,
	VerdictSystemError:         true,
	VerdictSPJError:            true,
	VerdictSkipped:             true,
}

// ParseVerdict maps a wire name to a Verdict, reporting whether it is known.
func ParseVerdict(s string) (Verdict, bool) {
	v := Verdict(s)
	return v, knownVerdicts[v]
}

// TimeLayout is the wire timestamp layout, millisecond precision, UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Timestamp wraps time.Time with the fixed wire layout.
type Timestamp struct {
	time.Time
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{time.Now().UTC()}
}

// At wraps a time.Time.
func At(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(TimeLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(TimeLayout, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// String renders the wire layout.
func (t Timestamp) String() string {
	return t.UTC().Format(TimeLayout)
}

// Case is one test case of a problem. TimeLimit is in microseconds,
// 0 meaning unlimited. MemoryLimit is informational only.
type Case struct {
	Score       float64 `json:"score"`
	InputFile   string  `json:"input_file"`
	AnswerFile  string  `json:"answer_file"`
	TimeLimit   int64   `json:"time_limit"`
	MemoryLimit int64   `json:"memory_limit"`
}

// Misc holds mode-specific problem settings.
type Misc struct {
	// SpecialJudge is the verifier argv template; %ANSWER% and %OUTPUT%
	// are substituted at invocation time.
	SpecialJudge []string `json:"special_judge,omitempty"`

	// DynamicRankingRatio is the dynamic score share in [0,1].
	DynamicRankingRatio *float64 `json:"dynamic_ranking_ratio,omitempty"`
}

// Problem is one judgeable problem.
type Problem struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Type  ProblemType `json:"type"`
	Misc  Misc        `json:"misc"`
	Cases []Case      `json:"cases"`

	// DataPack optionally names a tar.zst archive holding the case files;
	// case paths then resolve against the extracted pack directory.
	DataPack string `json:"data_pack,omitempty"`
}

// Language describes how to build a submission. Command is an argv
// template whose first token is the compiler; %INPUT% and %OUTPUT% are
// substituted with the workspace source path and the binary path.
type Language struct {
	Name     string   `json:"name"`
	FileName string   `json:"file_name"`
	Command  []string `json:"command"`
}

// Submission is the judgeable payload. ContestID 0 means practice.
type Submission struct {
	SourceCode string `json:"source_code"`
	Language   string `json:"language"`
	UserID     int64  `json:"user_id"`
	ContestID  int64  `json:"contest_id"`
	ProblemID  int64  `json:"problem_id"`
}

// CaseResult is the outcome of one case slot. Slot 0 is the compile
// phase; slots 1..N are the problem cases in order. Time is microseconds.
type CaseResult struct {
	ID     int     `json:"id"`
	Result Verdict `json:"result"`
	Time   int64   `json:"time"`
	Memory int64   `json:"memory"`
	Info   string  `json:"info"`
}

// Job is one judgment of a submission. It is immutable once finished
// except for a full rejudge, which rewrites state/result/score/cases in
// place, keeping identity and creation time.
type Job struct {
	ID          int64        `json:"id"`
	CreatedTime Timestamp    `json:"created_time"`
	UpdatedTime Timestamp    `json:"updated_time"`
	Submission  Submission   `json:"submission"`
	State       JobState     `json:"state"`
	Result      Verdict      `json:"result"`
	Score       float64      `json:"score"`
	Cases       []CaseResult `json:"cases"`
}

// NewQueuedJob creates a job in the Queueing state with every case slot
// (compile phase included) pre-filled as Waiting, so the case list shape
// is constant for the whole job lifetime.
func NewQueuedJob(id int64, sub Submission, caseCount int, now Timestamp) *Job {
	return &Job{
		ID:          id,
		CreatedTime: now,
		UpdatedTime: now,
		Submission:  sub,
		State:       StateQueueing,
		Result:      VerdictWaiting,
		Cases:       WaitingCases(caseCount),
	}
}

// WaitingCases builds 1+caseCount Waiting case slots.
func WaitingCases(caseCount int) []CaseResult {
	cases := make([]CaseResult, 0, caseCount+1)
	for i := 0; i <= caseCount; i++ {
		cases = append(cases, CaseResult{ID: i, Result: VerdictWaiting})
	}
	return cases
}

// Contest is a contest definition. The open window is [From, To).
type Contest struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	From            Timestamp `json:"from"`
	To              Timestamp `json:"to"`
	ProblemIDs      []int64   `json:"problem_ids"`
	UserIDs         []int64   `json:"user_ids"`
	SubmissionLimit int       `json:"submission_limit"`
}

// HasProblem reports whether the contest contains the problem.
func (c *Contest) HasProblem(id int64) bool {
	for _, pid := range c.ProblemIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// HasUser reports whether the contest contains the user.
func (c *Contest) HasUser(id int64) bool {
	for _, uid := range c.UserIDs {
		if uid == id {
			return true
		}
	}
	return false
}

// User is a judge account. ID 0 is the built-in root account.
type User struct {
	ID   *int64 `json:"id,omitempty"`
	Name string `json:"name"`
}

// ScoringRule picks the representative job among a user's submissions.
type ScoringRule string

const (
	ScoringLatest  ScoringRule = "latest"
	ScoringHighest ScoringRule = "highest"
)

// TieBreaker is the secondary ordering key among equal totals.
type TieBreaker string

const (
	TieBySubmissionTime  TieBreaker = "submission_time"
	TieBySubmissionCount TieBreaker = "submission_count"
	TieByUserID          TieBreaker = "user_id"
)

// RankingRule configures standings computation. Zero values mean the
// defaults: latest scoring, user-id ordering with ranks shared on equal
// totals alone.
type RankingRule struct {
	ScoringRule ScoringRule `json:"scoring_rule,omitempty" form:"scoring_rule"`
	TieBreaker  TieBreaker  `json:"tie_breaker,omitempty" form:"tie_breaker"`
}

// RankRow is one standings entry.
type RankRow struct {
	User   User      `json:"user"`
	Rank   int       `json:"rank"`
	Scores []float64 `json:"scores"`
}
