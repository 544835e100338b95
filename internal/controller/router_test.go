package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ojudge/internal/cache"
	"ojudge/internal/config"
	"ojudge/internal/controller"
	"ojudge/internal/model"
	"ojudge/internal/repository"
	"ojudge/internal/service"
)

type acceptingJudger struct{}

func (acceptingJudger) Judge(ctx context.Context, jobID int64, sub model.Submission, problem model.Problem, lang model.Language, created, updated model.Timestamp) (*model.Job, error) {
	job := model.NewQueuedJob(jobID, sub, len(problem.Cases), created)
	job.UpdatedTime = updated
	job.Result = model.VerdictAccepted
	job.Score = 100
	return job, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Problems: []model.Problem{{
			ID:    0,
			Name:  "aplusb",
			Type:  model.ProblemStandard,
			Cases: []model.Case{{Score: 100, InputFile: "1.in", AnswerFile: "1.ans"}},
		}},
		Languages: []model.Language{{
			Name:     "Rust",
			FileName: "main.rs",
			Command:  []string{"rustc", "%INPUT%", "-o", "%OUTPUT%"},
		}},
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *repository.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	store := repository.NewMemoryStore()
	standings := cache.NewStandingsCache(nil)
	jobs := service.NewJudgeService(cfg, store, acceptingJudger{}, standings, 1)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = jobs.Shutdown(ctx)
	})
	users := service.NewUserService(store)
	contests := service.NewContestService(cfg, store, standings)
	return controller.NewRouter(jobs, users, contests, func() {}), store
}

func do(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPostJobsReturnsQueuedJob(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/jobs",
		`{"source_code":"fn main() {}","language":"Rust","user_id":0,"contest_id":0,"problem_id":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var job model.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if job.ID != 0 || job.State != model.StateQueueing || job.Result != model.VerdictWaiting {
		t.Fatalf("unexpected job %+v", job)
	}
	if len(job.Cases) != 2 {
		t.Fatalf("expected compile slot plus one case, got %d slots", len(job.Cases))
	}
}

func TestPostJobsUnknownLanguage(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/jobs",
		`{"source_code":"","language":"Brainfuck","user_id":0,"contest_id":0,"problem_id":0}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != 3 || body.Reason != "ERR_NOT_FOUND" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestGetJobsRejectsBadQuery(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/jobs?problem_id=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Reason != "ERR_INVALID_ARGUMENT" {
		t.Fatalf("unexpected reason %q", body.Reason)
	}
}

func TestGetJobByIDNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/jobs/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestUsersRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/users", `{"name":"alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var user model.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if user.ID == nil || *user.ID != 1 || user.Name != "alice" {
		t.Fatalf("unexpected user %+v", user)
	}

	rec = do(t, router, http.MethodGet, "/users", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var users []model.User
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(users) != 2 || users[0].Name != "root" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestPostUsersDuplicateName(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/users", `{"name":"root"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestContestsRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/contests",
		`{"name":"warmup","from":"2026-08-01T00:00:00.000Z","to":"2026-09-01T00:00:00.000Z","problem_ids":[0],"user_ids":[0],"submission_limit":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var contest model.Contest
	if err := json.Unmarshal(rec.Body.Bytes(), &contest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if contest.ID != 1 {
		t.Fatalf("expected contest id 1, got %d", contest.ID)
	}

	rec = do(t, router, http.MethodGet, "/contests/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/contests/0", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRanklistEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	job, err := store.CreateJob(context.Background(), model.Submission{UserID: 0, ProblemID: 0, Language: "Rust"}, 1)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	job.State = model.StateFinished
	job.Result = model.VerdictAccepted
	job.Score = 100
	if err := store.UpdateJob(context.Background(), job); err != nil {
		t.Fatalf("update job: %v", err)
	}

	rec := do(t, router, http.MethodGet, "/contests/0/ranklist?scoring_rule=latest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var rows []model.RankRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(rows) != 1 || rows[0].Rank != 1 || rows[0].Scores[0] != 100 {
		t.Fatalf("unexpected rows %+v", rows)
	}

	rec = do(t, router, http.MethodGet, "/contests/0/ranklist?scoring_rule=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestTraceHeaderEchoed(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("X-Trace-Id", "trace-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Trace-Id"); got != "trace-123" {
		t.Fatalf("expected trace header echoed, got %q", got)
	}

	rec = do(t, router, http.MethodGet, "/users", "")
	if rec.Header().Get("X-Trace-Id") == "" {
		t.Fatal("expected a generated trace id")
	}
}

func TestInternalExit(t *testing.T) {
	called := make(chan struct{}, 1)
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	store := repository.NewMemoryStore()
	standings := cache.NewStandingsCache(nil)
	jobs := service.NewJudgeService(cfg, store, acceptingJudger{}, standings, 1)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = jobs.Shutdown(ctx)
	})
	router := controller.NewRouter(jobs, service.NewUserService(store), service.NewContestService(cfg, store, standings),
		func() { called <- struct{}{} })

	rec := do(t, router, http.MethodPost, "/internal/exit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook never invoked")
	}
}
