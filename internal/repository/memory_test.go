package repository_test

import (
	"context"
	"testing"

	"ojudge/internal/model"
	"ojudge/internal/repository"
	appErr "ojudge/pkg/errors"
)

func TestMemoryStoreSeedsRoot(t *testing.T) {
	s := repository.NewMemoryStore()
	user, err := s.GetUser(context.Background(), 0)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if user.Name != repository.RootUserName {
		t.Fatalf("expected root, got %q", user.Name)
	}
}

func TestMemoryStoreJobIDsStartAtZero(t *testing.T) {
	s := repository.NewMemoryStore()
	ctx := context.Background()

	first, err := s.CreateJob(ctx, model.Submission{UserID: 0, ProblemID: 0}, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.CreateJob(ctx, model.Submission{UserID: 0, ProblemID: 0}, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID != 0 || second.ID != 1 {
		t.Fatalf("expected ids 0 and 1, got %d and %d", first.ID, second.ID)
	}
	if first.State != model.StateQueueing || first.Result != model.VerdictWaiting {
		t.Fatalf("unexpected initial job %+v", first)
	}
	if len(first.Cases) != 3 {
		t.Fatalf("expected 3 waiting slots, got %d", len(first.Cases))
	}
}

func TestMemoryStoreGetJobCopies(t *testing.T) {
	s := repository.NewMemoryStore()
	ctx := context.Background()
	job, _ := s.CreateJob(ctx, model.Submission{}, 1)

	job.Cases[0].Result = model.VerdictCompilationSuccess
	stored, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Cases[0].Result != model.VerdictWaiting {
		t.Fatal("mutating a returned job leaked into the store")
	}
}

func TestMemoryStoreUpdateJob(t *testing.T) {
	s := repository.NewMemoryStore()
	ctx := context.Background()
	job, _ := s.CreateJob(ctx, model.Submission{}, 1)

	job.State = model.StateFinished
	job.Result = model.VerdictAccepted
	job.Score = 100
	if err := s.UpdateJob(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ := s.GetJob(ctx, job.ID)
	if stored.State != model.StateFinished || stored.Score != 100 {
		t.Fatalf("update lost, got %+v", stored)
	}

	missing := *job
	missing.ID = 99
	if err := s.UpdateJob(ctx, &missing); !appErr.Is(err, appErr.JobNotFound) {
		t.Fatalf("expected JobNotFound, got %v", err)
	}
}

func TestMemoryStoreGetJobNotFound(t *testing.T) {
	s := repository.NewMemoryStore()
	if _, err := s.GetJob(context.Background(), 0); !appErr.Is(err, appErr.JobNotFound) {
		t.Fatalf("expected JobNotFound, got %v", err)
	}
}

func TestMemoryStoreUsers(t *testing.T) {
	s := repository.NewMemoryStore()
	ctx := context.Background()

	alice, err := s.SaveUser(ctx, model.User{Name: "alice"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if alice.ID == nil || *alice.ID != 1 {
		t.Fatalf("expected id 1, got %+v", alice)
	}

	if _, err := s.SaveUser(ctx, model.User{Name: "alice"}); !appErr.Is(err, appErr.UserNameTaken) {
		t.Fatalf("expected UserNameTaken, got %v", err)
	}

	renamed, err := s.SaveUser(ctx, model.User{ID: alice.ID, Name: "alicia"})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "alicia" {
		t.Fatalf("unexpected rename result %+v", renamed)
	}

	missing := int64(42)
	if _, err := s.SaveUser(ctx, model.User{ID: &missing, Name: "ghost"}); !appErr.Is(err, appErr.UserNotFound) {
		t.Fatalf("expected UserNotFound, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 || users[0].Name != repository.RootUserName || users[1].Name != "alicia" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestMemoryStoreContests(t *testing.T) {
	s := repository.NewMemoryStore()
	ctx := context.Background()

	contest, err := s.CreateContest(ctx, model.Contest{Name: "warmup", ProblemIDs: []int64{0}, UserIDs: []int64{0}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if contest.ID != 1 {
		t.Fatalf("expected contest id 1, got %d", contest.ID)
	}

	contest.Name = "final"
	if err := s.UpdateContest(ctx, contest); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, err := s.GetContest(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Name != "final" {
		t.Fatalf("update lost, got %+v", stored)
	}

	if _, err := s.GetContest(ctx, 0); !appErr.Is(err, appErr.ContestNotFound) {
		t.Fatalf("expected ContestNotFound for id 0, got %v", err)
	}
	if err := s.UpdateContest(ctx, model.Contest{ID: 9}); !appErr.Is(err, appErr.ContestNotFound) {
		t.Fatalf("expected ContestNotFound, got %v", err)
	}
}

func TestMemoryStoreFlush(t *testing.T) {
	s := repository.NewMemoryStore()
	ctx := context.Background()
	_, _ = s.CreateJob(ctx, model.Submission{}, 1)
	_, _ = s.SaveUser(ctx, model.User{Name: "alice"})
	_, _ = s.CreateContest(ctx, model.Contest{Name: "c"})

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	jobs, _ := s.ListJobs(ctx)
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
	users, _ := s.ListUsers(ctx)
	if len(users) != 1 || users[0].Name != repository.RootUserName {
		t.Fatalf("expected only root after flush, got %+v", users)
	}
	contests, _ := s.ListContests(ctx)
	if len(contests) != 0 {
		t.Fatalf("expected no contests, got %d", len(contests))
	}
	// id allocation restarts too
	job, _ := s.CreateJob(ctx, model.Submission{}, 0)
	if job.ID != 0 {
		t.Fatalf("expected job ids to restart at 0, got %d", job.ID)
	}
}
