// Package judge orchestrates one submission end to end: workspace
// preparation, compilation, per-case execution and verdict aggregation.
package judge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ojudge/internal/datapack"
	"ojudge/internal/judge/runner"
	"ojudge/internal/model"
	appErr "ojudge/pkg/errors"
	"ojudge/pkg/utils/logger"
)

const (
	binaryName = "target"
	outputName = "output"
)

// CaseChecker classifies one produced output against the reference.
type CaseChecker interface {
	Check(ctx context.Context, problem model.Problem, workDir, answerPath, outputPath string) (model.Verdict, string, error)
}

// Engine judges submissions. It owns no mutable state besides the work
// root; concurrent Judge calls each use an isolated workspace.
type Engine struct {
	runner   runner.Runner
	checker  CaseChecker
	packs    *datapack.Resolver
	workRoot string
}

// NewEngine creates a judge engine.
func NewEngine(r runner.Runner, c CaseChecker, packs *datapack.Resolver, workRoot string) *Engine {
	return &Engine{
		runner:   r,
		checker:  c,
		packs:    packs,
		workRoot: workRoot,
	}
}

// Judge runs the full pipeline for one submission and returns the
// finished job. Identity and creation time are the caller's; judging
// never mutates stored records itself. Any workspace or spawn failure
// aborts with an error and no job is produced.
func (e *Engine) Judge(ctx context.Context, jobID int64, sub model.Submission, problem model.Problem, lang model.Language, created, updated model.Timestamp) (*model.Job, error) {
	workDir := filepath.Join(e.workRoot, fmt.Sprintf("job-%d-%s", jobID, uuid.NewString()))
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceIOFailed, "create workspace failed")
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn(ctx, "workspace cleanup failed", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	sourcePath := filepath.Join(workDir, lang.FileName)
	if err := os.WriteFile(sourcePath, []byte(sub.SourceCode), 0644); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceIOFailed, "write source failed")
	}

	job := &model.Job{
		ID:          jobID,
		CreatedTime: created,
		UpdatedTime: updated,
		Submission:  sub,
		State:       model.StateFinished,
		Result:      model.VerdictAccepted,
		Cases:       make([]model.CaseResult, 0, len(problem.Cases)+1),
	}

	binaryPath := filepath.Join(workDir, binaryName)
	compileRes, err := e.runner.Run(ctx, runner.Spec{
		Argv: compileArgv(lang, sourcePath, binaryPath),
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CompileSpawnFailed, "run compiler failed")
	}

	if compileRes.ExitCode != 0 {
		job.Result = model.VerdictCompilationError
		job.Cases = append(job.Cases, model.CaseResult{
			ID:     0,
			Result: model.VerdictCompilationError,
			Time:   compileRes.TimeUsed,
			Info:   compileRes.Stderr,
		})
		for i := 1; i <= len(problem.Cases); i++ {
			job.Cases = append(job.Cases, model.CaseResult{ID: i, Result: model.VerdictWaiting})
		}
		return job, nil
	}

	job.Cases = append(job.Cases, model.CaseResult{
		ID:     0,
		Result: model.VerdictCompilationSuccess,
		Time:   compileRes.TimeUsed,
	})

	for i, tc := range problem.Cases {
		caseRes, err := e.runCase(ctx, problem, tc, i+1, workDir, binaryPath)
		if err != nil {
			return nil, err
		}
		job.Cases = append(job.Cases, caseRes)
		if caseRes.Result == model.VerdictAccepted {
			job.Score += tc.Score
		} else if job.Result == model.VerdictAccepted {
			// first failure wins and is sticky
			job.Result = caseRes.Result
		}
	}

	return job, nil
}

func (e *Engine) runCase(ctx context.Context, problem model.Problem, tc model.Case, id int, workDir, binaryPath string) (model.CaseResult, error) {
	inputPath, err := e.packs.CasePath(problem, tc.InputFile)
	if err != nil {
		return model.CaseResult{}, err
	}
	answerPath, err := e.packs.CasePath(problem, tc.AnswerFile)
	if err != nil {
		return model.CaseResult{}, err
	}
	if _, err := os.Stat(inputPath); err != nil {
		return model.CaseResult{}, appErr.Wrapf(err, appErr.WorkspaceIOFailed, "open case input failed")
	}

	outputPath := filepath.Join(workDir, outputName)
	runRes, err := e.runner.Run(ctx, runner.Spec{
		Argv:       []string{binaryPath},
		StdinPath:  inputPath,
		StdoutPath: outputPath,
		Deadline:   time.Duration(tc.TimeLimit) * time.Microsecond,
	})
	if err != nil {
		return model.CaseResult{}, appErr.Wrapf(err, appErr.JudgeSystemError, "run case failed")
	}

	if runRes.DeadlineExceeded {
		return model.CaseResult{
			ID:     id,
			Result: model.VerdictTimeLimitExceeded,
			Time:   tc.TimeLimit,
			Info:   fmt.Sprintf("Time limit: %d", tc.TimeLimit),
		}, nil
	}
	if runRes.ExitCode != 0 {
		return model.CaseResult{
			ID:     id,
			Result: model.VerdictRuntimeError,
			Time:   runRes.TimeUsed,
			Info:   runRes.Stderr,
		}, nil
	}

	verdict, info, err := e.checker.Check(ctx, problem, workDir, answerPath, outputPath)
	if err != nil {
		return model.CaseResult{}, err
	}
	return model.CaseResult{
		ID:     id,
		Result: verdict,
		Time:   runRes.TimeUsed,
		Info:   info,
	}, nil
}

func compileArgv(lang model.Language, sourcePath, binaryPath string) []string {
	argv := make([]string, 0, len(lang.Command))
	for _, token := range lang.Command {
		switch token {
		case "%INPUT%":
			argv = append(argv, sourcePath)
		case "%OUTPUT%":
			argv = append(argv, binaryPath)
		default:
			argv = append(argv, token)
		}
	}
	return argv
}
