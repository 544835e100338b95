// Package checker decides per-case verdicts: normalized or byte-exact
// output comparison, or delegation to an external special judge process.
package checker

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"ojudge/internal/judge/runner"
	"ojudge/internal/model"
	appErr "ojudge/pkg/errors"
)

const (
	spjOutputName = "spj_output"
	infoMaxBytes  = 64 * 1024
)

// Checker classifies case outputs. The runner is only used for the
// special-judge mode.
type Checker struct {
	runner runner.Runner
}

// New creates a Checker on top of the given process runner.
func New(r runner.Runner) *Checker {
	return &Checker{runner: r}
}

// Check compares the produced output against the reference answer
// according to the problem type and returns the case verdict with its
// diagnostic info. workDir is scratch space owned by the current case.
// An error is returned only for I/O failures; special-judge protocol
// violations degrade to an SPJ Error verdict instead.
func (c *Checker) Check(ctx context.Context, problem model.Problem, workDir, answerPath, outputPath string) (model.Verdict, string, error) {
	switch problem.Type {
	case model.ProblemStrict:
		output, answer, err := readPair(outputPath, answerPath)
		if err != nil {
			return model.VerdictSystemError, "", err
		}
		if bytes.Equal(output, answer) {
			return model.VerdictAccepted, clip(string(output)), nil
		}
		return model.VerdictWrongAnswer, clip(string(output)), nil

	case model.ProblemSPJ:
		verdict, info := c.runSpecialJudge(ctx, problem, workDir, answerPath, outputPath)
		return verdict, info, nil

	default: // standard and dynamic_ranking share the text comparison
		output, answer, err := readPair(outputPath, answerPath)
		if err != nil {
			return model.VerdictSystemError, "", err
		}
		if TextEqual(string(output), string(answer)) {
			return model.VerdictAccepted, clip(string(output)), nil
		}
		return model.VerdictWrongAnswer, clip(string(output)), nil
	}
}

// TextEqual implements the normalized comparison: split on line breaks,
// trim surrounding whitespace per line, compare pairwise. Line counts
// must match, but a terminal newline does not make an extra line, so
// "a\nb\n" and "a\nb" compare equal while "a\nb\nc" does not.
func TextEqual(output, answer string) bool {
	outLines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	ansLines := strings.Split(strings.TrimRight(answer, "\n"), "\n")
	if len(outLines) != len(ansLines) {
		return false
	}
	for i := range outLines {
		if strings.TrimSpace(outLines[i]) != strings.TrimSpace(ansLines[i]) {
			return false
		}
	}
	return true
}

// runSpecialJudge invokes the configured verifier and parses its two-line
// protocol: a verdict name, then free-text info.
func (c *Checker) runSpecialJudge(ctx context.Context, problem model.Problem, workDir, answerPath, outputPath string) (model.Verdict, string) {
	command := problem.Misc.SpecialJudge
	if len(command) == 0 {
		return model.VerdictSPJError, "Special judge command not found"
	}

	argv := make([]string, 0, len(command))
	for _, token := range command {
		switch token {
		case "%ANSWER%":
			argv = append(argv, answerPath)
		case "%OUTPUT%":
			argv = append(argv, outputPath)
		default:
			argv = append(argv, token)
		}
	}

	spjStdout := filepath.Join(workDir, spjOutputName)
	res, err := c.runner.Run(ctx, runner.Spec{
		Argv:       argv,
		StdoutPath: spjStdout,
	})
	if err != nil || res.ExitCode != 0 {
		return model.VerdictSPJError, "Error occurred while calling the special judger"
	}

	raw, err := os.ReadFile(spjStdout)
	if err != nil {
		return model.VerdictSPJError, "Error occurred while calling the special judger"
	}

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 2 {
		return model.VerdictSPJError, "Invalid special judge output."
	}
	verdict, ok := model.ParseVerdict(lines[0])
	if !ok {
		return model.VerdictSPJError, "Invalid special judge output."
	}
	return verdict, lines[1]
}

func readPair(outputPath, answerPath string) ([]byte, []byte, error) {
	output, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, nil, appErr.Wrapf(err, appErr.WorkspaceIOFailed, "read output failed")
	}
	answer, err := os.ReadFile(answerPath)
	if err != nil {
		return nil, nil, appErr.Wrapf(err, appErr.WorkspaceIOFailed, "read answer failed")
	}
	return output, answer, nil
}

func clip(s string) string {
	if len(s) > infoMaxBytes {
		return s[:infoMaxBytes]
	}
	return s
}
