package runner_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"ojudge/internal/judge/runner"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunExitCodeAndStderr(t *testing.T) {
	requireUnix(t)
	r := runner.New()

	res, err := r.Run(context.Background(), runner.Spec{
		Argv: []string{"/bin/sh", "-c", "echo oops >&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "oops") {
		t.Fatalf("expected stderr to contain oops, got %q", res.Stderr)
	}
	if res.DeadlineExceeded {
		t.Fatal("unexpected deadline flag")
	}
}

func TestRunRedirectsStdinAndStdout(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.txt")
	outPath := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(inPath, []byte("hello\n"), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	r := runner.New()
	res, err := r.Run(context.Background(), runner.Spec{
		Argv:       []string{"/bin/cat"},
		StdinPath:  inPath,
		StdoutPath: outPath,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(out) != "hello\n" {
		t.Fatalf("expected echoed input, got %q", out)
	}
	if res.TimeUsed <= 0 {
		t.Fatalf("expected a positive time, got %d", res.TimeUsed)
	}
}

func TestRunDeadlineKillsProcess(t *testing.T) {
	requireUnix(t)
	r := runner.New()

	deadline := 100 * time.Millisecond
	start := time.Now()
	res, err := r.Run(context.Background(), runner.Spec{
		Argv:     []string{"/bin/sh", "-c", "sleep 5"},
		Deadline: deadline,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("deadline did not fire, waited %v", elapsed)
	}
	if !res.DeadlineExceeded {
		t.Fatal("expected the deadline flag")
	}
	if res.TimeUsed != deadline.Microseconds() {
		t.Fatalf("expected reported time %d, got %d", deadline.Microseconds(), res.TimeUsed)
	}
}

func TestRunContextCancel(t *testing.T) {
	requireUnix(t)
	r := runner.New()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Run(ctx, runner.Spec{
		Argv: []string{"/bin/sh", "-c", "sleep 5"},
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("cancel did not interrupt, waited %v", elapsed)
	}
}

func TestRunMissingBinary(t *testing.T) {
	requireUnix(t)
	r := runner.New()

	if _, err := r.Run(context.Background(), runner.Spec{
		Argv: []string{"/nonexistent-binary"},
	}); err == nil {
		t.Fatal("expected a spawn error")
	}
}
