// Package runner executes child processes with bound standard streams
// and wall-clock deadline supervision. One monitor goroutine per child
// blocks on the exit notification, the deadline timer or cancellation,
// whichever fires first.
package runner

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	appErr "ojudge/pkg/errors"
)

const defaultStderrMaxBytes = 64 * 1024

// Spec describes one child process run. Deadline 0 means unlimited.
type Spec struct {
	Argv       []string
	Dir        string
	StdinPath  string
	StdoutPath string
	Deadline   time.Duration
}

// Result is the outcome of one run. TimeUsed is in microseconds; when
// the deadline fired it equals the configured deadline, not the actual
// overrun.
type Result struct {
	ExitCode         int
	TimeUsed         int64
	Stderr           string
	DeadlineExceeded bool
}

// Runner runs one child process to completion.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ProcessRunner is the os/exec-backed Runner. The child is placed in its
// own process group so a kill reaches any helpers it forked.
type ProcessRunner struct {
	// StderrMaxBytes caps the captured stderr; excess is dropped.
	StderrMaxBytes int64
}

// New creates a ProcessRunner with the default stderr cap.
func New() *ProcessRunner {
	return &ProcessRunner{StderrMaxBytes: defaultStderrMaxBytes}
}

// Run spawns the process and supervises it until exit, deadline or
// cancellation.
func (r *ProcessRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if len(spec.Argv) == 0 {
		return Result{}, appErr.New(appErr.InvalidParams).WithMessage("empty argv")
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if spec.StdinPath != "" {
		stdin, err := os.Open(spec.StdinPath)
		if err != nil {
			return Result{}, appErr.Wrapf(err, appErr.WorkspaceIOFailed, "open stdin source failed")
		}
		defer stdin.Close()
		cmd.Stdin = stdin
	}
	if spec.StdoutPath != "" {
		stdout, err := os.Create(spec.StdoutPath)
		if err != nil {
			return Result{}, appErr.Wrapf(err, appErr.WorkspaceIOFailed, "create stdout sink failed")
		}
		defer stdout.Close()
		cmd.Stdout = stdout
	}

	maxStderr := r.StderrMaxBytes
	if maxStderr <= 0 {
		maxStderr = defaultStderrMaxBytes
	}
	stderr := &cappedBuffer{max: maxStderr}
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.JudgeSystemError, "spawn %s failed", spec.Argv[0])
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var deadlineTimer <-chan time.Time
	if spec.Deadline > 0 {
		timer := time.NewTimer(spec.Deadline)
		defer timer.Stop()
		deadlineTimer = timer.C
	}

	select {
	case waitErr := <-done:
		return Result{
			ExitCode: exitCode(waitErr, cmd),
			TimeUsed: time.Since(start).Microseconds(),
			Stderr:   stderr.String(),
		}, nil
	case <-deadlineTimer:
		killProcessGroup(cmd.Process.Pid)
		<-done
		return Result{
			ExitCode:         -1,
			TimeUsed:         spec.Deadline.Microseconds(),
			Stderr:           stderr.String(),
			DeadlineExceeded: true,
		}, nil
	case <-ctx.Done():
		killProcessGroup(cmd.Process.Pid)
		<-done
		return Result{
			ExitCode: -1,
			TimeUsed: time.Since(start).Microseconds(),
			Stderr:   stderr.String(),
		}, ctx.Err()
	}
}

func exitCode(waitErr error, cmd *exec.Cmd) int {
	if state := cmd.ProcessState; state != nil {
		return state.ExitCode()
	}
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// killProcessGroup delivers SIGKILL to the child's process group, falling
// back to the single pid when the group is already gone.
func killProcessGroup(pid int) {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

// cappedBuffer keeps the first max bytes written and drops the rest.
type cappedBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int64
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remain := b.max - int64(len(b.buf)); remain > 0 {
		if int64(len(p)) > remain {
			b.buf = append(b.buf, p[:remain]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
