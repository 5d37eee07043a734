package process

import (
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	circbuf "github.com/armon/go-circbuf"

	"github.com/cuemby/gplmt/pkg/types"
)

// maxCapturedBytes bounds how much of each of a command's stdout and
// stderr streams is retained for logging (each stream has its own
// buffer of this size); commands that write more keep
// running (and their real exit status is still observed), only the
// oldest captured output is dropped.
const maxCapturedBytes = 64 * 1024

// Result is the outcome of a completed or cancelled local command.
// Stdout and Stderr are captured separately so a caller can write them
// to the node/task-named ".out"/".err" log files the testbed's log
// root lays out; Output is their naive concatenation, kept for callers
// (and tests) that only care about "did this text appear anywhere".
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Cancelled bool
	Duration  time.Duration
}

// Output concatenates Stdout and Stderr in capture order for callers
// that don't need them distinguished.
func (r *Result) Output() string { return r.Stdout + r.Stderr }

// Run executes command through "sh -c", in its own process group, with
// env appended to the current process's environment. It blocks until
// the command exits or ctx is done; on cancellation the whole process
// group is sent SIGTERM and Result.Cancelled is true rather than
// returning an error.
func Run(ctx context.Context, command string, env []string) (*Result, error) {
	stdout, err := circbuf.NewBuffer(maxCapturedBytes)
	if err != nil {
		return nil, &types.SetupError{Message: "allocating output buffer", Cause: err}
	}
	stderr, err := circbuf.NewBuffer(maxCapturedBytes)
	if err != nil {
		return nil, &types.SetupError{Message: "allocating output buffer", Cause: err}
	}

	cmd := exec.Command("sh", "-c", command)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &types.ExecutionError{Message: "failed to start command", Cause: err}
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return &Result{
			ExitCode: exitCodeOf(err),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, nil
	case <-ctx.Done():
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		<-waitCh
		return &Result{
			Stdout:    stdout.String(),
			Stderr:    stderr.String(),
			Cancelled: true,
			Duration:  time.Since(start),
		}, nil
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
