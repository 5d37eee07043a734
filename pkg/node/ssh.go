package node

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	circbuf "github.com/armon/go-circbuf"

	"github.com/cuemby/gplmt/pkg/connect"
	"github.com/cuemby/gplmt/pkg/log"
	"github.com/cuemby/gplmt/pkg/metrics"
	"github.com/cuemby/gplmt/pkg/process"
	"github.com/cuemby/gplmt/pkg/shellsafe"
	"github.com/cuemby/gplmt/pkg/transfer"
	"github.com/cuemby/gplmt/pkg/types"
)

const maxCapturedBytes = 64 * 1024

// SSHExecutor runs commands and transfers files over OpenSSH, reusing
// one ControlMaster connection per node for the lifetime of the run.
type SSHExecutor struct {
	node *types.Node
	gov  *connect.Governor

	masterMu    sync.Mutex
	masterReady bool
	controlPath string
}

// NewSSHExecutor builds an Executor for a types.NodeSSH node. gov may
// be nil, in which case connections are never rate-limited or bounded.
func NewSSHExecutor(n *types.Node, gov *connect.Governor) *SSHExecutor {
	return &SSHExecutor{
		node:        n,
		gov:         gov,
		controlPath: controlPathFor(n),
	}
}

func controlPathFor(n *types.Node) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ssh", fmt.Sprintf("gplmt-%s@%s:%d", n.Host, n.User, n.Port))
}

func (e *SSHExecutor) target() string {
	return fmt.Sprintf("%s@%s", e.node.User, e.node.Host)
}

func (e *SSHExecutor) scpOptions() transfer.Options {
	return transfer.Options{
		Target:      e.target(),
		Port:        e.node.Port,
		ExtraArgs:   e.node.ExtraArgs,
		ControlPath: e.controlPath,
	}
}

// establishMaster starts a persistent ControlMaster connection the
// first time it's needed; subsequent calls are a no-op once the
// control socket exists, mirroring the original's establish_master.
func (e *SSHExecutor) establishMaster(ctx context.Context) error {
	e.masterMu.Lock()
	defer e.masterMu.Unlock()

	if e.masterReady {
		return nil
	}
	if _, err := os.Stat(e.controlPath); err == nil {
		e.masterReady = true
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(e.controlPath), 0o700); err != nil {
		return &types.SetupError{Message: "creating ssh control-path directory", Cause: err}
	}

	argv := []string{
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=no",
		"-o", "ControlPath=" + e.controlPath,
		"-o", "ControlMaster=yes",
		"-o", "ControlPersist=yes",
		e.target(), "true",
	}

	timer := metrics.NewTimer()
	cmd := exec.CommandContext(ctx, "ssh", argv...)
	err := cmd.Run()
	timer.ObserveDuration(metrics.SSHHandshakeDuration)

	if err != nil {
		metrics.SSHHandshakesTotal.WithLabelValues("error").Inc()
		return &types.ExecutionError{
			Message: fmt.Sprintf("failed to create ssh master connection to %q", e.node.Name),
			Node:    e.node.Name,
			Cause:   err,
		}
	}
	metrics.SSHHandshakesTotal.WithLabelValues("ok").Inc()
	e.masterReady = true
	return nil
}

func (e *SSHExecutor) acquire(ctx context.Context) (func(), error) {
	if e.gov == nil {
		return func() {}, nil
	}
	return e.gov.Acquire(ctx)
}

func (e *SSHExecutor) Execute(ctx context.Context, pol types.RunPolicy, env types.Env) (*process.Result, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.establishMaster(ctx); err != nil {
		return nil, err
	}

	merged := e.node.Env.With(env)
	command := pol.Command
	if len(merged) > 0 {
		command = shellsafe.WrapEnv(command, merged)
	}

	argv := []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "BatchMode=yes",
		"-o", "ControlMaster=no",
		"-o", "ControlPath=" + e.controlPath,
		"-p", strconv.Itoa(e.node.Port),
	}
	argv = append(argv, e.node.ExtraArgs...)
	argv = append(argv, e.target(), "--", command)

	log.WithNode(e.node.Name).Info().Str("command", pol.Command).Msg("executing ssh command")

	return e.runSSH(ctx, argv)
}

func (e *SSHExecutor) runSSH(ctx context.Context, argv []string) (*process.Result, error) {
	stdout, err := circbuf.NewBuffer(maxCapturedBytes)
	if err != nil {
		return nil, &types.SetupError{Message: "allocating output buffer", Cause: err}
	}
	stderr, err := circbuf.NewBuffer(maxCapturedBytes)
	if err != nil {
		return nil, &types.SetupError{Message: "allocating output buffer", Cause: err}
	}

	cmd := exec.Command("ssh", argv...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &types.ExecutionError{Message: "failed to start ssh", Node: e.node.Name, Cause: err}
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return &process.Result{
			ExitCode: exitCodeOf(err),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, nil
	case <-ctx.Done():
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		<-waitCh
		return &process.Result{
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

func (e *SSHExecutor) Put(ctx context.Context, source, destination string) error {
	scpSource := transfer.LocalSource(source)
	scpDestination := transfer.RemoteSource(e.target(), destination)

	mkdirCmd := fmt.Sprintf("mkdir -p $(dirname $(readlink -fm %s))", shellsafe.Quote(destination))
	pol := types.ExpectSuccess(mkdirCmd, "put-mkdir")
	res, err := e.Execute(ctx, pol, nil)
	if err != nil {
		return err
	}
	if err := pol.CheckStatus(res.ExitCode); err != nil {
		return err
	}

	return e.scpCopy(ctx, scpSource, scpDestination)
}

func (e *SSHExecutor) Get(ctx context.Context, source, destination string) error {
	scpSource := transfer.RemoteSource(e.target(), source)
	scpDestination := transfer.LocalSource(destination)

	if dir := filepath.Dir(destination); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &types.SetupError{Message: "creating destination directory for get", Cause: err}
		}
	}

	return e.scpCopy(ctx, scpSource, scpDestination)
}

func (e *SSHExecutor) scpCopy(ctx context.Context, source, destination string) error {
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := e.establishMaster(ctx); err != nil {
		return err
	}

	log.WithNode(e.node.Name).Info().Str("source", source).Str("destination", destination).Msg("scp copy")

	if err := transfer.Copy(ctx, e.scpOptions(), source, destination); err != nil {
		return &types.ExecutionError{
			Message: err.Error(),
			Node:    e.node.Name,
			Cause:   err,
		}
	}
	return nil
}
