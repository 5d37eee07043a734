package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/cuemby/gplmt/pkg/connect"
	"github.com/cuemby/gplmt/pkg/events"
	"github.com/cuemby/gplmt/pkg/log"
	"github.com/cuemby/gplmt/pkg/metrics"
	"github.com/cuemby/gplmt/pkg/node"
	"github.com/cuemby/gplmt/pkg/process"
	"github.com/cuemby/gplmt/pkg/shellsafe"
	"github.com/cuemby/gplmt/pkg/types"
)

// TeardownRegistrar is implemented by whatever owns the run's teardown
// list (pkg/testbed.Testbed); TaskRunner calls it when a put task's
// destination is cleanable and "keep" was not requested.
type TeardownRegistrar interface {
	RegisterTeardown(target string, def *types.TaskDef, env types.Env)
}

// TaskRunner interprets TaskDef trees against nodes resolved from a
// shared registry, caching one node.Executor per node name for the
// life of the run.
type TaskRunner struct {
	gov       *connect.Governor
	teardowns TeardownRegistrar
	logRoot   string
	events    *events.Broker

	execMu sync.Mutex
	execs  map[string]node.Executor
	runSeq uint64
}

// NewTaskRunner builds a TaskRunner. gov and teardowns may both be nil
// (a governor-less runner never rate-limits SSH connections; a
// registrar-less runner never auto-registers put-task cleanup).
func NewTaskRunner(gov *connect.Governor, teardowns TeardownRegistrar) *TaskRunner {
	return &TaskRunner{
		gov:       gov,
		teardowns: teardowns,
		execs:     make(map[string]node.Executor),
	}
}

// SetLogRoot points the runner at a log tree root: every subsequent
// run task's captured stdout/stderr is written under
// <logroot>/<node>/<taskname>.<runCounter>.out|err (spec.md §6's log
// file layout). An empty root (the default) disables log-stream
// writing entirely.
func (r *TaskRunner) SetLogRoot(dir string) {
	r.logRoot = dir
}

// SetEventBroker points the runner at a broker to publish task and
// transfer lifecycle events to, for CLI progress-line consumption. A
// nil broker (the default) disables publishing entirely.
func (r *TaskRunner) SetEventBroker(b *events.Broker) {
	r.events = b
}

func (r *TaskRunner) publish(evt *events.Event) {
	if r.events == nil {
		return
	}
	r.events.Publish(evt)
}

func (r *TaskRunner) executorFor(n *types.Node) node.Executor {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	if e, ok := r.execs[n.Name]; ok {
		return e
	}
	e := node.New(n, r.gov)
	r.execs[n.Name] = e
	return e
}

// RunTasklist runs def against n, applying its on-error policy,
// timeout, and cleanup tasklist. It never returns a raw
// *types.ExecutionError: a failure is always converted to
// *types.StopExperiment per def's on-error policy, and a deadline or a
// swallowed nested stop-tasklist/stop-step returns nil.
func (r *TaskRunner) RunTasklist(ctx context.Context, def *types.TaskDef, env map[string]*types.TaskDef, n *types.Node, varEnv types.Env) error {
	logger := log.WithTasklist(def.Name)
	logger.Info().Str("node", n.Name).Msg("running tasklist")

	runCtx := ctx
	var cancel context.CancelFunc
	if def.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}

	err := r.runList(runCtx, def.Children, env, n, varEnv)

	if err == nil || types.IsCancelled(err) {
		if runCtx.Err() != nil {
			logger.Warn().Str("node", n.Name).Msg("tasklist timed out")
		}
		r.runCleanup(def, env, n, varEnv)
		return nil
	}

	var stopExp *types.StopExperiment
	if errors.As(err, &stopExp) {
		if stopExp.Scope == types.ScopeStopExperiment {
			return err
		}
		r.runCleanup(def, env, n, varEnv)
		return nil
	}

	logger.Error().Str("node", n.Name).Err(err).Msg("tasklist execution failed")
	r.runCleanup(def, env, n, varEnv)
	return &types.StopExperiment{Scope: def.EffectiveOnError(), Cause: err}
}

// runCleanup runs def's cleanup tasklist, if any, against n on a
// detached context so that cleanup still runs after the run's own
// context has been cancelled. Cleanup failures are logged, never
// propagated.
func (r *TaskRunner) runCleanup(def *types.TaskDef, env map[string]*types.TaskDef, n *types.Node, varEnv types.Env) {
	if def.Cleanup == "" {
		return
	}
	cleanup, ok := env[def.Cleanup]
	if !ok {
		log.WithTasklist(def.Name).Error().Str("cleanup", def.Cleanup).Msg("cleanup tasklist not found")
		return
	}
	if err := r.RunTasklist(context.Background(), cleanup, env, n, varEnv); err != nil {
		log.WithTasklist(def.Name).Warn().Str("cleanup", def.Cleanup).Err(err).Msg("cleanup tasklist failed")
	}
}

// runList runs children in sequence, stopping at the first error and
// at ctx cancellation.
func (r *TaskRunner) runList(ctx context.Context, children []types.TaskNode, env map[string]*types.TaskDef, n *types.Node, varEnv types.Env) error {
	for _, child := range children {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.runTask(ctx, child, env, n, varEnv); err != nil {
			return err
		}
	}
	return nil
}

func (r *TaskRunner) runTask(ctx context.Context, t types.TaskNode, env map[string]*types.TaskDef, n *types.Node, varEnv types.Env) error {
	if !t.Enabled() {
		return nil
	}

	switch task := t.(type) {
	case types.RunTask:
		return r.runRunTask(ctx, task, n, varEnv)
	case types.GetTask:
		return r.runGetTask(ctx, task, n, varEnv)
	case types.PutTask:
		return r.runPutTask(ctx, task, n, varEnv)
	case types.SeqTask:
		return r.runList(ctx, task.Children, env, n, varEnv)
	case types.ParTask:
		return r.runParTask(ctx, task, env, n, varEnv)
	case types.CallTask:
		called, ok := env[task.Tasklist]
		if !ok {
			return &types.SyntaxError{Message: fmt.Sprintf("tasklist %q not defined", task.Tasklist)}
		}
		return r.RunTasklist(ctx, called, env, n, varEnv)
	case types.FailTask:
		return &types.ExecutionError{Message: "user-requested fail", Node: n.Name}
	default:
		return &types.SyntaxError{Message: fmt.Sprintf("unknown task node %T", t)}
	}
}

func (r *TaskRunner) runRunTask(ctx context.Context, task types.RunTask, n *types.Node, varEnv types.Env) error {
	pol := types.RunPolicy{Command: task.Command, TaskName: task.Name, ExpectedStatus: task.ExpectedStatus}

	exec := r.executorFor(n)
	seq := atomic.AddUint64(&r.runSeq, 1)
	log.WithRun(n.Name, task.Name, seq).Info().Str("command", task.Command).Msg("run task")
	r.publish(&events.Event{Type: events.EventTaskStarted, Node: n.Name, Message: task.Name})

	timer := metrics.NewTimer()
	res, err := exec.Execute(ctx, pol, varEnv)
	timer.ObserveDurationVec(metrics.TaskDuration, n.Name)

	if res != nil {
		r.writeLogStreams(n.Name, task.Name, seq, res)
	}

	if err != nil {
		metrics.TasksRunTotal.WithLabelValues("error").Inc()
		r.publish(&events.Event{Type: events.EventTaskFailed, Node: n.Name, Message: task.Name})
		return &types.ExecutionError{Message: "run task failed", TaskName: task.Name, Node: n.Name, Cause: err}
	}
	if res.Cancelled {
		metrics.TasksRunTotal.WithLabelValues("cancelled").Inc()
		r.publish(&events.Event{Type: events.EventTaskFailed, Node: n.Name, Message: task.Name})
		return types.ErrCancelled
	}
	if err := pol.CheckStatus(res.ExitCode); err != nil {
		metrics.TasksRunTotal.WithLabelValues("error").Inc()
		err.(*types.ExecutionError).Node = n.Name
		r.publish(&events.Event{Type: events.EventTaskFailed, Node: n.Name, Message: task.Name})
		return err
	}
	metrics.TasksRunTotal.WithLabelValues("ok").Inc()
	r.publish(&events.Event{Type: events.EventTaskCompleted, Node: n.Name, Message: task.Name})
	return nil
}

// writeLogStreams writes a completed run task's captured stdout/stderr
// to <logroot>/<node>/<taskname>.<seq>.out|err, per the log file layout
// this controller inherited from the original implementation. A write
// failure is logged, never surfaced as a task failure -- the run
// itself already succeeded or failed on its own terms by the time its
// output is persisted.
func (r *TaskRunner) writeLogStreams(nodeName, taskName string, seq uint64, res *process.Result) {
	if r.logRoot == "" {
		return
	}
	dir := filepath.Join(r.logRoot, nodeName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithNode(nodeName).Warn().Err(err).Msg("could not create log root directory")
		return
	}
	base := fmt.Sprintf("%s.%d", taskName, seq)
	if err := os.WriteFile(filepath.Join(dir, base+".out"), []byte(res.Stdout), 0o644); err != nil {
		log.WithNode(nodeName).Warn().Err(err).Msg("could not write stdout log")
	}
	if err := os.WriteFile(filepath.Join(dir, base+".err"), []byte(res.Stderr), 0o644); err != nil {
		log.WithNode(nodeName).Warn().Err(err).Msg("could not write stderr log")
	}
}

// substituteTarget implements the original's "$GPLMT_TARGET" textual
// substitution on get/put source and destination paths.
func substituteTarget(s, nodeName string) string {
	return strings.ReplaceAll(s, "$GPLMT_TARGET", nodeName)
}

func (r *TaskRunner) runGetTask(ctx context.Context, task types.GetTask, n *types.Node, varEnv types.Env) error {
	source := substituteTarget(task.Source, n.Name)
	destination := substituteTarget(task.Destination, n.Name)

	exec := r.executorFor(n)
	r.publish(&events.Event{Type: events.EventTransferStarted, Node: n.Name, Message: destination})
	if err := exec.Get(ctx, source, destination); err != nil {
		metrics.TransfersTotal.WithLabelValues("get", "error").Inc()
		return &types.ExecutionError{Message: "get task failed", Node: n.Name, Cause: err}
	}
	metrics.TransfersTotal.WithLabelValues("get", "ok").Inc()
	r.publish(&events.Event{Type: events.EventTransferCompleted, Node: n.Name, Message: destination})
	return nil
}

func (r *TaskRunner) runPutTask(ctx context.Context, task types.PutTask, n *types.Node, varEnv types.Env) error {
	source := substituteTarget(task.Source, n.Name)
	destination := substituteTarget(task.Destination, n.Name)

	exec := r.executorFor(n)

	if !task.Keep && r.teardowns != nil && shellsafe.IsCleanableDestination(destination) {
		cleanupDef := &types.TaskDef{
			Name: "_auto_cleanup_" + strconv.FormatUint(atomic.AddUint64(&r.runSeq, 1), 10),
			Children: []types.TaskNode{
				types.RunTask{Name: "_anon_cleanup", Command: shellsafe.RemoveCommand(destination)},
			},
		}
		r.teardowns.RegisterTeardown(n.Name, cleanupDef, types.Env{})
		metrics.TeardownsRegistered.Inc()
		r.publish(&events.Event{Type: events.EventTeardownRegistered, Node: n.Name, Message: destination})
	} else if !task.Keep && !shellsafe.IsCleanableDestination(destination) {
		log.WithNode(n.Name).Warn().Str("destination", destination).Msg("no automated removal, invalid characters in destination")
	}

	r.publish(&events.Event{Type: events.EventTransferStarted, Node: n.Name, Message: destination})
	if err := exec.Put(ctx, source, destination); err != nil {
		metrics.TransfersTotal.WithLabelValues("put", "error").Inc()
		return &types.ExecutionError{Message: "put task failed", Node: n.Name, Cause: err}
	}
	metrics.TransfersTotal.WithLabelValues("put", "ok").Inc()
	r.publish(&events.Event{Type: events.EventTransferCompleted, Node: n.Name, Message: destination})
	return nil
}

// runParTask runs every child concurrently and collects all branch
// failures into one multierror.Error rather than reporting only the
// first, so a caller inspecting the failure (or its logs) sees every
// branch that failed, not just whichever happened to land first.
func (r *TaskRunner) runParTask(ctx context.Context, task types.ParTask, env map[string]*types.TaskDef, n *types.Node, varEnv types.Env) error {
	errs := make([]error, len(task.Children))
	var wg sync.WaitGroup
	for i, child := range task.Children {
		wg.Add(1)
		go func(i int, child types.TaskNode) {
			defer wg.Done()
			errs[i] = r.runTask(ctx, child, env, n, varEnv)
		}(i, child)
	}
	wg.Wait()

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
