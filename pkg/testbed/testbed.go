package testbed

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/gplmt/pkg/connect"
	"github.com/cuemby/gplmt/pkg/engine"
	"github.com/cuemby/gplmt/pkg/events"
	"github.com/cuemby/gplmt/pkg/log"
	"github.com/cuemby/gplmt/pkg/targets"
	"github.com/cuemby/gplmt/pkg/types"
)

// Config holds the knobs a run is constructed with, mirroring the
// teacher's manager.Config shape.
type Config struct {
	SSHParallelism int
	SSHCooldown    time.Duration
	LogRoot        string
	Nodes          map[string]*types.Node
	Groups         map[string]types.Group
	Tasklists      map[string]*types.TaskDef
	// Events, if set, receives task/transfer/teardown lifecycle events
	// for CLI progress-line consumption. A nil broker disables
	// publishing entirely.
	Events *events.Broker
}

type teardownEntry struct {
	target string
	def    *types.TaskDef
	env    types.Env
}

// Testbed owns every subsystem an experiment run needs -- the target
// registry, the SSH connection governor, the tasklist interpreter, and
// the root execution context -- and drives one experiment description
// from its first step through teardown and final drain.
type Testbed struct {
	registry *targets.Registry
	gov      *connect.Governor
	runner   *engine.TaskRunner
	root     *engine.ExecutionContext
	env      map[string]*types.TaskDef
	events   *events.Broker

	mu        sync.Mutex
	teardowns []teardownEntry
}

// New builds a Testbed ready to run cfg's experiment description.
func New(cfg Config) *Testbed {
	tb := &Testbed{
		registry: targets.New(cfg.Nodes, cfg.Groups),
		gov:      connect.NewGovernor(cfg.SSHParallelism, cfg.SSHCooldown),
		env:      cfg.Tasklists,
		events:   cfg.Events,
	}
	tb.runner = engine.NewTaskRunner(tb.gov, tb)
	if cfg.LogRoot != "" {
		tb.runner.SetLogRoot(cfg.LogRoot)
	}
	if cfg.Events != nil {
		tb.runner.SetEventBroker(cfg.Events)
	}
	tb.root = engine.NewExecutionContext(tb.runner, tb.registry, tb.env)
	return tb
}

// RegisterTeardown implements engine.TeardownRegistrar: it records the
// teardown in registration order for later draining by runTeardowns.
// It never runs a teardown synchronously -- that only happens once, at
// the end of Run.
func (tb *Testbed) RegisterTeardown(target string, def *types.TaskDef, env types.Env) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.teardowns = append(tb.teardowns, teardownEntry{target: target, def: def, env: env})
}

// Run executes every top-level step in order against the root execution
// context, joins whatever is still pending once the step list is
// exhausted, then always runs registered teardowns, cancels the context
// the steps ran under, and awaits any leftover background work --
// regardless of whether the step list completed normally, raised a
// syntax/setup error, or was cut short by a stop-experiment scope. This
// mirrors Experiment._run's try/finally shape: teardown and
// cancel_pending always run, on every exit path.
func (tb *Testbed) Run(ctx context.Context, steps []types.StepNode) error {
	stepCtx, cancelSteps := context.WithCancel(ctx)
	defer cancelSteps()
	runErr := tb.runSteps(stepCtx, steps)

	tb.runTeardowns(ctx)
	cancelSteps()
	tb.root.CancelPending()

	return runErr
}

func (tb *Testbed) runSteps(ctx context.Context, steps []types.StepNode) error {
	for _, step := range steps {
		if err := tb.root.RunStep(ctx, step, nil); err != nil {
			return err
		}
	}
	return tb.root.Join(nil)
}

// runTeardowns drains the registered teardown list once, in
// registration order, scheduling each as a foreground tasklist against
// its recorded target and joining before moving to the next --
// grounded on the teacher's pkg/reconciler.go "reconcile one thing at a
// time, log errors, never stop the drain" idiom, adapted from a
// recurring ticker to a single end-of-run pass. Teardown failures are
// logged, never propagated: a broken cleanup must not prevent the rest
// of the teardown list from running.
func (tb *Testbed) runTeardowns(ctx context.Context) {
	tb.mu.Lock()
	pending := make([]teardownEntry, len(tb.teardowns))
	copy(pending, tb.teardowns)
	tb.teardowns = nil
	tb.mu.Unlock()

	for _, entry := range pending {
		nodes, err := tb.registry.Resolve(entry.target)
		if err != nil {
			log.Logger.Error().Err(err).Str("target", entry.target).Msg("failed to resolve teardown target")
			continue
		}
		names := make([]string, len(nodes))
		for i, n := range nodes {
			names[i] = n.Name
		}

		teardownCtx := context.Background()
		if err := tb.root.ScheduleTasklist(teardownCtx, entry.target, entry.def, false, 0, entry.env, time.Time{}); err != nil {
			log.Logger.Error().Err(err).Str("target", entry.target).Msg("failed to schedule teardown")
			continue
		}
		if tb.events != nil {
			tb.events.Publish(&events.Event{Type: events.EventTeardownRun, Node: entry.target, Message: entry.def.Name})
		}
		if err := tb.root.Join(names); err != nil {
			log.Logger.Warn().Err(err).Str("target", entry.target).Msg("teardown failed")
		}
	}
	_ = ctx
}

// ActiveConnections satisfies pkg/metrics.StatsSource.
func (tb *Testbed) ActiveConnections() int {
	return tb.gov.ActiveConnections()
}

// ActiveTasklists satisfies pkg/metrics.StatsSource.
func (tb *Testbed) ActiveTasklists() int {
	return tb.root.PendingCount()
}
