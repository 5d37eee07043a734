package types

import "time"

// StepNode is the sealed sum type of top-level experiment steps: run a
// tasklist against a target, synchronize, register a teardown, or loop
// over a nested step sequence. Like TaskNode, it carries no behavior --
// pkg/engine's StepScheduler does the interpreting.
type StepNode interface {
	isStepNode()
}

type stepBase struct{}

func (stepBase) isStepNode() {}

// StepTasklist schedules Tasklist against every target named in
// Targets (node or group names), each invocation running concurrently
// unless the tasklist's own on-error/timeout semantics serialize it.
// Blocking is controlled separately by StepSynchronize.
type StepTasklist struct {
	stepBase
	Tasklist string
	Targets  []string
	// Env carries literal var-env assignments attached to this step,
	// merged over the target's declared environment (a step value wins
	// over a node value of the same name).
	Env Env

	// Background, when true, excludes this step's jobs from what a
	// StepSynchronize (or the join at the end of the step list) waits
	// for: those return once only background jobs remain pending. The
	// end-of-run drain in pkg/testbed cancels and awaits them.
	Background bool

	// StartRelative/StartAbsolute delay the step's scheduling; at most
	// one is set. StartAbsolute in the past behaves as no delay.
	StartRelative time.Duration
	StartAbsolute time.Time

	// StopRelative/StopAbsolute bound each scheduled invocation's
	// running time in addition to (and taking the earlier of) the
	// target tasklist's own timeout; at most one is set.
	StopRelative time.Duration
	StopAbsolute time.Time
}

// StepSynchronize blocks until no foreground job of the current
// execution context is still pending; background jobs are not waited
// for. A job that ends with a stop-experiment or another non-cancellation
// error makes it return that error as soon as the job completes, without
// waiting for the remaining jobs.
type StepSynchronize struct {
	stepBase
}

// StepRegisterTeardown schedules Tasklist to run against Targets during
// the experiment's teardown phase, in registration order, regardless of
// whether the experiment completed normally or was cut short.
type StepRegisterTeardown struct {
	stepBase
	Tasklist string
	Targets  []string
	Env      Env
}

// LoopMode selects how a StepLoop determines its iteration count, kept
// as a closed set of sentinel modes rather than inferring behavior from
// which fields happen to be non-zero.
type LoopMode int

const (
	// LoopCounted repeats Body exactly Repeat times.
	LoopCounted LoopMode = iota
	// LoopUntil repeats Body until wall-clock time reaches Until, or,
	// when Until is zero, until Duration has elapsed since the loop
	// started.
	LoopUntil
	// LoopListing repeats Body once per element of List, binding each
	// element's value to Param in the loop body's environment.
	LoopListing
)

// StepLoop repeats Body under one of three mutually exclusive modes
// (spec.md §4.6 / §9: specifying attributes from more than one mode is
// a syntax error, checked at parse time in pkg/descriptor).
type StepLoop struct {
	stepBase
	Mode LoopMode

	// LoopCounted
	Repeat int

	// LoopUntil
	Duration time.Duration // elapsed-time bound, relative to loop start
	Until    time.Time     // absolute wall-clock bound; zero means unset

	// LoopListing
	List  []string // literal element values, already whitespace-split or expanded from an A:B range
	Param string   // env var name each element is bound to

	Body []StepNode
}
