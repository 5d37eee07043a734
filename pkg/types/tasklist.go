package types

import "time"

// TaskDef is an immutable, named element tree: the tasklist definition
// of spec.md §3. Definitions never mutate after construction and are
// shared safely across concurrent runs on different nodes.
type TaskDef struct {
	Name     string
	OnError  Scope // default ScopeStopTasklist when unset by the caller
	Timeout  time.Duration
	Cleanup  string // name of another TaskDef, empty when unset
	Children []TaskNode
}

// EffectiveOnError returns d.OnError, defaulting to stop-tasklist when
// the definition left it unset (spec.md §4.4 step 1).
func (d *TaskDef) EffectiveOnError() Scope {
	if d.OnError == "" {
		return ScopeStopTasklist
	}
	return d.OnError
}

// TaskNode is the sealed sum type of task tree children: run, get, put,
// sequence, parallel, call, fail. It is deliberately not an interface
// with behavior attached (no Run method) -- the task tree is pure data;
// pkg/engine owns interpretation, per the "sealed sum type, not a
// string->function dispatch table" redesign note.
type TaskNode interface {
	isTaskNode()
	Enabled() bool
}

// taskBase supplies the common `enabled` attribute (spec.md §3, default
// true) every task node variant carries.
type taskBase struct {
	Disabled bool
}

func (taskBase) isTaskNode() {}

func (b taskBase) Enabled() bool { return !b.Disabled }

// RunTask executes a shell command via the node's executor.
type RunTask struct {
	taskBase
	Name           string
	Command        string
	ExpectedStatus *int
}

// GetTask copies source (on the node) to destination (on the control
// host). $GPLMT_TARGET substitution happens at dispatch time.
type GetTask struct {
	taskBase
	Source      string
	Destination string
}

// PutTask copies source (on the control host) to destination (on the
// node). When Keep is false, a teardown removing destination is
// registered provided destination passes the allow-list check.
type PutTask struct {
	taskBase
	Source      string
	Destination string
	Keep        bool
}

// SeqTask runs its children in document order, one at a time.
type SeqTask struct {
	taskBase
	Children []TaskNode
}

// ParTask launches every child concurrently and joins all of them; once
// every sibling has completed, all of their failures are reported
// together as one aggregate error.
type ParTask struct {
	taskBase
	Children []TaskNode
}

// CallTask recurses into another named tasklist definition.
type CallTask struct {
	taskBase
	Tasklist string
}

// FailTask unconditionally raises an ExecutionError.
type FailTask struct {
	taskBase
}
