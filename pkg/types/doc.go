/*
Package types defines the core data structures of the gplmt experiment
execution engine: nodes, groups, tasklist definitions, task and step
variant trees, run policies, and the error taxonomy every other package
builds on.

# Architecture

	┌──────────────── EXPERIMENT DATA MODEL ─────────────────┐
	│                                                          │
	│  targets: Node (Local | SSH) ── Group (named, ordered)  │
	│                                                          │
	│  tasklists: TaskDef { OnError, Timeout, Cleanup,        │
	│             Children []TaskNode }                       │
	│    TaskNode = RunTask | GetTask | PutTask |             │
	│               SeqTask | ParTask | CallTask | FailTask   │
	│                                                          │
	│  steps: []StepNode                                      │
	│    StepNode = StepTasklist | StepSynchronize |          │
	│               StepRegisterTeardown | StepLoop           │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

Task and step nodes are sealed sum types: an unexported marker method
(isTaskNode / isStepNode) restricts implementers to this package, and
every consumer dispatches on them with a type switch instead of a
tag-string lookup, per the "element-tree dispatch" redesign note.

# Error taxonomy

  - SyntaxError: ill-formed experiment description, fatal at the step
    where it's encountered.
  - SetupError: resource acquisition failure during declaration (e.g. a
    PlanetLab RPC failure); fatal before any step runs.
  - ExecutionError: task-level failure (unexpected exit status, scp
    failure, explicit fail); handled per tasklist on-error policy.
  - StopExperiment: control-flow marker carrying a Scope, raised by the
    tasklist interpreter and caught at the matching scheduler/driver
    scope.
  - ErrCancelled: sentinel for a task whose deadline elapsed or whose
    parent was stopped; not a failure.
*/
package types
