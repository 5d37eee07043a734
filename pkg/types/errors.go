package types

import (
	"errors"
	"fmt"
)

// Scope identifies how far a StopExperiment unwinds before it is caught.
type Scope string

const (
	ScopeStopTasklist   Scope = "stop-tasklist"
	ScopeStopStep       Scope = "stop-step"
	ScopeStopExperiment Scope = "stop-experiment"
)

// ParseScope validates an on-error attribute value, the only three
// policies the tasklist interpreter understands (spec.md §4.4 step 4:
// anything else is a syntax error).
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeStopTasklist, ScopeStopStep, ScopeStopExperiment:
		return Scope(s), nil
	default:
		return "", &SyntaxError{Message: fmt.Sprintf("unknown on-error policy %q", s)}
	}
}

// SyntaxError reports an ill-formed experiment description: unknown
// element, unresolved reference, cyclic include/group, or conflicting
// loop attributes. Fatal at the step where it's encountered.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string { return "syntax error: " + e.Message }

// SetupError reports a failure acquiring a declared resource (PlanetLab
// RPC failure, unreadable experiment file). Fatal before any step runs.
type SetupError struct {
	Message string
	Cause   error
}

func (e *SetupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("setup error: %s: %v", e.Message, e.Cause)
	}
	return "setup error: " + e.Message
}

func (e *SetupError) Unwrap() error { return e.Cause }

// ExecutionError reports a task-level failure: an unexpected exit
// status, a failed transfer, an ssh master failure, or an explicit
// <fail/>. Handled per the owning tasklist's on-error policy.
type ExecutionError struct {
	Message  string
	TaskName string
	Node     string
	// ExitCode is set when the failure was an expected-status mismatch.
	ExitCode *int
	Cause    error
}

func (e *ExecutionError) Error() string {
	msg := e.Message
	if e.TaskName != "" {
		msg = fmt.Sprintf("%s (task %q)", msg, e.TaskName)
	}
	if e.Node != "" {
		msg = fmt.Sprintf("%s on %q", msg, e.Node)
	}
	if e.ExitCode != nil {
		msg = fmt.Sprintf("%s: exit status %d", msg, *e.ExitCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// StopExperiment is the control-flow marker raised by the tasklist
// interpreter under an on-error policy and caught by the matching
// scheduler/driver scope (spec.md §9: "model as a tagged sentinel value
// on the error channel, not a thrown exception").
type StopExperiment struct {
	Scope Scope
	// Cause is the ExecutionError that triggered the stop, kept for
	// logging at the catching scope.
	Cause error
}

func (e *StopExperiment) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stop experiment (%s): %v", e.Scope, e.Cause)
	}
	return fmt.Sprintf("stop experiment (%s)", e.Scope)
}

func (e *StopExperiment) Unwrap() error { return e.Cause }

// ErrCancelled is a sentinel, not a failure: it marks a task whose
// deadline elapsed or whose parent scope was stopped. Tasklist/step
// completion treats it as normal completion, never as ExecutionError.
var ErrCancelled = errors.New("cancelled")

// IsCancelled reports whether err is (or wraps) ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
