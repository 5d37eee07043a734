/*
Package testbed is the experiment driver: it owns the target registry,
the connection governor, the teardown list, and the root execution
context for one run of an experiment description, and drives the
top-level ordered step list through to completion, drain, and teardown.

Grounded on original_source/src/gplmtlib.py's Experiment._run and
Testbed (run_teardowns/ssh_acquire/ssh_release/cancel_pending), with the
"aggregate owning every subsystem behind one New(cfg) constructor" shape
kept from the teacher's pkg/manager.Manager -- stripped of the
raft/FSM/grpc/storage machinery a single-process, non-clustered
controller has no use for, and replaced with the much smaller set of
collaborators an experiment run actually needs. Teardown draining is a
one-shot ordered pass, not the teacher's ticker-driven
pkg/reconciler.run loop, since a testbed only tears down once, at the
end of its single run.
*/
package testbed
