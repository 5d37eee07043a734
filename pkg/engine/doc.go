/*
Package engine is the tasklist and step interpreter: TaskRunner
executes one tasklist's task tree (run/get/put/seq/par/call/fail)
against a single node, applying its on-error policy, timeout, and
cleanup tasklist; ExecutionContext schedules StepNode values
(StepTasklist/StepSynchronize/StepRegisterTeardown/StepLoop) the way
the original implementation's ExecutionContext/Testbed pair does --
scheduling a tasklist against a target spawns one concurrent job per
resolved node, and a job only blocks a later step when an explicit
StepSynchronize (or the run's own teardown/cancellation phase) joins
it.

Grounded on original_source/src/gplmtlib.py's ExecutionContext and
Testbed.run_tasklist/run_cleanup/_run_task, with the asyncio
task/coroutine model translated into goroutines fanning completions
into a shared channel that Join drains -- the same "one goroutine per
unit of concurrent work, joined through a channel" shape as the
teacher's scheduler and reconciler loops. Parallel-branch failures
(the par task) are collected with github.com/hashicorp/go-multierror,
the way hashicorp-nomad's driver plugins aggregate concurrent
fingerprint/task errors, instead of reporting only the first branch
that happened to fail.
*/
package engine
