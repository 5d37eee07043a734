/*
Package process runs a single local shell command to completion,
capturing bounded stdout/stderr and reporting the real exit status,
grounded on the original implementation's LocalNode.execute
(asyncio.create_subprocess_shell with start_new_session=True, killed by
process-group signal on cancellation) and on the shape of
os/exec.CommandContext plus a deferred kill/wait seen in the retrieval
pack's local-exec runner.

Output is captured into a size-bounded ring buffer (armon/go-circbuf),
the same bounded-capture approach the teacher repo pairs with
long-running child processes, rather than buffering an unbounded
[]byte that a runaway command could grow without limit.

On ctx cancellation (tasklist timeout or an enclosing stop-experiment),
Run sends SIGTERM to the whole process group and reports the run as
cancelled rather than failed -- mirroring the original's
asyncio.CancelledError handler, which kills via os.killpg instead of
just the immediate child, since a shell command may itself fork
children that would otherwise be orphaned.
*/
package process
