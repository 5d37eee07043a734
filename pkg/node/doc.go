/*
Package node adapts a types.Node declaration into something that can
actually run a command or move a file: Executor is the common
interface, LocalExecutor and SSHExecutor are the two backends the
original implementation calls LocalNode and SSHNode.

Grounded on the original's Node/LocalNode/SSHNode hierarchy
(execute/put/get per node kind, an SSH control-master connection
reused across runs) and on the teacher's worker -- "own a runtime
handle, dispatch operations against it, log via a component logger"
shape -- with pkg/runtime.ContainerdRuntime replaced by pkg/process.Run
and scp/ssh argv construction.

SSHExecutor establishes an OpenSSH ControlMaster connection
(ControlPath=~/.ssh/gplmt-<host>@<user>:<port>, ControlPersist=yes) the
first time it is used and reuses it for every subsequent command or
scp transfer against that node, the same control-path scheme and
reasoning as establish_master/get_control_path in the original: paying
the SSH handshake cost once per node instead of once per task.
*/
package node
