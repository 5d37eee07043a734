/*
Package transfer implements the scp-based file copy mechanics behind
get/put tasks: building the scp argv against a node's SSH options and
control-master socket, and running it to completion.

Grounded on the original implementation's SSHNode.scp_copy, and on the
teacher's local volume driver (pkg/volume/local.go) for the
"local-no-op / remote-operation split" shape -- here that split lives
one level up in pkg/node, where LocalExecutor's Put/Get are no-ops and
SSHExecutor's delegate to this package. This package owns only the scp
invocation itself, not connection admission or control-master setup,
which pkg/node.SSHExecutor already owns and which this package's
callers are expected to have handled first.
*/
package transfer
