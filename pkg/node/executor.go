package node

import (
	"context"

	"github.com/cuemby/gplmt/pkg/connect"
	"github.com/cuemby/gplmt/pkg/process"
	"github.com/cuemby/gplmt/pkg/types"
)

// Executor runs commands and moves files against one declared node. A
// single Executor is built once per types.Node and shared by every
// task that targets it, so SSH control-master state and connection
// accounting live for the lifetime of the run, not per task.
type Executor interface {
	// Execute runs pol.Command with env merged over the node's declared
	// environment, returning the completed process.Result. A non-nil
	// error means the command could not be started or the transport
	// itself failed, not that the command exited non-zero -- exit
	// status is reported in Result and checked via pol.CheckStatus by
	// the caller.
	Execute(ctx context.Context, pol types.RunPolicy, env types.Env) (*process.Result, error)

	// Put copies the local file at source to destination on the node.
	Put(ctx context.Context, source, destination string) error

	// Get copies the file at source on the node to the local path
	// destination.
	Get(ctx context.Context, source, destination string) error
}

// New builds the Executor appropriate for n.Kind. gov is consulted only
// by SSH executors; it may be nil for a testbed with no SSH targets.
func New(n *types.Node, gov *connect.Governor) Executor {
	switch n.Kind {
	case types.NodeSSH:
		return NewSSHExecutor(n, gov)
	default:
		return NewLocalExecutor(n)
	}
}
