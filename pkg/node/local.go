package node

import (
	"context"

	"github.com/cuemby/gplmt/pkg/log"
	"github.com/cuemby/gplmt/pkg/process"
	"github.com/cuemby/gplmt/pkg/shellsafe"
	"github.com/cuemby/gplmt/pkg/types"
)

// LocalExecutor runs commands as a subprocess of the gplmt process
// itself. Put and Get are not available for local nodes, matching the
// original's LocalNode.put/get, which log a warning and do nothing.
type LocalExecutor struct {
	node *types.Node
}

// NewLocalExecutor builds an Executor for a types.NodeLocal node.
func NewLocalExecutor(n *types.Node) *LocalExecutor {
	return &LocalExecutor{node: n}
}

func (e *LocalExecutor) Execute(ctx context.Context, pol types.RunPolicy, env types.Env) (*process.Result, error) {
	merged := e.node.Env.With(env)
	command := pol.Command
	if len(merged) > 0 {
		command = shellsafe.WrapEnv(command, merged)
	}
	return process.Run(ctx, command, nil)
}

func (e *LocalExecutor) Put(ctx context.Context, source, destination string) error {
	log.WithNode(e.node.Name).Warn().Msg("task type 'put' not available for local nodes, ignoring")
	return nil
}

func (e *LocalExecutor) Get(ctx context.Context, source, destination string) error {
	log.WithNode(e.node.Name).Warn().Msg("task type 'get' not available for local nodes, ignoring")
	return nil
}
