package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/gplmt/pkg/types"
)

func TestLocalExecutorRunsCommand(t *testing.T) {
	n := &types.Node{Name: "local1", Kind: types.NodeLocal}
	exec := NewLocalExecutor(n)

	res, err := exec.Execute(context.Background(), types.RunPolicy{Command: "echo hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hi")
}

func TestLocalExecutorMergesEnv(t *testing.T) {
	n := &types.Node{Name: "local1", Kind: types.NodeLocal, Env: types.Env{"A": "1"}}
	exec := NewLocalExecutor(n)

	res, err := exec.Execute(context.Background(), types.RunPolicy{Command: "echo $A-$B"}, types.Env{"B": "2"})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "1-2")
}

func TestLocalExecutorPutGetAreNoOps(t *testing.T) {
	n := &types.Node{Name: "local1", Kind: types.NodeLocal}
	exec := NewLocalExecutor(n)

	assert.NoError(t, exec.Put(context.Background(), "a", "b"))
	assert.NoError(t, exec.Get(context.Background(), "a", "b"))
}

func TestNewDispatchesOnKind(t *testing.T) {
	local := New(&types.Node{Kind: types.NodeLocal}, nil)
	_, ok := local.(*LocalExecutor)
	assert.True(t, ok)

	ssh := New(&types.Node{Kind: types.NodeSSH, Host: "h", User: "u", Port: 22}, nil)
	_, ok = ssh.(*SSHExecutor)
	assert.True(t, ok)
}
