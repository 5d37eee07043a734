package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/gplmt/pkg/events"
	"github.com/cuemby/gplmt/pkg/types"
)

func localNode(name string) *types.Node {
	return &types.Node{Name: name, Kind: types.NodeLocal}
}

type recordingRegistrar struct {
	registered []string
}

func (r *recordingRegistrar) RegisterTeardown(target string, def *types.TaskDef, env types.Env) {
	r.registered = append(r.registered, target)
}

func TestRunTasklistSuccessRunsSequentially(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	def := &types.TaskDef{
		Name: "t1",
		Children: []types.TaskNode{
			types.RunTask{Name: "a", Command: "true"},
			types.RunTask{Name: "b", Command: "true"},
		},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	assert.NoError(t, err)
}

func TestRunTasklistFailureConvertsToStopExperiment(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	expected := 0
	def := &types.TaskDef{
		Name:    "t1",
		OnError: types.ScopeStopExperiment,
		Children: []types.TaskNode{
			types.RunTask{Name: "fail-cmd", Command: "false", ExpectedStatus: &expected},
		},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	require.Error(t, err)
	var stopExp *types.StopExperiment
	require.ErrorAs(t, err, &stopExp)
	assert.Equal(t, types.ScopeStopExperiment, stopExp.Scope)
}

func TestRunTasklistStopTasklistIsSwallowed(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	expected := 0
	def := &types.TaskDef{
		Name:    "t1",
		OnError: types.ScopeStopTasklist,
		Children: []types.TaskNode{
			types.RunTask{Name: "fail-cmd", Command: "false", ExpectedStatus: &expected},
		},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	assert.NoError(t, err)
}

func TestRunTasklistRunsCleanupOnFailure(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	env := map[string]*types.TaskDef{
		"cleanup-list": {
			Name: "cleanup-list",
			Children: []types.TaskNode{
				types.RunTask{Name: "cleanup-cmd", Command: "true"},
			},
		},
	}
	expected := 0
	def := &types.TaskDef{
		Name:    "t1",
		OnError: types.ScopeStopTasklist,
		Cleanup: "cleanup-list",
		Children: []types.TaskNode{
			types.RunTask{Name: "fail-cmd", Command: "false", ExpectedStatus: &expected},
		},
	}
	err := runner.RunTasklist(context.Background(), def, env, localNode("n1"), nil)
	assert.NoError(t, err)
}

func TestRunTasklistTimeoutIsNotAFailure(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	def := &types.TaskDef{
		Name:    "t1",
		Timeout: 50 * time.Millisecond,
		Children: []types.TaskNode{
			types.RunTask{Name: "slow", Command: "sleep 5"},
		},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	assert.NoError(t, err)
}

func TestRunTasklistExpectedStatusMismatch(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	expected := 0
	def := &types.TaskDef{
		Name:    "t1",
		OnError: types.ScopeStopExperiment,
		Children: []types.TaskNode{
			types.RunTask{Name: "a", Command: "exit 7", ExpectedStatus: &expected},
		},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	require.Error(t, err)
	var stopExp *types.StopExperiment
	require.ErrorAs(t, err, &stopExp)
	var execErr *types.ExecutionError
	require.ErrorAs(t, stopExp.Cause, &execErr)
	require.NotNil(t, execErr.ExitCode)
	assert.Equal(t, 7, *execErr.ExitCode)
}

func TestRunTasklistSeqAndParDispatch(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	def := &types.TaskDef{
		Name: "t1",
		Children: []types.TaskNode{
			types.SeqTask{Children: []types.TaskNode{
				types.RunTask{Name: "a", Command: "true"},
				types.RunTask{Name: "b", Command: "true"},
			}},
			types.ParTask{Children: []types.TaskNode{
				types.RunTask{Name: "c", Command: "true"},
				types.RunTask{Name: "d", Command: "true"},
			}},
		},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	assert.NoError(t, err)
}

func TestRunTasklistCallDispatch(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	env := map[string]*types.TaskDef{
		"sub": {
			Name: "sub",
			Children: []types.TaskNode{
				types.RunTask{Name: "a", Command: "true"},
			},
		},
	}
	def := &types.TaskDef{
		Name: "t1",
		Children: []types.TaskNode{
			types.CallTask{Tasklist: "sub"},
		},
	}
	err := runner.RunTasklist(context.Background(), def, env, localNode("n1"), nil)
	assert.NoError(t, err)
}

func TestRunTasklistFailTask(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	def := &types.TaskDef{
		Name:    "t1",
		OnError: types.ScopeStopExperiment,
		Children: []types.TaskNode{
			types.FailTask{},
		},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	require.Error(t, err)
	var stopExp *types.StopExperiment
	require.ErrorAs(t, err, &stopExp)
}

func TestRunTasklistDisabledTaskSkipped(t *testing.T) {
	runner := NewTaskRunner(nil, nil)
	expected := 0
	disabled := types.RunTask{Name: "skip-me", Command: "false", ExpectedStatus: &expected}
	disabled.Disabled = true
	def := &types.TaskDef{
		Name:     "t1",
		OnError:  types.ScopeStopExperiment,
		Children: []types.TaskNode{disabled},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	assert.NoError(t, err)
}

func TestRunTaskWritesLogStreams(t *testing.T) {
	logRoot := t.TempDir()
	runner := NewTaskRunner(nil, nil)
	runner.SetLogRoot(logRoot)

	def := &types.TaskDef{
		Name: "t1",
		Children: []types.TaskNode{
			types.RunTask{Name: "greet", Command: "echo out-text; echo err-text 1>&2"},
		},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(logRoot, "n1", "greet.1.out"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "out-text")

	errContent, err := os.ReadFile(filepath.Join(logRoot, "n1", "greet.1.err"))
	require.NoError(t, err)
	assert.Contains(t, string(errContent), "err-text")
}

func TestRunTaskPublishesLifecycleEvents(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	runner := NewTaskRunner(nil, nil)
	runner.SetEventBroker(broker)
	def := &types.TaskDef{
		Name:     "t1",
		Children: []types.TaskNode{types.RunTask{Name: "a", Command: "true"}},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	require.NoError(t, err)

	var seen []events.EventType
	for {
		select {
		case evt := <-sub:
			seen = append(seen, evt.Type)
		case <-time.After(100 * time.Millisecond):
			assert.Contains(t, seen, events.EventTaskStarted)
			assert.Contains(t, seen, events.EventTaskCompleted)
			return
		}
	}
}

func TestPutTaskRegistersAutoCleanup(t *testing.T) {
	registrar := &recordingRegistrar{}
	runner := NewTaskRunner(nil, registrar)
	def := &types.TaskDef{
		Name: "t1",
		Children: []types.TaskNode{
			types.PutTask{Source: "x", Destination: "output.log"},
		},
	}
	err := runner.RunTasklist(context.Background(), def, map[string]*types.TaskDef{}, localNode("n1"), nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"n1"}, registrar.registered, "a non-keep put to a cleanable destination registers its removal teardown against the node, even though a local Put itself is a no-op warning")
}
