package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodeForMapping(t *testing.T) {
	assert.Equal(t, 0, exitCodeFor(nil))
	assert.Equal(t, 2, exitCodeFor(&noStepsError{}))
	assert.Equal(t, 1, exitCodeFor(assert.AnError))
}

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("ssh-parallelism", 30, "")
	cmd.Flags().Float64("ssh-cooldown", 1.0, "")
	cmd.Flags().String("logroot-dir", "", "")
	return cmd
}

func TestApplyConfigFileSeedsUnsetFlags(t *testing.T) {
	cmd := newTestCommand()
	path := filepath.Join(t.TempDir(), "gplmt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ssh-parallelism: 5\nssh-cooldown: 2.5\nlogroot-dir: /tmp/logs\n"), 0o644))

	require.NoError(t, applyConfigFile(cmd, path))

	parallelism, _ := cmd.Flags().GetInt("ssh-parallelism")
	cooldown, _ := cmd.Flags().GetFloat64("ssh-cooldown")
	logroot, _ := cmd.Flags().GetString("logroot-dir")
	assert.Equal(t, 5, parallelism)
	assert.Equal(t, 2.5, cooldown)
	assert.Equal(t, "/tmp/logs", logroot)
}

func TestApplyConfigFileNeverOverridesExplicitFlag(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("ssh-parallelism", "99"))

	path := filepath.Join(t.TempDir(), "gplmt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ssh-parallelism: 5\n"), 0o644))

	require.NoError(t, applyConfigFile(cmd, path))

	parallelism, _ := cmd.Flags().GetInt("ssh-parallelism")
	assert.Equal(t, 99, parallelism)
}

func TestApplyConfigFileMissingFileIsSetupError(t *testing.T) {
	cmd := newTestCommand()
	err := applyConfigFile(cmd, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
