package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	res, err := Run(context.Background(), "echo hello; exit 3", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
	assert.False(t, res.Cancelled)
}

func TestRunPassesEnv(t *testing.T) {
	res, err := Run(context.Background(), `echo "$GPLMT_TEST_VAR"`, []string{"GPLMT_TEST_VAR=marker-value"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "marker-value")
}

func TestRunCancelledByContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := Run(ctx, "sleep 5", nil)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
}

func TestRunTruncatesOversizedOutput(t *testing.T) {
	res, err := Run(context.Background(), "yes x | head -c 200000", nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Stdout), maxCapturedBytes)
}
