package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalSourcePrefixesRelativePaths(t *testing.T) {
	assert.Equal(t, "./output.log", LocalSource("output.log"))
	assert.Equal(t, "/tmp/output.log", LocalSource("/tmp/output.log"))
}

func TestRemoteSourceFormatsTargetColonPath(t *testing.T) {
	assert.Equal(t, "alice@example.org:/tmp/x", RemoteSource("alice@example.org", "/tmp/x"))
}
