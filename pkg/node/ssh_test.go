package node

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/gplmt/pkg/types"
)

func TestControlPathForIncludesHostUserPort(t *testing.T) {
	n := &types.Node{Name: "n1", Host: "example.org", User: "alice", Port: 2222}
	p := controlPathFor(n)
	assert.Contains(t, p, "example.org")
	assert.Contains(t, p, "alice")
	assert.Contains(t, p, "2222")
	assert.Contains(t, p, "gplmt-")
}

func TestTargetFormatsUserAtHost(t *testing.T) {
	e := NewSSHExecutor(&types.Node{Name: "n1", Host: "example.org", User: "alice", Port: 22}, nil)
	assert.Equal(t, "alice@example.org", e.target())
}
