package shellsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/gplmt/pkg/types"
)

func TestIsCleanableDestination(t *testing.T) {
	cases := []struct {
		name string
		dest string
		want bool
	}{
		{"simple filename", "output.log", true},
		{"dotted name", "...", true},
		{"absolute path rejected", "/etc/passwd", false},
		{"nested path rejected", "dir/file.txt", false},
		{"space rejected", "a b", false},
		{"semicolon rejected", "a;rm -rf /", false},
		{"single char too short", "a", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsCleanableDestination(tc.dest))
		})
	}
}

func TestWrapEnvNoVars(t *testing.T) {
	assert.Equal(t, "echo hi", WrapEnv("echo hi", nil))
}

func TestWrapEnvQuotesValues(t *testing.T) {
	out := WrapEnv("echo $FOO", types.Env{"FOO": "bar baz"})
	assert.Contains(t, out, "FOO=")
	assert.Contains(t, out, "env")
	assert.Contains(t, out, "sh")
}

func TestRemoveCommand(t *testing.T) {
	assert.Equal(t, "rm output.log", RemoveCommand("output.log"))
}
