package targets

import (
	"testing"

	"github.com/cuemby/gplmt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureRegistry() *Registry {
	nodes := map[string]*types.Node{
		"a": {Name: "a", Kind: types.NodeLocal},
		"b": {Name: "b", Kind: types.NodeLocal},
		"c": {Name: "c", Kind: types.NodeLocal},
	}
	groups := map[string]types.Group{
		"pair":   {Name: "pair", Members: []string{"a", "b"}},
		"nested": {Name: "nested", Members: []string{"pair", "c"}},
		"cyclic": {Name: "cyclic", Members: []string{"cyclic"}},
	}
	return New(nodes, groups)
}

func TestResolveSingleNode(t *testing.T) {
	r := newFixtureRegistry()
	got, err := r.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, namesOf(got))
}

func TestResolveGroupExpandsMembers(t *testing.T) {
	r := newFixtureRegistry()
	got, err := r.Resolve("pair")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, namesOf(got))
}

func TestResolveNestedGroupDeduplicates(t *testing.T) {
	r := newFixtureRegistry()
	got, err := r.Resolve("nested a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, namesOf(got))
}

func TestResolveUnknownTargetErrors(t *testing.T) {
	r := newFixtureRegistry()
	_, err := r.Resolve("ghost")
	assert.Error(t, err)
}

func TestResolveCyclicGroupErrors(t *testing.T) {
	r := newFixtureRegistry()
	_, err := r.Resolve("cyclic")
	assert.Error(t, err)
}

func namesOf(nodes []*types.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}
