package targets

import (
	"fmt"
	"strings"

	"github.com/cuemby/gplmt/pkg/types"
)

// Registry holds every declared node and group for one experiment run
// and resolves target name expressions against them.
type Registry struct {
	nodes  map[string]*types.Node
	groups map[string]types.Group
}

// New builds a Registry from the nodes and groups a descriptor decoded.
func New(nodes map[string]*types.Node, groups map[string]types.Group) *Registry {
	r := &Registry{nodes: map[string]*types.Node{}, groups: map[string]types.Group{}}
	for name, n := range nodes {
		r.nodes[name] = n
	}
	for name, g := range groups {
		r.groups[name] = g
	}
	return r
}

// Node looks up a single declared node by name.
func (r *Registry) Node(name string) (*types.Node, bool) {
	n, ok := r.nodes[name]
	return n, ok
}

// Resolve expands a space-separated target expression (node and/or
// group names) into the distinct nodes it denotes, in first-seen
// order. A group that contains itself, directly or through another
// group, is a syntax error rather than an infinite expansion.
func (r *Registry) Resolve(expr string) ([]*types.Node, error) {
	var out []*types.Node
	seen := map[string]bool{}

	var expand func(name string, path map[string]bool) error
	expand = func(name string, path map[string]bool) error {
		if node, ok := r.nodes[name]; ok {
			if !seen[name] {
				seen[name] = true
				out = append(out, node)
			}
			return nil
		}
		if group, ok := r.groups[name]; ok {
			if path[name] {
				return &types.SyntaxError{Message: fmt.Sprintf("cyclic group reference involving %q", name)}
			}
			path[name] = true
			for _, member := range group.Members {
				if err := expand(member, path); err != nil {
					return err
				}
			}
			delete(path, name)
			return nil
		}
		return &types.SyntaxError{Message: fmt.Sprintf("unknown target %q", name)}
	}

	for _, name := range strings.Fields(expr) {
		if err := expand(name, map[string]bool{}); err != nil {
			return nil, err
		}
	}
	return out, nil
}
