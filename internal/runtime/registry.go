package runtime

import (
	"fmt"
	"sort"

	"github.com/rvs/workflow-nodes/internal/node"
	"github.com/rvs/workflow-nodes/internal/nodes/email"
	"github.com/rvs/workflow-nodes/internal/nodes/jwt"
	"github.com/rvs/workflow-nodes/internal/nodes/mysql"
)

// Factory builds a fresh node instance.
type Factory func() node.Node

// Registry maps node type names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in node type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(email.Type, func() node.Node { return email.New() })
	r.Register(jwt.Type, func() node.Node { return jwt.New() })
	r.Register(mysql.Type, func() node.Node { return mysql.New() })
	return r
}

// Register adds or replaces the factory for a node type.
func (r *Registry) Register(nodeType string, f Factory) {
	r.factories[nodeType] = f
}

// New builds a node of the given type.
func (r *Registry) New(nodeType string) (node.Node, error) {
	f, ok := r.factories[nodeType]
	if !ok {
		return nil, fmt.Errorf("unknown node type %q", nodeType)
	}
	return f(), nil
}

// Types lists the registered node types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
