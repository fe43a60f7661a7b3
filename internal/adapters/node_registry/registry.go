package node_registry

import (
	"fmt"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

// Registry is the frozen catalog. It has no mutators and is safe for
// concurrent reads without locking.
type Registry struct {
	nodes       map[string]ports.MetaNode
	dataList    []*ports.DataNode
	processList []*ports.ProcessNode
	downstream  map[string][]*ports.ProcessNode
	byTag       map[string][]*ports.ProcessNode
	categories  []string
}

var _ ports.NodeRegistryPort = (*Registry)(nil)

func (r *Registry) Lookup(spec string) (ports.MetaNode, error) {
	node, ok := r.nodes[spec]
	if !ok {
		return nil, fmt.Errorf("metanode %q: %w", spec, domain.ErrNotFound)
	}
	return node, nil
}

func (r *Registry) DataNode(spec string) (*ports.DataNode, error) {
	node, err := r.Lookup(spec)
	if err != nil {
		return nil, err
	}
	data, ok := node.(*ports.DataNode)
	if !ok {
		return nil, fmt.Errorf("metanode %q is a %s node: %w", spec, node.Kind(), domain.ErrNotFound)
	}
	return data, nil
}

func (r *Registry) ProcessNode(spec string) (*ports.ProcessNode, error) {
	node, err := r.Lookup(spec)
	if err != nil {
		return nil, err
	}
	proc, ok := node.(*ports.ProcessNode)
	if !ok {
		return nil, fmt.Errorf("metanode %q is a %s node: %w", spec, node.Kind(), domain.ErrNotFound)
	}
	return proc, nil
}

func (r *Registry) ListDataNodes() []*ports.DataNode {
	return append([]*ports.DataNode(nil), r.dataList...)
}

func (r *Registry) ListProcessNodes() []*ports.ProcessNode {
	return append([]*ports.ProcessNode(nil), r.processList...)
}

// Categories lists the top-level tag names used by process nodes.
func (r *Registry) Categories() []string {
	return append([]string(nil), r.categories...)
}

func (r *Registry) ProcessNodesByTag(category string) []*ports.ProcessNode {
	return append([]*ports.ProcessNode(nil), r.byTag[category]...)
}

// Downstream returns the process nodes with a slot accepting dataType, which
// are the steps a chain ending in that type can be extended with.
func (r *Registry) Downstream(dataType string) []*ports.ProcessNode {
	return append([]*ports.ProcessNode(nil), r.downstream[dataType]...)
}

func (r *Registry) Len() int {
	return len(r.nodes)
}
