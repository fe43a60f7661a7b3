// Package catalog declares the metanodes shipped with playbook.
package catalog

import (
	"log/slog"

	"github.com/eleven-am/playbook/internal/adapters/node_registry"
	"github.com/eleven-am/playbook/internal/ports"
)

// Nodes returns every metanode of the catalog, data nodes before the
// processes that reference them.
func Nodes() []ports.MetaNode {
	var nodes []ports.MetaNode
	nodes = append(nodes, termNodes()...)
	nodes = append(nodes, geneSetNodes()...)
	nodes = append(nodes, fileNodes()...)
	nodes = append(nodes, metadataMatrixNodes()...)
	return nodes
}

// Build registers the catalog and freezes it.
func Build(logger *slog.Logger) (*node_registry.Registry, error) {
	builder := node_registry.NewBuilder(logger)
	if err := builder.RegisterAll(Nodes()...); err != nil {
		return nil, err
	}
	return builder.Build(), nil
}
