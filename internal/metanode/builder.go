// Package metanode provides fluent builders for data and process metanodes.
package metanode

import (
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

type DataBuilder struct {
	node ports.DataNode
}

func Data(spec string) *DataBuilder {
	return &DataBuilder{node: ports.DataNode{Spec: spec}}
}

func (b *DataBuilder) Meta(meta domain.Meta) *DataBuilder {
	b.node.Meta = meta
	return b
}

func (b *DataBuilder) Codec(c domain.Codec) *DataBuilder {
	b.node.Codec = c
	return b
}

func (b *DataBuilder) Build() *ports.DataNode {
	node := b.node
	node.Meta = withDefaults(node.Spec, node.Meta)
	return &node
}

type ProcessBuilder struct {
	node ports.ProcessNode
}

func Process(spec string) *ProcessBuilder {
	return &ProcessBuilder{node: ports.ProcessNode{Spec: spec}}
}

func (b *ProcessBuilder) Meta(meta domain.Meta) *ProcessBuilder {
	b.node.Meta = meta
	return b
}

func (b *ProcessBuilder) Inputs(slots ...ports.InputSlot) *ProcessBuilder {
	b.node.Inputs = append(b.node.Inputs, slots...)
	return b
}

func (b *ProcessBuilder) Output(out *ports.DataNode) *ProcessBuilder {
	b.node.Output = out
	return b
}

// Prompt marks the process as taking its value from user supplied data.
func (b *ProcessBuilder) Prompt() *ProcessBuilder {
	b.node.Prompt = true
	return b
}

func (b *ProcessBuilder) Story(fn ports.StoryFunc) *ProcessBuilder {
	b.node.Story = fn
	return b
}

func (b *ProcessBuilder) Resolve(fn ports.ResolveFunc) *ProcessBuilder {
	b.node.Resolve = fn
	return b
}

func (b *ProcessBuilder) Build() *ports.ProcessNode {
	node := b.node
	node.Inputs = append([]ports.InputSlot(nil), b.node.Inputs...)
	node.Meta = withDefaults(node.Spec, node.Meta)
	return &node
}

// Slot declares a single-valued input accepting any of the given types.
func Slot(name string, accepts ...*ports.DataNode) ports.InputSlot {
	return ports.InputSlot{Name: name, Accepts: accepts}
}

// MultiSlot declares an input taking a list of references.
func MultiSlot(name string, accepts ...*ports.DataNode) ports.InputSlot {
	return ports.InputSlot{Name: name, Accepts: accepts, Multi: true}
}

func withDefaults(spec string, meta domain.Meta) domain.Meta {
	merged, err := domain.MergeMeta(meta, domain.Meta{
		Label:   spec,
		Version: domain.DefaultNodeVersion,
	})
	if err != nil {
		return meta
	}
	return merged
}
