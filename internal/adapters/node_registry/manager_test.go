package node_registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/eleven-am/playbook/internal/adapters/codec"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/metanode"
	"github.com/eleven-am/playbook/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noop(context.Context, ports.ResolveContext) (any, error) { return nil, nil }

type fixture struct {
	gene    *ports.DataNode
	geneSet *ports.DataNode
	input   *ports.ProcessNode
	expand  *ports.ProcessNode
	union   *ports.ProcessNode
}

func newFixture() fixture {
	gene := metanode.Data("Gene").Codec(codec.String()).Build()
	geneSet := metanode.Data("Set[Gene]").Codec(codec.Array(codec.String())).Build()

	return fixture{
		gene:    gene,
		geneSet: geneSet,
		input: metanode.Process("Input[Gene]").
			Meta(domain.Meta{Tags: map[string]map[string]float64{"Type": {"Gene": 1}, "Cardinality": {"Term": 1}}}).
			Output(gene).Prompt().Build(),
		expand: metanode.Process("GeneSetFromGene").
			Meta(domain.Meta{Tags: map[string]map[string]float64{"Type": {"Gene": 1}}}).
			Inputs(metanode.Slot("gene", gene)).Output(geneSet).Resolve(noop).Build(),
		union: metanode.Process("GeneSetUnion").
			Inputs(metanode.MultiSlot("sets", geneSet)).Output(geneSet).Resolve(noop).Build(),
	}
}

func TestBuilder_RegisterAndLookup(t *testing.T) {
	f := newFixture()
	b := NewBuilder(testLogger())
	require.NoError(t, b.RegisterAll(f.gene, f.geneSet, f.input, f.expand, f.union))

	r := b.Build()
	assert.Equal(t, 5, r.Len())

	node, err := r.Lookup("Gene")
	require.NoError(t, err)
	assert.Equal(t, domain.KindData, node.Kind())

	proc, err := r.ProcessNode("GeneSetUnion")
	require.NoError(t, err)
	assert.Same(t, f.union, proc)

	_, err = r.ProcessNode("Gene")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.Lookup("Nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	data := r.ListDataNodes()
	require.Len(t, data, 2)
	assert.Equal(t, "Gene", data[0].Spec)

	procs := r.ListProcessNodes()
	require.Len(t, procs, 3)
	assert.Equal(t, "GeneSetFromGene", procs[0].Spec)
}

func TestBuilder_Rejections(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name  string
		nodes []ports.MetaNode
		kind  error
	}{
		{"nil node", []ports.MetaNode{nil}, domain.ErrInvalidNode},
		{"duplicate spec", []ports.MetaNode{f.gene, f.gene}, domain.ErrDuplicateName},
		{"process shadows data spec", []ports.MetaNode{f.gene, metanode.Process("Gene").Output(f.gene).Prompt().Build()}, domain.ErrDuplicateName},
		{"unregistered output", []ports.MetaNode{f.input}, domain.ErrUnknownType},
		{"unregistered input", []ports.MetaNode{f.geneSet, f.expand}, domain.ErrUnknownType},
		{"copy of registered type", []ports.MetaNode{f.gene, metanode.Process("X").Output(metanode.Data("Gene").Codec(codec.String()).Build()).Prompt().Build()}, domain.ErrUnknownType},
		{"missing output", []ports.MetaNode{metanode.Process("X").Prompt().Build()}, domain.ErrInvalidNode},
		{"no resolver", []ports.MetaNode{f.gene, metanode.Process("X").Output(f.gene).Build()}, domain.ErrInvalidNode},
		{"empty spec", []ports.MetaNode{metanode.Data("").Codec(codec.Any()).Build()}, domain.ErrInvalidNode},
		{"data without codec", []ports.MetaNode{metanode.Data("X").Build()}, domain.ErrInvalidNode},
		{"duplicate slot", []ports.MetaNode{f.gene, metanode.Process("X").Inputs(metanode.Slot("a", f.gene), metanode.Slot("a", f.gene)).Output(f.gene).Resolve(noop).Build()}, domain.ErrInvalidNode},
		{"slot without types", []ports.MetaNode{f.gene, metanode.Process("X").Inputs(metanode.Slot("a")).Output(f.gene).Resolve(noop).Build()}, domain.ErrInvalidNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBuilder(testLogger()).RegisterAll(tt.nodes...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.True(t, domain.IsRegistrationError(err))
		})
	}
}

func TestRegistry_DownstreamAndTags(t *testing.T) {
	f := newFixture()
	b := NewBuilder(testLogger())
	require.NoError(t, b.RegisterAll(f.gene, f.geneSet, f.input, f.expand, f.union))
	r := b.Build()

	downstream := r.Downstream("Gene")
	require.Len(t, downstream, 1)
	assert.Equal(t, "GeneSetFromGene", downstream[0].Spec)

	assert.Len(t, r.Downstream("Set[Gene]"), 1)
	assert.Empty(t, r.Downstream("Drug"))

	assert.Equal(t, []string{"Cardinality", "Type"}, r.Categories())
	assert.Len(t, r.ProcessNodesByTag("Type"), 2)
	assert.Len(t, r.ProcessNodesByTag("Cardinality"), 1)
}

func TestRegistry_FrozenAfterBuild(t *testing.T) {
	f := newFixture()
	b := NewBuilder(testLogger())
	require.NoError(t, b.RegisterAll(f.gene, f.geneSet))
	r := b.Build()

	require.NoError(t, b.Register(f.input))
	assert.Equal(t, 2, r.Len())

	list := r.ListDataNodes()
	list[0] = nil
	assert.NotNil(t, r.ListDataNodes()[0], "callers cannot mutate the catalog")
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	f := newFixture()
	b := NewBuilder(testLogger())
	require.NoError(t, b.RegisterAll(f.gene, f.geneSet, f.input, f.expand, f.union))
	r := b.Build()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ProcessNode("GeneSetUnion")
			assert.NoError(t, err)
			_ = r.Downstream("Gene")
			_ = r.ListProcessNodes()
		}()
	}
	wg.Wait()
}
