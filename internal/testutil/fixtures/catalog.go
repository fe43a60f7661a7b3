// Package fixtures provides a small gene-set catalog and helpers shared by
// the chain, engine and exporter tests.
package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/eleven-am/playbook/internal/adapters/codec"
	"github.com/eleven-am/playbook/internal/adapters/node_registry"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/metanode"
	"github.com/eleven-am/playbook/internal/ports"
)

const (
	InputGene       = "Input[Gene]"
	GeneSetFromGene = "GeneSetFromGene"
	GeneSetUnion    = "GeneSetUnion"
	CountGenes      = "CountGenes"
	Failing         = "FailingExpand"
	WrongShape      = "WrongShapeExpand"
	Panicking       = "PanickingExpand"
	Gated           = "GatedEcho"
	Remote          = "RemoteExpand"
)

var ErrInjected = errors.New("injected failure")

func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type Catalog struct {
	Registry *node_registry.Registry

	Gene    *ports.DataNode
	GeneSet *ports.DataNode
	Count   *ports.DataNode

	// Gate blocks GatedEcho until closed.
	Gate chan struct{}

	mu    sync.Mutex
	calls map[string]*atomic.Int64
}

func NewCatalog() *Catalog {
	c := &Catalog{
		Gate:  make(chan struct{}),
		calls: make(map[string]*atomic.Int64),
	}

	c.Gene = metanode.Data("Gene").
		Meta(domain.Meta{Label: "Gene", Description: "A gene symbol"}).
		Codec(codec.String()).
		Build()
	c.GeneSet = metanode.Data("Set[Gene]").
		Meta(domain.Meta{Label: "Gene Set", Description: "A set of gene symbols"}).
		Codec(codec.Object(
			codec.Field("set", codec.Array(codec.String())),
			codec.Optional("description", codec.String()),
		).Strict()).
		Build()
	c.Count = metanode.Data("Count").Codec(codec.Integer()).Build()

	nodes := []ports.MetaNode{
		c.Gene, c.GeneSet, c.Count,
		metanode.Process(InputGene).
			Meta(domain.Meta{
				Label:       "Input Gene",
				Description: "Start with a gene",
				Tags:        map[string]map[string]float64{"Type": {"Gene": 1}, "Cardinality": {"Term": 1}},
				Author:      "Alice Example <alice@example.org>",
				Version:     "1.0.0",
			}).
			Output(c.Gene).
			Prompt().
			Story(func(props ports.StoryProps) string {
				gene, _ := props.Output.(string)
				return fmt.Sprintf("The workflow starts with %s.", gene)
			}).
			Build(),
		metanode.Process(GeneSetFromGene).
			Meta(domain.Meta{
				Label:       "Gene Set From Gene",
				Description: "Wrap a gene in a set",
				Tags:        map[string]map[string]float64{"Type": {"Gene": 1}, "Source": {"Local": 1}},
				Author:      "Bob Builder <bob@example.org>",
				Version:     "0.1.0",
			}).
			Inputs(metanode.Slot("gene", c.Gene)).
			Output(c.GeneSet).
			Story(func(ports.StoryProps) string {
				return `A gene set was assembled from the gene \ref{doi:10.1000/set}.`
			}).
			Resolve(c.counted(GeneSetFromGene, func(_ context.Context, rc ports.ResolveContext) (any, error) {
				return map[string]any{"set": []string{rc.Inputs["gene"].(string)}}, nil
			})).
			Build(),
		metanode.Process(GeneSetUnion).
			Meta(domain.Meta{
				Label:       "Gene Set Union",
				Description: "Combine gene sets",
				Tags:        map[string]map[string]float64{"Type": {"Gene": 1}},
				Author:      "Alice Example <alice@example.org>",
			}).
			Inputs(metanode.MultiSlot("sets", c.GeneSet)).
			Output(c.GeneSet).
			Story(func(ports.StoryProps) string {
				return `Gene sets were combined \ref{doi:10.1000/union} using set union \ref{doi:10.1000/set}.`
			}).
			Resolve(c.counted(GeneSetUnion, func(_ context.Context, rc ports.ResolveContext) (any, error) {
				seen := map[string]struct{}{}
				for _, s := range rc.Inputs["sets"].([]any) {
					for _, g := range s.(map[string]any)["set"].([]any) {
						seen[g.(string)] = struct{}{}
					}
				}
				out := make([]string, 0, len(seen))
				for g := range seen {
					out = append(out, g)
				}
				sort.Strings(out)
				return map[string]any{"set": out}, nil
			})).
			Build(),
		metanode.Process(CountGenes).
			Meta(domain.Meta{Label: "Count Genes", Description: "Count the genes of a set"}).
			Inputs(metanode.Slot("set", c.GeneSet)).
			Output(c.Count).
			Resolve(c.counted(CountGenes, func(_ context.Context, rc ports.ResolveContext) (any, error) {
				return len(rc.Inputs["set"].(map[string]any)["set"].([]any)), nil
			})).
			Build(),
		metanode.Process(Failing).
			Inputs(metanode.Slot("gene", c.Gene)).
			Output(c.GeneSet).
			Resolve(c.counted(Failing, func(context.Context, ports.ResolveContext) (any, error) {
				return nil, ErrInjected
			})).
			Build(),
		metanode.Process(WrongShape).
			Inputs(metanode.Slot("gene", c.Gene)).
			Output(c.GeneSet).
			Resolve(c.counted(WrongShape, func(context.Context, ports.ResolveContext) (any, error) {
				return map[string]any{"set": []any{"ok", 42}}, nil
			})).
			Build(),
		metanode.Process(Panicking).
			Inputs(metanode.Slot("gene", c.Gene)).
			Output(c.Gene).
			Resolve(c.counted(Panicking, func(context.Context, ports.ResolveContext) (any, error) {
				panic("resolver exploded")
			})).
			Build(),
		metanode.Process(Gated).
			Inputs(metanode.Slot("gene", c.Gene)).
			Output(c.Gene).
			Resolve(c.counted(Gated, func(ctx context.Context, rc ports.ResolveContext) (any, error) {
				select {
				case <-c.Gate:
					return rc.Inputs["gene"], nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			})).
			Build(),
		metanode.Process(Remote).
			Inputs(metanode.Slot("gene", c.Gene)).
			Output(c.GeneSet).
			Resolve(c.counted(Remote, func(ctx context.Context, rc ports.ResolveContext) (any, error) {
				raw, err := rc.Compute.Compute(ctx, ports.ComputeRequest{
					Routine: "expand",
					Args:    []any{rc.Inputs["gene"]},
				}, rc.Notify)
				if err != nil {
					return nil, err
				}
				var out any
				if err := json.Unmarshal(raw, &out); err != nil {
					return nil, err
				}
				return out, nil
			})).
			Build(),
	}

	b := node_registry.NewBuilder(Logger())
	if err := b.RegisterAll(nodes...); err != nil {
		panic(err)
	}
	c.Registry = b.Build()
	return c
}

func (c *Catalog) counted(spec string, fn ports.ResolveFunc) ports.ResolveFunc {
	counter := c.counter(spec)
	return func(ctx context.Context, rc ports.ResolveContext) (any, error) {
		counter.Add(1)
		return fn(ctx, rc)
	}
}

func (c *Catalog) counter(spec string) *atomic.Int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.calls[spec]
	if !ok {
		n = &atomic.Int64{}
		c.calls[spec] = n
	}
	return n
}

// Calls reports how many times the resolve function of spec ran.
func (c *Catalog) Calls(spec string) int64 {
	return c.counter(spec).Load()
}

func MustProcess(processType string, inputs map[string][]string, data any) *domain.Process {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			panic(err)
		}
		raw = b
	}
	p, err := domain.NewProcess(processType, inputs, raw)
	if err != nil {
		panic(err)
	}
	return p
}

func Ref(ids ...string) []string {
	return ids
}
