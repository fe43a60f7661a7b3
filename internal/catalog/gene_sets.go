package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/eleven-am/playbook/internal/adapters/codec"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/metanode"
	"github.com/eleven-am/playbook/internal/ports"
)

const (
	GeneSetSpec             = "Set[Gene]"
	InputGeneSetSpec        = "Input[Set[Gene]]"
	GeneSetFromTermSpec     = "GeneSetFromTerm"
	GeneSetUnionSpec        = "GeneSetUnion"
	GeneSetIntersectionSpec = "GeneSetIntersection"
)

var GeneSet = metanode.Data(GeneSetSpec).
	Meta(domain.Meta{
		Label:       "Gene Set",
		Description: "Set of Genes",
	}).
	Codec(codec.Object(
		codec.Field("set", codec.Array(codec.String())),
		codec.Optional("description", codec.String()),
	).Strict()).
	Build()

// genesOf reads the members of a decoded gene set.
func genesOf(v any) ([]string, error) {
	set, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: gene set is %T", domain.ErrInvalidInput, v)
	}
	raw, _ := set["set"].([]any)
	out := make([]string, 0, len(raw))
	for _, g := range raw {
		s, ok := g.(string)
		if !ok {
			return nil, fmt.Errorf("%w: gene is %T", domain.ErrInvalidInput, g)
		}
		out = append(out, s)
	}
	return out, nil
}

func geneSetsOf(v any) ([][]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of gene sets, got %T", domain.ErrInvalidInput, v)
	}
	out := make([][]string, len(items))
	for i, item := range items {
		genes, err := genesOf(item)
		if err != nil {
			return nil, err
		}
		out[i] = genes
	}
	return out, nil
}

func sortedSet(genes map[string]struct{}) map[string]any {
	out := make([]string, 0, len(genes))
	for g := range genes {
		out = append(out, g)
	}
	sort.Strings(out)
	return map[string]any{"set": out}
}

func geneSetNodes() []ports.MetaNode {
	geneTerm := Term(Gene)

	inputGeneSet := metanode.Process(InputGeneSetSpec).
		Meta(domain.Meta{
			Label:       "Gene Set Input",
			Description: "Start with a set of genes",
			Icon:        []string{"input"},
			Tags: map[string]map[string]float64{
				"Type":        {"Gene": 1},
				"Cardinality": {"Set": 1},
			},
		}).
		Output(GeneSet).
		Prompt().
		Story(func(props ports.StoryProps) string {
			genes, err := genesOf(props.Output)
			if err != nil || len(genes) == 0 {
				return "The workflow starts with a gene set."
			}
			return fmt.Sprintf("The workflow starts with a gene set of %d genes.", len(genes))
		}).
		Build()

	fromTerm := metanode.Process(GeneSetFromTermSpec).
		Meta(domain.Meta{
			Label:       "Gene Set from Gene Term",
			Description: "Treat a single gene as a gene set",
			Tags: map[string]map[string]float64{
				"Type":        {"Gene": 1},
				"Cardinality": {"Set": 1},
			},
		}).
		Inputs(metanode.Slot("gene", geneTerm)).
		Output(GeneSet).
		Resolve(func(_ context.Context, rc ports.ResolveContext) (any, error) {
			gene, _ := rc.Inputs["gene"].(string)
			return map[string]any{"set": []string{gene}}, nil
		}).
		Story(func(props ports.StoryProps) string {
			if gene, ok := props.Inputs["gene"].(string); ok {
				return fmt.Sprintf("The gene %s was treated as a gene set.", gene)
			}
			return "The gene was treated as a gene set."
		}).
		Build()

	union := metanode.Process(GeneSetUnionSpec).
		Meta(domain.Meta{
			Label:       "Gene Set Union",
			Description: "Find the union of a collection of gene sets",
			Tags: map[string]map[string]float64{
				"Type":        {"Gene": 1},
				"Cardinality": {"Set": 1},
			},
		}).
		Inputs(metanode.MultiSlot("sets", GeneSet)).
		Output(GeneSet).
		Resolve(func(_ context.Context, rc ports.ResolveContext) (any, error) {
			sets, err := geneSetsOf(rc.Inputs["sets"])
			if err != nil {
				return nil, err
			}
			genes := make(map[string]struct{})
			for _, set := range sets {
				for _, g := range set {
					genes[g] = struct{}{}
				}
			}
			return sortedSet(genes), nil
		}).
		Story(func(ports.StoryProps) string {
			return "The gene sets were combined using a set union."
		}).
		Build()

	intersection := metanode.Process(GeneSetIntersectionSpec).
		Meta(domain.Meta{
			Label:       "Gene Set Intersection",
			Description: "Find the intersection of a collection of gene sets",
			Tags: map[string]map[string]float64{
				"Type":        {"Gene": 1},
				"Cardinality": {"Set": 1},
			},
		}).
		Inputs(metanode.MultiSlot("sets", GeneSet)).
		Output(GeneSet).
		Resolve(func(_ context.Context, rc ports.ResolveContext) (any, error) {
			sets, err := geneSetsOf(rc.Inputs["sets"])
			if err != nil {
				return nil, err
			}
			genes := make(map[string]struct{})
			if len(sets) == 0 {
				return sortedSet(genes), nil
			}
			for _, g := range sets[0] {
				genes[g] = struct{}{}
			}
			for _, set := range sets[1:] {
				keep := make(map[string]struct{}, len(set))
				for _, g := range set {
					if _, ok := genes[g]; ok {
						keep[g] = struct{}{}
					}
				}
				genes = keep
			}
			return sortedSet(genes), nil
		}).
		Story(func(ports.StoryProps) string {
			return "The genes shared by all gene sets were identified with a set intersection."
		}).
		Build()

	return []ports.MetaNode{GeneSet, inputGeneSet, fromTerm, union, intersection}
}
