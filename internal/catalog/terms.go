package catalog

import (
	"fmt"

	"github.com/eleven-am/playbook/internal/adapters/codec"
	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/metanode"
	"github.com/eleven-am/playbook/internal/ports"
	"github.com/eleven-am/playbook/internal/xjson"
)

var terms = make(map[string]*ports.DataNode)

func init() {
	for _, p := range Primitives() {
		terms[p.Name] = metanode.Data(TermSpec(p)).
			Meta(domain.Meta{
				Label:       p.Label,
				Description: p.Label + " Term",
			}).
			Codec(codec.String()).
			Build()
	}
}

// Term returns the Term[T] data node of p.
func Term(p Primitive) *ports.DataNode {
	return terms[p.Name]
}

func inputTerm(p Primitive) *ports.ProcessNode {
	example, _ := xjson.Marshal(p.Example)
	return metanode.Process(InputSpec(p)).
		Meta(domain.Meta{
			Label:       p.Label + " Input",
			Description: "Start with a " + p.Label,
			Icon:        []string{"input"},
			Tags: map[string]map[string]float64{
				"Type":        {p.Label: 1},
				"Cardinality": {"Term": 1},
			},
			Example: example,
		}).
		Output(Term(p)).
		Prompt().
		Story(func(props ports.StoryProps) string {
			if term, ok := props.Output.(string); ok && term != "" {
				return fmt.Sprintf("The workflow starts with selecting %s as the search term.", term)
			}
			return "The workflow starts with selecting a search term."
		}).
		Build()
}

func termNodes() []ports.MetaNode {
	var nodes []ports.MetaNode
	for _, p := range Primitives() {
		nodes = append(nodes, Term(p))
	}
	for _, p := range Primitives() {
		nodes = append(nodes, inputTerm(p))
	}
	return nodes
}
