package main

import (
	"sort"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"github.com/spf13/cobra"
)

type slotView struct {
	Name    string   `json:"name"`
	Accepts []string `json:"accepts"`
	Multi   bool     `json:"multi,omitempty"`
}

type nodeView struct {
	Spec        string                        `json:"spec"`
	Kind        domain.NodeKind               `json:"kind"`
	Label       string                        `json:"label"`
	Description string                        `json:"description"`
	Tags        map[string]map[string]float64 `json:"tags,omitempty"`
	Inputs      []slotView                    `json:"inputs,omitempty"`
	Output      string                        `json:"output,omitempty"`
	Prompt      bool                          `json:"prompt,omitempty"`
}

func processView(n *ports.ProcessNode) nodeView {
	view := nodeView{
		Spec:        n.Spec,
		Kind:        n.Kind(),
		Label:       n.Meta.Label,
		Description: n.Meta.Description,
		Tags:        n.Meta.Tags,
		Output:      n.Output.Spec,
		Prompt:      n.Prompt,
	}
	for _, slot := range n.Inputs {
		accepts := make([]string, len(slot.Accepts))
		for i, d := range slot.Accepts {
			accepts[i] = d.Spec
		}
		view.Inputs = append(view.Inputs, slotView{Name: slot.Name, Accepts: accepts, Multi: slot.Multi})
	}
	return view
}

func newCatalogCmd(a *app) *cobra.Command {
	var kind, tag string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the registered metanodes as JSON",
		Long: `List the registered data and process metanodes as JSON.

Examples:
  # Every process that starts from user input
  playbook catalog --kind process | jq '.[] | select(.prompt)'

  # Processes tagged with a Cardinality
  playbook catalog --tag Cardinality`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()
			reg := m.Registry()

			views := []nodeView{}
			if kind == "" || kind == string(domain.KindData) {
				if tag == "" {
					for _, n := range reg.ListDataNodes() {
						views = append(views, nodeView{
							Spec:        n.Spec,
							Kind:        n.Kind(),
							Label:       n.Meta.Label,
							Description: n.Meta.Description,
							Tags:        n.Meta.Tags,
						})
					}
				}
			}
			if kind == "" || kind == string(domain.KindProcess) {
				processes := reg.ListProcessNodes()
				if tag != "" {
					processes = reg.ProcessNodesByTag(tag)
				}
				for _, n := range processes {
					views = append(views, processView(n))
				}
			}
			sort.SliceStable(views, func(i, j int) bool { return views[i].Spec < views[j].Spec })
			return a.printJSON(views)
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only list nodes of this kind: data or process")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "only list processes tagged with this category")
	return cmd
}
