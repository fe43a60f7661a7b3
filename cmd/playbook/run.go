package main

import (
	"strings"

	"github.com/eleven-am/playbook"
	"github.com/spf13/cobra"
)

type runResult struct {
	ChainID string            `json:"chain_id"`
	IDs     map[string]string `json:"ids"`
	Outputs map[string]any    `json:"outputs"`
	Errors  []string          `json:"errors,omitempty"`
}

func newRunCmd(a *app) *cobra.Command {
	var dry bool

	cmd := &cobra.Command{
		Use:   "run <playbook.yaml>",
		Short: "Persist and resolve a playbook",
		Long: `Persist the chain described by a playbook file and resolve every step.

Outputs are printed as JSON keyed by the step ids of the file. Steps that
fail are absent from the outputs and listed under errors; the command then
exits non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			pb, err := playbook.LoadPlaybookFile(args[0])
			if err != nil {
				return err
			}
			c, ids, err := m.LoadPlaybook(ctx, pb)
			if err != nil {
				return err
			}

			outputs, runErr := m.Resolve(ctx, c, playbook.PassOptions{Dry: dry})
			result := runResult{ChainID: c.ID(), IDs: ids, Outputs: make(map[string]any, len(outputs))}
			for local, id := range ids {
				if out, ok := outputs[id]; ok {
					result.Outputs[local] = out
				}
			}
			if runErr != nil {
				result.Errors = errorLines(runErr)
			}
			if err := a.printJSON(result); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&dry, "dry", false, "only report literal data and cached outputs")
	return cmd
}

// errorLines splits the joined step errors of a pass, one per line.
func errorLines(err error) []string {
	return strings.Split(err.Error(), "\n")
}
