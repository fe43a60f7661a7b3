package main

import (
	"github.com/eleven-am/playbook/internal/adapters/loader"
	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <chain-id>",
		Short: "Print a persisted chain as a playbook file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			c, err := m.Chain(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pb, err := loader.FromChain(c)
			if err != nil {
				return err
			}
			return loader.Encode(a.out, pb)
		},
	}
}
