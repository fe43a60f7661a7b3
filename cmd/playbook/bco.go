package main

import (
	"github.com/spf13/cobra"
)

func newBCOCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bco",
		Short: "Inspect published BioCompute Objects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the object ids of published documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			ids, err := m.ListBCOs(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(ids)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <object-id>",
		Short: "Print a published document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			doc, err := m.GetBCO(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(doc)
		},
	})
	return cmd
}
