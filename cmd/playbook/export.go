package main

import (
	"dario.cat/mergo"
	"github.com/eleven-am/playbook"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		execute bool
		publish bool
		meta    playbook.ExportMetadata
		author  playbook.Author
	)

	cmd := &cobra.Command{
		Use:   "export <playbook.yaml|chain-id>",
		Short: "Export a chain as a BioCompute Object",
		Long: `Export a chain as an IEEE-2791 BioCompute Object.

The argument is a playbook file when one exists at that path, otherwise the
id of a persisted chain. Without --execute only literal data and cached
outputs are used to write the usability story.

Examples:
  playbook export ace2.yaml --execute --title "ACE2 neighbourhood"
  playbook export 5a1f... --author-name "Alice Example" --publish`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			c, pb, err := a.load(ctx, m, args[0])
			if err != nil {
				return err
			}

			opts := playbook.ExportOptions{Execute: execute}
			if pb != nil {
				opts.Metadata = pb.Metadata
				opts.Author = pb.Author
			}
			if opts.Metadata, err = overlay(opts.Metadata, meta); err != nil {
				return err
			}
			if author.Name != "" {
				if opts.Author, err = overlay(opts.Author, author); err != nil {
					return err
				}
			}

			doc, err := m.Export(ctx, c, opts)
			if err != nil {
				return err
			}
			if publish {
				id, err := m.Publish(ctx, doc)
				if err != nil {
					return err
				}
				a.logger.Info("published", "object_id", id, "chain_id", c.ID())
			}
			return a.printJSON(doc)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&execute, "execute", false, "run resolve functions to complete the story")
	flags.BoolVar(&publish, "publish", false, "store the document and assign it an object id")
	flags.StringVar(&meta.Title, "title", "", "document title")
	flags.StringVar(&meta.Description, "description", "", "replace the generated story")
	flags.StringVar(&author.Name, "author-name", "", "credit an author first")
	flags.StringVar(&author.Affiliation, "author-affiliation", "", "author affiliation")
	flags.StringVar(&author.Email, "author-email", "", "author email")
	flags.StringVar(&author.ORCID, "author-orcid", "", "author ORCID")
	return cmd
}

// overlay returns a copy of base with the non-empty fields of flags applied
// on top. base itself is left untouched.
func overlay[T any](base *T, flags T) (*T, error) {
	var zero T
	if base == nil {
		base = &zero
	}
	merged := *base
	if err := mergo.Merge(&merged, flags, mergo.WithOverride); err != nil {
		return nil, err
	}
	return &merged, nil
}
