package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetload/internal/keys"
	"github.com/JonMunkholm/sheetload/internal/report"
)

func newIdentifierCmd(a *app) *cobra.Command {
	var target tableFlags

	cmd := &cobra.Command{
		Use:     "identifier",
		Short:   "Show the unique identifier used to detect duplicates in a table",
		Example: "sheetload identifier --schema dbo --table Clientes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := a.config(true)
			if err != nil {
				return err
			}
			db, err := openCatalog(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			candidates, err := keys.NewResolver(db).Candidates(ctx, target.schema, target.table)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				return report.Identifier(cmd.OutOrStdout(), nil, nil)
			}
			return report.Identifier(cmd.OutOrStdout(), &candidates[0], candidates)
		},
	}

	target.register(cmd)
	return cmd
}
