package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetload/internal/report"
)

func newMapCmd(a *app) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:     "map <file>",
		Short:   "Preview how a sheet maps onto a table without writing anything",
		Example: "sheetload map ventas.xlsx --schema dbo --table Clientes --strategy optimal",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			p, closeDB, err := a.newPipeline(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			req.OnProgress = progressPrinter(cmd)
			pr := p.Preview(cmd.Context(), req)
			if err := report.Preview(cmd.OutOrStdout(), pr); err != nil {
				return err
			}
			if !pr.Success {
				return errRunFailed{pr.Errors}
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
