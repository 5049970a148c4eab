package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetload/internal/report"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		flags  runFlags
		insert bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Map a whole sheet, drop duplicates and insert the new rows",
		Long: "Runs every stage over the whole sheet. Without --insert the run stops\n" +
			"before writing and reports what would be inserted.",
		Example: "sheetload import ventas.csv --schema dbo --table Clientes --keep last --insert",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			req.Insert = insert

			p, closeDB, err := a.newPipeline(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			req.OnProgress = progressPrinter(cmd)
			res := p.Run(cmd.Context(), req)
			if err := report.Result(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return errRunFailed{res.Errors}
			}
			if !insert && res.Filter != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d rows would be inserted; pass --insert to write them\n", res.Filter.NewCount)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&insert, "insert", false, "write the new rows (default: dry run)")
	return cmd
}
