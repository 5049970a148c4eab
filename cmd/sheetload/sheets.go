package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSheetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "sheets <file>",
		Short:   "List the sheets of a workbook",
		Example: "sheetload sheets ventas.xlsx\nsheetload sheets s3://imports/2024/ventas.xlsx",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(false)
			if err != nil {
				return err
			}
			sheets, err := newRegistry(cfg).ListSheets(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, s := range sheets {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}
