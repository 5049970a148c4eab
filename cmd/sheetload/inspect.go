package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetload/internal/inference"
	"github.com/JonMunkholm/sheetload/internal/pipeline"
	"github.com/JonMunkholm/sheetload/internal/report"
	"github.com/JonMunkholm/sheetload/internal/source"
)

func newInspectCmd(a *app) *cobra.Command {
	var (
		sheet    string
		rowLimit int
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the inferred type of every column in a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(false)
			if err != nil {
				return err
			}
			opts, err := pipeline.OptionsFromConfig(cfg.Pipeline)
			if err != nil {
				return err
			}

			t, err := newRegistry(cfg).ReadSheet(cmd.Context(), args[0], sheet, rowLimit)
			if err != nil {
				return err
			}
			t = source.DropEmptyColumns(t)

			in := inference.New(opts.Inference)
			cols := in.InferTable(t)
			profiles := make([]inference.Profile, len(cols))
			for i, c := range cols {
				profiles[i] = in.Profile(t.Column(c.Name))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d rows, %d columns\n", t.Len(), len(cols))
			return report.Columns(cmd.OutOrStdout(), cols, profiles)
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (default: the first sheet)")
	cmd.Flags().IntVar(&rowLimit, "rows", 0, "read at most this many rows (default: SOURCE_MAX_ROWS)")
	return cmd
}
