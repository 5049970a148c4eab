package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetload/internal/dedup"
	"github.com/JonMunkholm/sheetload/internal/matcher"
	"github.com/JonMunkholm/sheetload/internal/pipeline"
)

// tableFlags are the --schema and --table flags of commands that target a
// destination table.
type tableFlags struct {
	schema string
	table  string
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.schema, "schema", "", "destination schema")
	cmd.Flags().StringVar(&f.table, "table", "", "destination table")
	cmd.MarkFlagRequired("schema")
	cmd.MarkFlagRequired("table")
}

// runFlags are shared by map and import.
type runFlags struct {
	tableFlags
	sheet    string
	rowLimit int
	strategy string
	keep     string
	mappings map[string]string
}

func (f *runFlags) register(cmd *cobra.Command) {
	f.tableFlags.register(cmd)
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "sheet name (default: the first sheet)")
	cmd.Flags().IntVar(&f.rowLimit, "rows", 0, "read at most this many rows (default: SOURCE_MAX_ROWS)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "column matching: greedy or optimal (default: MATCH_STRATEGY)")
	cmd.Flags().StringVar(&f.keep, "keep", "", "duplicates within the sheet: first, last or none (default: DEDUP_KEEP)")
	cmd.Flags().StringToStringVar(&f.mappings, "map", nil, "pin a sheet column to a destination column, e.g. --map Cliente=CustomerName")
}

// request builds the pipeline request for path, validating the enum flags.
func (f *runFlags) request(path string) (pipeline.Request, error) {
	req := pipeline.Request{
		Path:     path,
		Sheet:    f.sheet,
		Schema:   f.schema,
		Table:    f.table,
		RowLimit: f.rowLimit,
		Mappings: f.mappings,
	}
	if f.strategy != "" {
		s, err := matcher.ParseStrategy(f.strategy)
		if err != nil {
			return req, err
		}
		req.Strategy = s
	}
	if f.keep != "" {
		k, err := dedup.ParseKeepPolicy(f.keep)
		if err != nil {
			return req, err
		}
		req.Keep = k
	}
	return req, nil
}

// newPipeline loads the configuration, opens the catalog and returns a
// pipeline over it with the function that closes the catalog.
func (a *app) newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, func() error, error) {
	cfg, err := a.config(true)
	if err != nil {
		return nil, nil, err
	}
	opts, err := pipeline.OptionsFromConfig(cfg.Pipeline)
	if err != nil {
		return nil, nil, err
	}
	db, err := openCatalog(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(db, newRegistry(cfg), opts), db.Close, nil
}
