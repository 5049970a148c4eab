package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetload/internal/catalog"
	"github.com/JonMunkholm/sheetload/internal/config"
	"github.com/JonMunkholm/sheetload/internal/logging"
	"github.com/JonMunkholm/sheetload/internal/source"
)

// app carries the persistent flags shared by every subcommand.
type app struct {
	envFile   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "sheetload",
		Short:         "Map spreadsheet columns onto database tables and import new rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadEnv(); err != nil {
				return err
			}
			a.setupLogging()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "load environment variables from this file (default: .env if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "text or json (overrides LOG_FORMAT)")

	root.AddCommand(
		newServeCmd(a),
		newSheetsCmd(a),
		newInspectCmd(a),
		newIdentifierCmd(a),
		newMapCmd(a),
		newImportCmd(a),
	)

	wrapRunE(root)
	return root
}

// wrapRunE makes every subcommand print its error, with the user-facing
// code, before cobra returns it. Failed runs were already reported.
func wrapRunE(cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		wrapRunE(c)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		var failed errRunFailed
		if err != nil && !errors.As(err, &failed) {
			printError(cmd, err)
		}
		return err
	}
}

// loadEnv reads --env-file, or .env when it exists. Values in the file
// override the process environment.
func (a *app) loadEnv() error {
	if a.envFile != "" {
		if err := godotenv.Overload(a.envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", a.envFile, err)
		}
		return nil
	}
	if err := godotenv.Overload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (a *app) setupLogging() {
	level, format := a.logLevel, a.logFormat
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	logging.SetupWriter(os.Stderr, level, format)
}

// config loads the configuration. Commands that only read files pass
// needDatabase=false.
func (a *app) config(needDatabase bool) (*config.Config, error) {
	load := config.Load
	if !needDatabase {
		load = config.LoadOffline
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	slog.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}

func openCatalog(ctx context.Context, cfg *config.Config) (catalog.DB, error) {
	db, err := catalog.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	slog.Debug("connected to database", "driver", cfg.Database.Driver)
	return db, nil
}

func newRegistry(cfg *config.Config) *source.Registry {
	r := source.NewRegistry(source.Options{
		MaxFileSize: cfg.Source.MaxFileSize,
		MaxRows:     cfg.Source.MaxRows,
	})
	r.UseS3(source.NewS3Fetcher(cfg.Source))
	return r
}
