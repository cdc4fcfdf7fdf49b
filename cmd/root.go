// Package cmd implements the tubestats CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/app"
	"github.com/derickschaefer/tubestats/internal/config"
	"github.com/derickschaefer/tubestats/internal/model"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	DataURL       string
	PredictionURL string
	Format        string
	Out           string
	Granularity   string
	Timeout       string
	Rate          float64
	NoStore       bool
	Offline       bool
	Quiet         bool
	Verbose       bool
	Debug         bool
	NoColor       bool
}

// rootCmd is the base command. Running `tubestats` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "tubestats",
	Short: "tubestats: YouTube channel analytics dashboard and CLI",
	Long: `tubestats reads a channel's exported analytics (dashboard_data.json) and
optional forecasts (prediction_data.json), normalizes both field-naming
generations, and serves the derived statistics, charts and forecasts.

Quick start:
  tubestats config init                 # create a config.json
  tubestats stats                       # headline numbers for the last 30 days
  tubestats series --mode cumulative    # per-period chart values
  tubestats serve                       # JSON API with hourly refresh`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if globalFlags.NoColor {
			color.NoColor = true
		}
		setupLogging()
	},
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupLogging installs the default slog handler: text on stderr, Debug
// with --debug, errors only with --quiet.
func setupLogging() {
	level := slog.LevelWarn
	switch {
	case globalFlags.Debug:
		level = slog.LevelDebug
	case globalFlags.Verbose:
		level = slog.LevelInfo
	case globalFlags.Quiet:
		level = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(globalFlags.DataURL)
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.NoStore = globalFlags.NoStore
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.PredictionURL != "" {
		cfg.PredictionURL = globalFlags.PredictionURL
	}
	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Granularity != "" {
		g, err := model.ParseGranularity(globalFlags.Granularity)
		if err != nil {
			return nil, err
		}
		cfg.Granularity = g
	}
	if globalFlags.Timeout != "" {
		if d, err2 := time.ParseDuration(globalFlags.Timeout); err2 == nil {
			cfg.Timeout = d
		}
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(cfg), nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.DataURL, "data-url", "",
		"dashboard_data.json URL or path (overrides env TUBESTATS_DATA_URL and config.json)")
	pf.StringVar(&globalFlags.PredictionURL, "prediction-url", "",
		"prediction_data.json URL or path (overrides env TUBESTATS_PREDICTION_URL)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVarP(&globalFlags.Granularity, "granularity", "g", "",
		"trend granularity: daily|weekly|monthly (default: daily)")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 30s, 2m)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max source requests per second (default: 2.0)")
	pf.BoolVar(&globalFlags.NoStore, "no-store", false,
		"do not read or write the local payload archive")
	pf.BoolVar(&globalFlags.Offline, "offline", false,
		"skip the fetch and use the newest archived payload")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show source/timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log source requests and responses (query strings redacted)")
	pf.BoolVar(&globalFlags.NoColor, "no-color", false,
		"disable coloured status output (also honours NO_COLOR)")
}
