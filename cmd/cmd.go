// Package cmd defines the command-line interface for covhub.
package cmd

import (
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(timeseriesCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(trialCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the timeseries subcommands to the parent timeseries command
	timeseriesCmd.AddCommand(timeseriesBackfillCmd)
	timeseriesCmd.AddCommand(timeseriesRefreshCmd)
	timeseriesCmd.AddCommand(timeseriesExportCmd)
	timeseriesCmd.AddCommand(timeseriesListCmd)

	// Add the db subcommands to the parent db command
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)

	// Add the report subcommands to the parent report command
	reportCmd.AddCommand(reportShowCmd)

	// Add the trial subcommands to the parent trial command
	trialCmd.AddCommand(trialStartCmd)
	trialCmd.AddCommand(trialExpireCmd)
	trialCmd.AddCommand(trialStatusCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("db-backend", string(schema.SQLiteBackend), "Database backend: sqlite or mysql or postgresql")
	rootCmd.PersistentFlags().String("db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("archive-backend", "", "Archive backend: sqlite or mysql or postgresql or none (defaults to db-backend)")
	rootCmd.PersistentFlags().String("archive-db-connect", "", "Database connection string for the archive store")
	rootCmd.PersistentFlags().String("timeseries-backend", "", "Separate database for the coverage timeseries: sqlite or mysql or postgresql (defaults to the primary store)")
	rootCmd.PersistentFlags().String("timeseries-db-connect", "", "Database connection string for the timeseries store")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", contract.DefaultLogFormat, "Log format: text or json")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen", contract.DefaultListen, "Address to serve REST and GraphQL on")
	serveCmd.Flags().Float64("provider-rate", contract.DefaultProviderRate, "Provider API requests per second per service")
	serveCmd.Flags().Int("provider-burst", contract.DefaultProviderBurst, "Provider API burst size per service")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Command-specific flags are read from cobra directly; they never come from the config file.
	timeseriesBackfillCmd.Flags().String("start-date", "", "Start date in ISO8601 or time ago (required)")
	timeseriesBackfillCmd.Flags().String("end-date", "", "End date in ISO8601 or time ago (defaults to now)")
	timeseriesBackfillCmd.Flags().String("owner", "", "Owner username (required)")
	timeseriesBackfillCmd.Flags().String("repo", "", "Repository name (defaults to every repository of the owner)")
	timeseriesBackfillCmd.Flags().Bool("refresh", false, "Refresh the daily summaries after the backfill")
	markRequired(timeseriesBackfillCmd, "start-date", "owner")

	timeseriesRefreshCmd.Flags().String("start-date", "", "Start date in ISO8601 or time ago (required)")
	timeseriesRefreshCmd.Flags().String("end-date", "", "End date in ISO8601 or time ago (defaults to now)")
	markRequired(timeseriesRefreshCmd, "start-date")

	timeseriesListCmd.Flags().String("owner", "", "Owner username (required)")
	timeseriesListCmd.Flags().String("repo", "", "Repository name (required)")
	timeseriesListCmd.Flags().String("name", string(schema.CoverageMeasurement), "Dataset: coverage or flag_coverage or component_coverage")
	timeseriesListCmd.Flags().String("measurable-id", "", "Flag or component name")
	timeseriesListCmd.Flags().String("branch", "", "Branch name")
	timeseriesListCmd.Flags().String("start-date", "", "Start date in ISO8601 or time ago")
	timeseriesListCmd.Flags().String("end-date", "", "End date in ISO8601 or time ago")
	timeseriesListCmd.Flags().Bool("summaries", false, "List daily summaries instead of raw points")
	markRequired(timeseriesListCmd, "owner", "repo")

	dbMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")

	reportShowCmd.Flags().Bool("without-lines", false, "Omit per-line coverage from JSON output")
	reportShowCmd.Flags().String("service", "", "Restrict the owner lookup to one service")

	for _, c := range []*cobra.Command{trialStartCmd, trialExpireCmd, trialStatusCmd} {
		c.Flags().String("owner", "", "Owner username (required)")
		c.Flags().String("service", "", "Restrict the owner lookup to one service")
		markRequired(c, "owner")
	}
}

// markRequired marks flags as required and fails fast on typos.
func markRequired(c *cobra.Command, names ...string) {
	for _, name := range names {
		if err := c.MarkFlagRequired(name); err != nil {
			contract.LogFatal("Error marking flag "+name+" as required", err)
		}
	}
}
