package cmd

import (
	"fmt"
	"strings"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/outwriter"
	"github.com/covhub/covhub/internal/store"
	"github.com/covhub/covhub/schema"
	"github.com/spf13/cobra"
)

// dbCmd focused on database management.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the covhub database",
	Long: `Manage the relational store and the archive store.

Supported backends: SQLite (default), MySQL, PostgreSQL. The archive store also accepts None.

Subcommands:
  migrate - Run database schema migrations
  status  - Show store statistics and connection details`,
}

// dbMigrateCmd runs database migrations for the relational store.
var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the relational store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  covhub db migrate

  # Migrate to specific version
  covhub db migrate --target-version 2

  # Rollback to initial state
  covhub db migrate --target-version 0`,
	// Migrations must run on a fresh database, so stores are not opened here.
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return loadConfig()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		targetVersion, _ := cmd.Flags().GetInt("target-version")
		connStr := cfg.DBConnect
		if cfg.DBBackend == schema.SQLiteBackend && connStr == "" {
			connStr = contract.GetDBFilePath()
		}
		result, err := store.Migrate(cfg.DBBackend, connStr, targetVersion)
		if err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		printMigration("Database", result)

		if cfg.TimeseriesBackend != "" {
			result, err := store.Migrate(cfg.TimeseriesBackend, cfg.TimeseriesDBConnect, targetVersion)
			if err != nil {
				contract.LogFatal("Failed to run timeseries migrations", err)
			}
			printMigration("Timeseries database", result)
		}
	},
}

func printMigration(label string, result store.MigrationResult) {
	if !result.Changed {
		fmt.Printf("%s already at version %d.\n", label, result.To)
		return
	}
	fmt.Printf("Migrated %s from version %d to %d.\n", strings.ToLower(label), result.From, result.To)
}

// dbStatusCmd shows store status.
var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display store statistics and connection details",
	Long: `Show information about the relational and archive stores.

Displays:
- Backend type and connection status
- Schema version and dirty flag
- Row counts per table
- Newest measurement
- Archive entry count and size

Examples:
  covhub db status
  covhub db status --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		defer CloseStores()
		st, err := store.Default.GetStore().GetStatus(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to get store status", err)
		}
		archive, err := store.Default.GetArchiveStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get archive status", err)
		}
		if err := outwriter.NewOutWriter().WriteStatus(st, archive, cfg); err != nil {
			contract.LogFatal("Failed to write status", err)
		}
	},
}
