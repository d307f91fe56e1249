package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/outwriter"
	"github.com/covhub/covhub/internal/store"
	"github.com/covhub/covhub/schema"
	"github.com/spf13/cobra"
)

// timeseriesCmd groups the coverage timeseries maintenance commands.
var timeseriesCmd = &cobra.Command{
	Use:   "timeseries",
	Short: "Maintain the coverage timeseries",
	Long: `Backfill, refresh, list and export the coverage timeseries.

Every complete commit contributes one coverage measurement, one flag_coverage
measurement per flag and one component_coverage measurement per configured
component. Daily summaries aggregate measurements per UTC day.

Subcommands:
  backfill - Write measurements for the commits of an owner in a date range
  refresh  - Recompute the daily summaries of a date range
  list     - Print the measurements or summaries of a repository
  export   - Export measurements and summaries to Parquet`,
}

// timeseriesBackfillCmd writes measurements for existing commits.
var timeseriesBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Write coverage measurements for past commits",
	Long: `Compute and save the measurements of every complete commit of an owner's
repositories with a timestamp in [start-date, end-date].

Repositories are processed concurrently on --workers goroutines.

Examples:
  # Backfill every repository of an owner since January
  covhub timeseries backfill --owner codecov --start-date 2024-01-01

  # Backfill one repository over the last 30 days and refresh summaries
  covhub timeseries backfill --owner codecov --repo worker --start-date "30 days ago" --refresh`,
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, _ []string) {
		defer CloseStores()
		opts, err := backfillOptions(cmd, time.Now().UTC())
		if err != nil {
			contract.LogFatal("Invalid backfill options", err)
		}
		mgr := store.Default
		svc := core.NewMeasurementService(mgr.GetStore(), core.NewReportService(mgr.GetArchiveStore()), cfg.Components)
		result, err := core.ExecuteBackfill(rootCtx, mgr.GetStore(), svc, opts)
		if err != nil {
			contract.LogFatal("Cannot backfill timeseries", err)
		}
		if err := outwriter.NewOutWriter().WriteBackfill(result, cfg); err != nil {
			contract.LogFatal("Cannot write backfill result", err)
		}
	},
}

// timeseriesRefreshCmd recomputes daily summaries.
var timeseriesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the daily summaries of a date range",
	Long: `Recompute the daily summaries of every UTC day touched by [start-date, end-date].

Examples:
  covhub timeseries refresh --start-date 2024-01-01 --end-date 2024-02-01`,
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, _ []string) {
		defer CloseStores()
		start, end, err := dateRangeFlags(cmd, time.Now().UTC())
		if err != nil {
			contract.LogFatal("Invalid date range", err)
		}
		mgr := store.Default
		svc := core.NewMeasurementService(mgr.GetStore(), core.NewReportService(mgr.GetArchiveStore()), cfg.Components)
		if err := svc.RefreshMeasurementSummaries(rootCtx, start, end); err != nil {
			contract.LogFatal("Cannot refresh summaries", err)
		}
		fmt.Println("Summaries refreshed successfully.")
	},
}

// timeseriesListCmd prints stored measurements.
var timeseriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the measurements or daily summaries of a repository",
	Long: `Print the stored measurements of one repository dataset.

Examples:
  # Coverage points of the main branch
  covhub timeseries list --owner codecov --repo worker --branch main

  # Daily summaries of one flag as JSON
  covhub timeseries list --owner codecov --repo worker --name flag_coverage --measurable-id unit --summaries --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, _ []string) {
		defer CloseStores()
		if err := runTimeseriesList(rootCtx, cmd, store.Default.GetStore(), outwriter.NewOutWriter(), time.Now().UTC()); err != nil {
			contract.LogFatal("Cannot list timeseries", err)
		}
	},
}

// timeseriesExportCmd exports the timeseries to Parquet files.
var timeseriesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export measurements and summaries to Parquet",
	Long: `Export the coverage timeseries to Parquet for BI tools and analytics.

Writes <output-file>.measurements.parquet and <output-file>.summaries.parquet.

Requires: --output-file parameter

Examples:
  covhub timeseries export --output-file coverage
  duckdb -c "SELECT name, avg(value) FROM read_parquet('coverage.measurements.parquet') GROUP BY name"`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		defer CloseStores()
		if cfg.OutputFile == "" {
			contract.LogFatal("Cannot export timeseries", fmt.Errorf("--output-file is required"))
		}
		result, err := store.ExecuteMeasurementExport(rootCtx, store.Default.GetStore(), cfg.OutputFile)
		if err != nil {
			contract.LogFatal("Cannot export timeseries", err)
		}
		if err := outwriter.NewOutWriter().WriteExport(result, cfg); err != nil {
			contract.LogFatal("Cannot write export result", err)
		}
	},
}

// dateRangeFlags parses --start-date and --end-date. Empty values stay zero.
func dateRangeFlags(cmd *cobra.Command, now time.Time) (time.Time, time.Time, error) {
	var bounds [2]time.Time
	for i, name := range []string{"start-date", "end-date"} {
		raw, _ := cmd.Flags().GetString(name)
		if raw == "" {
			continue
		}
		t, err := contract.ParseDateTime(raw, now)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--%s: %w", name, err)
		}
		bounds[i] = t
	}
	start, end := bounds[0], bounds[1]
	if !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, contract.NewCommandError("end date %s is before start date %s",
			end.Format(contract.DateTimeFormat), start.Format(contract.DateTimeFormat))
	}
	return start, end, nil
}

// backfillOptions reads the backfill flags.
func backfillOptions(cmd *cobra.Command, now time.Time) (core.BackfillOptions, error) {
	start, end, err := dateRangeFlags(cmd, now)
	if err != nil {
		return core.BackfillOptions{}, err
	}
	owner, _ := cmd.Flags().GetString("owner")
	repo, _ := cmd.Flags().GetString("repo")
	refresh, _ := cmd.Flags().GetBool("refresh")
	return core.BackfillOptions{
		Start:   start,
		End:     end,
		Owner:   owner,
		Repo:    repo,
		Refresh: refresh,
		Workers: cfg.Workers,
	}, nil
}

// runTimeseriesList prints the measurements or summaries selected by the list flags.
func runTimeseriesList(ctx context.Context, cmd *cobra.Command, st contract.Store, ow *outwriter.OutWriter, now time.Time) error {
	start, end, err := dateRangeFlags(cmd, now)
	if err != nil {
		return err
	}
	ownerName, _ := cmd.Flags().GetString("owner")
	repoName, _ := cmd.Flags().GetString("repo")
	name, _ := cmd.Flags().GetString("name")
	if _, ok := schema.ValidMeasurementNames[schema.MeasurementName(name)]; !ok {
		return contract.NewCommandError("invalid dataset '%s'. must be coverage, flag_coverage, component_coverage", name)
	}

	_, repo, err := core.ResolveRepository(ctx, st, "", ownerName, repoName)
	if errors.Is(err, contract.ErrNotFound) {
		return contract.NewCommandError("No such repo: %s/%s", ownerName, repoName)
	}
	if err != nil {
		return err
	}

	filter := schema.MeasurementFilter{
		Name:   schema.MeasurementName(name),
		RepoID: repo.ID,
		Start:  start,
		End:    end,
	}
	filter.MeasurableID, _ = cmd.Flags().GetString("measurable-id")
	filter.Branch, _ = cmd.Flags().GetString("branch")

	if summaries, _ := cmd.Flags().GetBool("summaries"); summaries {
		rows, err := st.ListSummaries(ctx, filter)
		if err != nil {
			return err
		}
		return ow.WriteSummaries(rows, cfg)
	}
	rows, err := st.ListMeasurements(ctx, filter)
	if err != nil {
		return err
	}
	return ow.WriteMeasurements(rows, cfg)
}
