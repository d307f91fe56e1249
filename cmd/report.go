package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/outwriter"
	"github.com/covhub/covhub/internal/store"
	"github.com/covhub/covhub/schema"
	"github.com/spf13/cobra"
)

// reportCmd groups the report commands.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect coverage reports",
}

// reportShowCmd prints the report of one commit.
var reportShowCmd = &cobra.Command{
	Use:   "show <owner>/<repo> <commitid>",
	Short: "Print the coverage report of a commit",
	Long: `Rebuild the coverage report of a commit from its stored index and archive.

Text output prints one row per file with its totals and a Good/Fair/Poor label.
JSON output prints the full report including per-line coverage unless --without-lines is set.

Examples:
  covhub report show codecov/worker 3f2a9c1
  covhub report show codecov/worker 3f2a9c1 --output json --without-lines`,
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, args []string) {
		defer CloseStores()
		withoutLines, _ := cmd.Flags().GetBool("without-lines")
		service, _ := cmd.Flags().GetString("service")
		reports := core.NewReportService(store.Default.GetArchiveStore())
		err := runReportShow(rootCtx, store.Default.GetStore(), reports, outwriter.NewOutWriter(),
			schema.Service(service), args[0], args[1], withoutLines)
		if err != nil {
			contract.LogFatal("Cannot show report", err)
		}
	},
}

// runReportShow resolves slug and commitID and writes the commit's report.
func runReportShow(ctx context.Context, st contract.Store, reports *core.ReportService, ow *outwriter.OutWriter,
	service schema.Service, slug, commitID string, withoutLines bool,
) error {
	started := time.Now()
	ownerName, repoName, err := contract.SplitSlug(slug)
	if err != nil {
		return err
	}
	owner, repo, err := core.ResolveRepository(ctx, st, service, ownerName, repoName)
	if errors.Is(err, contract.ErrNotFound) {
		return contract.NewCommandError("No such repo: %s", slug)
	}
	if err != nil {
		return err
	}
	commit, err := st.GetCommit(ctx, repo.ID, commitID)
	if errors.Is(err, contract.ErrNotFound) {
		return contract.NewCommandError("No such commit: %s@%s", repo.Slug(owner), commitID)
	}
	if err != nil {
		return err
	}

	report, err := reports.BuildReportFromCommit(commit)
	if err != nil {
		return err
	}
	view := core.SerializeReport(report)
	if withoutLines {
		view = core.SerializeReportWithoutLines(report)
	}
	return ow.WriteReport(slug, commitID, view, cfg, time.Since(started))
}
