package outwriter

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// printReport dispatches on the configured output format.
func (ow *OutWriter) printReport(slug, commitID string, report core.ReportView, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, ow.w, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON report"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	default:
		if err := ow.printReportTable(slug, commitID, report, cfg, duration); err != nil {
			return fmt.Errorf("error writing report table output: %w", err)
		}
	}
	return nil
}

// printReportTable prints one row per file and a final TOTAL row.
func (ow *OutWriter) printReportTable(slug, commitID string, report core.ReportView, cfg *contract.Config, duration time.Duration) error {
	table := tablewriter.NewWriter(ow.w)
	table.Header([]string{"File", "Lines", "Hits", "Misses", "Partials", "Coverage", "Label"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	width := maxPathWidth(ow.w)
	var data [][]string
	for _, f := range report.Files {
		data = append(data, totalsRow(contract.TruncatePath(f.Name, width), f.Totals, ow.w, cfg))
	}
	data = append(data, totalsRow("TOTAL", report.Totals, ow.w, cfg))
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(ow.w, "Report for %s@%s: %d files in %v\n", slug, commitID, len(report.Files), duration)
	return err
}

func totalsRow(name string, t core.ReportTotalsView, w io.Writer, cfg *contract.Config) []string {
	return []string{
		name,
		strconv.Itoa(t.Lines),
		strconv.Itoa(t.Hits),
		strconv.Itoa(t.Misses),
		strconv.Itoa(t.Partials),
		fmtFloat(t.Coverage),
		coverageLabel(w, cfg, t.Coverage, t.Lines),
	}
}
