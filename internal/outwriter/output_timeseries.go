package outwriter

import (
	"fmt"
	"io"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// printMeasurements prints one row per timeseries point.
func (ow *OutWriter) printMeasurements(points []schema.Measurement, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, ow.w, func(w io.Writer) error {
			return writeJSON(w, points)
		}, "Wrote JSON measurements")
	}

	table := tablewriter.NewWriter(ow.w)
	table.Header([]string{"Timestamp", "Dataset", "Measurable", "Branch", "Commit", "Value"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	var data [][]string
	for _, p := range points {
		data = append(data, []string{
			p.Timestamp.Format(contract.DateTimeFormat),
			string(p.Name),
			p.MeasurableID,
			p.Branch,
			shortSHA(p.CommitSHA),
			fmtFloat(p.Value),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(ow.w, "%d measurements\n", len(points))
	return err
}

// printSummaries prints one row per daily bucket.
func (ow *OutWriter) printSummaries(summaries []schema.MeasurementSummary, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, ow.w, func(w io.Writer) error {
			return writeJSON(w, summaries)
		}, "Wrote JSON summaries")
	}

	table := tablewriter.NewWriter(ow.w)
	table.Header([]string{"Day", "Dataset", "Measurable", "Branch", "Avg", "Min", "Max", "Count"})
	var data [][]string
	for _, s := range summaries {
		data = append(data, []string{
			s.Day.Format("2006-01-02"),
			string(s.Name),
			s.MeasurableID,
			s.Branch,
			fmtFloat(s.Avg),
			fmtFloat(s.Min),
			fmtFloat(s.Max),
			fmt.Sprintf("%d", s.Count),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
