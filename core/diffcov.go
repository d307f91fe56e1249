package core

import (
	"iter"

	"github.com/covhub/covhub/core/agg"
	"github.com/covhub/covhub/schema"
)

// DiffTotals aggregates coverage over the lines a diff adds.
// Files absent from the diff, deleted or binary contribute nothing.
// It returns the overall totals and the totals of each file with covered added lines.
func DiffTotals(report *agg.Report, diff *schema.Diff) (schema.ReportTotals, map[string]schema.ReportTotals) {
	perFile := make(map[string]schema.ReportTotals)
	if diff == nil {
		return agg.SumTotals(), perFile
	}

	var all []schema.ReportTotals
	for _, f := range report.Files {
		df, ok := diff.Files[f.Name]
		if !ok || df.Type == schema.DiffDeleted || df.Type == schema.DiffBinary {
			continue
		}
		t := agg.FileTotals(addedLines(f, df.AddedLines()))
		if t.Lines == 0 {
			continue
		}
		perFile[f.Name] = t
		all = append(all, t)
	}
	return agg.SumTotals(all...), perFile
}

// ApplyDiff attaches diff totals to the report and to each file changed by the diff.
func ApplyDiff(report *agg.Report, diff *schema.Diff) {
	total, perFile := DiffTotals(report, diff)
	report.Totals.Diff = SerializeReportTotals(total)
	for _, f := range report.Files {
		if t, ok := perFile[f.Name]; ok {
			f.Totals.Diff = SerializeReportTotals(t)
		}
	}
}

func addedLines(f *agg.ReportFile, added map[int]struct{}) iter.Seq[agg.LineTuple] {
	return func(yield func(agg.LineTuple) bool) {
		for l := range f.Lines() {
			if _, ok := added[l.Number]; !ok {
				continue
			}
			if !yield(l) {
				return
			}
		}
	}
}
