package core

import (
	"bytes"
	"encoding/json"
	"iter"
	"strconv"

	"github.com/covhub/covhub/core/agg"
	"github.com/covhub/covhub/schema"
)

// Round2 rounds to 2 decimals on the exact decimal expansion of x, ties to even.
func Round2(x float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	if err != nil {
		return x
	}
	return v
}

// CoveragePercent presents a stored coverage fraction string rounded to 2 decimals.
// Unparseable values present as 0.
func CoveragePercent(fraction string) float64 {
	f, err := strconv.ParseFloat(fraction, 64)
	if err != nil {
		return 0
	}
	return Round2(f)
}

// ComplexityRatio is complexity/total*100 rounded to 2 decimals, or 0 when either is 0.
func ComplexityRatio(complexity, total float64) float64 {
	if complexity == 0 || total == 0 {
		return 0
	}
	return Round2(complexity / total * 100)
}

// ReportTotalsView is the client representation of report or file totals.
type ReportTotalsView struct {
	Files           int     `json:"files"`
	Lines           int     `json:"lines"`
	Hits            int     `json:"hits"`
	Misses          int     `json:"misses"`
	Partials        int     `json:"partials"`
	Coverage        float64 `json:"coverage"`
	Branches        int     `json:"branches"`
	Methods         int     `json:"methods"`
	Messages        int     `json:"messages"`
	Sessions        int     `json:"sessions"`
	Complexity      float64 `json:"complexity"`
	ComplexityTotal float64 `json:"complexity_total"`
	ComplexityRatio float64 `json:"complexity_ratio"`
	Diff            any     `json:"diff"`
}

// SerializeReportTotals presents totals. Coverage is the stored fraction, never recomputed.
func SerializeReportTotals(t schema.ReportTotals) ReportTotalsView {
	return ReportTotalsView{
		Files:           t.Files,
		Lines:           t.Lines,
		Hits:            t.Hits,
		Misses:          t.Misses,
		Partials:        t.Partials,
		Coverage:        CoveragePercent(t.Coverage),
		Branches:        t.Branches,
		Methods:         t.Methods,
		Messages:        t.Messages,
		Sessions:        t.Sessions,
		Complexity:      t.Complexity,
		ComplexityTotal: t.ComplexityTotal,
		ComplexityRatio: ComplexityRatio(t.Complexity, t.ComplexityTotal),
		Diff:            t.Diff,
	}
}

// CommitTotalsView is the client representation of the totals stored on a commit.
type CommitTotalsView struct {
	Files           int     `json:"files"`
	Lines           int     `json:"lines"`
	Hits            int     `json:"hits"`
	Misses          int     `json:"misses"`
	Partials        int     `json:"partials"`
	Coverage        float64 `json:"coverage"`
	Branches        int     `json:"branches"`
	Methods         int     `json:"methods"`
	Sessions        int     `json:"sessions"`
	Complexity      float64 `json:"complexity"`
	ComplexityTotal float64 `json:"complexity_total"`
	ComplexityRatio float64 `json:"complexity_ratio"`
	Diff            any     `json:"diff"`
}

// SerializeCommitTotals presents commit totals; nil totals present as nil.
func SerializeCommitTotals(t *schema.CommitTotals) *CommitTotalsView {
	if t == nil {
		return nil
	}
	var diff any
	if len(t.Diff) > 0 {
		diff = t.Diff
	}
	return &CommitTotalsView{
		Files:           t.Files,
		Lines:           t.Lines,
		Hits:            t.Hits,
		Misses:          t.Misses,
		Partials:        t.Partials,
		Coverage:        CoveragePercent(t.Coverage),
		Branches:        t.Branches,
		Methods:         t.Methods,
		Sessions:        t.Sessions,
		Complexity:      t.Complexity,
		ComplexityTotal: t.ComplexityTotal,
		ComplexityRatio: ComplexityRatio(t.Complexity, t.ComplexityTotal),
		Diff:            diff,
	}
}

// ReportFileView is one file of a report. Lines is nil in the without-lines projection.
type ReportFileView struct {
	Name   string           `json:"name"`
	Totals ReportTotalsView `json:"totals"`
	Lines  json.Marshaler   `json:"lines,omitempty"`
}

// ReportView is a serialized report.
type ReportView struct {
	Totals ReportTotalsView `json:"totals"`
	Files  []ReportFileView `json:"files"`
}

// FlagView is a report restricted to one flag.
type FlagView struct {
	Name   string     `json:"name"`
	Report ReportView `json:"report"`
}

// SerializeReport presents a report with per-line data.
func SerializeReport(r *agg.Report) ReportView {
	return serializeReport(r, true)
}

// SerializeReportWithoutLines presents a report with file totals only.
func SerializeReportWithoutLines(r *agg.Report) ReportView {
	return serializeReport(r, false)
}

// SerializeFlag presents the flag-filtered view of a report.
func SerializeFlag(r *agg.Report, flag string) FlagView {
	return FlagView{Name: flag, Report: SerializeReport(r.FilterFlag(flag))}
}

func serializeReport(r *agg.Report, withLines bool) ReportView {
	view := ReportView{
		Totals: SerializeReportTotals(r.Totals),
		Files:  make([]ReportFileView, 0, len(r.Files)),
	}
	for _, f := range r.Files {
		fv := ReportFileView{Name: f.Name, Totals: SerializeReportTotals(f.Totals)}
		if withLines {
			fv.Lines = lineStream(f.Lines())
		}
		view.Files = append(view.Files, fv)
	}
	return view
}

// lineStream encodes line tuples as a JSON array while iterating.
type lineStream iter.Seq[agg.LineTuple]

// MarshalJSON implements json.Marshaler.
func (s lineStream) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	first := true
	var err error
	for t := range s {
		var b []byte
		if b, err = json.Marshal(t); err != nil {
			break
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(b)
	}
	if err != nil {
		return nil, err
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
