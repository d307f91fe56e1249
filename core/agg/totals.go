package agg

import (
	"iter"
	"strconv"

	"github.com/covhub/covhub/schema"
)

// FileTotals aggregates per-line records into the totals of one file.
// Lines without a coverage value are not counted.
func FileTotals(lines iter.Seq[LineTuple]) schema.ReportTotals {
	t := schema.ReportTotals{Files: 1}
	sessions := make(map[int]struct{})
	for l := range lines {
		switch l.Coverage.Class() {
		case ClassHit:
			t.Hits++
		case ClassMiss:
			t.Misses++
		case ClassPartial:
			t.Partials++
		default:
			continue
		}
		t.Lines++

		switch l.Type {
		case schema.LineBranch:
			t.Branches++
		case schema.LineMethod:
			t.Methods++
		}
		if !isNull(l.Messages) {
			t.Messages++
		}
		for _, s := range l.Sessions {
			sessions[s.ID] = struct{}{}
		}
		if l.Complexity != nil {
			t.Complexity += l.Complexity.Covered
			t.ComplexityTotal += l.Complexity.Total
		}
	}
	t.Sessions = len(sessions)
	t.Coverage = CoverageFraction(t.Hits, t.Lines)
	return t
}

// SumTotals adds up totals. The coverage fraction is recomputed from the
// summed hits and lines, and sessions is the largest count seen.
func SumTotals(ts ...schema.ReportTotals) schema.ReportTotals {
	var sum schema.ReportTotals
	for _, t := range ts {
		sum.Files += t.Files
		sum.Lines += t.Lines
		sum.Hits += t.Hits
		sum.Misses += t.Misses
		sum.Partials += t.Partials
		sum.Branches += t.Branches
		sum.Methods += t.Methods
		sum.Messages += t.Messages
		sum.Sessions = max(sum.Sessions, t.Sessions)
		sum.Complexity += t.Complexity
		sum.ComplexityTotal += t.ComplexityTotal
	}
	sum.Coverage = CoverageFraction(sum.Hits, sum.Lines)
	return sum
}

// CoverageFraction formats hits/lines as a percentage with 5 decimals.
// It is "0" when there are no lines.
func CoverageFraction(hits, lines int) string {
	if lines == 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(hits)/float64(lines)*100, 'f', 5, 64)
}
