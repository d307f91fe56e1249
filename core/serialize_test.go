package core

import (
	"encoding/json"
	"testing"

	"github.com/covhub/covhub/core/agg"
	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureReport(t *testing.T) *agg.Report {
	t.Helper()
	idx, err := agg.ParseIndex([]byte(fixtureIndex))
	require.NoError(t, err)
	report, err := agg.BuildReport(idx, []byte(fixtureChunks))
	require.NoError(t, err)
	return report
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{85.71429, 85.71},
		{66.666666, 66.67},
		{2.675, 2.67}, // binary value is just below the midpoint
		{0.125, 0.12}, // exact midpoint rounds to even
		{0.375, 0.38},
		{100, 100},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestCoveragePercent(t *testing.T) {
	assert.Equal(t, 85.71, CoveragePercent("85.71429"))
	assert.Equal(t, 100.0, CoveragePercent("100"))
	assert.Equal(t, 0.0, CoveragePercent("0"))
	assert.Equal(t, 0.0, CoveragePercent(""))
	assert.Equal(t, 0.0, CoveragePercent("n/a"))
}

func TestComplexityRatio(t *testing.T) {
	assert.Equal(t, 0.0, ComplexityRatio(0, 10))
	assert.Equal(t, 0.0, ComplexityRatio(10, 0))
	assert.Equal(t, 33.33, ComplexityRatio(1, 3))
	assert.Equal(t, 50.0, ComplexityRatio(2, 4))
	assert.Equal(t, 25.0, ComplexityRatio(50, 200))
}

func TestSerializeReportTotals_UsesStoredCoverage(t *testing.T) {
	view := SerializeReportTotals(schema.ReportTotals{Lines: 2, Hits: 1, Coverage: "90.00000", Complexity: 1, ComplexityTotal: 4})
	assert.Equal(t, 90.0, view.Coverage, "coverage is never recomputed from hits and lines")
	assert.Equal(t, 25.0, view.ComplexityRatio)
	assert.Nil(t, view.Diff)
}

func TestSerializeCommitTotals(t *testing.T) {
	assert.Nil(t, SerializeCommitTotals(nil))

	view := SerializeCommitTotals(&schema.CommitTotals{Lines: 7, Hits: 6, Coverage: "85.71429", Diff: json.RawMessage(`[1, 2]`)})
	require.NotNil(t, view)
	assert.Equal(t, 85.71, view.Coverage)
	assert.Equal(t, json.RawMessage(`[1, 2]`), view.Diff)
}

func TestSerializeReport(t *testing.T) {
	report := fixtureReport(t)

	data, err := json.Marshal(SerializeReport(report))
	require.NoError(t, err)

	var decoded struct {
		Totals map[string]any `json:"totals"`
		Files  []struct {
			Name   string            `json:"name"`
			Totals map[string]any    `json:"totals"`
			Lines  []json.RawMessage `json:"lines"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Files, 2)
	assert.Equal(t, "src/a.py", decoded.Files[0].Name)
	require.Len(t, decoded.Files[0].Lines, 3)
	assert.JSONEq(t, `[1, 1, null, [[0, 1, null, null, null]], null, null]`, string(decoded.Files[0].Lines[0]))
	assert.JSONEq(t, `[3, 0, null, [[1, 0, null, null, null]], null, null]`, string(decoded.Files[0].Lines[2]))
	assert.Equal(t, 66.67, decoded.Files[0].Totals["coverage"])
	assert.Equal(t, 75.0, decoded.Totals["coverage"])
}

func TestSerializeReportWithoutLines(t *testing.T) {
	report := fixtureReport(t)

	data, err := json.Marshal(SerializeReportWithoutLines(report))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	files := decoded["files"].([]any)
	require.Len(t, files, 2)
	for _, f := range files {
		file := f.(map[string]any)
		assert.NotContains(t, file, "lines")
		assert.Contains(t, file, "totals")
		assert.Contains(t, file, "name")
	}
}

func TestSerializeReportWithoutLines_TotalsMatchFullReport(t *testing.T) {
	report := fixtureReport(t)
	full := SerializeReport(report)
	bare := SerializeReportWithoutLines(report)

	fullTotals, err := json.Marshal(full.Totals)
	require.NoError(t, err)
	bareTotals, err := json.Marshal(bare.Totals)
	require.NoError(t, err)
	assert.Equal(t, fullTotals, bareTotals)

	require.Len(t, bare.Files, len(full.Files))
	for i := range full.Files {
		want, err := json.Marshal(full.Files[i].Totals)
		require.NoError(t, err)
		got, err := json.Marshal(bare.Files[i].Totals)
		require.NoError(t, err)
		assert.Equal(t, want, got, full.Files[i].Name)
	}
}

func TestSerializeFlag(t *testing.T) {
	report := fixtureReport(t)

	view := SerializeFlag(report, "integration")
	assert.Equal(t, "integration", view.Name)
	require.Len(t, view.Report.Files, 1, "files without integration sessions are dropped")
	assert.Equal(t, "src/a.py", view.Report.Files[0].Name)
	assert.Equal(t, 50.0, view.Report.Totals.Coverage)
	assert.Equal(t, 2, view.Report.Totals.Lines)
	assert.Equal(t, 1, view.Report.Totals.Sessions)

	unknown := SerializeFlag(report, "nightly")
	assert.Empty(t, unknown.Report.Files)
	assert.Equal(t, 0.0, unknown.Report.Totals.Coverage)
}
