package core

import (
	"testing"

	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureDiff() *schema.Diff {
	return &schema.Diff{Files: map[string]*schema.DiffFile{
		"src/a.py": {
			Type: schema.DiffModified,
			Segments: []schema.DiffSegment{{
				Header: [4]int{1, 2, 1, 3},
				Lines:  []string{"+first", " second", "-gone", "+third"},
			}},
			Stats: schema.DiffStats{Added: 2, Removed: 1},
		},
		"lib/b.py":  {Type: schema.DiffDeleted},
		"README.md": {Type: schema.DiffNew, Segments: []schema.DiffSegment{{Header: [4]int{0, 0, 1, 1}, Lines: []string{"+hello"}}}},
	}}
}

func TestDiffTotals(t *testing.T) {
	report := fixtureReport(t)

	total, perFile := DiffTotals(report, fixtureDiff())
	require.Contains(t, perFile, "src/a.py")
	assert.NotContains(t, perFile, "lib/b.py", "deleted files do not count")
	assert.NotContains(t, perFile, "README.md", "files outside the report do not count")

	a := perFile["src/a.py"]
	assert.Equal(t, 2, a.Lines, "lines 1 and 3 were added")
	assert.Equal(t, 1, a.Hits)
	assert.Equal(t, 1, a.Misses)
	assert.Equal(t, "50.00000", a.Coverage)

	assert.Equal(t, 1, total.Files)
	assert.Equal(t, 2, total.Lines)
	assert.Equal(t, "50.00000", total.Coverage)
}

func TestDiffTotals_NilDiff(t *testing.T) {
	total, perFile := DiffTotals(fixtureReport(t), nil)
	assert.Empty(t, perFile)
	assert.Equal(t, 0, total.Lines)
	assert.Equal(t, "0", total.Coverage)
}

func TestApplyDiff(t *testing.T) {
	report := fixtureReport(t)
	ApplyDiff(report, fixtureDiff())

	diff, ok := report.Totals.Diff.(ReportTotalsView)
	require.True(t, ok)
	assert.Equal(t, 50.0, diff.Coverage)

	fileDiff, ok := report.File("src/a.py").Totals.Diff.(ReportTotalsView)
	require.True(t, ok)
	assert.Equal(t, 2, fileDiff.Lines)
	assert.Nil(t, report.File("lib/b.py").Totals.Diff)
}
