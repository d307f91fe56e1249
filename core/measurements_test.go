package core

import (
	"context"
	"testing"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func measurementValues(ms []schema.Measurement) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[string(m.Name)+":"+m.MeasurableID] = m.Value
	}
	return out
}

func TestSaveCommitMeasurements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	commit := f.addCommit(t, "abc", fixtureTime)
	svc := NewMeasurementService(f.store, f.reports, fixtureComponents())

	n, err := svc.SaveCommitMeasurements(ctx, f.repo, commit)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "coverage, two flags and one matching component")

	ms, err := f.store.ListMeasurements(ctx, schema.MeasurementFilter{RepoID: f.repo.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"coverage:":                  75,
		"flag_coverage:unit":         66.67,
		"flag_coverage:integration":  50,
		"component_coverage:library": 100,
	}, measurementValues(ms))
	for _, m := range ms {
		assert.Equal(t, "abc", m.CommitSHA)
		assert.Equal(t, "main", m.Branch)
		assert.Equal(t, f.owner.ID, m.OwnerID)
		assert.True(t, fixtureTime.Equal(m.Timestamp))
	}

	again, err := svc.SaveCommitMeasurements(ctx, f.repo, commit)
	require.NoError(t, err)
	assert.Equal(t, 4, again)
	ms, err = f.store.ListMeasurements(ctx, schema.MeasurementFilter{RepoID: f.repo.ID})
	require.NoError(t, err)
	assert.Len(t, ms, 4, "saving twice upserts")
}

func TestSaveRepoMeasurements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addCommit(t, "c1", fixtureTime)
	f.addCommit(t, "c2", fixtureTime.Add(24*time.Hour))
	require.NoError(t, f.store.SaveCommit(ctx, &schema.Commit{
		RepositoryID: f.repo.ID, CommitID: "pending", Timestamp: fixtureTime.Add(time.Hour), State: schema.CommitPending,
	}))
	svc := NewMeasurementService(f.store, f.reports, nil)

	n, err := svc.SaveRepoMeasurements(ctx, f.repo, fixtureTime, fixtureTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n, "only c1 is complete and in range")

	n, err = svc.SaveRepoMeasurements(ctx, f.repo, fixtureTime, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	coverage, err := f.store.ListMeasurements(ctx, schema.MeasurementFilter{Name: schema.CoverageMeasurement})
	require.NoError(t, err)
	require.Len(t, coverage, 2)
	assert.Equal(t, "c1", coverage[0].CommitSHA)
	assert.Equal(t, "c2", coverage[1].CommitSHA)

	require.NoError(t, svc.RefreshMeasurementSummaries(ctx, fixtureTime, fixtureTime.Add(24*time.Hour)))
	summaries, err := f.store.ListSummaries(ctx, schema.MeasurementFilter{Name: schema.CoverageMeasurement})
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestSaveRepoMeasurements_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.addCommit(t, "c1", fixtureTime)
	svc := NewMeasurementService(f.store, f.reports, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.SaveRepoMeasurements(ctx, f.repo, fixtureTime, time.Time{})
	assert.Error(t, err)
}

func TestComponentTotals(t *testing.T) {
	f := newFixture(t)
	commit := f.addCommit(t, "abc", fixtureTime)
	report, err := f.reports.BuildReportFromCommit(commit)
	require.NoError(t, err)

	totals, ok := ComponentTotals(report, contract.Component{Name: "all", Paths: []string{"src/", "lib/"}})
	require.True(t, ok)
	assert.Equal(t, 2, totals.Files)
	assert.Equal(t, 4, totals.Lines)
	assert.Equal(t, 3, totals.Hits)
	assert.Equal(t, "75.00000", totals.Coverage)

	_, ok = ComponentTotals(report, contract.Component{Name: "none", Paths: []string{"vendor/"}})
	assert.False(t, ok)
}
