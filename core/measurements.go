package core

import (
	"context"
	"fmt"
	"time"

	"github.com/covhub/covhub/core/agg"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// MeasurementService writes the coverage timeseries of repositories.
type MeasurementService struct {
	store      contract.Store
	reports    *ReportService
	components []contract.Component
}

// NewMeasurementService creates a measurement service. components configure
// the component_coverage datasets.
func NewMeasurementService(store contract.Store, reports *ReportService, components []contract.Component) *MeasurementService {
	return &MeasurementService{store: store, reports: reports, components: components}
}

// SaveRepoMeasurements upserts the measurements of every complete commit of
// repo with a timestamp in [start, end]. It returns the number of rows written.
func (s *MeasurementService) SaveRepoMeasurements(ctx context.Context, repo *schema.Repository, start, end time.Time) (int, error) {
	commits, err := s.store.ListCommits(ctx, repo.ID, start, end)
	if err != nil {
		return 0, fmt.Errorf("list commits of repo %d: %w", repo.ID, err)
	}

	written := 0
	for _, c := range commits {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if c.State != schema.CommitComplete {
			continue
		}
		n, err := s.SaveCommitMeasurements(ctx, repo, c)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// SaveCommitMeasurements upserts the coverage, flag and component measurements of one commit.
func (s *MeasurementService) SaveCommitMeasurements(ctx context.Context, repo *schema.Repository, commit *schema.Commit) (int, error) {
	base := schema.Measurement{
		OwnerID:   repo.OwnerID,
		RepoID:    repo.ID,
		CommitSHA: commit.CommitID,
		Timestamp: commit.Timestamp.UTC(),
		Branch:    commit.Branch,
	}

	var points []schema.Measurement
	if commit.Totals != nil {
		m := base
		m.Name = schema.CoverageMeasurement
		m.Value = CoveragePercent(commit.Totals.Coverage)
		points = append(points, m)
	}

	report, err := s.reports.BuildReportFromCommit(commit)
	if err != nil {
		return 0, err
	}
	for _, flag := range report.Flags() {
		filtered := report.FilterFlag(flag)
		if filtered.Totals.Lines == 0 {
			continue
		}
		m := base
		m.Name = schema.FlagCoverageMeasurement
		m.MeasurableID = flag
		m.Value = CoveragePercent(filtered.Totals.Coverage)
		points = append(points, m)
	}
	for _, comp := range s.components {
		t, ok := ComponentTotals(report, comp)
		if !ok {
			continue
		}
		m := base
		m.Name = schema.ComponentCoverageMeasurement
		m.MeasurableID = comp.Name
		m.Value = CoveragePercent(t.Coverage)
		points = append(points, m)
	}

	for i, m := range points {
		if err := s.store.SaveMeasurement(ctx, m); err != nil {
			return i, fmt.Errorf("save %s measurement of commit %s: %w", m.Name, commit.CommitID, err)
		}
	}
	return len(points), nil
}

// RefreshMeasurementSummaries recomputes the daily summaries in [start, end].
func (s *MeasurementService) RefreshMeasurementSummaries(ctx context.Context, start, end time.Time) error {
	if err := s.store.RefreshSummaries(ctx, start, end); err != nil {
		return fmt.Errorf("refresh summaries: %w", err)
	}
	return nil
}

// ComponentTotals sums the totals of the report files matched by comp.
// It reports false when no matched file has lines.
func ComponentTotals(report *agg.Report, comp contract.Component) (schema.ReportTotals, bool) {
	var ts []schema.ReportTotals
	for _, f := range report.Files {
		if comp.Matches(f.Name) {
			ts = append(ts, f.Totals)
		}
	}
	sum := agg.SumTotals(ts...)
	return sum, sum.Lines > 0
}
