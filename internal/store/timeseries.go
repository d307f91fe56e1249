package store

import (
	"context"
	"errors"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// TimeseriesStore keeps measurements and their daily summaries in a separate
// database. Every other entity stays in the primary store.
type TimeseriesStore struct {
	contract.Store
	series contract.Store
}

var _ contract.Store = &TimeseriesStore{} // Compile-time check

// NewTimeseriesStore routes the measurement methods of primary to series.
// Closing the result closes both.
func NewTimeseriesStore(primary, series contract.Store) *TimeseriesStore {
	return &TimeseriesStore{Store: primary, series: series}
}

// SaveMeasurement writes to the timeseries database.
func (s *TimeseriesStore) SaveMeasurement(ctx context.Context, m schema.Measurement) error {
	return s.series.SaveMeasurement(ctx, m)
}

// ListMeasurements reads from the timeseries database.
func (s *TimeseriesStore) ListMeasurements(ctx context.Context, filter schema.MeasurementFilter) ([]schema.Measurement, error) {
	return s.series.ListMeasurements(ctx, filter)
}

// RefreshSummaries recomputes the summaries in the timeseries database.
func (s *TimeseriesStore) RefreshSummaries(ctx context.Context, start, end time.Time) error {
	return s.series.RefreshSummaries(ctx, start, end)
}

// ListSummaries reads from the timeseries database.
func (s *TimeseriesStore) ListSummaries(ctx context.Context, filter schema.MeasurementFilter) ([]schema.MeasurementSummary, error) {
	return s.series.ListSummaries(ctx, filter)
}

// GetStatus reports the primary store with the measurement figures of the timeseries database.
func (s *TimeseriesStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status, err := s.Store.GetStatus(ctx)
	if err != nil {
		return status, err
	}
	series, err := s.series.GetStatus(ctx)
	if err != nil {
		return status, err
	}
	status.LastMeasurement = series.LastMeasurement
	for _, table := range []string{measurementsTable, summariesTable} {
		status.TableSizes[table] = series.TableSizes[table]
	}
	return status, nil
}

// Close closes both databases.
func (s *TimeseriesStore) Close() error {
	return errors.Join(s.Store.Close(), s.series.Close())
}
