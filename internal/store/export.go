package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/parquet"
	"github.com/covhub/covhub/schema"
)

// ExportResult names the files written by an export.
type ExportResult struct {
	MeasurementsFile string
	SummariesFile    string
	Measurements     int
	Summaries        int
}

// ExecuteMeasurementExport exports the measurement timeseries and its daily
// summaries to <outputFile>.measurements.parquet and <outputFile>.summaries.parquet.
func ExecuteMeasurementExport(ctx context.Context, st contract.Store, outputFile string) (ExportResult, error) {
	if outputFile == "" {
		return ExportResult{}, errors.New("--output-file is required for export command")
	}

	status, err := st.GetStatus(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to get store status: %w", err)
	}
	if status.TableSizes[measurementsTable] == 0 {
		return ExportResult{}, errors.New("no measurement data found to export")
	}

	measurements, err := st.ListMeasurements(ctx, schema.MeasurementFilter{})
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to retrieve measurements: %w", err)
	}
	summaries, err := st.ListSummaries(ctx, schema.MeasurementFilter{})
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to retrieve summaries: %w", err)
	}

	result := ExportResult{
		MeasurementsFile: outputFile + ".measurements.parquet",
		SummariesFile:    outputFile + ".summaries.parquet",
		Measurements:     len(measurements),
		Summaries:        len(summaries),
	}
	if err := parquet.WriteMeasurementsParquet(parquet.ConvertMeasurements(measurements), result.MeasurementsFile); err != nil {
		return result, fmt.Errorf("failed to write measurements: %w", err)
	}
	if err := parquet.WriteSummariesParquet(parquet.ConvertSummaries(summaries), result.SummariesFile); err != nil {
		return result, fmt.Errorf("failed to write summaries: %w", err)
	}
	return result, nil
}
