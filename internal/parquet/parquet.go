// Package parquet exports the coverage timeseries to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/covhub/covhub/schema"
	"github.com/parquet-go/parquet-go"
)

// Measurement is one timeseries point.
// This struct maps to the measurements database table.
type Measurement struct {
	// Name is the dataset: coverage, flag_coverage or component_coverage
	Name string `parquet:"name,snappy"`

	OwnerID int64 `parquet:"owner_id,snappy"`
	RepoID  int64 `parquet:"repo_id,snappy"`

	// MeasurableID is the flag or component name (nullable for plain coverage)
	MeasurableID *string `parquet:"measurable_id,optional,snappy"`

	CommitSHA string `parquet:"commit_sha,snappy"`

	// Timestamp is the commit time (stored as TIMESTAMP with nanosecond precision)
	Timestamp time.Time `parquet:"timestamp,snappy"`

	Branch string `parquet:"branch,snappy"`

	// Value is the coverage percentage rounded to 2 decimals
	Value float64 `parquet:"value,snappy"`
}

// MeasurementSummary is a daily aggregate.
// This struct maps to the measurement_summaries database table.
type MeasurementSummary struct {
	Name         string    `parquet:"name,snappy"`
	OwnerID      int64     `parquet:"owner_id,snappy"`
	RepoID       int64     `parquet:"repo_id,snappy"`
	MeasurableID *string   `parquet:"measurable_id,optional,snappy"`
	Branch       string    `parquet:"branch,snappy"`
	Day          time.Time `parquet:"day,snappy"`
	Avg          float64   `parquet:"avg,snappy"`
	Min          float64   `parquet:"min,snappy"`
	Max          float64   `parquet:"max,snappy"`
	Count        int32     `parquet:"count,snappy"`
}

// WriteMeasurementsParquet writes a slice of Measurement structs to a Parquet file.
func WriteMeasurementsParquet(data []Measurement, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteSummariesParquet writes a slice of MeasurementSummary structs to a Parquet file.
func WriteSummariesParquet(data []MeasurementSummary, outputPath string) error {
	return writeParquet(data, outputPath)
}

func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is derived from the struct tags of T
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertMeasurements converts schema.Measurement to Measurement for Parquet export.
func ConvertMeasurements(records []schema.Measurement) []Measurement {
	result := make([]Measurement, len(records))
	for i, r := range records {
		result[i] = Measurement{
			Name:         string(r.Name),
			OwnerID:      r.OwnerID,
			RepoID:       r.RepoID,
			MeasurableID: optional(r.MeasurableID),
			CommitSHA:    r.CommitSHA,
			Timestamp:    r.Timestamp,
			Branch:       r.Branch,
			Value:        r.Value,
		}
	}
	return result
}

// ConvertSummaries converts schema.MeasurementSummary to MeasurementSummary for Parquet export.
func ConvertSummaries(records []schema.MeasurementSummary) []MeasurementSummary {
	result := make([]MeasurementSummary, len(records))
	for i, r := range records {
		result[i] = MeasurementSummary{
			Name:         string(r.Name),
			OwnerID:      r.OwnerID,
			RepoID:       r.RepoID,
			MeasurableID: optional(r.MeasurableID),
			Branch:       r.Branch,
			Day:          r.Day,
			Avg:          r.Avg,
			Min:          r.Min,
			Max:          r.Max,
			Count:        int32(r.Count),
		}
	}
	return result
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
