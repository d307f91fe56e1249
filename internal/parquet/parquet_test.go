package parquet

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/covhub/covhub/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMeasurements() []schema.Measurement {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []schema.Measurement{
		{Name: schema.CoverageMeasurement, OwnerID: 1, RepoID: 2, CommitSHA: "abc", Timestamp: ts, Branch: "main", Value: 85.71},
		{Name: schema.FlagCoverageMeasurement, OwnerID: 1, RepoID: 2, MeasurableID: "unit", CommitSHA: "abc", Timestamp: ts, Branch: "main", Value: 50},
	}
}

func TestMeasurementStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(Measurement))
	require.NotNil(t, s)

	for _, colName := range []string{"name", "owner_id", "repo_id", "measurable_id", "commit_sha", "timestamp", "branch", "value"} {
		col, ok := s.Lookup(colName)
		require.True(t, ok, "Column %s should exist in schema", colName)
		require.NotNil(t, col)
	}
}

func TestSummaryStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(MeasurementSummary))
	require.NotNil(t, s)

	for _, colName := range []string{"name", "owner_id", "repo_id", "measurable_id", "branch", "day", "avg", "min", "max", "count"} {
		_, ok := s.Lookup(colName)
		require.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func TestConvertMeasurements(t *testing.T) {
	out := ConvertMeasurements(sampleMeasurements())
	require.Len(t, out, 2)
	assert.Equal(t, "coverage", out[0].Name)
	assert.Nil(t, out[0].MeasurableID, "plain coverage has no measurable id")
	require.NotNil(t, out[1].MeasurableID)
	assert.Equal(t, "unit", *out[1].MeasurableID)
	assert.Equal(t, 85.71, out[0].Value)
}

func TestWriteMeasurementsParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "measurements.parquet")
	data := ConvertMeasurements(sampleMeasurements())

	require.NoError(t, WriteMeasurementsParquet(data, outputPath))

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[Measurement](file)
	defer func() { _ = reader.Close() }()

	readData := make([]Measurement, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, len(data), n)
	for i := range data {
		assert.Equal(t, data[i].Name, readData[i].Name)
		assert.Equal(t, data[i].CommitSHA, readData[i].CommitSHA)
		assert.Equal(t, data[i].Value, readData[i].Value)
		assert.WithinDuration(t, data[i].Timestamp, readData[i].Timestamp, time.Nanosecond)
	}
	assert.Nil(t, readData[0].MeasurableID)
	require.NotNil(t, readData[1].MeasurableID)
	assert.Equal(t, "unit", *readData[1].MeasurableID)
}

func TestWriteSummariesParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "summaries.parquet")
	data := ConvertSummaries([]schema.MeasurementSummary{{
		Name: schema.CoverageMeasurement, OwnerID: 1, RepoID: 2, Branch: "main",
		Day: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Avg: 80, Min: 70, Max: 90, Count: 3,
	}})

	require.NoError(t, WriteSummariesParquet(data, outputPath))

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteMeasurementsParquet_EmptyData(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteMeasurementsParquet([]Measurement{}, outputPath))

	_, err := os.Stat(outputPath)
	assert.NoError(t, err, "Output file should exist even for empty data")
}

func TestWriteMeasurementsParquet_InvalidPath(t *testing.T) {
	err := WriteMeasurementsParquet(nil, "/nonexistent/directory/out.parquet")
	assert.Error(t, err)
}
