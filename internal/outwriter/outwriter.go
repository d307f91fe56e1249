// Package outwriter renders command results as tables or JSON.
package outwriter

import (
	"io"
	"os"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/store"
	"github.com/covhub/covhub/schema"
)

// OutWriter provides a unified interface for all output operations.
// Tables go to the writer; JSON goes to cfg.OutputFile or the writer.
type OutWriter struct {
	w io.Writer
}

// NewOutWriter creates an output writer for os.Stdout.
func NewOutWriter() *OutWriter {
	return &OutWriter{w: os.Stdout}
}

// NewOutWriterTo creates an output writer for w.
func NewOutWriterTo(w io.Writer) *OutWriter {
	return &OutWriter{w: w}
}

// WriteReport prints the report of one commit.
func (ow *OutWriter) WriteReport(slug, commitID string, report core.ReportView, cfg *contract.Config, duration time.Duration) error {
	return ow.printReport(slug, commitID, report, cfg, duration)
}

// WriteStatus prints the status of the relational and archive stores.
func (ow *OutWriter) WriteStatus(st schema.StoreStatus, archive schema.ArchiveStatus, cfg *contract.Config) error {
	return ow.printStatus(st, archive, cfg)
}

// WriteBackfill prints the summary of a timeseries backfill.
func (ow *OutWriter) WriteBackfill(result core.BackfillResult, cfg *contract.Config) error {
	return ow.printBackfill(result, cfg)
}

// WriteExport prints where a timeseries export was written.
func (ow *OutWriter) WriteExport(result store.ExportResult, cfg *contract.Config) error {
	return ow.printExport(result, cfg)
}

// WriteMeasurements prints timeseries points.
func (ow *OutWriter) WriteMeasurements(points []schema.Measurement, cfg *contract.Config) error {
	return ow.printMeasurements(points, cfg)
}

// WriteSummaries prints daily timeseries summaries.
func (ow *OutWriter) WriteSummaries(summaries []schema.MeasurementSummary, cfg *contract.Config) error {
	return ow.printSummaries(summaries, cfg)
}

// WriteTrial prints the plan and trial state of an owner.
func (ow *OutWriter) WriteTrial(trial TrialSummary, cfg *contract.Config) error {
	return ow.printTrial(trial, cfg)
}
