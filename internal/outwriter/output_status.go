package outwriter

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/store"
	"github.com/covhub/covhub/schema"
	"github.com/olekukonko/tablewriter"
)

// statusOutput is the JSON shape of db status.
type statusOutput struct {
	Store   schema.StoreStatus   `json:"store"`
	Archive schema.ArchiveStatus `json:"archive"`
}

func formatStatusTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(contract.DateTimeFormat)
}

// printStatus prints the store status as a two-column table.
func (ow *OutWriter) printStatus(st schema.StoreStatus, archive schema.ArchiveStatus, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, ow.w, func(w io.Writer) error {
			return writeJSON(w, statusOutput{Store: st, Archive: archive})
		}, "Wrote JSON status")
	}

	rows := [][]string{
		{"Store backend", st.Backend},
		{"Store connected", strconv.FormatBool(st.Connected)},
		{"Schema version", fmt.Sprintf("%d", st.SchemaVersion)},
		{"Schema dirty", strconv.FormatBool(st.Dirty)},
		{"Last measurement", formatStatusTime(st.LastMeasurement)},
	}
	tables := make([]string, 0, len(st.TableSizes))
	for name := range st.TableSizes {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	for _, name := range tables {
		rows = append(rows, []string{"Rows in " + name, strconv.FormatInt(st.TableSizes[name], 10)})
	}
	rows = append(rows,
		[]string{"Archive backend", archive.Backend},
		[]string{"Archive connected", strconv.FormatBool(archive.Connected)},
		[]string{"Archive entries", strconv.Itoa(archive.TotalEntries)},
		[]string{"Archive size (bytes)", strconv.FormatInt(archive.TableSizeBytes, 10)},
		[]string{"Newest archive", formatStatusTime(archive.LastEntryTime)},
	)
	return ow.keyValueTable(rows)
}

// keyValueTable renders rows of label and value.
func (ow *OutWriter) keyValueTable(rows [][]string) error {
	table := tablewriter.NewWriter(ow.w)
	table.Header([]string{"Property", "Value"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// printBackfill prints the summary of a backfill run.
func (ow *OutWriter) printBackfill(result core.BackfillResult, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, ow.w, func(w io.Writer) error {
			return writeJSON(w, map[string]any{
				"owner":        result.Owner,
				"repositories": result.Repositories,
				"measurements": result.Measurements,
				"refreshed":    result.Refreshed,
				"duration_ms":  result.Duration.Milliseconds(),
			})
		}, "Wrote JSON backfill result")
	}
	_, err := fmt.Fprintf(ow.w, "Backfilled %d measurements across %d repositories of %s in %v (summaries refreshed: %t)\n",
		result.Measurements, result.Repositories, result.Owner, result.Duration, result.Refreshed)
	return err
}

// printExport prints the files written by a timeseries export.
func (ow *OutWriter) printExport(result store.ExportResult, _ *contract.Config) error {
	_, err := fmt.Fprintf(ow.w, "Exported %d measurements to %s\nExported %d summaries to %s\n",
		result.Measurements, result.MeasurementsFile, result.Summaries, result.SummariesFile)
	return err
}
