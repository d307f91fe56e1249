package outwriter

import (
	"io"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// TrialSummary is the plan and trial state of an owner.
type TrialSummary struct {
	Owner          string             `json:"owner"`
	Service        schema.Service     `json:"service"`
	Plan           string             `json:"plan"`
	TrialStatus    schema.TrialStatus `json:"trial_status"`
	TrialStartDate *time.Time         `json:"trial_start_date"`
	TrialEndDate   *time.Time         `json:"trial_end_date"`
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(contract.DateTimeFormat)
}

// printTrial prints the trial state as a two-column table.
func (ow *OutWriter) printTrial(trial TrialSummary, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, ow.w, func(w io.Writer) error {
			return writeJSON(w, trial)
		}, "Wrote JSON trial status")
	}
	return ow.keyValueTable([][]string{
		{"Owner", trial.Owner},
		{"Service", string(trial.Service)},
		{"Plan", trial.Plan},
		{"Trial status", string(trial.TrialStatus)},
		{"Trial start", formatOptionalTime(trial.TrialStartDate)},
		{"Trial end", formatOptionalTime(trial.TrialEndDate)},
	})
}
