package schema

import "encoding/json"

// CommitTotals is the totals blob stored on a commit row.
// Keys follow the compact archive format.
type CommitTotals struct {
	Files           int             `json:"f"`
	Lines           int             `json:"n"`
	Hits            int             `json:"h"`
	Misses          int             `json:"m"`
	Partials        int             `json:"p"`
	Coverage        string          `json:"c"`
	Branches        int             `json:"b"`
	Methods         int             `json:"d"`
	Messages        int             `json:"M"`
	Sessions        int             `json:"s"`
	Complexity      float64         `json:"C"`
	ComplexityTotal float64         `json:"N"`
	Diff            json.RawMessage `json:"diff,omitempty"`
}

// ReportTotals aggregates coverage for a file or a whole report.
// Coverage is the stored percentage as computed upstream; it is authoritative.
type ReportTotals struct {
	Files           int
	Lines           int
	Hits            int
	Misses          int
	Partials        int
	Coverage        string
	Branches        int
	Methods         int
	Messages        int
	Sessions        int
	Complexity      float64
	ComplexityTotal float64
	Diff            any
}

// ToReportTotals converts the stored commit totals into report totals.
func (c *CommitTotals) ToReportTotals() ReportTotals {
	if c == nil {
		return ReportTotals{Coverage: "0"}
	}
	var diff any
	if len(c.Diff) > 0 {
		_ = json.Unmarshal(c.Diff, &diff)
	}
	return ReportTotals{
		Files:           c.Files,
		Lines:           c.Lines,
		Hits:            c.Hits,
		Misses:          c.Misses,
		Partials:        c.Partials,
		Coverage:        c.Coverage,
		Branches:        c.Branches,
		Methods:         c.Methods,
		Messages:        c.Messages,
		Sessions:        c.Sessions,
		Complexity:      c.Complexity,
		ComplexityTotal: c.ComplexityTotal,
		Diff:            diff,
	}
}
