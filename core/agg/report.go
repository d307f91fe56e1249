package agg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strconv"

	"github.com/covhub/covhub/schema"
)

// Complexity is a line complexity: a single number, or a [covered, total] pair.
type Complexity struct {
	Covered float64
	Total   float64
	Pair    bool
}

// MarshalJSON implements json.Marshaler.
func (c Complexity) MarshalJSON() ([]byte, error) {
	if c.Pair {
		return json.Marshal([2]float64{c.Covered, c.Total})
	}
	return json.Marshal(c.Covered)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Complexity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("complexity pair must have 2 elements, got %d", len(pair))
		}
		*c = Complexity{Covered: pair[0], Total: pair[1], Pair: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Complexity{Covered: v, Total: v}
	return nil
}

// LineSession is one upload session's view of a line.
// Branches and Partials are passed through as recorded.
type LineSession struct {
	ID         int
	Coverage   LineCoverage
	Branches   json.RawMessage
	Partials   json.RawMessage
	Complexity *Complexity
}

// MarshalJSON encodes the session as [id, coverage, branches, partials, complexity].
func (s LineSession) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.ID, s.Coverage, rawOrNull(s.Branches), rawOrNull(s.Partials), s.Complexity})
}

// UnmarshalJSON decodes the positional session array. Trailing elements are optional.
func (s *LineSession) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("line session: %w", err)
	}
	if len(parts) < 2 {
		return fmt.Errorf("line session needs at least id and coverage, got %d elements", len(parts))
	}
	*s = LineSession{}
	if err := json.Unmarshal(parts[0], &s.ID); err != nil {
		return fmt.Errorf("line session id: %w", err)
	}
	if err := json.Unmarshal(parts[1], &s.Coverage); err != nil {
		return err
	}
	if len(parts) > 2 && !isNull(parts[2]) {
		s.Branches = parts[2]
	}
	if len(parts) > 3 && !isNull(parts[3]) {
		s.Partials = parts[3]
	}
	if len(parts) > 4 && !isNull(parts[4]) {
		s.Complexity = new(Complexity)
		if err := json.Unmarshal(parts[4], s.Complexity); err != nil {
			return err
		}
	}
	return nil
}

// LineRecord is the stored data of one instrumented line.
type LineRecord struct {
	Coverage   LineCoverage
	Type       schema.LineType
	Sessions   []LineSession
	Messages   json.RawMessage
	Complexity *Complexity
}

// MarshalJSON encodes the record as [coverage, type, sessions, messages, complexity].
func (r LineRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Coverage, r.typeOrNull(), r.sessionsOrEmpty(), rawOrNull(r.Messages), r.Complexity})
}

// UnmarshalJSON decodes the positional line array.
func (r *LineRecord) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("line record: %w", err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("line record is empty")
	}
	*r = LineRecord{}
	if err := json.Unmarshal(parts[0], &r.Coverage); err != nil {
		return err
	}
	if len(parts) > 1 && !isNull(parts[1]) {
		var typ string
		if err := json.Unmarshal(parts[1], &typ); err != nil {
			return fmt.Errorf("line type: %w", err)
		}
		r.Type = schema.LineType(typ)
	}
	if len(parts) > 2 && !isNull(parts[2]) {
		if err := json.Unmarshal(parts[2], &r.Sessions); err != nil {
			return err
		}
	}
	if len(parts) > 3 && !isNull(parts[3]) {
		r.Messages = parts[3]
	}
	if len(parts) > 4 && !isNull(parts[4]) {
		r.Complexity = new(Complexity)
		if err := json.Unmarshal(parts[4], r.Complexity); err != nil {
			return err
		}
	}
	return nil
}

func (r LineRecord) typeOrNull() any {
	if r.Type == schema.LinePlain {
		return nil
	}
	return r.Type
}

func (r LineRecord) sessionsOrEmpty() []LineSession {
	if r.Sessions == nil {
		return []LineSession{}
	}
	return r.Sessions
}

// LineTuple is a numbered line as presented to clients:
// [line_number, coverage, type, sessions, messages, complexity].
type LineTuple struct {
	Number int
	LineRecord
}

// MarshalJSON implements json.Marshaler.
func (t LineTuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Number, t.Coverage, t.typeOrNull(), t.sessionsOrEmpty(), rawOrNull(t.Messages), t.Complexity})
}

// SessionInfo describes one upload session of a report.
type SessionInfo struct {
	Flags    []string `json:"f,omitempty"`
	Provider string   `json:"c,omitempty"`
	Name     string   `json:"n,omitempty"`
	BuildURL string   `json:"u,omitempty"`
}

// ReportFile holds the totals and sparse lines of one file.
type ReportFile struct {
	Name   string
	Totals schema.ReportTotals
	lines  []LineTuple
}

// NewReportFile creates an empty file.
func NewReportFile(name string) *ReportFile {
	return &ReportFile{Name: name, Totals: schema.ReportTotals{Coverage: "0"}}
}

// SetLine stores the record of line n, replacing any previous record.
func (f *ReportFile) SetLine(n int, rec LineRecord) {
	i, found := slices.BinarySearchFunc(f.lines, n, func(t LineTuple, target int) int {
		return t.Number - target
	})
	if found {
		f.lines[i].LineRecord = rec
		return
	}
	f.lines = slices.Insert(f.lines, i, LineTuple{Number: n, LineRecord: rec})
}

// Line returns the record of line n.
func (f *ReportFile) Line(n int) (LineRecord, bool) {
	i, found := slices.BinarySearchFunc(f.lines, n, func(t LineTuple, target int) int {
		return t.Number - target
	})
	if !found {
		return LineRecord{}, false
	}
	return f.lines[i].LineRecord, true
}

// Lines yields the instrumented lines in ascending line number.
func (f *ReportFile) Lines() iter.Seq[LineTuple] {
	return func(yield func(LineTuple) bool) {
		for _, t := range f.lines {
			if !yield(t) {
				return
			}
		}
	}
}

// LineCount returns the number of instrumented lines.
func (f *ReportFile) LineCount() int { return len(f.lines) }

// Recompute replaces the file totals with totals aggregated from its lines.
func (f *ReportFile) Recompute() {
	f.Totals = FileTotals(f.Lines())
}

// Report is a reconstructed coverage report.
type Report struct {
	Files    []*ReportFile
	Totals   schema.ReportTotals
	Sessions map[string]SessionInfo
}

// File returns the named file, or nil.
func (r *Report) File(name string) *ReportFile {
	for _, f := range r.Files {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Flags returns the distinct session flags of the report, sorted.
func (r *Report) Flags() []string {
	seen := make(map[string]struct{})
	for _, s := range r.Sessions {
		for _, flag := range s.Flags {
			seen[flag] = struct{}{}
		}
	}
	flags := make([]string, 0, len(seen))
	for flag := range seen {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	return flags
}

// FilterFlag returns a report restricted to the sessions carrying flag.
// Line coverage is re-merged from the kept sessions, lines left without
// sessions are dropped, and all totals are recomputed.
func (r *Report) FilterFlag(flag string) *Report {
	keep := make(map[int]struct{})
	sessions := make(map[string]SessionInfo)
	for id, s := range r.Sessions {
		if !slices.Contains(s.Flags, flag) {
			continue
		}
		sid, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		keep[sid] = struct{}{}
		sessions[id] = s
	}

	out := &Report{Sessions: sessions}
	for _, f := range r.Files {
		nf := NewReportFile(f.Name)
		for t := range f.Lines() {
			var kept []LineSession
			for _, s := range t.Sessions {
				if _, ok := keep[s.ID]; ok {
					kept = append(kept, s)
				}
			}
			if len(kept) == 0 {
				continue
			}
			rec := t.LineRecord
			rec.Sessions = kept
			rec.Coverage = MergeSessions(kept)
			nf.SetLine(t.Number, rec)
		}
		if nf.LineCount() == 0 {
			continue
		}
		nf.Recompute()
		out.Files = append(out.Files, nf)
	}
	out.Totals = ReportTotalsFromFiles(out.Files, len(sessions))
	return out
}

// ReportTotalsFromFiles sums file totals into report totals.
func ReportTotalsFromFiles(files []*ReportFile, sessions int) schema.ReportTotals {
	totals := make([]schema.ReportTotals, 0, len(files))
	for _, f := range files {
		totals = append(totals, f.Totals)
	}
	sum := SumTotals(totals...)
	sum.Files = len(files)
	sum.Sessions = sessions
	return sum
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
