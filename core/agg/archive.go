package agg

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/covhub/covhub/schema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ChunkSeparator splits the per-file chunks of an archive.
const ChunkSeparator = "\n<<<<< end_of_chunk >>>>>\n"

// ArchivePath returns the object key of the chunk archive of a commit.
func ArchivePath(repoID int64, commitID string) string {
	return fmt.Sprintf("v4/repos/%s/commits/%s/chunks.txt", RepoHash(repoID), commitID)
}

// RepoHash is the stable hash naming a repository in archive paths.
func RepoHash(repoID int64) string {
	sum := md5.Sum([]byte(strconv.FormatInt(repoID, 10)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// IndexEntry locates a file in the chunk archive and carries its stored totals.
// It is encoded as [chunk_index, totals].
type IndexEntry struct {
	Chunk  int
	Totals schema.ReportTotals
}

// MarshalJSON implements json.Marshaler.
func (e IndexEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Chunk, totalsArray(e.Totals)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *IndexEntry) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("index entry: %w", err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("index entry is empty")
	}
	*e = IndexEntry{Totals: schema.ReportTotals{Coverage: "0"}}
	if err := json.Unmarshal(parts[0], &e.Chunk); err != nil {
		return fmt.Errorf("index entry chunk: %w", err)
	}
	if len(parts) > 1 && !isNull(parts[1]) {
		t, err := parseTotals(parts[1])
		if err != nil {
			return err
		}
		e.Totals = t
	}
	return nil
}

// ReportIndex is the stored report index of a commit.
type ReportIndex struct {
	Files    *orderedmap.OrderedMap[string, IndexEntry] `json:"files"`
	Sessions map[string]SessionInfo                     `json:"sessions"`
	Totals   *schema.CommitTotals                       `json:"totals,omitempty"`
}

// ParseIndex decodes a report index, keeping the file order.
func ParseIndex(data []byte) (*ReportIndex, error) {
	idx := &ReportIndex{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, idx); err != nil {
			return nil, fmt.Errorf("parse report index: %w", err)
		}
	}
	if idx.Files == nil {
		idx.Files = orderedmap.New[string, IndexEntry]()
	}
	if idx.Sessions == nil {
		idx.Sessions = map[string]SessionInfo{}
	}
	return idx, nil
}

// BuildReport reconstructs a report from its index and chunk archive.
// A nil archive yields the index files with their stored totals and no lines.
// Top-level totals come from the index when present, otherwise they are
// summed from the files.
func BuildReport(idx *ReportIndex, archive []byte) (*Report, error) {
	var chunks []string
	if len(archive) > 0 {
		chunks = strings.Split(string(archive), ChunkSeparator)
	}

	report := &Report{Sessions: idx.Sessions}
	for pair := idx.Files.Oldest(); pair != nil; pair = pair.Next() {
		f := NewReportFile(pair.Key)
		f.Totals = pair.Value.Totals
		if c := pair.Value.Chunk; c >= 0 && c < len(chunks) {
			if err := parseChunk(f, chunks[c]); err != nil {
				return nil, err
			}
			if f.LineCount() > 0 {
				f.Recompute()
			}
		}
		report.Files = append(report.Files, f)
	}

	if idx.Totals != nil {
		report.Totals = idx.Totals.ToReportTotals()
	} else {
		report.Totals = ReportTotalsFromFiles(report.Files, len(idx.Sessions))
	}
	return report, nil
}

// parseChunk reads the lines of one chunk into f. The first line may be a
// header object; each following line i is line number i.
func parseChunk(f *ReportFile, chunk string) error {
	lines := strings.Split(chunk, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "{") {
		lines = lines[1:]
	}
	for i, raw := range lines {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		var rec LineRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("%s line %d: %w", f.Name, i+1, err)
		}
		f.SetLine(i+1, rec)
	}
	return nil
}

// EncodeArchive writes a report as an index and a chunk archive, one chunk per file.
func EncodeArchive(r *Report) ([]byte, []byte, error) {
	idx := ReportIndex{
		Files:    orderedmap.New[string, IndexEntry](),
		Sessions: r.Sessions,
	}
	var buf bytes.Buffer
	for i, f := range r.Files {
		idx.Files.Set(f.Name, IndexEntry{Chunk: i, Totals: f.Totals})
		if i > 0 {
			buf.WriteString(ChunkSeparator)
		}
		buf.WriteString("{}")
		next := 1
		for t := range f.Lines() {
			for ; next < t.Number; next++ {
				buf.WriteByte('\n')
			}
			line, err := json.Marshal(t.LineRecord)
			if err != nil {
				return nil, nil, fmt.Errorf("encode %s line %d: %w", f.Name, t.Number, err)
			}
			buf.WriteByte('\n')
			buf.Write(line)
			next = t.Number + 1
		}
	}
	totals := commitTotalsOf(r.Totals)
	idx.Totals = &totals
	index, err := json.Marshal(idx)
	if err != nil {
		return nil, nil, fmt.Errorf("encode report index: %w", err)
	}
	return index, buf.Bytes(), nil
}

// totalsArray encodes totals positionally:
// files, lines, hits, misses, partials, coverage, branches, methods,
// messages, sessions, complexity, complexity_total, diff.
func totalsArray(t schema.ReportTotals) []any {
	return []any{
		t.Files, t.Lines, t.Hits, t.Misses, t.Partials, t.Coverage,
		t.Branches, t.Methods, t.Messages, t.Sessions,
		t.Complexity, t.ComplexityTotal, t.Diff,
	}
}

// parseTotals accepts the positional array form or the short-key object form.
func parseTotals(data json.RawMessage) (schema.ReportTotals, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var ct schema.CommitTotals
		if err := json.Unmarshal(data, &ct); err != nil {
			return schema.ReportTotals{}, fmt.Errorf("file totals: %w", err)
		}
		return ct.ToReportTotals(), nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return schema.ReportTotals{}, fmt.Errorf("file totals: %w", err)
	}
	t := schema.ReportTotals{Coverage: "0"}
	ints := []*int{&t.Files, &t.Lines, &t.Hits, &t.Misses, &t.Partials}
	for i, dst := range ints {
		if i < len(parts) {
			*dst = intOf(parts[i])
		}
	}
	if len(parts) > 5 {
		t.Coverage = coverageOf(parts[5])
	}
	rest := []*int{&t.Branches, &t.Methods, &t.Messages, &t.Sessions}
	for i, dst := range rest {
		if 6+i < len(parts) {
			*dst = intOf(parts[6+i])
		}
	}
	if len(parts) > 10 {
		t.Complexity = floatOf(parts[10])
	}
	if len(parts) > 11 {
		t.ComplexityTotal = floatOf(parts[11])
	}
	if len(parts) > 12 && !isNull(parts[12]) {
		t.Diff = parts[12]
	}
	return t, nil
}

func commitTotalsOf(t schema.ReportTotals) schema.CommitTotals {
	return schema.CommitTotals{
		Files:           t.Files,
		Lines:           t.Lines,
		Hits:            t.Hits,
		Misses:          t.Misses,
		Partials:        t.Partials,
		Coverage:        t.Coverage,
		Branches:        t.Branches,
		Methods:         t.Methods,
		Messages:        t.Messages,
		Sessions:        t.Sessions,
		Complexity:      t.Complexity,
		ComplexityTotal: t.ComplexityTotal,
	}
}

func floatOf(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return f
}

func intOf(raw json.RawMessage) int {
	return int(floatOf(raw))
}

func coverageOf(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if isNull(raw) {
		return "0"
	}
	return strconv.FormatFloat(floatOf(raw), 'f', -1, 64)
}
