// Package agg has aggregation logic for coverage reports.
package agg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type coverageKind uint8

const (
	coverageNone coverageKind = iota
	coverageHits
	coverageBranch
	coveragePartial
)

// CoverageClass buckets a coverage value for totals.
type CoverageClass int

// Coverage classes, ordered so that a higher class wins a merge.
const (
	ClassIgnored CoverageClass = iota
	ClassMiss
	ClassPartial
	ClassHit
)

// LineCoverage is the coverage of one line: a hit count, a branch
// fraction "covered/total", or a bare partial flag. The zero value means
// the line carries no coverage.
type LineCoverage struct {
	kind    coverageKind
	hits    int
	covered int
	total   int
}

// Hits returns a hit-count coverage.
func Hits(n int) LineCoverage {
	return LineCoverage{kind: coverageHits, hits: n}
}

// Branch returns a branch fraction coverage.
func Branch(covered, total int) LineCoverage {
	return LineCoverage{kind: coverageBranch, covered: covered, total: total}
}

// Partial returns the partial flag coverage.
func Partial() LineCoverage {
	return LineCoverage{kind: coveragePartial}
}

// IsZero reports whether the line has no coverage value.
func (c LineCoverage) IsZero() bool { return c.kind == coverageNone }

// Class returns the totals bucket of the value.
func (c LineCoverage) Class() CoverageClass {
	switch c.kind {
	case coverageHits:
		if c.hits > 0 {
			return ClassHit
		}
		return ClassMiss
	case coverageBranch:
		switch {
		case c.total > 0 && c.covered >= c.total:
			return ClassHit
		case c.covered <= 0:
			return ClassMiss
		default:
			return ClassPartial
		}
	case coveragePartial:
		return ClassPartial
	default:
		return ClassIgnored
	}
}

// String renders the value the way it appears in archives.
func (c LineCoverage) String() string {
	switch c.kind {
	case coverageHits:
		return strconv.Itoa(c.hits)
	case coverageBranch:
		return fmt.Sprintf("%d/%d", c.covered, c.total)
	case coveragePartial:
		return "true"
	default:
		return ""
	}
}

// MarshalJSON implements json.Marshaler.
func (c LineCoverage) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case coverageHits:
		return []byte(strconv.Itoa(c.hits)), nil
	case coverageBranch:
		return json.Marshal(c.String())
	case coveragePartial:
		return []byte("true"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *LineCoverage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = LineCoverage{}
		return nil
	case bytes.Equal(data, []byte("true")):
		*c = Partial()
		return nil
	case bytes.Equal(data, []byte("false")):
		*c = Hits(0)
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseCoverage(s)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("invalid line coverage %s: %w", data, err)
		}
		*c = Hits(int(f))
		return nil
	}
}

// ParseCoverage parses the string form of a coverage value: "k/n" or a hit count.
func ParseCoverage(s string) (LineCoverage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LineCoverage{}, nil
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		covered, err := strconv.Atoi(num)
		if err != nil {
			return LineCoverage{}, fmt.Errorf("invalid branch coverage %q: %w", s, err)
		}
		total, err := strconv.Atoi(den)
		if err != nil {
			return LineCoverage{}, fmt.Errorf("invalid branch coverage %q: %w", s, err)
		}
		return Branch(covered, total), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return LineCoverage{}, fmt.Errorf("invalid hit count %q: %w", s, err)
	}
	return Hits(n), nil
}

// MergeCoverage merges the coverage two sessions recorded for the same line.
// Hit counts take the max, branch fractions take the max covered over the
// max total, and otherwise a hit beats a partial beats a miss.
func MergeCoverage(a, b LineCoverage) LineCoverage {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	switch {
	case a.kind == coverageHits && b.kind == coverageHits:
		return Hits(max(a.hits, b.hits))
	case a.kind == coverageBranch && b.kind == coverageBranch:
		return Branch(max(a.covered, b.covered), max(a.total, b.total))
	}
	if b.Class() > a.Class() {
		return b
	}
	return a
}

// MergeSessions folds the coverage of all sessions of a line.
func MergeSessions(sessions []LineSession) LineCoverage {
	var merged LineCoverage
	for _, s := range sessions {
		merged = MergeCoverage(merged, s.Coverage)
	}
	return merged
}
