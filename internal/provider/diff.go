package provider

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/covhub/covhub/schema"
)

// ParseDiff parses a git unified diff covering one or more files.
// Files are keyed by their path after the change; deleted files keep their old path.
func ParseDiff(data []byte) (*schema.Diff, error) {
	diff := &schema.Diff{Files: make(map[string]*schema.DiffFile)}
	p := &diffParser{diff: diff}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if err := p.line(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read diff: %w", err)
	}
	p.flush()
	return diff, nil
}

// ParseHunks parses the hunks of a single file, as served without the git headers.
func ParseHunks(data string) (*schema.DiffFile, error) {
	p := &diffParser{cur: &schema.DiffFile{Type: schema.DiffModified}}
	for _, l := range strings.Split(strings.TrimSuffix(data, "\n"), "\n") {
		if err := p.hunkLine(l); err != nil {
			return nil, err
		}
	}
	return p.cur, nil
}

type diffParser struct {
	diff   *schema.Diff
	cur    *schema.DiffFile
	path   string
	before string
}

func (p *diffParser) flush() {
	if p.cur == nil {
		return
	}
	if p.before != "" && p.before != p.path && p.cur.Type == schema.DiffModified {
		p.cur.Before = p.before
	}
	p.diff.Files[p.path] = p.cur
	p.cur = nil
}

func (p *diffParser) line(l string) error {
	switch {
	case strings.HasPrefix(l, "diff --git "):
		p.flush()
		before, after := splitGitPaths(strings.TrimPrefix(l, "diff --git "))
		p.cur = &schema.DiffFile{Type: schema.DiffModified}
		p.path, p.before = after, before
		return nil
	case p.cur == nil:
		// Commit message or other preamble before the first file.
		return nil
	case len(p.cur.Segments) == 0 && !strings.HasPrefix(l, "@@"):
		p.header(l)
		return nil
	default:
		return p.hunkLine(l)
	}
}

// header handles the extended header lines between "diff --git" and the first hunk.
func (p *diffParser) header(l string) {
	switch {
	case strings.HasPrefix(l, "new file mode"):
		p.cur.Type = schema.DiffNew
	case strings.HasPrefix(l, "deleted file mode"):
		p.cur.Type = schema.DiffDeleted
	case strings.HasPrefix(l, "rename from "):
		p.before = strings.TrimPrefix(l, "rename from ")
	case strings.HasPrefix(l, "rename to "):
		p.path = strings.TrimPrefix(l, "rename to ")
	case strings.HasPrefix(l, "Binary files ") || l == "GIT binary patch":
		p.cur.Type = schema.DiffBinary
	case strings.HasPrefix(l, "--- "):
		if name := stripPrefix(strings.TrimPrefix(l, "--- ")); name != "" {
			p.before = name
		}
	case strings.HasPrefix(l, "+++ "):
		if name := stripPrefix(strings.TrimPrefix(l, "+++ ")); name != "" {
			p.path = name
		}
	}
}

func (p *diffParser) hunkLine(l string) error {
	if strings.HasPrefix(l, "@@") {
		header, err := parseHunkHeader(l)
		if err != nil {
			return err
		}
		p.cur.Segments = append(p.cur.Segments, schema.DiffSegment{Header: header})
		return nil
	}
	if len(p.cur.Segments) == 0 {
		return nil
	}
	if strings.HasPrefix(l, `\`) {
		// "\ No newline at end of file"
		return nil
	}
	seg := &p.cur.Segments[len(p.cur.Segments)-1]
	switch {
	case strings.HasPrefix(l, "+"):
		p.cur.Stats.Added++
	case strings.HasPrefix(l, "-"):
		p.cur.Stats.Removed++
	}
	seg.Lines = append(seg.Lines, l)
	return nil
}

// parseHunkHeader parses "@@ -a,b +c,d @@". An omitted length is 1.
func parseHunkHeader(l string) ([4]int, error) {
	var h [4]int
	body, _, ok := strings.Cut(strings.TrimPrefix(l, "@@ "), " @@")
	if !ok {
		return h, fmt.Errorf("invalid hunk header %q", l)
	}
	fields := strings.Fields(body)
	if len(fields) != 2 || !strings.HasPrefix(fields[0], "-") || !strings.HasPrefix(fields[1], "+") {
		return h, fmt.Errorf("invalid hunk header %q", l)
	}
	var err error
	if h[0], h[1], err = parseRange(fields[0][1:]); err != nil {
		return h, fmt.Errorf("invalid hunk header %q: %w", l, err)
	}
	if h[2], h[3], err = parseRange(fields[1][1:]); err != nil {
		return h, fmt.Errorf("invalid hunk header %q: %w", l, err)
	}
	return h, nil
}

func parseRange(s string) (int, int, error) {
	startStr, lenStr, hasLen := strings.Cut(s, ",")
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return 0, 0, err
	}
	if !hasLen {
		return start, 1, nil
	}
	n, err := strconv.Atoi(lenStr)
	if err != nil {
		return 0, 0, err
	}
	return start, n, nil
}

// splitGitPaths splits "a/old b/new". Paths containing " b/" are split at the last occurrence.
func splitGitPaths(s string) (string, string) {
	i := strings.LastIndex(s, " b/")
	if i < 0 {
		return "", stripPrefix(s)
	}
	return stripPrefix(s[:i]), s[i+3:]
}

func stripPrefix(name string) string {
	name = strings.TrimSpace(name)
	if name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
