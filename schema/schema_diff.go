package schema

// DiffFileType classifies a file in a commit diff.
type DiffFileType string

// All diff file types.
const (
	DiffNew      DiffFileType = "new"
	DiffModified DiffFileType = "modified"
	DiffDeleted  DiffFileType = "deleted"
	DiffBinary   DiffFileType = "binary"
)

// Diff is a parsed unified diff keyed by the file path after the change.
type Diff struct {
	Files map[string]*DiffFile `json:"files"`
}

// DiffFile holds the hunks of one changed file.
type DiffFile struct {
	Type     DiffFileType  `json:"type"`
	Before   string        `json:"before,omitempty"`
	Segments []DiffSegment `json:"segments,omitempty"`
	Stats    DiffStats     `json:"stats"`
}

// DiffSegment is one hunk. Header is [base start, base length, head start, head length].
type DiffSegment struct {
	Header [4]int   `json:"header"`
	Lines  []string `json:"lines"`
}

// DiffStats counts added and removed lines of a file.
type DiffStats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// AddedLines returns the head line numbers added by the file's hunks.
func (f *DiffFile) AddedLines() map[int]struct{} {
	added := make(map[int]struct{})
	for _, seg := range f.Segments {
		ln := seg.Header[2]
		for _, l := range seg.Lines {
			switch {
			case len(l) > 0 && l[0] == '+':
				added[ln] = struct{}{}
				ln++
			case len(l) > 0 && l[0] == '-':
				// removed lines do not advance the head side
			default:
				ln++
			}
		}
	}
	return added
}
