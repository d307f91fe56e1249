package logging

// StandardFields names the structured log fields so every component
// emits the same keys for the same data.
//
//nolint:gochecknoglobals // field name table
var StandardFields = struct {
	Timestamp string
	Component string
	RequestID string

	Method     string
	Path       string
	Status     string
	Bytes      string
	DurationMs string
	RemoteAddr string

	Service   string
	Owner     string
	Repo      string
	CommitSHA string
	Dataset   string

	Error string
}{
	Timestamp: "@timestamp",
	Component: "component",
	RequestID: "request_id",

	Method:     "method",
	Path:       "path",
	Status:     "status",
	Bytes:      "bytes",
	DurationMs: "duration_ms",
	RemoteAddr: "remote_addr",

	Service:   "service",
	Owner:     "owner",
	Repo:      "repo",
	CommitSHA: "commit",
	Dataset:   "dataset",

	Error: "error",
}
