package schema

import "time"

// Measurement is one timeseries point for a repository.
// MeasurableID is the flag or component name; it is empty for plain coverage.
type Measurement struct {
	Name         MeasurementName `json:"name"`
	OwnerID      int64           `json:"owner_id"`
	RepoID       int64           `json:"repo_id"`
	MeasurableID string          `json:"measurable_id"`
	CommitSHA    string          `json:"commit_sha"`
	Timestamp    time.Time       `json:"timestamp"`
	Branch       string          `json:"branch"`
	Value        float64         `json:"value"`
}

// MeasurementSummary is a daily aggregate of measurements.
type MeasurementSummary struct {
	Name         MeasurementName `json:"name"`
	OwnerID      int64           `json:"owner_id"`
	RepoID       int64           `json:"repo_id"`
	MeasurableID string          `json:"measurable_id"`
	Branch       string          `json:"branch"`
	Day          time.Time       `json:"day"`
	Avg          float64         `json:"avg"`
	Min          float64         `json:"min"`
	Max          float64         `json:"max"`
	Count        int             `json:"count"`
}

// MeasurementFilter narrows a measurement query. Zero values are ignored.
type MeasurementFilter struct {
	Name         MeasurementName
	RepoID       int64
	MeasurableID string
	Branch       string
	Start        time.Time
	End          time.Time
}
