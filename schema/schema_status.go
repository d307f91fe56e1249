package schema

import "time"

// ArchiveStatus represents the status of the archive store.
type ArchiveStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// StoreStatus represents the status of the relational store.
type StoreStatus struct {
	Backend         string           `json:"backend"`
	Connected       bool             `json:"connected"`
	SchemaVersion   uint             `json:"schema_version"`
	Dirty           bool             `json:"dirty"`
	LastMeasurement time.Time        `json:"last_measurement"`
	TableSizes      map[string]int64 `json:"table_sizes"`
}
