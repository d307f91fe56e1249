package store

import (
	"context"
	"fmt"

	"github.com/covhub/covhub/schema"
)

// GetStatus returns status information about the relational store.
func (s *SQLStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.db == nil {
		return status, nil
	}

	var version int64
	var dirty bool
	row := s.db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations LIMIT 1")
	if err := row.Scan(&version, &dirty); err == nil {
		status.SchemaVersion = uint(version)
		status.Dirty = dirty
	}

	last, err := s.lastMeasurement(ctx)
	if err != nil {
		return status, fmt.Errorf("failed to get last measurement: %w", err)
	}
	status.LastMeasurement = last

	tables := []string{ownersTable, membersTable, reposTable, commitsTable, pullsTable, datasetsTable, measurementsTable, summariesTable}
	for _, table := range tables {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, s.backend))
		if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}
