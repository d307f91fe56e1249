package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/covhub/covhub/schema"
)

// SaveMeasurement inserts or replaces one timeseries point.
func (s *SQLStore) SaveMeasurement(ctx context.Context, m schema.Measurement) error {
	const insert = `INSERT INTO measurements (name, owner_id, repo_id, measurable_id, commit_sha, measured_at, branch, measured_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var query string
	switch s.backend {
	case schema.MySQLBackend:
		query = insert + ` AS new ON DUPLICATE KEY UPDATE measured_at = new.measured_at, branch = new.branch, measured_value = new.measured_value`
	default: // SQLite and PostgreSQL
		query = insert + ` ON CONFLICT (name, owner_id, repo_id, measurable_id, commit_sha)
			DO UPDATE SET measured_at = excluded.measured_at, branch = excluded.branch, measured_value = excluded.measured_value`
	}
	_, err := s.db.ExecContext(ctx, s.q(query),
		string(m.Name), m.OwnerID, m.RepoID, m.MeasurableID, m.CommitSHA, toMicro(m.Timestamp), m.Branch, m.Value)
	if err != nil {
		return fmt.Errorf("failed to save measurement: %w", err)
	}
	return nil
}

// filterClause renders the WHERE clause of a measurement filter over timeColumn.
func filterClause(f schema.MeasurementFilter, timeColumn string) (string, []any) {
	clause := " WHERE 1 = 1"
	var args []any
	if f.Name != "" {
		clause += " AND name = ?"
		args = append(args, string(f.Name))
	}
	if f.RepoID != 0 {
		clause += " AND repo_id = ?"
		args = append(args, f.RepoID)
	}
	if f.MeasurableID != "" {
		clause += " AND measurable_id = ?"
		args = append(args, f.MeasurableID)
	}
	if f.Branch != "" {
		clause += " AND branch = ?"
		args = append(args, f.Branch)
	}
	if !f.Start.IsZero() {
		clause += " AND " + timeColumn + " >= ?"
		args = append(args, toMicro(f.Start))
	}
	if !f.End.IsZero() {
		clause += " AND " + timeColumn + " <= ?"
		args = append(args, toMicro(f.End))
	}
	return clause, args
}

// ListMeasurements returns the measurements matching the filter, oldest first.
func (s *SQLStore) ListMeasurements(ctx context.Context, filter schema.MeasurementFilter) ([]schema.Measurement, error) {
	clause, args := filterClause(filter, "measured_at")
	query := `SELECT name, owner_id, repo_id, measurable_id, commit_sha, measured_at, branch, measured_value
		FROM measurements` + clause + " ORDER BY measured_at, name, measurable_id"
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.Measurement
	for rows.Next() {
		var m schema.Measurement
		var name string
		var measuredAt int64
		if err := rows.Scan(&name, &m.OwnerID, &m.RepoID, &m.MeasurableID, &m.CommitSHA, &measuredAt, &m.Branch, &m.Value); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		m.Name = schema.MeasurementName(name)
		m.Timestamp = fromMicro(measuredAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating measurements: %w", err)
	}
	return out, nil
}

type summaryKey struct {
	name         string
	ownerID      int64
	repoID       int64
	measurableID string
	branch       string
	day          int64
}

// RefreshSummaries recomputes the daily summaries of every UTC day touched by [start, end].
// Whole days are recomputed so that buckets stay complete.
func (s *SQLStore) RefreshSummaries(ctx context.Context, start, end time.Time) error {
	from := start.UTC().Truncate(24 * time.Hour)
	if end.IsZero() {
		end = time.Now()
	}
	to := end.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, s.q(`SELECT name, owner_id, repo_id, measurable_id, branch, measured_at, measured_value
		FROM measurements WHERE measured_at >= ? AND measured_at < ?`), toMicro(from), toMicro(to))
	if err != nil {
		return fmt.Errorf("failed to query measurements: %w", err)
	}
	buckets := make(map[summaryKey]*schema.MeasurementSummary)
	for rows.Next() {
		var k summaryKey
		var at int64
		var value float64
		if err := rows.Scan(&k.name, &k.ownerID, &k.repoID, &k.measurableID, &k.branch, &at, &value); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan measurement: %w", err)
		}
		day := fromMicro(at).Truncate(24 * time.Hour)
		k.day = toMicro(day)
		b, ok := buckets[k]
		if !ok {
			b = &schema.MeasurementSummary{
				Name: schema.MeasurementName(k.name), OwnerID: k.ownerID, RepoID: k.repoID,
				MeasurableID: k.measurableID, Branch: k.branch, Day: day,
				Min: value, Max: value,
			}
			buckets[k] = b
		}
		b.Avg += value // running sum until divided below
		b.Min = min(b.Min, value)
		b.Max = max(b.Max, value)
		b.Count++
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("error iterating measurements: %w", err)
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx, s.q("DELETE FROM measurement_summaries WHERE bucket_day >= ? AND bucket_day < ?"), toMicro(from), toMicro(to)); err != nil {
		return fmt.Errorf("failed to clear summaries: %w", err)
	}

	insert := s.q(`INSERT INTO measurement_summaries (name, owner_id, repo_id, measurable_id, branch, bucket_day, value_avg, value_min, value_max, value_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for k, b := range buckets {
		b.Avg /= float64(b.Count)
		if _, err := tx.ExecContext(ctx, insert, k.name, k.ownerID, k.repoID, k.measurableID, k.branch, k.day, b.Avg, b.Min, b.Max, b.Count); err != nil {
			return fmt.Errorf("failed to insert summary: %w", err)
		}
	}
	return tx.Commit()
}

// ListSummaries returns the daily summaries matching the filter, ordered by day.
func (s *SQLStore) ListSummaries(ctx context.Context, filter schema.MeasurementFilter) ([]schema.MeasurementSummary, error) {
	clause, args := filterClause(filter, "bucket_day")
	query := `SELECT name, owner_id, repo_id, measurable_id, branch, bucket_day, value_avg, value_min, value_max, value_count
		FROM measurement_summaries` + clause + " ORDER BY bucket_day, name, measurable_id, branch"
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.MeasurementSummary
	for rows.Next() {
		var m schema.MeasurementSummary
		var name string
		var day int64
		if err := rows.Scan(&name, &m.OwnerID, &m.RepoID, &m.MeasurableID, &m.Branch, &day, &m.Avg, &m.Min, &m.Max, &m.Count); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		m.Name = schema.MeasurementName(name)
		m.Day = fromMicro(day)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}
	return out, nil
}

// lastMeasurement returns the newest measurement time, or zero.
func (s *SQLStore) lastMeasurement(ctx context.Context) (time.Time, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(measured_at) FROM measurements").Scan(&last); err != nil {
		return time.Time{}, err
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return fromMicro(last.Int64), nil
}
