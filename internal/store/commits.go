package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

const commitColumns = "id, repo_id, commit_id, parent_id, message, committed_at, ci_passed, branch, author_id, state, totals, report"

func scanCommit(row rowScanner) (*schema.Commit, error) {
	var c schema.Commit
	var committedAt int64
	var ciPassed, authorID sql.NullInt64
	var state string
	var totals, report sql.NullString
	if err := row.Scan(&c.ID, &c.RepositoryID, &c.CommitID, &c.ParentID, &c.Message, &committedAt,
		&ciPassed, &c.Branch, &authorID, &state, &totals, &report); err != nil {
		return nil, err
	}
	c.Timestamp = fromMicro(committedAt)
	if ciPassed.Valid {
		passed := ciPassed.Int64 != 0
		c.CIPassed = &passed
	}
	if authorID.Valid {
		id := authorID.Int64
		c.AuthorID = &id
	}
	c.State = schema.CommitState(state)
	if totals.Valid && totals.String != "" {
		c.Totals = &schema.CommitTotals{}
		if err := json.Unmarshal([]byte(totals.String), c.Totals); err != nil {
			return nil, fmt.Errorf("failed to decode totals of commit %s: %w", c.CommitID, err)
		}
	}
	if report.Valid {
		c.Report = []byte(report.String)
	}
	return &c, nil
}

// GetCommit returns a commit of a repository by commit sha.
func (s *SQLStore) GetCommit(ctx context.Context, repoID int64, commitID string) (*schema.Commit, error) {
	c, err := scanCommit(s.db.QueryRowContext(ctx, s.q("SELECT "+commitColumns+" FROM commits WHERE repo_id = ? AND commit_id = ?"), repoID, commitID))
	if err != nil {
		return nil, notFound(err, "commit", commitID)
	}
	return c, nil
}

// ListCommits returns the commits of a repository with a timestamp in [start, end], oldest first.
// A zero end is unbounded.
func (s *SQLStore) ListCommits(ctx context.Context, repoID int64, start, end time.Time) ([]*schema.Commit, error) {
	query := "SELECT " + commitColumns + " FROM commits WHERE repo_id = ? AND committed_at >= ?"
	args := []any{repoID, toMicro(start)}
	if !end.IsZero() {
		query += " AND committed_at <= ?"
		args = append(args, toMicro(end))
	}
	query += " ORDER BY committed_at, id"

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var commits []*schema.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commits: %w", err)
	}
	return commits, nil
}

// OldestCommitTime returns the timestamp of the oldest commit of a repository.
func (s *SQLStore) OldestCommitTime(ctx context.Context, repoID int64) (time.Time, error) {
	var oldest sql.NullInt64
	row := s.db.QueryRowContext(ctx, s.q("SELECT MIN(committed_at) FROM commits WHERE repo_id = ?"), repoID)
	if err := row.Scan(&oldest); err != nil {
		return time.Time{}, fmt.Errorf("failed to get oldest commit: %w", err)
	}
	if !oldest.Valid {
		return time.Time{}, &contract.NotFoundError{Kind: "commit", Name: fmt.Sprintf("any in repository %d", repoID)}
	}
	return fromMicro(oldest.Int64), nil
}

// SaveCommit inserts or updates a commit keyed by repository and sha, and sets its id.
func (s *SQLStore) SaveCommit(ctx context.Context, commit *schema.Commit) error {
	var totals sql.NullString
	if commit.Totals != nil {
		b, err := json.Marshal(commit.Totals)
		if err != nil {
			return fmt.Errorf("failed to encode totals of commit %s: %w", commit.CommitID, err)
		}
		totals = sql.NullString{String: string(b), Valid: true}
	}
	var report sql.NullString
	if commit.Report != nil {
		report = sql.NullString{String: string(commit.Report), Valid: true}
	}
	var ciPassed sql.NullInt64
	if commit.CIPassed != nil {
		ciPassed = sql.NullInt64{Int64: int64(boolInt(*commit.CIPassed)), Valid: true}
	}
	var authorID sql.NullInt64
	if commit.AuthorID != nil {
		authorID = sql.NullInt64{Int64: *commit.AuthorID, Valid: true}
	}

	args := []any{
		commit.RepositoryID, commit.CommitID, commit.ParentID, commit.Message, toMicro(commit.Timestamp),
		ciPassed, commit.Branch, authorID, string(commit.State), totals, report,
	}
	if _, err := s.db.ExecContext(ctx, s.q(s.commitUpsertQuery()), args...); err != nil {
		return fmt.Errorf("failed to save commit %s: %w", commit.CommitID, err)
	}

	var id int64
	row := s.db.QueryRowContext(ctx, s.q("SELECT id FROM commits WHERE repo_id = ? AND commit_id = ?"), commit.RepositoryID, commit.CommitID)
	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("failed to read id of commit %s: %w", commit.CommitID, err)
	}
	commit.ID = id
	return nil
}

// commitUpsertQuery returns the UPSERT query for the backend.
func (s *SQLStore) commitUpsertQuery() string {
	const insert = `INSERT INTO commits (repo_id, commit_id, parent_id, message, committed_at, ci_passed, branch, author_id, state, totals, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	switch s.backend {
	case schema.MySQLBackend:
		return insert + ` AS new ON DUPLICATE KEY UPDATE parent_id = new.parent_id, message = new.message,
			committed_at = new.committed_at, ci_passed = new.ci_passed, branch = new.branch, author_id = new.author_id,
			state = new.state, totals = new.totals, report = new.report`
	default: // SQLite and PostgreSQL
		return insert + ` ON CONFLICT (repo_id, commit_id) DO UPDATE SET parent_id = excluded.parent_id, message = excluded.message,
			committed_at = excluded.committed_at, ci_passed = excluded.ci_passed, branch = excluded.branch, author_id = excluded.author_id,
			state = excluded.state, totals = excluded.totals, report = excluded.report`
	}
}

const datasetColumns = "id, repo_id, name, backfilled, created_at"

func scanDataset(row rowScanner) (*schema.Dataset, error) {
	var d schema.Dataset
	var name string
	var backfilled int
	var createdAt int64
	if err := row.Scan(&d.ID, &d.RepositoryID, &name, &backfilled, &createdAt); err != nil {
		return nil, err
	}
	d.Name = schema.MeasurementName(name)
	d.Backfilled = backfilled != 0
	d.CreatedAt = fromMicro(createdAt)
	return &d, nil
}

// UpsertDataset returns the dataset of a repository, creating it when missing.
func (s *SQLStore) UpsertDataset(ctx context.Context, repoID int64, name schema.MeasurementName) (*schema.Dataset, error) {
	var query string
	switch s.backend {
	case schema.MySQLBackend:
		query = "INSERT IGNORE INTO datasets (repo_id, name, backfilled, created_at) VALUES (?, ?, 0, ?)"
	default: // SQLite and PostgreSQL
		query = "INSERT INTO datasets (repo_id, name, backfilled, created_at) VALUES (?, ?, 0, ?) ON CONFLICT (repo_id, name) DO NOTHING"
	}
	if _, err := s.db.ExecContext(ctx, s.q(query), repoID, string(name), toMicro(time.Now())); err != nil {
		return nil, fmt.Errorf("failed to upsert dataset %s: %w", name, err)
	}

	d, err := scanDataset(s.db.QueryRowContext(ctx, s.q("SELECT "+datasetColumns+" FROM datasets WHERE repo_id = ? AND name = ?"), repoID, string(name)))
	if err != nil {
		return nil, notFound(err, "dataset", string(name))
	}
	return d, nil
}

// ListDatasets returns the datasets of a repository ordered by name.
func (s *SQLStore) ListDatasets(ctx context.Context, repoID int64) ([]*schema.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT "+datasetColumns+" FROM datasets WHERE repo_id = ? ORDER BY name"), repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var datasets []*schema.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}
	return datasets, nil
}

// MarkDatasetBackfilled flags a dataset as backfilled.
func (s *SQLStore) MarkDatasetBackfilled(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, s.q("UPDATE datasets SET backfilled = 1 WHERE id = ?"), id); err != nil {
		return fmt.Errorf("failed to mark dataset %d backfilled: %w", id, err)
	}
	return nil
}
