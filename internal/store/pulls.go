package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/covhub/covhub/schema"
)

const pullColumns = "id, repo_id, pullid, state, title, author_id, head, base, compared_to, updated_at"

func scanPull(row rowScanner) (*schema.Pull, error) {
	var p schema.Pull
	var state string
	var authorID sql.NullInt64
	var updatedAt int64
	if err := row.Scan(&p.ID, &p.RepositoryID, &p.PullID, &state, &p.Title, &authorID,
		&p.Head, &p.Base, &p.ComparedTo, &updatedAt); err != nil {
		return nil, err
	}
	p.State = schema.PullState(state)
	if authorID.Valid {
		id := authorID.Int64
		p.AuthorID = &id
	}
	p.UpdatedAt = fromMicro(updatedAt)
	return &p, nil
}

// GetPull returns a pull request of a repository by its provider number.
func (s *SQLStore) GetPull(ctx context.Context, repoID, pullID int64) (*schema.Pull, error) {
	p, err := scanPull(s.db.QueryRowContext(ctx, s.q("SELECT "+pullColumns+" FROM pulls WHERE repo_id = ? AND pullid = ?"), repoID, pullID))
	if err != nil {
		return nil, notFound(err, "pull", fmt.Sprint(pullID))
	}
	return p, nil
}

// ListPulls returns the pull requests of a repository, newest pullid first.
func (s *SQLStore) ListPulls(ctx context.Context, repoID int64, state schema.PullState) ([]*schema.Pull, error) {
	query := "SELECT " + pullColumns + " FROM pulls WHERE repo_id = ?"
	args := []any{repoID}
	if state != "" {
		query += " AND state = ?"
		args = append(args, string(state))
	}
	query += " ORDER BY pullid DESC"

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pulls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pulls []*schema.Pull
	for rows.Next() {
		p, err := scanPull(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pull: %w", err)
		}
		pulls = append(pulls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pulls: %w", err)
	}
	return pulls, nil
}

// SavePull inserts or updates a pull request keyed by repository and pullid, and sets its id.
func (s *SQLStore) SavePull(ctx context.Context, pull *schema.Pull) error {
	var authorID sql.NullInt64
	if pull.AuthorID != nil {
		authorID = sql.NullInt64{Int64: *pull.AuthorID, Valid: true}
	}
	const insert = `INSERT INTO pulls (repo_id, pullid, state, title, author_id, head, base, compared_to, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var query string
	switch s.backend {
	case schema.MySQLBackend:
		query = insert + ` AS new ON DUPLICATE KEY UPDATE state = new.state, title = new.title, author_id = new.author_id,
			head = new.head, base = new.base, compared_to = new.compared_to, updated_at = new.updated_at`
	default: // SQLite and PostgreSQL
		query = insert + ` ON CONFLICT (repo_id, pullid) DO UPDATE SET state = excluded.state, title = excluded.title,
			author_id = excluded.author_id, head = excluded.head, base = excluded.base, compared_to = excluded.compared_to,
			updated_at = excluded.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, s.q(query), pull.RepositoryID, pull.PullID, string(pull.State), pull.Title,
		authorID, pull.Head, pull.Base, pull.ComparedTo, toMicro(pull.UpdatedAt)); err != nil {
		return fmt.Errorf("failed to save pull %d: %w", pull.PullID, err)
	}

	var id int64
	row := s.db.QueryRowContext(ctx, s.q("SELECT id FROM pulls WHERE repo_id = ? AND pullid = ?"), pull.RepositoryID, pull.PullID)
	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("failed to read id of pull %d: %w", pull.PullID, err)
	}
	pull.ID = id
	return nil
}
