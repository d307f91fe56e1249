package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// Table names of the relational store.
const (
	ownersTable       = "owners"
	reposTable        = "repos"
	commitsTable      = "commits"
	datasetsTable     = "datasets"
	membersTable      = "org_members"
	pullsTable        = "pulls"
	measurementsTable = "measurements"
	summariesTable    = "measurement_summaries"
)

// SQLStore implements contract.Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
}

var _ contract.Store = &SQLStore{} // Compile-time check

// NewStore opens the relational store and migrates it to the latest schema.
func NewStore(backend schema.DatabaseBackend, connStr string) (*SQLStore, error) {
	if backend == schema.NoneBackend {
		return nil, fmt.Errorf("the relational store requires a database backend")
	}
	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}
	if err := migrateLatest(db, backend, connStr); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", backend, err)
	}
	return &SQLStore{db: db, backend: backend, connStr: connStr}, nil
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// HashToken returns the lookup key stored for an API token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) q(query string) string { return rebind(s.backend, query) }

// insert runs an INSERT with ? placeholders and returns the generated id.
func (s *SQLStore) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.backend == schema.PostgreSQLBackend {
		var id int64
		err := s.db.QueryRowContext(ctx, s.q(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func notFound(err error, kind, name string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &contract.NotFoundError{Kind: kind, Name: name}
	}
	return err
}

const ownerColumns = "id, service, username, name, plan_name, trial_start_date, trial_end_date, api_token, oauth_token"

func scanOwner(row rowScanner) (*schema.Owner, error) {
	var o schema.Owner
	var service string
	var start, end sql.NullInt64
	var apiToken sql.NullString
	if err := row.Scan(&o.ID, &service, &o.Username, &o.Name, &o.Plan, &start, &end, &apiToken, &o.OAuthToken); err != nil {
		return nil, err
	}
	o.Service = schema.Service(service)
	o.TrialStartDate = timePtr(start)
	o.TrialEndDate = timePtr(end)
	o.APIToken = apiToken.String
	return &o, nil
}

// GetOwnerByUsername returns the first owner with the username. An empty service matches any.
func (s *SQLStore) GetOwnerByUsername(ctx context.Context, service schema.Service, username string) (*schema.Owner, error) {
	query := "SELECT " + ownerColumns + " FROM owners WHERE username = ?"
	args := []any{username}
	if service != "" {
		query += " AND service = ?"
		args = append(args, string(service))
	}
	query += " ORDER BY id LIMIT 1"
	o, err := scanOwner(s.db.QueryRowContext(ctx, s.q(query), args...))
	if err != nil {
		return nil, notFound(err, "owner", username)
	}
	return o, nil
}

// GetOwnerByID returns an owner by id.
func (s *SQLStore) GetOwnerByID(ctx context.Context, id int64) (*schema.Owner, error) {
	o, err := scanOwner(s.db.QueryRowContext(ctx, s.q("SELECT "+ownerColumns+" FROM owners WHERE id = ?"), id))
	if err != nil {
		return nil, notFound(err, "owner", fmt.Sprint(id))
	}
	return o, nil
}

// GetOwnerByAPIToken returns the owner holding the plaintext API token.
func (s *SQLStore) GetOwnerByAPIToken(ctx context.Context, token string) (*schema.Owner, error) {
	if token == "" {
		return nil, contract.ErrNotFound
	}
	o, err := scanOwner(s.db.QueryRowContext(ctx, s.q("SELECT "+ownerColumns+" FROM owners WHERE api_token = ?"), HashToken(token)))
	if err != nil {
		return nil, notFound(err, "owner", "token")
	}
	return o, nil
}

// CreateOwner inserts an owner and sets its id. A plaintext APIToken is stored hashed.
func (s *SQLStore) CreateOwner(ctx context.Context, owner *schema.Owner) error {
	var token sql.NullString
	if owner.APIToken != "" {
		token = nullString(HashToken(owner.APIToken))
	}
	id, err := s.insert(ctx, `INSERT INTO owners (service, username, name, plan_name, trial_start_date, trial_end_date, api_token, oauth_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(owner.Service), owner.Username, owner.Name, owner.Plan,
		nullMicro(owner.TrialStartDate), nullMicro(owner.TrialEndDate), token, owner.OAuthToken)
	if err != nil {
		return fmt.Errorf("failed to insert owner %s: %w", owner.Username, err)
	}
	owner.ID = id
	return nil
}

// UpdateOwnerTrial writes the trial dates and plan of the owner row.
func (s *SQLStore) UpdateOwnerTrial(ctx context.Context, owner *schema.Owner) error {
	res, err := s.db.ExecContext(ctx, s.q("UPDATE owners SET plan_name = ?, trial_start_date = ?, trial_end_date = ? WHERE id = ?"),
		owner.Plan, nullMicro(owner.TrialStartDate), nullMicro(owner.TrialEndDate), owner.ID)
	if err != nil {
		return fmt.Errorf("failed to update trial of owner %d: %w", owner.ID, err)
	}
	// MySQL reports 0 affected rows when the values are unchanged, so only
	// SQLite and PostgreSQL can detect a missing row here.
	if s.backend != schema.MySQLBackend {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return &contract.NotFoundError{Kind: "owner", Name: fmt.Sprint(owner.ID)}
		}
	}
	return nil
}

// AddOrgMember records that memberID belongs to the organization orgID. Adding twice is a no-op.
func (s *SQLStore) AddOrgMember(ctx context.Context, orgID, memberID int64) error {
	var query string
	switch s.backend {
	case schema.MySQLBackend:
		query = "INSERT IGNORE INTO org_members (org_id, member_id) VALUES (?, ?)"
	default: // SQLite and PostgreSQL
		query = "INSERT INTO org_members (org_id, member_id) VALUES (?, ?) ON CONFLICT (org_id, member_id) DO NOTHING"
	}
	if _, err := s.db.ExecContext(ctx, s.q(query), orgID, memberID); err != nil {
		return fmt.Errorf("failed to add member %d to owner %d: %w", memberID, orgID, err)
	}
	return nil
}

// IsOrgMember reports whether memberID belongs to the organization orgID.
func (s *SQLStore) IsOrgMember(ctx context.Context, orgID, memberID int64) (bool, error) {
	var n int
	row := s.db.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM org_members WHERE org_id = ? AND member_id = ?"), orgID, memberID)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check membership of %d in owner %d: %w", memberID, orgID, err)
	}
	return n > 0, nil
}

const repoColumns = "id, owner_id, name, is_private, deleted, activated, branch, local_path"

func scanRepo(row rowScanner) (*schema.Repository, error) {
	var r schema.Repository
	var private, deleted, activated int
	if err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &private, &deleted, &activated, &r.Branch, &r.LocalPath); err != nil {
		return nil, err
	}
	r.Private = private != 0
	r.Deleted = deleted != 0
	r.Activated = activated != 0
	return &r, nil
}

// GetRepository returns a repository of an owner by name, deleted or not.
func (s *SQLStore) GetRepository(ctx context.Context, ownerID int64, name string) (*schema.Repository, error) {
	r, err := scanRepo(s.db.QueryRowContext(ctx, s.q("SELECT "+repoColumns+" FROM repos WHERE owner_id = ? AND name = ?"), ownerID, name))
	if err != nil {
		return nil, notFound(err, "repository", name)
	}
	return r, nil
}

// GetRepositoryByID returns a repository by id.
func (s *SQLStore) GetRepositoryByID(ctx context.Context, id int64) (*schema.Repository, error) {
	r, err := scanRepo(s.db.QueryRowContext(ctx, s.q("SELECT "+repoColumns+" FROM repos WHERE id = ?"), id))
	if err != nil {
		return nil, notFound(err, "repository", fmt.Sprint(id))
	}
	return r, nil
}

// ListRepositories returns the non-deleted repositories of an owner ordered by name.
func (s *SQLStore) ListRepositories(ctx context.Context, ownerID int64) ([]*schema.Repository, error) {
	rows, err := s.db.QueryContext(ctx, s.q("SELECT "+repoColumns+" FROM repos WHERE owner_id = ? AND deleted = 0 ORDER BY name"), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []*schema.Repository
	for rows.Next() {
		r, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repositories: %w", err)
	}
	return repos, nil
}

// CreateRepository inserts a repository and sets its id.
func (s *SQLStore) CreateRepository(ctx context.Context, repo *schema.Repository) error {
	id, err := s.insert(ctx, `INSERT INTO repos (owner_id, name, is_private, deleted, activated, branch, local_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		repo.OwnerID, repo.Name, boolInt(repo.Private), boolInt(repo.Deleted), boolInt(repo.Activated), repo.Branch, repo.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to insert repository %s: %w", repo.Name, err)
	}
	repo.ID = id
	return nil
}
