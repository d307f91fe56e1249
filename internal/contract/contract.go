// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/covhub/covhub/schema"
)

// GitClient defines the local git operations used by the local provider.
// This allows provider logic to be tested without needing a real git executable.
type GitClient interface {
	// Run executes a git command and returns its output.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// GetCommitDiff returns the unified diff introduced by a commit.
	GetCommitDiff(ctx context.Context, repoPath string, sha string) ([]byte, error)
}

// StoreManager defines the interface for managing the relational and archive stores.
// This allows the persistence layer to be mocked for testing.
type StoreManager interface {
	GetStore() Store
	GetArchiveStore() ArchiveStore
}

// ArchiveStore holds raw coverage archives as opaque blobs keyed by path.
type ArchiveStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.ArchiveStatus, error)
	Close() error
}

// OwnerStore persists owners and their plan/trial fields.
type OwnerStore interface {
	// GetOwnerByUsername returns the first owner with the username.
	// An empty service matches any service.
	GetOwnerByUsername(ctx context.Context, service schema.Service, username string) (*schema.Owner, error)
	GetOwnerByID(ctx context.Context, id int64) (*schema.Owner, error)
	GetOwnerByAPIToken(ctx context.Context, token string) (*schema.Owner, error)
	CreateOwner(ctx context.Context, owner *schema.Owner) error
	// UpdateOwnerTrial writes the trial dates and plan of the owner row.
	UpdateOwnerTrial(ctx context.Context, owner *schema.Owner) error
	// AddOrgMember records that memberID belongs to the organization orgID.
	AddOrgMember(ctx context.Context, orgID, memberID int64) error
	// IsOrgMember reports whether memberID belongs to the organization orgID.
	IsOrgMember(ctx context.Context, orgID, memberID int64) (bool, error)
}

// RepositoryStore persists repositories.
type RepositoryStore interface {
	GetRepository(ctx context.Context, ownerID int64, name string) (*schema.Repository, error)
	GetRepositoryByID(ctx context.Context, id int64) (*schema.Repository, error)
	// ListRepositories returns the non-deleted repositories of an owner.
	ListRepositories(ctx context.Context, ownerID int64) ([]*schema.Repository, error)
	CreateRepository(ctx context.Context, repo *schema.Repository) error
}

// CommitStore persists commits.
type CommitStore interface {
	GetCommit(ctx context.Context, repoID int64, commitID string) (*schema.Commit, error)
	// ListCommits returns commits of a repository with a timestamp in [start, end], oldest first.
	ListCommits(ctx context.Context, repoID int64, start, end time.Time) ([]*schema.Commit, error)
	// OldestCommitTime returns the timestamp of the oldest commit of a repository.
	OldestCommitTime(ctx context.Context, repoID int64) (time.Time, error)
	SaveCommit(ctx context.Context, commit *schema.Commit) error
}

// PullStore persists pull requests.
type PullStore interface {
	GetPull(ctx context.Context, repoID, pullID int64) (*schema.Pull, error)
	// ListPulls returns the pull requests of a repository, newest pullid first.
	// An empty state matches every state.
	ListPulls(ctx context.Context, repoID int64, state schema.PullState) ([]*schema.Pull, error)
	// SavePull inserts or updates a pull request keyed by repository and pullid, and sets its id.
	SavePull(ctx context.Context, pull *schema.Pull) error
}

// DatasetStore persists activated measurement datasets.
type DatasetStore interface {
	UpsertDataset(ctx context.Context, repoID int64, name schema.MeasurementName) (*schema.Dataset, error)
	ListDatasets(ctx context.Context, repoID int64) ([]*schema.Dataset, error)
	MarkDatasetBackfilled(ctx context.Context, id int64) error
}

// MeasurementStore persists the coverage timeseries.
type MeasurementStore interface {
	SaveMeasurement(ctx context.Context, m schema.Measurement) error
	ListMeasurements(ctx context.Context, filter schema.MeasurementFilter) ([]schema.Measurement, error)
	// RefreshSummaries recomputes the daily summaries for measurements in [start, end].
	RefreshSummaries(ctx context.Context, start, end time.Time) error
	ListSummaries(ctx context.Context, filter schema.MeasurementFilter) ([]schema.MeasurementSummary, error)
}

// Store is the relational store.
type Store interface {
	OwnerStore
	RepositoryStore
	CommitStore
	PullStore
	DatasetStore
	MeasurementStore

	// GetStatus returns status information about the store.
	GetStatus(ctx context.Context) (schema.StoreStatus, error)

	// Close closes the underlying connection.
	Close() error
}

// DiffFetcher fetches the diff of a commit from the repository's provider.
type DiffFetcher interface {
	// FetchCommitDiff authenticates as user against the provider hosting repo
	// and blocks until the diff of commitID is available.
	FetchCommitDiff(ctx context.Context, user *schema.Owner, owner *schema.Owner, repo *schema.Repository, commitID string) (*schema.Diff, error)
}
