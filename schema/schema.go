// Package schema has the models, enums and status types shared by all parts of covhub.
package schema

import "time"

// Owner is a user or organization on a git provider.
// Trial status is derived from the trial dates and never stored.
type Owner struct {
	ID             int64      `json:"ownerid"`
	Service        Service    `json:"service"`
	Username       string     `json:"username"`
	Name           string     `json:"name,omitempty"`
	Plan           string     `json:"plan"`
	TrialStartDate *time.Time `json:"trial_start_date"`
	TrialEndDate   *time.Time `json:"trial_end_date"`
	APIToken       string     `json:"-"`
	OAuthToken     string     `json:"-"`
}

// Repository is a source repository owned by an Owner.
type Repository struct {
	ID        int64  `json:"repoid"`
	OwnerID   int64  `json:"ownerid"`
	Name      string `json:"name"`
	Private   bool   `json:"private"`
	Deleted   bool   `json:"-"`
	Activated bool   `json:"activated"`
	Branch    string `json:"branch"`
	LocalPath string `json:"-"` // checkout path used by the local provider
}

// Slug returns "owner/name" for a repository under the given owner.
func (r *Repository) Slug(owner *Owner) string {
	if owner == nil {
		return r.Name
	}
	return owner.Username + "/" + r.Name
}

// Commit is an uploaded commit with its stored report index and totals.
type Commit struct {
	ID           int64
	RepositoryID int64
	CommitID     string
	ParentID     string // empty when the commit has no known parent
	Message      string
	Timestamp    time.Time
	CIPassed     *bool
	Branch       string
	AuthorID     *int64
	State        CommitState
	Totals       *CommitTotals
	Report       []byte // raw report index JSON, nil when not processed
}

// Dataset records that a measurement kind was activated for a repository.
type Dataset struct {
	ID           int64
	RepositoryID int64
	Name         MeasurementName
	Backfilled   bool
	CreatedAt    time.Time
}

// Pull is a pull request of a repository. Head and Base are commit shas;
// ComparedTo is the base commit the head was actually compared against.
type Pull struct {
	ID           int64
	RepositoryID int64
	PullID       int64
	State        PullState
	Title        string
	AuthorID     *int64
	Head         string
	Base         string
	ComparedTo   string
	UpdatedAt    time.Time
}
