package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// PullCommands are the pull request queries of a repository.
type PullCommands struct {
	store contract.Store
}

// NewPullCommands creates the pull request queries over store.
func NewPullCommands(store contract.Store) *PullCommands {
	return &PullCommands{store: store}
}

// PullCommitView is one side of a pull request comparison. Totals is nil
// when the commit has not been uploaded yet.
type PullCommitView struct {
	CommitID string            `json:"commitid"`
	Totals   *CommitTotalsView `json:"totals"`
}

// PullView is the client representation of a pull request.
type PullView struct {
	PullID     int64            `json:"pullid"`
	Title      string           `json:"title"`
	State      schema.PullState `json:"state"`
	Author     *OwnerView       `json:"author"`
	UpdatedAt  string           `json:"updatestamp"`
	Head       *PullCommitView  `json:"head"`
	Base       *PullCommitView  `json:"base"`
	ComparedTo *PullCommitView  `json:"compared_to"`
	// Head coverage minus compared-to coverage; nil unless both sides have totals.
	CoverageChange *float64 `json:"coverage_change"`
}

// FetchPullRequest returns pull request pullID of repo.
func (c *PullCommands) FetchPullRequest(ctx context.Context, repo *schema.Repository, pullID int64) (*PullView, error) {
	pull, err := c.store.GetPull(ctx, repo.ID, pullID)
	if err != nil {
		return nil, err
	}
	return c.view(ctx, pull)
}

// FetchPullRequests returns the pull requests of repo, newest first.
// An empty state lists every state.
func (c *PullCommands) FetchPullRequests(ctx context.Context, repo *schema.Repository, state schema.PullState) ([]*PullView, error) {
	if state != "" {
		if _, ok := schema.ValidPullStates[state]; !ok {
			return nil, &contract.ValidationError{Msg: fmt.Sprintf("invalid pull state %q", state)}
		}
	}
	pulls, err := c.store.ListPulls(ctx, repo.ID, state)
	if err != nil {
		return nil, err
	}
	views := make([]*PullView, 0, len(pulls))
	for _, pull := range pulls {
		v, err := c.view(ctx, pull)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (c *PullCommands) view(ctx context.Context, pull *schema.Pull) (*PullView, error) {
	author, err := authorView(ctx, c.store, pull.AuthorID)
	if err != nil {
		return nil, err
	}
	v := &PullView{
		PullID:    pull.PullID,
		Title:     pull.Title,
		State:     pull.State,
		Author:    author,
		UpdatedAt: formatTimestamp(pull.UpdatedAt),
	}
	if v.Head, err = c.commitSide(ctx, pull.RepositoryID, pull.Head); err != nil {
		return nil, err
	}
	if v.Base, err = c.commitSide(ctx, pull.RepositoryID, pull.Base); err != nil {
		return nil, err
	}
	compared := pull.ComparedTo
	if compared == "" {
		compared = pull.Base
	}
	if v.ComparedTo, err = c.commitSide(ctx, pull.RepositoryID, compared); err != nil {
		return nil, err
	}
	if v.Head != nil && v.Head.Totals != nil && v.ComparedTo != nil && v.ComparedTo.Totals != nil {
		change := Round2(v.Head.Totals.Coverage - v.ComparedTo.Totals.Coverage)
		v.CoverageChange = &change
	}
	return v, nil
}

func (c *PullCommands) commitSide(ctx context.Context, repoID int64, sha string) (*PullCommitView, error) {
	if sha == "" {
		return nil, nil
	}
	commit, err := c.store.GetCommit(ctx, repoID, sha)
	if errors.Is(err, contract.ErrNotFound) {
		return &PullCommitView{CommitID: sha}, nil
	}
	if err != nil {
		return nil, err
	}
	return &PullCommitView{CommitID: sha, Totals: SerializeCommitTotals(commit.Totals)}, nil
}
